package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"proctorportal/backend/internal/config"
	"proctorportal/backend/internal/models"
	"proctorportal/backend/internal/registration"
	"proctorportal/backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// demoProfiles are the accounts used for manual testing. Their identity
// provider accounts must exist with the same uids.
var demoProfiles = []models.UserProfile{
	{
		UID:           "demo-student-id",
		Username:      "Demo Student ID",
		Email:         "studentid@gmail.com",
		Role:          models.RoleStudent,
		Approved:      true,
		EmailVerified: true,
	},
	{
		UID:           "demo-professor-id",
		Username:      "Demo Professor ID",
		Email:         "professorid@gmail.com",
		Role:          models.RoleTeacher,
		Approved:      true,
		EmailVerified: true,
	},
}

const usage = `Usage: admin <command> [args]

Commands:
  approve <uid>   approve a pending profile
  revoke <uid>    withdraw approval
  pending         list profiles awaiting approval
  seed-demo       create the demo student and teacher profiles
  check-db        check the database connection`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	command := os.Args[1]
	if command == "check-db" {
		if err := checkDB(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalf("Database check failed: %v", err)
		}
		fmt.Println("Database connection OK.")
		return
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI
	if err := storageSvc.Migrate(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	reg := registration.NewService(storageSvc)

	switch command {
	case "approve", "revoke":
		if len(os.Args) != 3 {
			fmt.Printf("Usage: admin %s <uid>\n", command)
			os.Exit(1)
		}
		uid := os.Args[2]
		if err := reg.SetApproval(ctx, uid, command == "approve"); err != nil {
			log.Fatalf("Error updating %s: %v", uid, err)
		}
		fmt.Printf("Profile %s has been %sd.\n", uid, command)
	case "pending":
		if err := listPending(ctx, storageSvc, os.Stdout); err != nil {
			log.Fatalf("Error listing profiles: %v", err)
		}
	case "seed-demo":
		if err := seedDemo(ctx, reg, os.Stdout); err != nil {
			log.Fatalf("Error seeding demo profiles: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}
