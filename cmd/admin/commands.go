package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"proctorportal/backend/internal/models"
	"text/tabwriter"

	_ "github.com/lib/pq"
)

type profileLister interface {
	ListProfiles(ctx context.Context, pendingOnly bool) ([]models.UserProfile, error)
}

type provisioner interface {
	Provision(ctx context.Context, profile models.UserProfile) (*models.UserProfile, error)
}

func listPending(ctx context.Context, s profileLister, out io.Writer) error {
	profiles, err := s.ListProfiles(ctx, true)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Fprintln(out, "No pending profiles.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tUSERNAME\tEMAIL\tROLE\tCREATED")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.UID, p.Username, p.Email, p.Role, p.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func seedDemo(ctx context.Context, p provisioner, out io.Writer) error {
	for _, profile := range demoProfiles {
		saved, err := p.Provision(ctx, profile)
		if err != nil {
			return fmt.Errorf("provision %s: %w", profile.Email, err)
		}
		fmt.Fprintf(out, "Profile saved: %s (%s)\n", saved.UID, saved.Role)
	}
	return nil
}

// checkDB opens a plain database/sql connection so that a broken gorm
// setup can be told apart from an unreachable server.
func checkDB(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	var one int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}
