package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"proctorportal/backend/internal/api/handler"
	"proctorportal/backend/internal/config"
	"proctorportal/backend/internal/gate"
	"proctorportal/backend/internal/identity"
	"proctorportal/backend/internal/livefeed"
	"proctorportal/backend/internal/localization"
	"proctorportal/backend/internal/notify"
	"proctorportal/backend/internal/registration"
	"proctorportal/backend/internal/storage"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupDependencies connects to PostgreSQL and Redis. Either may be nil:
// the portal still starts and the affected routes answer with errors.
func setupDependencies(ctx context.Context, cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Printf("ERROR: Failed to connect PostgreSQL, storage routes will fail: %v", err)
		db = nil
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Printf("WARNING: Failed to connect Redis, sessions cannot be revoked: %v", err)
			rdb.Close()
			rdb = nil
		}
	}

	return db, rdb
}

func main() {
	log.Println("Starting proctoring portal backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// 1. Credentials
	key, err := config.LoadServiceAccount(cfg.ServiceAccount)
	if err != nil {
		log.Printf("ERROR: %v", err)
	}
	projectID := ""
	if key != nil {
		projectID = key.ProjectID
	}
	cfg.ResolveIdentity(projectID)

	// 2. Storage
	db, rdb := setupDependencies(ctx, cfg)
	s := storage.NewStorageService(db, rdb)
	if db != nil {
		if err := s.Migrate(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Database connection established, migrations complete.")
	}

	var sessions storage.SessionCache
	if rdb != nil {
		sessions = s
	}

	// 3. Identity and sessions
	secret := cfg.SessionSecret
	if secret == "" {
		log.Println("WARNING: SESSION_SECRET is not set, sessions will not survive a restart")
		secret = identity.RandomSecret()
	}
	issuer, err := identity.NewSessionIssuer(secret, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("Failed to create session issuer: %v", err)
	}

	verifier, err := identity.NewVerifier(cfg.IdentityTokenSecret, cfg.IdentityPublicKey, cfg.IdentityIssuer, cfg.IdentityAudience)
	if err != nil {
		log.Printf("ERROR: Identity tokens cannot be verified, login routes will reject every request: %v", err)
	}

	g := gate.New(s, sessions, issuer, gate.NewPrivilegedSet(cfg.PrivilegedEmails), gate.Destinations{
		Admin:   cfg.AdminDestination,
		Teacher: cfg.TeacherDestination,
		Student: cfg.StudentDestination,
	})

	// 4. Live feed
	hub := livefeed.NewHub()
	go hub.Run(ctx)
	var feed handler.Announcer = hub
	if rdb != nil {
		go hub.ListenRedis(ctx, s.SubscribeViolations(ctx))
		feed = livefeed.RedisAnnouncer{Publisher: s}
	}

	// 5. Notifications
	var notifier notify.Notifier = notify.Nop{}
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChatID != 0 {
		bot, err := notify.NewTelegramBot(cfg.TelegramBotToken)
		if err != nil {
			log.Printf("ERROR: Failed to start Telegram notifier: %v", err)
		} else {
			tg := notify.NewTelegram(bot, cfg.TelegramAdminChatID, config.NotifierQueueSize)
			go tg.Run(ctx)
			notifier = tg
		}
	}

	localizer, err := localization.NewLocalizer(localization.DefaultLocales, "locales")
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	// 6. HTTP
	h := handler.NewHandler(cfg, s)
	h.Gate = g
	h.Registration = registration.NewService(s)
	if verifier != nil {
		h.Verifier = verifier
	}
	h.Sessions = issuer
	h.SessionCache = sessions
	h.Hub = hub
	h.Feed = feed
	h.Notifier = notifier
	h.Localizer = localizer
	if !cfg.AdminAPIAuth {
		log.Println("WARNING: ADMIN_API_AUTH is off, admin routes are open")
	}

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        h.Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Graceful shutdown failed: %v", err)
	}
	if rdb != nil {
		rdb.Close()
	}
}
