package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"proctorportal/backend/internal/models"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrUnavailable is returned when the backing store was never
	// connected (degraded start-up) or has no client configured.
	ErrUnavailable     = errors.New("store unavailable")
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrRecordNotFound  = errors.New("record not found")
)

// uniqueViolation is the PostgreSQL SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// Storage is the document store used by the portal.
type Storage interface {
	GetProfile(ctx context.Context, uid string) (*models.UserProfile, error)
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	SaveProfile(ctx context.Context, profile *models.UserProfile) error
	SetApproval(ctx context.Context, uid string, approved bool) error
	ListProfiles(ctx context.Context, pendingOnly bool) ([]models.UserProfile, error)

	SaveViolation(ctx context.Context, event *models.ViolationEvent) error
	ListRecentViolations(ctx context.Context, limit int) ([]models.ViolationEvent, error)
	ListStudentViolations(ctx context.Context, studentID string, since time.Time) ([]models.ViolationEvent, error)
	MarkViolationReviewed(ctx context.Context, id string) error

	SaveContactMessage(ctx context.Context, msg *models.ContactMessage) error
	ListContactMessages(ctx context.Context, page Page) ([]models.ContactMessage, string, error)
	MarkContactRead(ctx context.Context, id string) error

	Ping(ctx context.Context) error
}

// SessionCache keeps issued session ids so that they can be revoked.
type SessionCache interface {
	SaveSession(ctx context.Context, rec models.SessionRecord) error
	SessionActive(ctx context.Context, sessionID string) (bool, error)
	RevokeSessions(ctx context.Context, uid string) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor. Either handle may be nil; the affected
// operations then fail with ErrUnavailable.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Migrate creates the collections' tables.
func (s *Service) Migrate() error {
	if s.DB == nil {
		return ErrUnavailable
	}
	return s.DB.AutoMigrate(
		&models.UserProfile{},
		&models.ViolationEvent{},
		&models.ContactMessage{},
	)
}

func (s *Service) db(ctx context.Context) (*gorm.DB, error) {
	if s.DB == nil {
		return nil, ErrUnavailable
	}
	return s.DB.WithContext(ctx), nil
}

// GetProfile returns the profile stored under uid.
func (s *Service) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	var profile models.UserProfile
	err = db.Where("uid = ?", uid).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get profile %s: %v", uid, err)
		return nil, err
	}
	return &profile, nil
}

// CreateProfile inserts a new profile and refuses to overwrite an existing one.
func (s *Service) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	if err := db.Create(profile).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrProfileExists
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrProfileExists
		}
		log.Printf("ERROR: Failed to create profile %s: %v", profile.UID, err)
		return err
	}
	return nil
}

// SaveProfile inserts or fully replaces a profile.
func (s *Service) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(profile).Error
}

// SetApproval flips the approval flag of an existing profile.
func (s *Service) SetApproval(ctx context.Context, uid string, approved bool) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&models.UserProfile{}).
		Where("uid = ?", uid).
		Update("approved", approved)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// ListProfiles returns profiles newest first; pendingOnly keeps unapproved ones.
func (s *Service) ListProfiles(ctx context.Context, pendingOnly bool) ([]models.UserProfile, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	q := db.Model(&models.UserProfile{})
	if pendingOnly {
		q = q.Where("approved = ?", false)
	}
	var profiles []models.UserProfile
	if err := q.Order("created_at desc").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *Service) SaveViolation(ctx context.Context, event *models.ViolationEvent) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	if err := db.Create(event).Error; err != nil {
		log.Printf("ERROR: Failed to save violation for student %s: %v", event.StudentID, err)
		return err
	}
	return nil
}

// ListRecentViolations returns at most limit violations, newest first.
func (s *Service) ListRecentViolations(ctx context.Context, limit int) ([]models.ViolationEvent, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	events := []models.ViolationEvent{}
	if err := db.Order("timestamp desc").Order("id desc").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	return events, nil
}

func (s *Service) SaveContactMessage(ctx context.Context, msg *models.ContactMessage) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	if err := db.Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save contact message from %s: %v", msg.Email, err)
		return err
	}
	return nil
}

// ListContactMessages returns messages newest first. A zero page size
// returns every message; otherwise the second result is the cursor of the
// following page, empty on the last one.
func (s *Service) ListContactMessages(ctx context.Context, page Page) ([]models.ContactMessage, string, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, "", err
	}

	q := db.Model(&models.ContactMessage{})
	if page.Cursor != "" {
		c, err := DecodeCursor(page.Cursor)
		if err != nil {
			return nil, "", err
		}
		q = q.Where(`"timestamp" < ? OR ("timestamp" = ? AND id < ?)`, c.Timestamp, c.Timestamp, c.ID)
	}
	q = q.Order("timestamp desc").Order("id desc")
	if page.Size > 0 {
		// One extra row tells us whether another page exists.
		q = q.Limit(page.Size + 1)
	}

	msgs := []models.ContactMessage{}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, "", fmt.Errorf("list contact messages: %w", err)
	}

	if page.Size > 0 && len(msgs) > page.Size {
		msgs = msgs[:page.Size]
		last := msgs[len(msgs)-1]
		return msgs, EncodeCursor(Cursor{Timestamp: last.Timestamp, ID: last.ID}), nil
	}
	return msgs, "", nil
}

// Ping checks both the database and, when configured, Redis.
func (s *Service) Ping(ctx context.Context) error {
	if s.DB == nil {
		return ErrUnavailable
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}
	return nil
}
