package storage

import (
	"context"
	"fmt"
	"proctorportal/backend/internal/models"
	"time"
)

// ListStudentViolations returns the violations of one student logged at
// or after since, newest first.
func (s *Service) ListStudentViolations(ctx context.Context, studentID string, since time.Time) ([]models.ViolationEvent, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	events := []models.ViolationEvent{}
	err = db.Where(`student_id = ? AND "timestamp" >= ?`, studentID, since).
		Order("timestamp desc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list violations of %s: %w", studentID, err)
	}
	return events, nil
}

func (s *Service) MarkViolationReviewed(ctx context.Context, id string) error {
	return s.setFlag(ctx, &models.ViolationEvent{}, id, "reviewed")
}

func (s *Service) MarkContactRead(ctx context.Context, id string) error {
	return s.setFlag(ctx, &models.ContactMessage{}, id, "read")
}

func (s *Service) setFlag(ctx context.Context, model any, id, column string) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	result := db.Model(model).Where("id = ?", id).Update(column, true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
