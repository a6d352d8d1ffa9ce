// Package review provides the admin-side handling of logged events:
// marking them as seen and scoring a student's recent violations.
package review

import (
	"context"
	"proctorportal/backend/internal/config"
	"proctorportal/backend/internal/models"
	"time"
)

// Store is the part of the storage the review service needs.
type Store interface {
	ListStudentViolations(ctx context.Context, studentID string, since time.Time) ([]models.ViolationEvent, error)
	MarkViolationReviewed(ctx context.Context, id string) error
	MarkContactRead(ctx context.Context, id string) error
}

// Risk summarizes the unreviewed violations of one student inside the
// risk window.
type Risk struct {
	StudentID  string         `json:"studentId"`
	Score      int            `json:"score"`
	Count      int            `json:"count"`
	ByType     map[string]int `json:"byType"`
	Flagged    bool           `json:"flagged"`
	WindowFrom time.Time      `json:"windowFrom"`
}

// Service handles the business logic for reviews.
type Service struct {
	Store Store
	Now   func() time.Time
}

func NewService(s Store) *Service {
	return &Service{Store: s, Now: time.Now}
}

func (s *Service) MarkReviewed(ctx context.Context, violationID string) error {
	return s.Store.MarkViolationReviewed(ctx, violationID)
}

func (s *Service) MarkRead(ctx context.Context, messageID string) error {
	return s.Store.MarkContactRead(ctx, messageID)
}

// StudentRisk scores the student's unreviewed violations of the last
// RiskWindow. The student is flagged when the weighted score reaches
// RiskThresholdScore or the count exceeds RiskThresholdFrequency.
func (s *Service) StudentRisk(ctx context.Context, studentID string) (*Risk, error) {
	from := s.Now().UTC().Add(-config.RiskWindow)
	events, err := s.Store.ListStudentViolations(ctx, studentID, from)
	if err != nil {
		return nil, err
	}

	risk := &Risk{StudentID: studentID, ByType: map[string]int{}, WindowFrom: from}
	for _, ev := range events {
		if ev.Reviewed {
			continue
		}
		risk.Count++
		risk.Score += Weight(ev.ViolationType)
		risk.ByType[ev.ViolationType]++
	}

	// Threshold
	if risk.Score >= config.RiskThresholdScore {
		risk.Flagged = true
	}
	// Frequency
	if risk.Count > config.RiskThresholdFrequency {
		risk.Flagged = true
	}
	return risk, nil
}
