// Package memstore is an in-memory implementation of the storage
// interfaces. It backs the handler and gate tests and can stand in for
// the database when experimenting locally.
package memstore

import (
	"context"
	"proctorportal/backend/internal/models"
	"proctorportal/backend/internal/storage"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Store struct {
	mu         sync.RWMutex
	profiles   map[string]models.UserProfile
	violations []models.ViolationEvent
	messages   []models.ContactMessage
	sessions   map[string]models.SessionRecord

	// Err, when set, is returned by every call.
	Err error
}

func New() *Store {
	return &Store{
		profiles: make(map[string]models.UserProfile),
		sessions: make(map[string]models.SessionRecord),
	}
}

func (s *Store) GetProfile(_ context.Context, uid string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.profiles[uid]
	if !ok {
		return nil, storage.ErrProfileNotFound
	}
	return &p, nil
}

func (s *Store) CreateProfile(_ context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.profiles[profile.UID]; ok {
		return storage.ErrProfileExists
	}
	s.profiles[profile.UID] = *profile
	return nil
}

func (s *Store) SaveProfile(_ context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.profiles[profile.UID] = *profile
	return nil
}

func (s *Store) SetApproval(_ context.Context, uid string, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	p, ok := s.profiles[uid]
	if !ok {
		return storage.ErrProfileNotFound
	}
	p.Approved = approved
	s.profiles[uid] = p
	return nil
}

func (s *Store) ListProfiles(_ context.Context, pendingOnly bool) ([]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.UserProfile{}
	for _, p := range s.profiles {
		if pendingOnly && p.Approved {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SaveViolation(_ context.Context, event *models.ViolationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	s.violations = append(s.violations, *event)
	return nil
}

func (s *Store) ListRecentViolations(_ context.Context, limit int) ([]models.ViolationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := append([]models.ViolationEvent{}, s.violations...)
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].Timestamp, out[i].ID, out[j].Timestamp, out[j].ID)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListStudentViolations(_ context.Context, studentID string, since time.Time) ([]models.ViolationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.ViolationEvent{}
	for _, v := range s.violations {
		if v.StudentID == studentID && !v.Timestamp.Before(since) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].Timestamp, out[i].ID, out[j].Timestamp, out[j].ID)
	})
	return out, nil
}

func (s *Store) MarkViolationReviewed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i := range s.violations {
		if s.violations[i].ID == id {
			s.violations[i].Reviewed = true
			return nil
		}
	}
	return storage.ErrRecordNotFound
}

func (s *Store) SaveContactMessage(_ context.Context, msg *models.ContactMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *Store) ListContactMessages(_ context.Context, page storage.Page) ([]models.ContactMessage, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, "", s.Err
	}

	all := append([]models.ContactMessage{}, s.messages...)
	sort.Slice(all, func(i, j int) bool {
		return newer(all[i].Timestamp, all[i].ID, all[j].Timestamp, all[j].ID)
	})

	out := []models.ContactMessage{}
	if page.Cursor != "" {
		c, err := storage.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, "", err
		}
		for _, m := range all {
			if c.After(m.Timestamp, m.ID) {
				out = append(out, m)
			}
		}
	} else {
		out = all
	}

	if page.Size > 0 && len(out) > page.Size {
		out = out[:page.Size]
		last := out[len(out)-1]
		return out, storage.EncodeCursor(storage.Cursor{Timestamp: last.Timestamp, ID: last.ID}), nil
	}
	return out, "", nil
}

func (s *Store) MarkContactRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Read = true
			return nil
		}
	}
	return storage.ErrRecordNotFound
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Err
}

func (s *Store) SaveSession(_ context.Context, rec models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sessions[rec.ID] = rec
	return nil
}

func (s *Store) SessionActive(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return false, s.Err
	}
	rec, ok := s.sessions[sessionID]
	return ok && time.Now().Before(rec.ExpiresAt), nil
}

func (s *Store) RevokeSessions(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for id, rec := range s.sessions {
		if rec.UID == uid {
			delete(s.sessions, id)
		}
	}
	return nil
}

// Violations returns a copy of every stored violation in insertion order.
func (s *Store) Violations() []models.ViolationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ViolationEvent{}, s.violations...)
}

// Messages returns a copy of every stored contact message in insertion order.
func (s *Store) Messages() []models.ContactMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ContactMessage{}, s.messages...)
}

func newer(ti time.Time, idi string, tj time.Time, idj string) bool {
	if ti.Equal(tj) {
		return idi > idj
	}
	return ti.After(tj)
}
