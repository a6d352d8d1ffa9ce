package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"proctorportal/backend/internal/api/handler"
	"proctorportal/backend/internal/config"
	"proctorportal/backend/internal/gate"
	"proctorportal/backend/internal/identity"
	"proctorportal/backend/internal/localization"
	"proctorportal/backend/internal/models"
	"proctorportal/backend/internal/storage/memstore"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

var errStoreDown = errors.New("store down")

// fakeVerifier maps bearer tokens to identities.
type fakeVerifier map[string]identity.Identity

func (f fakeVerifier) Verify(token string) (*identity.Identity, error) {
	id, ok := f[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return &id, nil
}

type recordingFeed struct {
	mu     sync.Mutex
	events []models.ViolationEvent
	err    error
}

func (f *recordingFeed) Announce(_ context.Context, ev models.ViolationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *recordingFeed) Events() []models.ViolationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ViolationEvent{}, f.events...)
}

type recordingNotifier struct {
	mu         sync.Mutex
	violations int
	contacts   int
}

func (n *recordingNotifier) ViolationLogged(context.Context, models.ViolationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.violations++
}

func (n *recordingNotifier) ContactReceived(context.Context, models.ContactMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contacts++
}

type testServer struct {
	handler  *handler.Handler
	store    *memstore.Store
	feed     *recordingFeed
	notifier *recordingNotifier
	router   *gin.Engine
	dir      string
}

var testDestinations = gate.Destinations{
	Admin:   config.DefaultAdminDestination,
	Teacher: config.DefaultTeacherDestination,
	Student: config.DefaultStudentDestination,
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Proctored exams</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "error.html"), []byte("<h1>Page not found</h1>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "css", "site.css"), []byte("body{}"), 0o644))

	store := memstore.New()
	issuer, err := identity.NewSessionIssuer("test-session-secret", time.Hour)
	require.NoError(t, err)
	loc, err := localization.NewLocalizer(localization.DefaultLocales, "locales")
	require.NoError(t, err)

	cfg := config.Config{
		TemplatesDir: dir,
		AdminAPIAuth: true,
		ClientOptions: []config.Option{
			{Name: "apiKey", Value: "test-key"},
			{Name: "projectId", Value: "proctored-system"},
		},
	}
	h := handler.NewHandler(cfg, store)
	h.Gate = gate.New(store, store, issuer, gate.NewPrivilegedSet([]string{"admin@example.com"}), testDestinations)
	h.Verifier = fakeVerifier{
		"admin-token":      {UID: "admin-1", Email: "Admin@Example.com", EmailVerified: true},
		"student-token":    {UID: "s1", Email: "s1@example.com", EmailVerified: true},
		"teacher-token":    {UID: "t1", Email: "t1@example.com", EmailVerified: true},
		"unverified-token": {UID: "u1", Email: "u1@example.com"},
		"google-token":     {UID: "g1", Email: "jane@gmail.com", Name: "Jane", EmailVerified: true, Provider: "google.com"},
	}
	h.Sessions = issuer
	h.SessionCache = store
	h.Localizer = loc
	h.Now = func() time.Time { return fixedNow }

	feed := &recordingFeed{}
	notifier := &recordingNotifier{}
	h.Feed = feed
	h.Notifier = notifier

	return &testServer{handler: h, store: store, feed: feed, notifier: notifier, router: h.Router(), dir: dir}
}

func (s *testServer) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// login runs the login gate for an identity token and returns the session
// token.
func (s *testServer) login(t *testing.T, identityToken string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/login", nil, identityToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var decision gate.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	return decision.Token
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestLogViolation_Stored(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/log/violation", map[string]any{
		"studentId":     "s1",
		"violationType": "tab_switch",
		"timestamp":     "2024-05-01T09:30:00Z",
		"evidenceUrl":   "https://cdn.example.com/shot.png",
	}, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Violation logged successfully", decodeMap(t, w)["message"])

	stored := s.store.Violations()
	require.Len(t, stored, 1)
	assert.Equal(t, "s1", stored[0].StudentID)
	assert.Equal(t, "tab_switch", stored[0].ViolationType)
	assert.True(t, stored[0].Timestamp.Equal(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)))
	require.NotNil(t, stored[0].EvidenceURL)
	assert.Equal(t, "https://cdn.example.com/shot.png", *stored[0].EvidenceURL)
	assert.False(t, stored[0].Reviewed)
	assert.NotEmpty(t, stored[0].ID)

	require.Len(t, s.feed.Events(), 1, "stored violations are announced")
	assert.Equal(t, stored[0].ID, s.feed.Events()[0].ID)
	assert.Equal(t, 1, s.notifier.violations)
}

func TestLogViolation_Defaults(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/log/violation", map[string]any{
		"studentId":     "s1",
		"violationType": "face_missing",
	}, "")

	require.Equal(t, http.StatusOK, w.Code)
	stored := s.store.Violations()
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Timestamp.Equal(fixedNow), "missing timestamp defaults to the receive time")
	assert.Nil(t, stored[0].EvidenceURL, "missing evidence is stored as null")
}

func TestLogViolation_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing student", map[string]any{"violationType": "tab_switch"}},
		{"missing type", map[string]any{"studentId": "s1"}},
		{"empty student", map[string]any{"studentId": "", "violationType": "tab_switch"}},
		{"empty object", map[string]any{}},
		{"malformed json", `{"studentId": "s1",`},
		{"bad timestamp", map[string]any{"studentId": "s1", "violationType": "tab_switch", "timestamp": "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			w := s.do(t, http.MethodPost, "/api/log/violation", tt.body, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeMap(t, w), "error")
			assert.Empty(t, s.store.Violations(), "rejected requests create no record")
			assert.Empty(t, s.feed.Events())
		})
	}
}

func TestLogViolation_StoreFailure(t *testing.T) {
	s := newTestServer(t)
	s.store.Err = errStoreDown

	w := s.do(t, http.MethodPost, "/api/log/violation", map[string]any{"studentId": "s1", "violationType": "tab_switch"}, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", decodeMap(t, w)["error"])
	assert.Empty(t, s.feed.Events(), "nothing is announced when the write fails")
}

func TestLogViolation_FeedFailureIsNotFatal(t *testing.T) {
	s := newTestServer(t)
	s.feed.err = errors.New("redis down")

	w := s.do(t, http.MethodPost, "/api/log/violation", map[string]any{"studentId": "s1", "violationType": "tab_switch"}, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.store.Violations(), 1)
}

func seedViolations(t *testing.T, s *testServer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ev := models.ViolationEvent{
			ID:            fmt.Sprintf("v%03d", i),
			StudentID:     "s1",
			ViolationType: "tab_switch",
			Timestamp:     fixedNow.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.store.SaveViolation(context.Background(), &ev))
	}
}

func TestListReports(t *testing.T) {
	s := newTestServer(t)
	s.handler.AdminAPIAuth = false
	s.router = s.handler.Router()
	seedViolations(t, s, 60)

	tests := []struct {
		name    string
		query   string
		status  int
		wantLen int
	}{
		{"default cap", "", http.StatusOK, 50},
		{"explicit limit", "?limit=5", http.StatusOK, 5},
		{"limit above cap", "?limit=500", http.StatusOK, 50},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0},
		{"non numeric", "?limit=ten", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/admin/reports"+tt.query, nil, "")

			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			var events []models.ViolationEvent
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
			require.Len(t, events, tt.wantLen)
			assert.Equal(t, "v059", events[0].ID, "newest first")
			for i := 1; i < len(events); i++ {
				assert.False(t, events[i].Timestamp.After(events[i-1].Timestamp))
			}
		})
	}
}

func TestListReports_EmptyAndFailure(t *testing.T) {
	s := newTestServer(t)
	s.handler.AdminAPIAuth = false
	s.router = s.handler.Router()

	w := s.do(t, http.MethodGet, "/api/admin/reports", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	s.store.Err = errStoreDown
	w = s.do(t, http.MethodGet, "/api/admin/reports", nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to fetch reports", decodeMap(t, w)["error"])
}

func TestSubmitContact(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{"name": "Ann", "email": "ann@example.com", "message": "Hello"}

	w := s.do(t, http.MethodPost, "/api/contact", body, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Message sent successfully!", decodeMap(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/contact", body, "")
	require.Equal(t, http.StatusOK, w.Code)

	msgs := s.store.Messages()
	require.Len(t, msgs, 2, "identical submissions are stored separately")
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
	assert.Nil(t, msgs[0].Phone)
	assert.False(t, msgs[0].Read)
	assert.True(t, msgs[0].Timestamp.Equal(fixedNow))
	assert.Equal(t, 2, s.notifier.contacts)
}

func TestSubmitContact_BadRequestsAndFailure(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []any{
		map[string]any{"email": "ann@example.com", "message": "Hello"},
		map[string]any{"name": "Ann", "message": "Hello"},
		map[string]any{"name": "Ann", "email": "ann@example.com"},
		"not json",
	} {
		w := s.do(t, http.MethodPost, "/api/contact", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	assert.Empty(t, s.store.Messages())

	s.store.Err = errStoreDown
	w := s.do(t, http.MethodPost, "/api/contact", map[string]any{"name": "Ann", "email": "ann@example.com", "message": "Hi", "phone": "+380"}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to send message", decodeMap(t, w)["error"])
}

func seedMessages(t *testing.T, s *testServer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		msg := models.ContactMessage{
			ID:        fmt.Sprintf("m%03d", i),
			Name:      "Ann",
			Email:     "ann@example.com",
			Message:   fmt.Sprintf("message %d", i),
			Timestamp: fixedNow.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.store.SaveContactMessage(context.Background(), &msg))
	}
}

func TestListFeedbacks_Unbounded(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin-token")
	seedMessages(t, s, 120)

	w := s.do(t, http.MethodGet, "/api/admin/feedbacks", nil, token)

	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.ContactMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 120, "without pageSize every message is returned")
	assert.Equal(t, "m119", msgs[0].ID)
	assert.Empty(t, w.Header().Get("X-Next-Cursor"))
}

func TestListFeedbacks_Paginated(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin-token")
	seedMessages(t, s, 25)

	var all []models.ContactMessage
	cursor := ""
	for pages := 0; pages < 10; pages++ {
		target := "/api/admin/feedbacks?pageSize=10"
		if cursor != "" {
			target += "&cursor=" + cursor
		}
		w := s.do(t, http.MethodGet, target, nil, token)
		require.Equal(t, http.StatusOK, w.Code)

		var page []models.ContactMessage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.LessOrEqual(t, len(page), 10)
		all = append(all, page...)

		cursor = w.Header().Get("X-Next-Cursor")
		if cursor == "" {
			break
		}
	}

	require.Len(t, all, 25)
	for i, m := range all {
		assert.Equal(t, fmt.Sprintf("m%03d", 24-i), m.ID)
	}
}

func TestListFeedbacks_BadInput(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin-token")

	w := s.do(t, http.MethodGet, "/api/admin/feedbacks?pageSize=10&cursor=bm90LWEtY3Vyc29y", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/feedbacks?pageSize=-1", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListFeedbacks_StoreFailure(t *testing.T) {
	s := newTestServer(t)
	s.handler.AdminAPIAuth = false
	s.router = s.handler.Router()
	s.store.Err = errStoreDown

	w := s.do(t, http.MethodGet, "/api/admin/feedbacks", nil, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to fetch feedbacks", decodeMap(t, w)["error"])
}

func TestLocalizedErrors(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "uk-UA,uk;q=0.9")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEqual(t, "missing_fields", decodeMap(t, w)["error"])
}
