package handler

import (
	"context"
	"log"
	"proctorportal/backend/internal/config"
	"proctorportal/backend/internal/gate"
	"proctorportal/backend/internal/identity"
	"proctorportal/backend/internal/livefeed"
	"proctorportal/backend/internal/localization"
	"proctorportal/backend/internal/models"
	"proctorportal/backend/internal/notify"
	"proctorportal/backend/internal/registration"
	"proctorportal/backend/internal/review"
	"proctorportal/backend/internal/storage"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const announceTimeout = 2 * time.Second

// IdentityVerifier checks identity provider tokens.
type IdentityVerifier interface {
	Verify(token string) (*identity.Identity, error)
}

// SessionParser checks portal session tokens.
type SessionParser interface {
	Parse(token string) (*models.SessionRecord, error)
}

// Announcer pushes a stored violation to the live feed.
type Announcer interface {
	Announce(ctx context.Context, ev models.ViolationEvent) error
}

// Handler holds every dependency of the HTTP layer. All of them are built
// once in main and shared by concurrent requests.
type Handler struct {
	Storage      storage.Storage
	Gate         *gate.Gate
	Registration *registration.Service
	Review       *review.Service
	Verifier     IdentityVerifier
	Sessions     SessionParser
	SessionCache storage.SessionCache
	Hub          *livefeed.Hub
	Feed         Announcer
	Notifier     notify.Notifier
	Localizer    *localization.Localizer

	ClientOptions []config.Option
	TemplatesDir  string
	AdminAPIAuth  bool
	Now           func() time.Time
}

func NewHandler(cfg config.Config, s storage.Storage) *Handler {
	return &Handler{
		Storage:       s,
		Registration:  registration.NewService(s),
		Review:        review.NewService(s),
		Notifier:      notify.Nop{},
		ClientOptions: cfg.ClientOptions,
		TemplatesDir:  cfg.TemplatesDir,
		AdminAPIAuth:  cfg.AdminAPIAuth,
		Now:           time.Now,
	}
}

// Router builds the gin engine with every route.
func (h *Handler) Router() *gin.Engine {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AddAllowHeaders("Authorization")
	r.Use(cors.New(corsCfg))

	r.GET("/static/js/firebase-config.js", h.ConfigScript)
	r.GET("/", h.Index)

	api := r.Group("/api")
	api.POST("/log/violation", h.LogViolation)
	api.POST("/contact", h.SubmitContact)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.RequireIdentity(), h.RegisterProfile)
	authGroup.POST("/login", h.RequireIdentity(), h.Login)
	authGroup.POST("/google", h.RequireIdentity(), h.GoogleLogin)
	authGroup.GET("/session", h.RequireSession(), h.GetSession)
	authGroup.POST("/logout", h.RequireSession(), h.Logout)

	admin := api.Group("/admin", h.RequireAdmin())
	admin.GET("/reports", h.ListReports)
	admin.POST("/reports/:id/review", h.MarkReviewed)
	admin.GET("/feedbacks", h.ListFeedbacks)
	admin.POST("/feedbacks/:id/read", h.MarkRead)
	admin.GET("/students/:studentId/risk", h.StudentRisk)
	admin.GET("/profiles", h.ListProfiles)
	admin.POST("/profiles/:uid/approval", h.SetApproval)
	admin.GET("/violations/live", h.LiveViolations)

	r.NoRoute(h.NotFound)
	return r
}

// t returns the message for key in the caller's language.
func (h *Handler) t(c *gin.Context, key string) string {
	return h.Localizer.GetString(localization.PreferredLanguage(c.GetHeader("Accept-Language")), key)
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now().UTC()
	}
	return h.Now().UTC()
}

func (h *Handler) announce(ev models.ViolationEvent) {
	if h.Feed == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()
	if err := h.Feed.Announce(ctx, ev); err != nil {
		log.Printf("WARNING: Failed to announce violation %s: %v", ev.ID, err)
	}
}
