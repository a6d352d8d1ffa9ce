package handler

import (
	"errors"
	"log"
	"net/http"
	"proctorportal/backend/internal/gate"
	"proctorportal/backend/internal/identity"
	"proctorportal/backend/internal/models"
	"proctorportal/backend/internal/registration"
	"proctorportal/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

const (
	identityKey = "identity"
	sessionKey  = "session"
)

type registerRequest struct {
	Username string      `json:"username" binding:"required"`
	Role     models.Role `json:"role" binding:"required"`
}

// RequireIdentity verifies the identity provider token in the
// Authorization header.
func (h *Handler) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := identity.BearerToken(c.GetHeader("Authorization"))
		if !ok || h.Verifier == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": h.t(c, "unauthenticated")})
			return
		}
		id, err := h.Verifier.Verify(token)
		if err != nil {
			log.Printf("WARNING: Rejected identity token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": h.t(c, "unauthenticated")})
			return
		}
		c.Set(identityKey, *id)
		c.Next()
	}
}

// RequireSession checks the portal session token. With roles given, the
// session must carry one of them.
func (h *Handler) RequireSession(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := identity.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			// Browsers cannot set headers on websocket upgrades.
			token = c.Query("token")
		}
		if token == "" || h.Sessions == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": h.t(c, "unauthenticated")})
			return
		}

		rec, err := h.Sessions.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": h.t(c, "unauthenticated")})
			return
		}

		if h.SessionCache != nil {
			active, err := h.SessionCache.SessionActive(c.Request.Context(), rec.ID)
			switch {
			case errors.Is(err, storage.ErrUnavailable):
			case err != nil:
				log.Printf("WARNING: Session cache lookup failed for %s: %v", rec.ID, err)
			case !active:
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": h.t(c, "unauthenticated")})
				return
			}
		}

		if len(roles) > 0 && !hasRole(rec.Role, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": h.t(c, "forbidden")})
			return
		}

		c.Set(sessionKey, *rec)
		c.Next()
	}
}

// RequireAdmin guards the admin API unless AdminAPIAuth is off.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	if !h.AdminAPIAuth {
		return func(c *gin.Context) { c.Next() }
	}
	return h.RequireSession(models.RoleAdmin)
}

func hasRole(role models.Role, roles []models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RegisterProfile creates the caller's profile after sign-up. The caller is
// signed out afterwards and has to log in again once verified.
func (h *Handler) RegisterProfile(c *gin.Context) {
	id := c.MustGet(identityKey).(identity.Identity)

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.t(c, "missing_fields")})
		return
	}

	profile, err := h.Registration.Register(c.Request.Context(), id, req.Username, req.Role)
	switch {
	case errors.Is(err, registration.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": h.t(c, "invalid_role")})
		return
	case errors.Is(err, registration.ErrMissingUsername):
		c.JSON(http.StatusBadRequest, gin.H{"error": h.t(c, "missing_fields")})
		return
	case errors.Is(err, storage.ErrProfileExists):
		c.JSON(http.StatusConflict, gin.H{"error": h.t(c, "profile_exists")})
		return
	case err != nil:
		log.Printf("ERROR: Failed to register %s: %v", id.UID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "internal_error")})
		return
	}

	if h.Gate != nil {
		h.Gate.Terminate(c.Request.Context(), id.UID)
	}

	key := "registered_student"
	if profile.Role.RequiresApproval() {
		key = "registered_teacher"
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": h.t(c, key),
		"signOut": true,
		"profile": profile,
	})
}

// Login runs the post-login gate for the caller.
func (h *Handler) Login(c *gin.Context) {
	id := c.MustGet(identityKey).(identity.Identity)
	h.decide(c, id)
}

// GoogleLogin creates a student profile on the first federated sign-in and
// then runs the gate like Login.
func (h *Handler) GoogleLogin(c *gin.Context) {
	id := c.MustGet(identityKey).(identity.Identity)

	if !h.isPrivileged(id.Email) {
		if _, _, err := h.Registration.EnsureFederatedProfile(c.Request.Context(), id); err != nil {
			log.Printf("ERROR: Failed to ensure federated profile %s: %v", id.UID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "internal_error")})
			return
		}
	}
	h.decide(c, id)
}

func (h *Handler) isPrivileged(email string) bool {
	return h.Gate != nil && h.Gate.Privileged.Contains(email)
}

func (h *Handler) decide(c *gin.Context, id identity.Identity) {
	if h.Gate == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "internal_error")})
		return
	}

	decision, err := h.Gate.Decide(c.Request.Context(), id)
	var denial *gate.Denial
	if errors.As(err, &denial) {
		status, key := denialResponse(denial.Err)
		c.JSON(status, gin.H{
			"error":   h.t(c, key),
			"code":    key,
			"signOut": denial.SignOut,
		})
		return
	}
	if err != nil {
		log.Printf("ERROR: Login gate failed for %s: %v", id.UID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "internal_error")})
		return
	}

	c.JSON(http.StatusOK, decision)
}

func denialResponse(err error) (int, string) {
	switch {
	case errors.Is(err, gate.ErrProfileNotFound):
		return http.StatusNotFound, "profile_not_found"
	case errors.Is(err, gate.ErrEmailNotVerified):
		return http.StatusForbidden, "email_not_verified"
	case errors.Is(err, gate.ErrPendingApproval):
		return http.StatusForbidden, "pending_approval"
	default:
		return http.StatusForbidden, "unknown_role"
	}
}

// GetSession returns the caller's session record.
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, c.MustGet(sessionKey).(models.SessionRecord))
}

// Logout revokes every session of the caller.
func (h *Handler) Logout(c *gin.Context) {
	rec := c.MustGet(sessionKey).(models.SessionRecord)
	if h.Gate != nil {
		h.Gate.Terminate(c.Request.Context(), rec.UID)
	}
	c.Status(http.StatusNoContent)
}
