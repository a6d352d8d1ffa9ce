package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"proctorportal/backend/internal/config"
	"proctorportal/backend/internal/livefeed"
	"proctorportal/backend/internal/models"
	"proctorportal/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard may be served from another origin; the session token
	// is the access check.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type approvalRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// ListProfiles lists user profiles; ?pending=true keeps unapproved ones.
func (h *Handler) ListProfiles(c *gin.Context) {
	pendingOnly := c.Query("pending") == "true"

	profiles, err := h.Storage.ListProfiles(c.Request.Context(), pendingOnly)
	if err != nil {
		log.Printf("ERROR: Failed to list profiles: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "internal_error")})
		return
	}
	if profiles == nil {
		profiles = []models.UserProfile{}
	}
	c.JSON(http.StatusOK, profiles)
}

// SetApproval approves or revokes a profile. Revoking also ends the
// user's sessions.
func (h *Handler) SetApproval(c *gin.Context) {
	uid := c.Param("uid")

	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.t(c, "missing_fields")})
		return
	}

	err := h.Registration.SetApproval(c.Request.Context(), uid, *req.Approved)
	if errors.Is(err, storage.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": h.t(c, "profile_not_found")})
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to set approval for %s: %v", uid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "internal_error")})
		return
	}

	if !*req.Approved && h.Gate != nil {
		h.Gate.Terminate(c.Request.Context(), uid)
	}
	c.JSON(http.StatusOK, gin.H{"message": h.t(c, "approval_updated"), "uid": uid, "approved": *req.Approved})
}

// LiveViolations upgrades the request to a websocket that receives every
// newly logged violation.
func (h *Handler) LiveViolations(c *gin.Context) {
	if h.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": h.t(c, "internal_error")})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("WARNING: Failed to upgrade live feed connection: %v", err)
		return
	}

	client := livefeed.NewWebSocketClient(h.Hub, conn, config.LiveClientBuffer)
	select {
	case h.Hub.RegisterCh <- client:
	case <-h.Hub.Done():
		conn.Close()
		return
	}
	client.Run()
}

// MarkReviewed marks a violation as reviewed.
func (h *Handler) MarkReviewed(c *gin.Context) {
	h.markSeen(c, h.Review.MarkReviewed)
}

// MarkRead marks a contact message as read.
func (h *Handler) MarkRead(c *gin.Context) {
	h.markSeen(c, h.Review.MarkRead)
}

func (h *Handler) markSeen(c *gin.Context, mark func(ctx context.Context, id string) error) {
	id := c.Param("id")
	err := mark(c.Request.Context(), id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": h.t(c, "record_not_found")})
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to update %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "internal_error")})
		return
	}
	c.Status(http.StatusNoContent)
}

// StudentRisk scores a student's recent unreviewed violations.
func (h *Handler) StudentRisk(c *gin.Context) {
	risk, err := h.Review.StudentRisk(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		log.Printf("ERROR: Failed to score student %s: %v", c.Param("studentId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "reports_failed")})
		return
	}
	c.JSON(http.StatusOK, risk)
}
