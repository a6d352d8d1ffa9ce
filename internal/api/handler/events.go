package handler

import (
	"errors"
	"log"
	"net/http"
	"proctorportal/backend/internal/config"
	"proctorportal/backend/internal/models"
	"proctorportal/backend/internal/storage"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type violationRequest struct {
	StudentID     string `json:"studentId" binding:"required"`
	ViolationType string `json:"violationType" binding:"required"`
	Timestamp     string `json:"timestamp"`
	EvidenceURL   string `json:"evidenceUrl"`
}

type contactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone"`
	Message string `json:"message" binding:"required"`
}

// LogViolation stores a violation reported by the exam client.
func (h *Handler) LogViolation(c *gin.Context) {
	var req violationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.t(c, "missing_fields")})
		return
	}

	ts := h.now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC 3339"})
			return
		}
		ts = parsed.UTC()
	}

	event := models.ViolationEvent{
		StudentID:     req.StudentID,
		ViolationType: req.ViolationType,
		Timestamp:     ts,
		EvidenceURL:   optional(req.EvidenceURL),
	}
	if err := h.Storage.SaveViolation(c.Request.Context(), &event); err != nil {
		log.Printf("ERROR: Failed to save violation for %s: %v", req.StudentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "internal_error")})
		return
	}

	h.announce(event)
	h.Notifier.ViolationLogged(c.Request.Context(), event)

	c.JSON(http.StatusOK, gin.H{"message": h.t(c, "violation_logged")})
}

// SubmitContact stores a message from the public contact form.
func (h *Handler) SubmitContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.t(c, "missing_fields")})
		return
	}

	msg := models.ContactMessage{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     optional(req.Phone),
		Message:   req.Message,
		Timestamp: h.now(),
	}
	if err := h.Storage.SaveContactMessage(c.Request.Context(), &msg); err != nil {
		log.Printf("ERROR: Failed to save contact message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "contact_failed")})
		return
	}

	h.Notifier.ContactReceived(c.Request.Context(), msg)

	c.JSON(http.StatusOK, gin.H{"message": h.t(c, "message_sent")})
}

// ListReports returns the most recent violations, newest first.
func (h *Handler) ListReports(c *gin.Context) {
	limit := config.DefaultReportsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, config.MaxReportsLimit)
	}

	events, err := h.Storage.ListRecentViolations(c.Request.Context(), limit)
	if err != nil {
		log.Printf("ERROR: Failed to list violations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "reports_failed")})
		return
	}
	if events == nil {
		events = []models.ViolationEvent{}
	}
	c.JSON(http.StatusOK, events)
}

// ListFeedbacks returns contact messages, newest first. Without pageSize
// the whole collection is returned.
func (h *Handler) ListFeedbacks(c *gin.Context) {
	var page storage.Page
	if raw := c.Query("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be a positive integer"})
			return
		}
		page.Size = min(n, config.MaxFeedbackPageSize)
		page.Cursor = c.Query("cursor")
	}

	msgs, next, err := h.Storage.ListContactMessages(c.Request.Context(), page)
	if errors.Is(err, storage.ErrInvalidCursor) {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.t(c, "invalid_cursor")})
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to list contact messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.t(c, "feedbacks_failed")})
		return
	}

	if page.Size == 0 && len(msgs) > config.MaxFeedbackPageSize {
		log.Printf("WARNING: Unbounded feedback listing returned %d messages, clients should pass pageSize", len(msgs))
	}
	if next != "" {
		c.Header("X-Next-Cursor", next)
	}
	if msgs == nil {
		msgs = []models.ContactMessage{}
	}
	c.JSON(http.StatusOK, msgs)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
