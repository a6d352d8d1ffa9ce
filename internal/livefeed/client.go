package livefeed

import "proctorportal/backend/internal/models"

// Client is one subscriber of the live violation feed.
type Client interface {
	// GetID returns a per-connection identifier.
	GetID() string

	// GetSendChannel returns the channel the hub writes announced
	// violations to.
	GetSendChannel() chan<- models.ViolationEvent

	// Run starts the client's pumps.
	Run()
	// Close releases the client's send channel. Only the hub calls it.
	Close()
}
