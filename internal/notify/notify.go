// Package notify tells administrators about new violations and contact
// messages.
package notify

import (
	"context"
	"proctorportal/backend/internal/models"
)

// Notifier is fire-and-forget: implementations must not block the caller.
type Notifier interface {
	ViolationLogged(ctx context.Context, event models.ViolationEvent)
	ContactReceived(ctx context.Context, msg models.ContactMessage)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) ViolationLogged(context.Context, models.ViolationEvent) {}
func (Nop) ContactReceived(context.Context, models.ContactMessage) {}
