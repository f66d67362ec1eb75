package notifier

import (
	"context"

	"github.com/foxseedlab/punchclock/internal/repository"
)

type Message struct {
	UserID      string                      `json:"user_id"`
	Email       string                      `json:"email"`
	DisplayName string                      `json:"display_name"`
	Type        repository.NotificationType `json:"notification_type"`
	Context     map[string]any              `json:"context"`
}

// Notifier delivers one reminder. Implementations must honour ctx.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
