package ports

import (
	"context"

	"veripipe/models"
)

// Notifier delivers an alert to an external sink (pager, chat, email).
// Implementations must not block alert persistence; dispatch failures are
// logged by the caller and never fail the lifecycle transition.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}
