package out

import (
	"context"

	"pricing_server/core/domain"
)

// Notifier pushes task progress snapshots to observers. Delivery is
// best-effort: a slow observer loses events, a reconnecting observer gets a
// fresh full snapshot rather than a replay.
type Notifier interface {
	Publish(ctx context.Context, event *domain.TaskEvent) error
}
