package v1

import (
	"context"

	"github.com/callboard/callboard/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Workspaces() domain.WorkspaceRepository
	Objects() domain.CanvasObjectRepository
}

// Publisher broadcasts change events to subscribed canvas sessions.
// *redis.PubSub satisfies this interface.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
