// Package store persists the activity log.
package store

import (
	"context"

	"github.com/rendis/erdstudio/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Activities
	AppendActivity(ctx context.Context, a *schema.Activity) error
	GetActivity(ctx context.Context, id string) (*schema.Activity, error)
	ListActivities(ctx context.Context, filter ActivityFilter) ([]*schema.Activity, error)
	CountActivities(ctx context.Context) (int64, error)
	PruneActivities(ctx context.Context, keep int) (int64, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
