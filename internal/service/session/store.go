package session

import (
	"context"

	"github.com/veloform/activity-enhancer-go/internal/domain"
)

// Store holds pending enhancements between the details page and the edit page.
// Implementations enforce the pending TTL on read: an expired record is
// cleared and reported as absent, never returned stale.
type Store interface {
	// Save stamps the record with the current time and persists it under its
	// activity ID, replacing any previous record for that activity.
	Save(ctx context.Context, pending *domain.PendingEnhancement) error

	// Get returns the pending record for the activity, or nil when none
	// exists or the record has expired.
	Get(ctx context.Context, activityID string) (*domain.PendingEnhancement, error)

	// Update merges non-nil fields onto an existing record. A missing or
	// expired record makes Update a no-op.
	Update(ctx context.Context, activityID string, update domain.PendingUpdate) error

	// Clear removes the record for the activity if present.
	Clear(ctx context.Context, activityID string) error
}

func pendingKey(activityID string) string {
	return "ae:pending:" + activityID
}
