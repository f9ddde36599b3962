package session

import (
	"context"
	"sync"
	"time"

	"github.com/veloform/activity-enhancer-go/internal/constants"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/pkg/errors"
)

// MemoryStore is a process-local Store for single-instance deployments and
// tests. Semantics match RedisStore, including read-time expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.PendingEnhancement
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]domain.PendingEnhancement),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Save(_ context.Context, pending *domain.PendingEnhancement) error {
	if pending == nil || pending.ActivityID == "" {
		return errors.NewCacheError("pending record requires an activity ID", "set", "", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending.Timestamp = s.now()
	s.records[pending.ActivityID] = *pending
	return nil
}

func (s *MemoryStore) Get(_ context.Context, activityID string) (*domain.PendingEnhancement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[activityID]
	if !ok {
		return nil, nil
	}

	if s.now().Sub(record.Timestamp) >= constants.SessionConfig.PendingTTL {
		delete(s.records, activityID)
		return nil, nil
	}

	copied := record
	return &copied, nil
}

func (s *MemoryStore) Update(_ context.Context, activityID string, update domain.PendingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[activityID]
	if !ok {
		return nil
	}

	if s.now().Sub(record.Timestamp) >= constants.SessionConfig.PendingTTL {
		delete(s.records, activityID)
		return nil
	}

	if update.EnhancedTitle != nil {
		record.EnhancedTitle = *update.EnhancedTitle
	}
	if update.EnhancedDescription != nil {
		record.EnhancedDescription = *update.EnhancedDescription
	}

	s.records[activityID] = record
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, activityID)
	return nil
}
