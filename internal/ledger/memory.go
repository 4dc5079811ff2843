package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps records in a map. It backs the memory backend and
// the state machine tests.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[Key]*Record
	now     func() time.Time
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[Key]*Record), now: time.Now}
}

func (m *MemoryRepository) Get(_ context.Context, key Key) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key].Clone(), nil
}

func (m *MemoryRepository) Update(_ context.Context, key Key, fn UpdateFunc) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.records[key].Clone()
	if working == nil {
		working = NewRecord(key, m.now())
	}
	if err := fn(working); err != nil {
		return nil, err
	}
	m.records[key] = working.Clone()
	return working, nil
}

func (m *MemoryRepository) ListLocked(_ context.Context, communityID string) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Record
	for key, rec := range m.records {
		if key.CommunityID == communityID && rec.LockState.Locked() {
			out = append(out, rec.Clone())
		}
	}
	sortLocked(out)
	return out, nil
}

func sortLocked(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].LockedAt.Equal(records[j].LockedAt) {
			return records[i].LockedAt.Before(records[j].LockedAt)
		}
		return records[i].UserID < records[j].UserID
	})
}
