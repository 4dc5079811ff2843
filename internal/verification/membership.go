package verification

import (
	"sync"

	"warden/internal/evidence"
)

// Membership tracks members who have left their community. Members never
// seen are treated as active, so adapters only need to report departures
// and returns.
type Membership struct {
	mu   sync.RWMutex
	left map[evidence.Member]struct{}
}

func NewMembership() *Membership {
	return &Membership{left: make(map[evidence.Member]struct{})}
}

// Joined marks member active again.
func (m *Membership) Joined(member evidence.Member) {
	m.mu.Lock()
	delete(m.left, member)
	m.mu.Unlock()
}

// Left marks member inactive until the next Joined.
func (m *Membership) Left(member evidence.Member) {
	m.mu.Lock()
	m.left[member] = struct{}{}
	m.mu.Unlock()
}

// Active reports whether member is still in the community.
func (m *Membership) Active(member evidence.Member) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, gone := m.left[member]
	return !gone
}

// Departed returns how many members are currently marked as left.
func (m *Membership) Departed() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.left)
}
