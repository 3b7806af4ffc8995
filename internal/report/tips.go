package report

import (
	"math/rand/v2"
	"sync"
)

// Tips is a replaceable list of hints attached to status messages.
type Tips struct {
	mu   sync.RWMutex
	tips []string
}

// NewTips creates a tip list.
func NewTips(tips []string) *Tips {
	t := &Tips{}
	t.Replace(tips)
	return t
}

// Random returns a random tip, or "" when there are none.
func (t *Tips) Random() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.tips) == 0 {
		return ""
	}
	return t.tips[rand.IntN(len(t.tips))]
}

// Replace swaps the tip list.
func (t *Tips) Replace(tips []string) {
	cp := append([]string(nil), tips...)
	t.mu.Lock()
	t.tips = cp
	t.mu.Unlock()
}

// All returns a copy of the tip list.
func (t *Tips) All() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.tips...)
}
