package dispatch

import (
	"container/list"
	"sync"
)

// Key identifies a message as delivered to one account.
type Key struct {
	AccountID string
	ChatID    int64
	MessageID int
}

// Seen is a bounded LRU set of message keys. When full, the least recently
// seen key is evicted.
type Seen struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recent
	index    map[Key]*list.Element
}

// NewSeen creates a set holding at most capacity keys.
func NewSeen(capacity int) *Seen {
	if capacity < 1 {
		capacity = 1
	}
	return &Seen{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[Key]*list.Element, capacity),
	}
}

// Add records k and reports whether it was new. A repeat refreshes its recency.
func (s *Seen) Add(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[k]; ok {
		s.order.MoveToFront(el)
		return false
	}

	s.index[k] = s.order.PushFront(k)
	if s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(Key))
	}
	return true
}

// Len returns the number of keys held.
func (s *Seen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
