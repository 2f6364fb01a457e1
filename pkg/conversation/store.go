package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the ordered chat log. Entries are addressed by ID only and are
// never reordered or removed.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]int
	onChange func(Message)
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// OnChange registers fn to be called with the new state of every appended
// or updated message. fn runs outside the store lock.
func (s *Store) OnChange(fn func(Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Append adds msg at the end of the log and returns its assigned ID.
func (s *Store) Append(msg Message) string {
	msg = msg.clone()
	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(msg.clone())
	}
	return msg.ID
}

// UpdateByID applies mutate to a copy of the message with the given ID and
// stores the result. Unknown IDs are ignored; the return value reports
// whether a message was updated. The ID and role cannot be changed.
func (s *Store) UpdateByID(id string, mutate func(*Message)) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	updated := s.messages[i].clone()
	mutate(&updated)
	updated.ID = s.messages[i].ID
	updated.Role = s.messages[i].Role
	updated = updated.clone()

	// Copy-on-write so earlier snapshots keep their view.
	next := make([]Message, len(s.messages))
	copy(next, s.messages)
	next[i] = updated
	s.messages = next
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(updated.clone())
	}
	return true
}

// Get returns a copy of the message with the given ID.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	return s.messages[i].clone(), true
}

// Messages returns a snapshot of the log in append order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// PendingCount returns the number of unresolved assistant placeholders.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.messages {
		if m.Pending {
			n++
		}
	}
	return n
}

// CountByRole returns how many messages have the given role.
func (s *Store) CountByRole(role Role) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.messages {
		if m.Role == role {
			n++
		}
	}
	return n
}
