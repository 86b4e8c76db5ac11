package store

import (
	"context"
	"sync"

	"github.com/junyuhe/scholarbot/backend/internal/model/conversation"
)

// memoryStore keeps transcripts in-process. The mutex serializes appends so
// concurrent writes to one conversation keep their order.
type memoryStore struct {
	mu    sync.RWMutex
	turns map[string][]conversation.Turn
}

func newMemoryStore() *memoryStore {
	return &memoryStore{turns: make(map[string][]conversation.Turn)}
}

func (s *memoryStore) Load(_ context.Context, id string) (conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[id]
	copied := make([]conversation.Turn, len(turns))
	copy(copied, turns)
	return conversation.Conversation{ID: id, Turns: copied}, nil
}

func (s *memoryStore) Append(_ context.Context, id string, turn conversation.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns[id] = append(s.turns[id], turn)
	return nil
}

// Close keeps the turn map in place so requests that race shutdown still
// succeed instead of panicking on a nil map.
func (s *memoryStore) Close() error {
	return nil
}
