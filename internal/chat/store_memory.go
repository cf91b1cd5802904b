package chat

import (
	"context"
	"sync"
	"time"

	"github.com/Samijain03/Collab-X/internal/room"
)

// MemoryStore is an in-process MessageStore used by tests.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int
	messages map[string][]*Message // roomKey -> ordered messages
	names    map[int]string        // userID -> display name
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, messages: make(map[string][]*Message), names: make(map[int]string)}
}

// SetName registers a display name used for saved messages.
func (s *MemoryStore) SetName(userID int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[userID] = name
}

func (s *MemoryStore) Save(_ context.Context, key room.ParsedKey, senderID int, content string, attachment Attachment) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &Message{
		ID:             s.nextID,
		SenderID:       senderID,
		SenderUsername: s.names[senderID],
		SenderName:     s.names[senderID],
		Content:        content,
		AttachmentURL:  attachment.URL,
		AttachmentName: attachment.Name,
		CreatedAt:      time.Now(),
	}
	if key.Group {
		msg.GroupID = key.GroupID
	} else {
		msg.ReceiverID = counterpart(key, senderID)
	}
	s.nextID++
	roomKey := keyString(key)
	s.messages[roomKey] = append(s.messages[roomKey], msg)
	out := *msg
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, key room.ParsedKey, messageID int) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages[keyString(key)] {
		if msg.ID == messageID {
			out := *msg
			return &out, nil
		}
	}
	return nil, ErrMessageNotFound
}

func (s *MemoryStore) SoftDelete(_ context.Context, key room.ParsedKey, messageID, senderID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages[keyString(key)] {
		if msg.ID == messageID && msg.SenderID == senderID {
			msg.Content = DeletedPlaceholder
			msg.IsDeleted = true
			return nil
		}
	}
	return ErrMessageNotFound
}

func (s *MemoryStore) History(_ context.Context, key room.ParsedKey, limit int) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.messages[keyString(key)]
	if limit > 0 && len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}
	out := make([]*Message, 0, len(stored))
	for _, msg := range stored {
		clone := *msg
		out = append(out, &clone)
	}
	return out, nil
}

func keyString(key room.ParsedKey) string {
	if key.Group {
		return room.GroupKey(key.GroupID)
	}
	return room.ChatKey(key.UserA, key.UserB)
}
