package chat

import (
	"context"
	"errors"
	"time"

	"github.com/Samijain03/Collab-X/internal/room"
)

// DeletedPlaceholder replaces a message's content on soft delete. Once set,
// the content is immutable.
const DeletedPlaceholder = "This message was deleted."

var ErrMessageNotFound = errors.New("message not found")

// Message is one chat or group message. GroupID is zero for 1:1 messages;
// ReceiverID is zero for group messages. SenderName is denormalized for
// broadcasts and bot history.
type Message struct {
	ID             int       `json:"id"`
	SenderID       int       `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	SenderName     string    `json:"sender_display_name"`
	ReceiverID     int       `json:"receiver_id,omitempty"`
	GroupID        int       `json:"group_id,omitempty"`
	Content        string    `json:"content"`
	IsDeleted      bool      `json:"is_deleted"`
	AttachmentURL  string    `json:"attachment_url,omitempty"`
	AttachmentName string    `json:"attachment_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Attachment is an optional file reference carried on a message. Upload
// storage lives elsewhere; only the reference travels through here.
type Attachment struct {
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
}

// MessageStore is the durable-store boundary for chat and group messages.
type MessageStore interface {
	// Save persists a new message addressed by the parsed room key and
	// returns it with id and timestamp filled.
	Save(ctx context.Context, key room.ParsedKey, senderID int, content string, attachment Attachment) (*Message, error)

	// Get returns one message of the room kind the key names.
	Get(ctx context.Context, key room.ParsedKey, messageID int) (*Message, error)

	// SoftDelete marks the message deleted and swaps its content for the
	// placeholder, only when senderID authored it. Idempotent.
	SoftDelete(ctx context.Context, key room.ParsedKey, messageID, senderID int) error

	// History returns the room's newest messages up to limit, in
	// chronological order with ties broken by id.
	History(ctx context.Context, key room.ParsedKey, limit int) ([]*Message, error)
}
