package chat

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Samijain03/Collab-X/internal/room"
)

// Repository is the postgres MessageStore. 1:1 messages and group messages
// live in separate tables sharing one shape; the parsed room key picks the
// table.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, key room.ParsedKey, senderID int, content string, attachment Attachment) (*Message, error) {
	msg := &Message{SenderID: senderID, Content: content,
		AttachmentURL: attachment.URL, AttachmentName: attachment.Name}

	var query string
	var target int
	if key.Group {
		query = `
			INSERT INTO group_messages (group_id, sender_id, content, attachment_url, attachment_name)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
			RETURNING id, created_at
		`
		target = key.GroupID
		msg.GroupID = key.GroupID
	} else {
		query = `
			INSERT INTO messages (receiver_id, sender_id, content, attachment_url, attachment_name)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
			RETURNING id, created_at
		`
		target = counterpart(key, senderID)
		msg.ReceiverID = target
	}

	err := r.db.QueryRowContext(ctx, query, target, senderID, content,
		attachment.URL, attachment.Name).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *Repository) Get(ctx context.Context, key room.ParsedKey, messageID int) (*Message, error) {
	var query string
	if key.Group {
		query = `
			SELECT m.id, m.sender_id, u.username, COALESCE(u.display_name, ''), m.group_id, 0,
			       m.content, m.is_deleted, COALESCE(m.attachment_url, ''), COALESCE(m.attachment_name, ''), m.created_at
			FROM group_messages m JOIN users u ON u.id = m.sender_id
			WHERE m.id = $1 AND m.group_id = $2
		`
	} else {
		query = `
			SELECT m.id, m.sender_id, u.username, COALESCE(u.display_name, ''), 0, m.receiver_id,
			       m.content, m.is_deleted, COALESCE(m.attachment_url, ''), COALESCE(m.attachment_name, ''), m.created_at
			FROM messages m JOIN users u ON u.id = m.sender_id
			WHERE m.id = $1
			  AND ((m.sender_id = $2 AND m.receiver_id = $3) OR (m.sender_id = $3 AND m.receiver_id = $2))
		`
	}

	msg := &Message{}
	var row *sql.Row
	if key.Group {
		row = r.db.QueryRowContext(ctx, query, messageID, key.GroupID)
	} else {
		row = r.db.QueryRowContext(ctx, query, messageID, key.UserA, key.UserB)
	}
	err := row.Scan(&msg.ID, &msg.SenderID, &msg.SenderUsername, &msg.SenderName,
		&msg.GroupID, &msg.ReceiverID, &msg.Content, &msg.IsDeleted,
		&msg.AttachmentURL, &msg.AttachmentName, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.SenderName == "" {
		msg.SenderName = msg.SenderUsername
	}
	return msg, nil
}

func (r *Repository) SoftDelete(ctx context.Context, key room.ParsedKey, messageID, senderID int) error {
	table := "messages"
	if key.Group {
		table = "group_messages"
	}
	query := `
		UPDATE ` + table + `
		SET content = $3, is_deleted = TRUE
		WHERE id = $1 AND sender_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, messageID, senderID, DeletedPlaceholder)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *Repository) History(ctx context.Context, key room.ParsedKey, limit int) ([]*Message, error) {
	var query string
	var rows *sql.Rows
	var err error
	if key.Group {
		query = `
			SELECT m.id, m.sender_id, u.username, COALESCE(u.display_name, ''), m.group_id, 0,
			       m.content, m.is_deleted, COALESCE(m.attachment_url, ''), COALESCE(m.attachment_name, ''), m.created_at
			FROM group_messages m JOIN users u ON u.id = m.sender_id
			WHERE m.group_id = $1
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		`
		rows, err = r.db.QueryContext(ctx, query, key.GroupID, limit)
	} else {
		query = `
			SELECT m.id, m.sender_id, u.username, COALESCE(u.display_name, ''), 0, m.receiver_id,
			       m.content, m.is_deleted, COALESCE(m.attachment_url, ''), COALESCE(m.attachment_name, ''), m.created_at
			FROM messages m JOIN users u ON u.id = m.sender_id
			WHERE (m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1)
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $3
		`
		rows, err = r.db.QueryContext(ctx, query, key.UserA, key.UserB, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.SenderUsername, &msg.SenderName,
			&msg.GroupID, &msg.ReceiverID, &msg.Content, &msg.IsDeleted,
			&msg.AttachmentURL, &msg.AttachmentName, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if msg.SenderName == "" {
			msg.SenderName = msg.SenderUsername
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query selects newest-first so the limit keeps the most recent
	// messages; callers expect chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func counterpart(key room.ParsedKey, senderID int) int {
	if key.UserA == senderID {
		return key.UserB
	}
	return key.UserA
}
