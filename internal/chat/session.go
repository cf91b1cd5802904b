package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Samijain03/Collab-X/internal/bot"
	"github.com/Samijain03/Collab-X/internal/room"
	"github.com/Samijain03/Collab-X/internal/runner"
	"github.com/Samijain03/Collab-X/internal/user"
	"github.com/Samijain03/Collab-X/internal/ws"
)

// Directory is the authorization/identity boundary the session gates on.
type Directory interface {
	GetUser(ctx context.Context, id int) (*user.User, error)
	AreContacts(ctx context.Context, userID, contactID int) (bool, error)
	GroupExists(ctx context.Context, groupID int) (bool, error)
	IsGroupMember(ctx context.Context, groupID, userID int) (bool, error)
}

// ErrUnauthorized covers every connect-time gate failure. The peer only sees
// its socket close; the reason is logged server side.
var ErrUnauthorized = errors.New("unauthorized")

type sessionState int

const (
	stateConnecting sessionState = iota
	stateActive
	stateClosed
)

// Session is the per-connection state machine for one 1:1 or group chat. The
// authorization gate runs once at connect and its result is cached for the
// session's lifetime.
type Session struct {
	conn        *ws.Conn
	registry    *room.Registry
	broadcaster *room.Broadcaster
	store       MessageStore
	directory   Directory
	pipeline    *bot.Pipeline
	exec        runner.Service
	log         zerolog.Logger

	state      sessionState
	key        string
	parsed     room.ParsedKey
	senderName string
}

func NewSession(conn *ws.Conn, registry *room.Registry, broadcaster *room.Broadcaster,
	store MessageStore, directory Directory, pipeline *bot.Pipeline, exec runner.Service,
	log zerolog.Logger) *Session {
	return &Session{
		conn:        conn,
		registry:    registry,
		broadcaster: broadcaster,
		store:       store,
		directory:   directory,
		pipeline:    pipeline,
		exec:        exec,
		log:         log.With().Str("component", "chat").Str("conn", conn.ID()).Logger(),
		state:       stateConnecting,
	}
}

// Connect evaluates the authorization gate and, on success, joins the room
// and moves the session to Active. targetID is the counterpart user for 1:1
// chats or the group id for group chats.
func (s *Session) Connect(ctx context.Context, targetID int, group bool) error {
	self, err := s.directory.GetUser(ctx, s.conn.UserID)
	if err != nil {
		s.log.Warn().Err(err).Msg("reject: unknown identity")
		s.state = stateClosed
		return ErrUnauthorized
	}
	s.senderName = self.Name()

	if group {
		exists, err := s.directory.GroupExists(ctx, targetID)
		if err != nil || !exists {
			s.log.Warn().Int("group_id", targetID).Msg("reject: group does not exist")
			s.state = stateClosed
			return ErrUnauthorized
		}
		member, err := s.directory.IsGroupMember(ctx, targetID, s.conn.UserID)
		if err != nil || !member {
			s.log.Warn().Int("group_id", targetID).Msg("reject: not a group member")
			s.state = stateClosed
			return ErrUnauthorized
		}
		s.key = room.GroupKey(targetID)
	} else {
		if _, err := s.directory.GetUser(ctx, targetID); err != nil {
			s.log.Warn().Int("contact_id", targetID).Msg("reject: contact does not exist")
			s.state = stateClosed
			return ErrUnauthorized
		}
		contacts, err := s.directory.AreContacts(ctx, s.conn.UserID, targetID)
		if err != nil || !contacts {
			s.log.Warn().Int("contact_id", targetID).Msg("reject: not contacts")
			s.state = stateClosed
			return ErrUnauthorized
		}
		s.key = room.ChatKey(s.conn.UserID, targetID)
	}

	parsed, err := room.ParseKey(s.key)
	if err != nil {
		s.state = stateClosed
		return ErrUnauthorized
	}
	s.parsed = parsed

	s.registry.Register(s.conn)
	s.registry.Join(s.conn.ID(), s.key)
	s.state = stateActive
	s.log.Info().Str("room", s.key).Msg("session active")
	return nil
}

// inboundEvent is the wire envelope for everything a chat client sends.
type inboundEvent struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	MessageID      int    `json:"message_id"`
	Code           string `json:"code"`
	AttachmentURL  string `json:"attachment_url"`
	AttachmentName string `json:"attachment_name"`
}

// Receive dispatches one inbound frame. Unknown types are ignored, not
// errors.
func (s *Session) Receive(payload []byte) {
	if s.state != stateActive {
		return
	}
	var event inboundEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.log.Debug().Err(err).Msg("undecodable frame dropped")
		return
	}

	ctx := context.Background()
	switch event.Type {
	case "chat_message":
		s.handleMessage(ctx, event)
	case "delete_message":
		s.handleDelete(ctx, event.MessageID)
	case "execute_code":
		s.handleExecute(event.Code)
	}
}

func (s *Session) handleMessage(ctx context.Context, event inboundEvent) {
	content := strings.TrimSpace(event.Message)
	if content == "" {
		return
	}

	if hidden, ok := bot.Trigger(content); ok {
		go s.pipeline.Handle(bot.Request{
			RoomKey:    s.key,
			ConnID:     s.conn.ID(),
			UserID:     s.conn.UserID,
			SenderName: s.senderName,
			Command:    content,
			Hidden:     hidden,
			History:    s.botHistory,
		})
		return
	}

	msg, err := s.store.Save(ctx, s.parsed, s.conn.UserID, content, Attachment{
		URL:  event.AttachmentURL,
		Name: event.AttachmentName,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("save message")
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"type":                "chat_message",
		"message_id":          msg.ID,
		"content":             msg.Content,
		"sender_username":     s.conn.Username,
		"sender_display_name": s.senderName,
		"timestamp":           msg.CreatedAt.Format("3:04 PM"),
		"attachment_url":      msg.AttachmentURL,
		"attachment_name":     msg.AttachmentName,
	})
	s.broadcaster.Broadcast(s.key, payload, "")
}

// handleDelete soft-deletes in place. Only the original sender may delete;
// anything missing or already deleted is a silent no-op.
func (s *Session) handleDelete(ctx context.Context, messageID int) {
	if messageID == 0 {
		return
	}
	if err := s.store.SoftDelete(ctx, s.parsed, messageID, s.conn.UserID); err != nil {
		if !errors.Is(err, ErrMessageNotFound) {
			s.log.Error().Err(err).Int("message_id", messageID).Msg("soft delete")
		}
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"type":       "message_deleted",
		"message_id": messageID,
	})
	s.broadcaster.Broadcast(s.key, payload, "")
}

// handleExecute runs the code through the execution service off the read
// loop and replies only to the requester.
func (s *Session) handleExecute(code string) {
	if strings.TrimSpace(code) == "" {
		return
	}
	connID := s.conn.ID()
	go func() {
		result := s.exec.Run(context.Background(), "python", code)
		payload, _ := json.Marshal(map[string]any{
			"type":   "execution_result",
			"output": result.Output(),
		})
		s.broadcaster.SendTo(connID, payload)
	}()
}

func (s *Session) botHistory(ctx context.Context) ([]bot.HistoryEntry, error) {
	messages, err := s.store.History(ctx, s.parsed, 200)
	if err != nil {
		return nil, err
	}
	entries := make([]bot.HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, bot.HistoryEntry{
			ID:      msg.ID,
			Sender:  msg.SenderName,
			Content: msg.Content,
			Deleted: msg.IsDeleted,
		})
	}
	return entries, nil
}

// Disconnect deregisters the connection from every room it joined. Chat
// rooms need no departure notice.
func (s *Session) Disconnect() {
	if s.state == stateClosed {
		return
	}
	s.state = stateClosed
	s.registry.LeaveAll(s.conn.ID())
	s.log.Info().Str("room", s.key).Msg("session closed")
}
