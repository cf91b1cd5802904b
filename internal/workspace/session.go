package workspace

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Samijain03/Collab-X/internal/room"
	"github.com/Samijain03/Collab-X/internal/runner"
	"github.com/Samijain03/Collab-X/internal/ws"
)

// Authorizer is the membership rule shared with the parent chat/group room.
type Authorizer interface {
	AreContacts(ctx context.Context, userID, contactID int) (bool, error)
	IsGroupMember(ctx context.Context, groupID, userID int) (bool, error)
}

var errUnauthorized = errors.New("unauthorized")

// Session is one connection's view of a collaborative workspace. Workspace
// rooms reuse the parent chat/group key, so membership derives from the same
// authorization rule.
type Session struct {
	conn        *ws.Conn
	registry    *room.Registry
	broadcaster *room.Broadcaster
	tree        *Tree
	presence    *PresenceTracker
	authorizer  Authorizer
	exec        runner.Service
	log         zerolog.Logger

	key    string
	active bool
}

func NewSession(conn *ws.Conn, registry *room.Registry, broadcaster *room.Broadcaster,
	tree *Tree, presence *PresenceTracker, authorizer Authorizer, exec runner.Service,
	log zerolog.Logger) *Session {
	return &Session{
		conn:        conn,
		registry:    registry,
		broadcaster: broadcaster,
		tree:        tree,
		presence:    presence,
		authorizer:  authorizer,
		exec:        exec,
		log:         log.With().Str("component", "workspace").Str("conn", conn.ID()).Logger(),
	}
}

// Connect admits the connection when the parent room's membership rule holds,
// then announces the join and sends the requester a full tree snapshot.
func (s *Session) Connect(ctx context.Context, workspaceKey string) error {
	parsed, err := room.ParseKey(workspaceKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", workspaceKey).Msg("reject: bad workspace key")
		return errUnauthorized
	}

	if parsed.Group {
		member, err := s.authorizer.IsGroupMember(ctx, parsed.GroupID, s.conn.UserID)
		if err != nil || !member {
			s.log.Warn().Str("key", workspaceKey).Msg("reject: not a group member")
			return errUnauthorized
		}
	} else {
		if s.conn.UserID != parsed.UserA && s.conn.UserID != parsed.UserB {
			s.log.Warn().Str("key", workspaceKey).Msg("reject: not a participant")
			return errUnauthorized
		}
		contacts, err := s.authorizer.AreContacts(ctx, parsed.UserA, parsed.UserB)
		if err != nil || !contacts {
			s.log.Warn().Str("key", workspaceKey).Msg("reject: not contacts")
			return errUnauthorized
		}
	}

	s.key = workspaceKey
	s.registry.Register(s.conn)
	s.registry.Join(s.conn.ID(), s.key)
	presence := s.presence.Track(s.conn.ID(), s.conn.UserID)
	s.active = true

	s.broadcaster.Broadcast(s.key,
		MembershipEvent("user_joined", s.conn.UserID, s.conn.Username, presence.Color),
		s.conn.ID())

	nodes, err := s.tree.ListNodes(ctx, s.key)
	if err != nil {
		s.log.Error().Err(err).Msg("bootstrap listing")
		nodes = nil
	}
	s.broadcaster.SendTo(s.conn.ID(), BootstrapEvent(nodes))

	s.log.Info().Str("room", s.key).Msg("workspace session active")
	return nil
}

// entrySpec is one requested path in a create_entry or create_batch action.
type entrySpec struct {
	Path     string  `json:"path"`
	NodeType string  `json:"node_type"`
	Language *string `json:"language"`
	Content  *string `json:"content"`
}

// inboundAction is the wire envelope for everything a workspace client
// sends. Legacy single-field shapes decode into the same struct.
type inboundAction struct {
	Type    string      `json:"type"`
	Entries []entrySpec `json:"entries"`

	// create_entry / legacy create_node
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	NodeType string  `json:"node_type"`
	Language *string `json:"language"`

	NodeID         int     `json:"node_id"`
	ParentID       *int    `json:"parent_id"`
	Position       int     `json:"position"`
	Content        *string `json:"content"`
	Delta          *Delta  `json:"delta"`
	CursorPosition int     `json:"cursor_position"`
	SelectionStart *int    `json:"selection_start"`
	SelectionEnd   *int    `json:"selection_end"`
}

// Receive dispatches one inbound frame. NotFound and validation failures are
// silent no-ops; unknown types are ignored.
func (s *Session) Receive(payload []byte) {
	if !s.active {
		return
	}
	var action inboundAction
	if err := json.Unmarshal(payload, &action); err != nil {
		s.log.Debug().Err(err).Msg("undecodable frame dropped")
		return
	}

	ctx := context.Background()
	switch action.Type {
	case "create_entry":
		s.handleCreate(ctx, []entrySpec{{Path: action.Path, NodeType: action.NodeType,
			Language: action.Language, Content: action.Content}})
	case "create_batch":
		s.handleCreate(ctx, action.Entries)
	case "create_node": // legacy: flat file create by name
		s.handleCreate(ctx, []entrySpec{{Path: action.Name, NodeType: NodeTypeFile,
			Language: action.Language, Content: action.Content}})
	case "rename_node":
		s.handleRename(ctx, action.NodeID, action.Name)
	case "move_node":
		s.handleMove(ctx, action.NodeID, action.ParentID, action.Position)
	case "delete_node":
		s.handleDelete(ctx, action.NodeID)
	case "update_content":
		s.handleUpdateContent(ctx, action)
	case "write_file":
		s.handleWriteFile(ctx, action)
	case "list_files": // legacy: requester-only snapshot
		nodes, err := s.tree.ListNodes(ctx, s.key)
		if err != nil {
			s.log.Error().Err(err).Msg("list nodes")
			return
		}
		s.broadcaster.SendTo(s.conn.ID(), BootstrapEvent(nodes))
	case "read_file": // legacy: requester-only content fetch
		s.handleReadFile(ctx, action.NodeID)
	case "cursor_update":
		s.handleCursor(action)
	case "file_focus":
		s.handleFocus(action)
	case "run_file":
		s.handleRun(ctx, action.NodeID)
	}
}

func (s *Session) handleCreate(ctx context.Context, entries []entrySpec) {
	var lastID *int
	for _, entry := range entries {
		nodeType := entry.NodeType
		if nodeType == "" {
			nodeType = NodeTypeFile
		}
		node, err := s.tree.EnsurePath(ctx, s.key, entry.Path, nodeType, entry.Language, entry.Content, s.conn.UserID)
		if err != nil {
			s.log.Debug().Err(err).Str("path", entry.Path).Msg("create skipped")
			continue
		}
		lastID = &node.ID
	}
	if lastID == nil {
		return
	}
	s.broadcastRefresh(ctx, lastID)
}

// inWorkspace reports whether the node belongs to this session's workspace.
// Node ids are global, so a mutation aimed at a foreign workspace's node is
// dropped exactly like a missing one.
func (s *Session) inWorkspace(ctx context.Context, nodeID int) bool {
	node, err := s.tree.GetNode(ctx, nodeID)
	return err == nil && node.WorkspaceKey == s.key
}

func (s *Session) handleRename(ctx context.Context, nodeID int, name string) {
	if !s.inWorkspace(ctx, nodeID) {
		return
	}
	if _, err := s.tree.Rename(ctx, nodeID, name); err != nil {
		s.log.Debug().Err(err).Int("node_id", nodeID).Msg("rename skipped")
		return
	}
	s.broadcastRefresh(ctx, nil)
}

func (s *Session) handleMove(ctx context.Context, nodeID int, parentID *int, position int) {
	if !s.inWorkspace(ctx, nodeID) {
		return
	}
	if parentID != nil && !s.inWorkspace(ctx, *parentID) {
		return
	}
	if _, err := s.tree.Move(ctx, nodeID, parentID, position); err != nil {
		s.log.Debug().Err(err).Int("node_id", nodeID).Msg("move skipped")
		return
	}
	s.broadcastRefresh(ctx, nil)
}

func (s *Session) handleDelete(ctx context.Context, nodeID int) {
	if !s.inWorkspace(ctx, nodeID) {
		return
	}
	count, err := s.tree.DeleteSubtree(ctx, nodeID)
	if err != nil {
		s.log.Debug().Err(err).Int("node_id", nodeID).Msg("delete skipped")
		return
	}
	s.log.Info().Int("node_id", nodeID).Int("removed", count).Msg("subtree deleted")
	s.broadcastRefresh(ctx, nil)
}

func (s *Session) handleUpdateContent(ctx context.Context, action inboundAction) {
	if action.Content == nil || !s.inWorkspace(ctx, action.NodeID) {
		return
	}
	node, err := s.tree.UpdateContent(ctx, action.NodeID, *action.Content)
	if err != nil {
		s.log.Debug().Err(err).Int("node_id", action.NodeID).Msg("update skipped")
		return
	}
	s.broadcastRefresh(ctx, &node.ID)
}

// handleWriteFile is the incremental edit path: a delta splices into the
// stored content, a bare content field replaces it. Peers get a file_update
// with the editor's cursor; the sender is excluded so its optimistic local
// edit is not applied twice.
func (s *Session) handleWriteFile(ctx context.Context, action inboundAction) {
	if !s.inWorkspace(ctx, action.NodeID) {
		return
	}
	var err error
	switch {
	case action.Delta != nil:
		_, err = s.tree.ApplyDelta(ctx, action.NodeID, *action.Delta)
	case action.Content != nil:
		_, err = s.tree.UpdateContent(ctx, action.NodeID, *action.Content)
	default:
		return
	}
	if err != nil {
		s.log.Debug().Err(err).Int("node_id", action.NodeID).Msg("write skipped")
		return
	}

	s.presence.UpdateCursor(s.conn.ID(), &action.NodeID, action.CursorPosition, nil, nil)
	s.broadcaster.Broadcast(s.key,
		FileUpdateEvent(action.NodeID, action.Delta, action.Content, s.conn.UserID, s.conn.Username, action.CursorPosition),
		s.conn.ID())
}

func (s *Session) handleReadFile(ctx context.Context, nodeID int) {
	node, err := s.tree.GetNode(ctx, nodeID)
	if err != nil || node.WorkspaceKey != s.key {
		s.log.Debug().Err(err).Int("node_id", nodeID).Msg("read skipped")
		return
	}
	s.broadcaster.SendTo(s.conn.ID(),
		FileUpdateEvent(node.ID, nil, &node.Content, s.conn.UserID, s.conn.Username, 0))
}

func (s *Session) handleCursor(action inboundAction) {
	presence := s.presence.UpdateCursor(s.conn.ID(), nodeIDPtr(action.NodeID),
		action.CursorPosition, action.SelectionStart, action.SelectionEnd)
	if presence == nil {
		return
	}
	s.broadcaster.Broadcast(s.key,
		CursorEvent("cursor_update", s.conn.UserID, s.conn.Username, presence),
		s.conn.ID())
}

func (s *Session) handleFocus(action inboundAction) {
	presence := s.presence.Focus(s.conn.ID(), nodeIDPtr(action.NodeID))
	if presence == nil {
		return
	}
	s.broadcaster.Broadcast(s.key,
		CursorEvent("file_focus", s.conn.UserID, s.conn.Username, presence),
		s.conn.ID())
}

// handleRun dispatches the file's content to the execution service off the
// read loop. Non-python files are static markup and echo back verbatim.
func (s *Session) handleRun(ctx context.Context, nodeID int) {
	node, err := s.tree.GetNode(ctx, nodeID)
	if err != nil || node.WorkspaceKey != s.key || !node.IsFile() {
		return
	}
	roomKey := s.key
	go func() {
		result := s.exec.Run(context.Background(), node.Language, node.Content)
		s.broadcaster.Broadcast(roomKey,
			RunResultEvent(node.ID, node.Name, node.Language, result.Output()), "")
	}()
}

func (s *Session) broadcastRefresh(ctx context.Context, activeNodeID *int) {
	nodes, err := s.tree.ListNodes(ctx, s.key)
	if err != nil {
		s.log.Error().Err(err).Msg("list nodes")
		return
	}
	s.broadcaster.Broadcast(s.key, TreeRefreshEvent(nodes, activeNodeID), "")
}

// Disconnect announces the departure and deregisters the connection.
func (s *Session) Disconnect() {
	if !s.active {
		return
	}
	s.active = false
	presence := s.presence.Get(s.conn.ID())
	color := ""
	if presence != nil {
		color = presence.Color
	}
	s.presence.Forget(s.conn.ID())
	s.registry.LeaveAll(s.conn.ID())
	s.broadcaster.Broadcast(s.key,
		MembershipEvent("user_left", s.conn.UserID, s.conn.Username, color), "")
	s.log.Info().Str("room", s.key).Msg("workspace session closed")
}

func nodeIDPtr(id int) *int {
	if id == 0 {
		return nil
	}
	return &id
}
