package workspace

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samijain03/Collab-X/internal/room"
	"github.com/Samijain03/Collab-X/internal/runner"
	"github.com/Samijain03/Collab-X/internal/ws"
)

type fakeAuthorizer struct {
	contacts map[[2]int]bool
	groups   map[int][]int
}

func (a *fakeAuthorizer) AreContacts(_ context.Context, userID, contactID int) (bool, error) {
	return a.contacts[[2]int{userID, contactID}] || a.contacts[[2]int{contactID, userID}], nil
}

func (a *fakeAuthorizer) IsGroupMember(_ context.Context, groupID, userID int) (bool, error) {
	for _, id := range a.groups[groupID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

type watcherSub struct {
	id   string
	mu   sync.Mutex
	sent [][]byte
}

func (w *watcherSub) ID() string { return w.id }

func (w *watcherSub) Send(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, payload)
	return nil
}

func (w *watcherSub) Close() {}

func (w *watcherSub) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}

func (w *watcherSub) events(t *testing.T) []map[string]any {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]map[string]any, 0, len(w.sent))
	for _, payload := range w.sent {
		var event map[string]any
		require.NoError(t, json.Unmarshal(payload, &event))
		out = append(out, event)
	}
	return out
}

func (w *watcherSub) last(t *testing.T) map[string]any {
	t.Helper()
	events := w.events(t)
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

type echoRunner struct{}

func (echoRunner) Run(_ context.Context, _, source string) runner.Result {
	return runner.Result{Stdout: source}
}

type wsFixture struct {
	session *Session
	tree    *Tree
	peer    *watcherSub
}

func newWorkspaceFixture(t *testing.T) *wsFixture {
	t.Helper()
	registry := room.NewRegistry()
	broadcaster := room.NewBroadcaster(registry, nil, zerolog.Nop())
	tree := NewTree(NewMemoryStore())
	presence := NewPresenceTracker()
	authorizer := &fakeAuthorizer{
		contacts: map[[2]int]bool{{1, 2}: true},
		groups:   map[int][]int{7: {1, 2}},
	}

	peer := &watcherSub{id: "peer"}
	registry.Register(peer)
	registry.Join("peer", "group_7")

	conn := ws.NewConn(nil, 1, "alice", zerolog.Nop())
	session := NewSession(conn, registry, broadcaster, tree, presence, authorizer, echoRunner{}, zerolog.Nop())
	require.NoError(t, session.Connect(context.Background(), "group_7"))

	return &wsFixture{session: session, tree: tree, peer: peer}
}

func action(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(fields)
	require.NoError(t, err)
	return payload
}

func TestWorkspaceConnectGates(t *testing.T) {
	registry := room.NewRegistry()
	broadcaster := room.NewBroadcaster(registry, nil, zerolog.Nop())
	tree := NewTree(NewMemoryStore())
	presence := NewPresenceTracker()
	authorizer := &fakeAuthorizer{
		contacts: map[[2]int]bool{{1, 2}: true},
		groups:   map[int][]int{7: {1, 2}},
	}
	newSess := func(userID int) *Session {
		conn := ws.NewConn(nil, userID, "u", zerolog.Nop())
		return NewSession(conn, registry, broadcaster, tree, presence, authorizer, echoRunner{}, zerolog.Nop())
	}
	ctx := context.Background()

	assert.NoError(t, newSess(1).Connect(ctx, "chat_1_2"))
	assert.NoError(t, newSess(2).Connect(ctx, "group_7"))

	// a contact pair's workspace is closed to third parties
	assert.Error(t, newSess(3).Connect(ctx, "chat_1_2"))

	// non-contacts have no shared workspace
	assert.Error(t, newSess(1).Connect(ctx, "chat_1_3"))

	assert.Error(t, newSess(3).Connect(ctx, "group_7"))
	assert.Error(t, newSess(1).Connect(ctx, "not_a_key"))
}

func TestWorkspaceConnectAnnouncesJoin(t *testing.T) {
	f := newWorkspaceFixture(t)

	events := f.peer.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "user_joined", events[0]["type"])
	assert.Equal(t, "alice", events[0]["username"])
	assert.Equal(t, ColorFor(1), events[0]["color"])
	_ = f.session
}

func TestCreateEntryBroadcastsRefresh(t *testing.T) {
	f := newWorkspaceFixture(t)

	f.session.Receive(action(t, map[string]any{"type": "create_entry", "path": "src/main.py", "node_type": NodeTypeFile}))

	refresh := f.peer.last(t)
	assert.Equal(t, "workspace_event", refresh["type"])
	assert.Equal(t, "tree_refresh", refresh["event"])
	nodes := refresh["nodes"].([]any)
	assert.Len(t, nodes, 2)
	assert.NotNil(t, refresh["active_node_id"])
}

func TestCreateBatch(t *testing.T) {
	f := newWorkspaceFixture(t)

	f.session.Receive(action(t, map[string]any{
		"type": "create_batch",
		"entries": []map[string]any{
			{"path": "a.py", "node_type": NodeTypeFile},
			{"path": "docs", "node_type": NodeTypeFolder},
			{"path": "", "node_type": NodeTypeFile}, // invalid entry skipped
		},
	}))

	nodes, err := f.tree.ListNodes(context.Background(), "group_7")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	// one refresh for the whole batch
	assert.Equal(t, 2, f.peer.count()) // user_joined + tree_refresh
}

func TestWriteFileDeltaExcludesSender(t *testing.T) {
	f := newWorkspaceFixture(t)
	ctx := context.Background()

	leaf, err := f.tree.EnsurePath(ctx, "group_7", "main.py", NodeTypeFile, nil, strPtr("hello"), 1)
	require.NoError(t, err)

	f.session.Receive(action(t, map[string]any{
		"type":            "write_file",
		"node_id":         leaf.ID,
		"delta":           map[string]any{"type": "insert", "position": 5, "text": " world"},
		"cursor_position": 11,
	}))

	node, err := f.tree.GetNode(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", node.Content)

	update := f.peer.last(t)
	assert.Equal(t, "file_update", update["type"])
	assert.Equal(t, float64(leaf.ID), update["node_id"])
	assert.Equal(t, "alice", update["username"])
	assert.Equal(t, float64(11), update["cursor_position"])
}

func TestWriteFileWithoutDeltaOrContentIgnored(t *testing.T) {
	f := newWorkspaceFixture(t)

	f.session.Receive(action(t, map[string]any{"type": "write_file", "node_id": 1}))
	assert.Equal(t, 1, f.peer.count()) // only the join announcement
}

func TestDeleteNodeBroadcastsRefresh(t *testing.T) {
	f := newWorkspaceFixture(t)
	ctx := context.Background()

	leaf, err := f.tree.EnsurePath(ctx, "group_7", "tmp/scratch.txt", NodeTypeFile, nil, nil, 1)
	require.NoError(t, err)

	f.session.Receive(action(t, map[string]any{"type": "delete_node", "node_id": leaf.ID}))

	refresh := f.peer.last(t)
	assert.Equal(t, "tree_refresh", refresh["event"])
	assert.Len(t, refresh["nodes"], 1) // the tmp folder survives

	// deleting a missing node stays silent
	before := f.peer.count()
	f.session.Receive(action(t, map[string]any{"type": "delete_node", "node_id": 999}))
	assert.Equal(t, before, f.peer.count())
}

func TestCursorUpdateGoesToPeersOnly(t *testing.T) {
	f := newWorkspaceFixture(t)

	f.session.Receive(action(t, map[string]any{
		"type":            "cursor_update",
		"node_id":         5,
		"cursor_position": 9,
	}))

	event := f.peer.last(t)
	assert.Equal(t, "cursor_update", event["type"])
	assert.Equal(t, float64(1), event["user_id"])
	assert.Equal(t, float64(9), event["cursor_position"])
}

func TestRunFileBroadcastsResult(t *testing.T) {
	f := newWorkspaceFixture(t)
	ctx := context.Background()

	leaf, err := f.tree.EnsurePath(ctx, "group_7", "main.py", NodeTypeFile, nil, strPtr("print(1)"), 1)
	require.NoError(t, err)

	f.session.Receive(action(t, map[string]any{"type": "run_file", "node_id": leaf.ID}))

	require.Eventually(t, func() bool {
		return f.peer.count() == 2
	}, 2*time.Second, 10*time.Millisecond)

	result := f.peer.last(t)
	assert.Equal(t, "run_result", result["event"])
	assert.Equal(t, "main.py", result["name"])
	assert.Equal(t, "print(1)", result["output"])
}

func TestRunFolderIgnored(t *testing.T) {
	f := newWorkspaceFixture(t)
	ctx := context.Background()

	folder, err := f.tree.EnsurePath(ctx, "group_7", "dir", NodeTypeFolder, nil, nil, 1)
	require.NoError(t, err)

	f.session.Receive(action(t, map[string]any{"type": "run_file", "node_id": folder.ID}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.peer.count())
}

func TestMutationsCannotReachForeignWorkspaces(t *testing.T) {
	registry := room.NewRegistry()
	broadcaster := room.NewBroadcaster(registry, nil, zerolog.Nop())
	tree := NewTree(NewMemoryStore())
	presence := NewPresenceTracker()
	authorizer := &fakeAuthorizer{
		contacts: map[[2]int]bool{{1, 2}: true},
		groups:   map[int][]int{7: {3}},
	}
	ctx := context.Background()

	// a file and folder owned by the chat_1_2 workspace
	victim, err := tree.EnsurePath(ctx, "chat_1_2", "docs/secret.py", NodeTypeFile, nil, strPtr("print('secret')"), 1)
	require.NoError(t, err)
	nodes, err := tree.ListNodes(ctx, "chat_1_2")
	require.NoError(t, err)
	var folderID int
	for _, n := range nodes {
		if n.FullPath == "docs" {
			folderID = n.ID
		}
	}
	require.NotZero(t, folderID)

	victimWatcher := &watcherSub{id: "victim-watcher"}
	registry.Register(victimWatcher)
	registry.Join("victim-watcher", "chat_1_2")

	// user 3 is only a member of group_7
	conn := ws.NewConn(nil, 3, "mallory", zerolog.Nop())
	session := NewSession(conn, registry, broadcaster, tree, presence, authorizer, echoRunner{}, zerolog.Nop())
	require.NoError(t, session.Connect(ctx, "group_7"))

	session.Receive(action(t, map[string]any{
		"type":    "write_file",
		"node_id": victim.ID,
		"content": "pwned",
	}))
	session.Receive(action(t, map[string]any{
		"type":    "write_file",
		"node_id": victim.ID,
		"delta":   map[string]any{"type": "insert", "position": 0, "text": "pwned"},
	}))
	session.Receive(action(t, map[string]any{"type": "update_content", "node_id": victim.ID, "content": "pwned"}))
	session.Receive(action(t, map[string]any{"type": "rename_node", "node_id": victim.ID, "name": "pwned.py"}))
	session.Receive(action(t, map[string]any{"type": "move_node", "node_id": victim.ID, "parent_id": nil}))
	session.Receive(action(t, map[string]any{"type": "run_file", "node_id": victim.ID}))
	session.Receive(action(t, map[string]any{"type": "read_file", "node_id": victim.ID}))
	session.Receive(action(t, map[string]any{"type": "delete_node", "node_id": folderID}))

	// a move must not smuggle a node into a foreign parent either
	own, err := tree.EnsurePath(ctx, "group_7", "mine.py", NodeTypeFile, nil, nil, 3)
	require.NoError(t, err)
	session.Receive(action(t, map[string]any{"type": "move_node", "node_id": own.ID, "parent_id": folderID}))

	node, err := tree.GetNode(ctx, victim.ID)
	require.NoError(t, err)
	assert.Equal(t, "print('secret')", node.Content)
	assert.Equal(t, "secret.py", node.Name)
	require.NotNil(t, node.ParentID)
	assert.Equal(t, folderID, *node.ParentID)

	mine, err := tree.GetNode(ctx, own.ID)
	require.NoError(t, err)
	assert.Nil(t, mine.ParentID)

	assert.Zero(t, victimWatcher.count())
	time.Sleep(50 * time.Millisecond) // run_file replies asynchronously
	assert.Zero(t, victimWatcher.count())
}

func TestDisconnectAnnouncesDeparture(t *testing.T) {
	f := newWorkspaceFixture(t)

	f.session.Disconnect()

	event := f.peer.last(t)
	assert.Equal(t, "user_left", event["type"])
	assert.Equal(t, "alice", event["username"])

	// idempotent
	before := f.peer.count()
	f.session.Disconnect()
	assert.Equal(t, before, f.peer.count())

	// frames after disconnect are dropped
	f.session.Receive(action(t, map[string]any{"type": "create_entry", "path": "late.py"}))
	assert.Equal(t, before, f.peer.count())
}
