package bot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samijain03/Collab-X/internal/room"
	"github.com/Samijain03/Collab-X/internal/workspace"
)

type stubCollaborator struct {
	reply string
	err   error
	seen  []string
}

func (s *stubCollaborator) Complete(_ context.Context, prompt string) (string, error) {
	s.seen = append(s.seen, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type recordingSub struct {
	id   string
	sent [][]byte
}

func (r *recordingSub) ID() string               { return r.id }
func (r *recordingSub) Send(p []byte) error      { r.sent = append(r.sent, p); return nil }
func (r *recordingSub) Close()                   {}
func (r *recordingSub) events(t *testing.T) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0, len(r.sent))
	for _, payload := range r.sent {
		var event map[string]any
		require.NoError(t, json.Unmarshal(payload, &event))
		out = append(out, event)
	}
	return out
}

type pipelineFixture struct {
	pipeline *Pipeline
	tree     *workspace.Tree
	sender   *recordingSub
	peer     *recordingSub
}

func newPipelineFixture(t *testing.T, provider Collaborator) *pipelineFixture {
	t.Helper()
	registry := room.NewRegistry()
	broadcaster := room.NewBroadcaster(registry, nil, zerolog.Nop())
	tree := workspace.NewTree(workspace.NewMemoryStore())

	sender := &recordingSub{id: "sender"}
	peer := &recordingSub{id: "peer"}
	for _, sub := range []*recordingSub{sender, peer} {
		registry.Register(sub)
		registry.Join(sub.ID(), "group_1")
	}

	return &pipelineFixture{
		pipeline: NewPipeline(broadcaster, tree, provider, zerolog.Nop()),
		tree:     tree,
		sender:   sender,
		peer:     peer,
	}
}

func historyOf(entries ...HistoryEntry) func(context.Context) ([]HistoryEntry, error) {
	return func(context.Context) ([]HistoryEntry, error) { return entries, nil }
}

func TestPipelineFileCommand(t *testing.T) {
	provider := &stubCollaborator{
		reply: "Here you go!\n```python:todo.py\nprint('hello world')\n```\n[jump_to: 42]",
	}
	f := newPipelineFixture(t, provider)

	f.pipeline.Handle(Request{
		RoomKey:    "group_1",
		ConnID:     "sender",
		UserID:     7,
		SenderName: "alice",
		Command:    "/Collab file notes/todo.py: write a hello world",
		History:    historyOf(HistoryEntry{ID: 42, Sender: "bob", Content: "need a hello world"}),
	})

	events := f.peer.events(t)
	require.Len(t, events, 3)

	assert.Equal(t, "bot_message", events[0]["type"])
	assert.Equal(t, "thinking", events[0]["status"])
	assert.Equal(t, "alice", events[0]["sender_username"])
	requestID := events[0]["request_id"]
	assert.NotEmpty(t, requestID)

	assert.Equal(t, "workspace_event", events[1]["type"])
	assert.Equal(t, "tree_refresh", events[1]["event"])

	complete := events[2]
	assert.Equal(t, "complete", complete["status"])
	assert.Equal(t, requestID, complete["request_id"])
	assert.Equal(t, float64(42), complete["jump_id"])
	content := complete["content"].(string)
	assert.NotContains(t, content, "[jump_to")
	assert.Contains(t, content, "(1 file updated in the workspace)")

	// the sender sees the same broadcast events
	assert.Len(t, f.sender.events(t), 3)

	// the file landed in the tree with the block's content
	nodes, err := f.tree.ListNodes(context.Background(), "group_1")
	require.NoError(t, err)
	byPath := make(map[string]*workspace.Node)
	for _, n := range nodes {
		byPath[n.FullPath] = n
	}
	file := byPath["notes/todo.py"]
	require.NotNil(t, file)
	assert.Equal(t, "print('hello world')", file.Content)
	assert.Equal(t, "python", file.Language)

	// the prompt carried the history and the code directive
	require.Len(t, provider.seen, 1)
	assert.Contains(t, provider.seen[0], "[id:42] bob: need a hello world")
	assert.Contains(t, provider.seen[0], "```language:filename")
}

func TestPipelineFolderCommand(t *testing.T) {
	provider := &stubCollaborator{
		reply: "Two files:\n```python:main.py\nprint(1)\n```\n```css:style.css\nbody {}\n```",
	}
	f := newPipelineFixture(t, provider)

	f.pipeline.Handle(Request{
		RoomKey:    "group_1",
		ConnID:     "sender",
		UserID:     7,
		SenderName: "alice",
		Command:    "/Collab folder site: tiny site",
	})

	nodes, err := f.tree.ListNodes(context.Background(), "group_1")
	require.NoError(t, err)
	paths := make(map[string]bool)
	for _, n := range nodes {
		paths[n.FullPath] = true
	}
	assert.True(t, paths["site/main.py"])
	assert.True(t, paths["site/style.css"])

	events := f.peer.events(t)
	last := events[len(events)-1]
	assert.Contains(t, last["content"], "(2 files updated in the workspace)")
}

func TestPipelineQueryTouchesNoFiles(t *testing.T) {
	provider := &stubCollaborator{reply: "You talked about deadlines. [jump_to: 9]"}
	f := newPipelineFixture(t, provider)

	f.pipeline.Handle(Request{
		RoomKey:    "group_1",
		ConnID:     "sender",
		UserID:     3,
		SenderName: "bob",
		Command:    "/Collab what did we discuss?",
	})

	nodes, err := f.tree.ListNodes(context.Background(), "group_1")
	require.NoError(t, err)
	assert.Empty(t, nodes)

	events := f.peer.events(t)
	require.Len(t, events, 2) // thinking, complete
	assert.Equal(t, "You talked about deadlines.", events[1]["content"])
	assert.Equal(t, float64(9), events[1]["jump_id"])
}

func TestPipelineHiddenReplyGoesOnlyToRequester(t *testing.T) {
	provider := &stubCollaborator{reply: "Just between us."}
	f := newPipelineFixture(t, provider)

	f.pipeline.Handle(Request{
		RoomKey:    "group_1",
		ConnID:     "sender",
		UserID:     3,
		SenderName: "bob",
		Command:    "/CollabMe what did I miss?",
		Hidden:     true,
	})

	assert.Empty(t, f.peer.sent)
	events := f.sender.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, "Just between us.", events[1]["content"])
}

func TestPipelineNotConfigured(t *testing.T) {
	f := newPipelineFixture(t, Disabled{})

	f.pipeline.Handle(Request{
		RoomKey:    "group_1",
		ConnID:     "sender",
		UserID:     1,
		SenderName: "alice",
		Command:    "/Collab hello",
	})

	events := f.peer.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, ApologyNotConfigured, events[1]["content"])
}

func TestPipelineProviderFailure(t *testing.T) {
	provider := &stubCollaborator{err: errors.New("upstream 500")}
	f := newPipelineFixture(t, provider)

	f.pipeline.Handle(Request{
		RoomKey:    "group_1",
		ConnID:     "sender",
		UserID:     1,
		SenderName: "alice",
		Command:    "/Collab hello",
	})

	events := f.peer.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, "thinking", events[0]["status"])
	assert.Equal(t, ApologyFailure, events[1]["content"])
	assert.Nil(t, events[1]["jump_id"])
}
