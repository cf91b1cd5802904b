package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Samijain03/Collab-X/internal/room"
	"github.com/Samijain03/Collab-X/internal/workspace"
)

// providerTimeout bounds the external collaborator call. A slow provider
// yields the apology, never a stuck thinking indicator.
const providerTimeout = 60 * time.Second

// Request is one bot command's round trip. Ephemeral: nothing outlives the
// two status events.
type Request struct {
	RoomKey    string
	ConnID     string
	UserID     int
	SenderName string
	Command    string
	Hidden     bool

	// History loads the room's chronological chat history for the prompt.
	History func(ctx context.Context) ([]HistoryEntry, error)
}

// Pipeline parses bot commands, consults the AI collaborator, and
// materializes generated code into the workspace tree. Handle is designed to
// run in its own goroutine so the room stays responsive while a reply is
// pending.
type Pipeline struct {
	broadcaster *room.Broadcaster
	tree        *workspace.Tree
	provider    Collaborator
	log         zerolog.Logger
}

func NewPipeline(broadcaster *room.Broadcaster, tree *workspace.Tree, provider Collaborator, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		broadcaster: broadcaster,
		tree:        tree,
		provider:    provider,
		log:         log.With().Str("component", "bot").Logger(),
	}
}

// Handle runs the full command protocol. The thinking event always gets a
// matching complete event, with the apology text when anything downstream
// fails. A requester disconnecting does not cancel the in-flight call.
func (p *Pipeline) Handle(req Request) {
	requestID := fmt.Sprintf("%d_%d", req.UserID, time.Now().UnixMilli())

	p.emit(req, map[string]any{
		"type":            "bot_message",
		"status":          "thinking",
		"content":         "Thinking...",
		"sender_username": req.SenderName,
		"request_id":      requestID,
	})

	content, jumpID, filesTouched := p.respond(req)
	if filesTouched > 0 {
		noun := "files"
		if filesTouched == 1 {
			noun = "file"
		}
		content = fmt.Sprintf("%s\n\n(%d %s updated in the workspace)", content, filesTouched, noun)
	}

	p.emit(req, map[string]any{
		"type":            "bot_message",
		"status":          "complete",
		"content":         content,
		"jump_id":         jumpID,
		"sender_username": req.SenderName,
		"request_id":      requestID,
	})
}

// respond produces the cleaned reply text, the jump pointer, and the count of
// materialized files. Failures collapse to the apology strings.
func (p *Pipeline) respond(req Request) (content string, jumpID *int, filesTouched int) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Str("room", req.RoomKey).Msg("pipeline panic")
			content, jumpID, filesTouched = ApologyFailure, nil, 0
		}
	}()

	intent := ParseCommand(req.Command)

	ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
	defer cancel()

	var historyText string
	if req.History != nil {
		entries, err := req.History(ctx)
		if err != nil {
			p.log.Error().Err(err).Str("room", req.RoomKey).Msg("load history")
		} else {
			historyText = FormatHistory(entries)
		}
	}

	query := intent.Instructions
	if intent.Kind != IntentQuery {
		query = fmt.Sprintf("Write code for %s %q: %s", intent.Kind, intent.Path, intent.Instructions)
	}
	prompt := BuildPrompt(historyText, query, intent.Kind != IntentQuery)

	raw, err := p.provider.Complete(ctx, prompt)
	if err != nil {
		if err == ErrNotConfigured {
			return ApologyNotConfigured, nil, 0
		}
		p.log.Error().Err(err).Str("room", req.RoomKey).Msg("provider call failed")
		return ApologyFailure, nil, 0
	}

	content, jumpID = ExtractJump(raw)

	// Code blocks come from the raw reply so fences survive even when the
	// jump tag was appended after them.
	if intent.Kind != IntentQuery {
		filesTouched = p.materialize(ctx, req, intent, raw, content)
	}
	return content, jumpID, filesTouched
}

// materialize writes generated code into the workspace tree and broadcasts a
// tree refresh per touched node.
func (p *Pipeline) materialize(ctx context.Context, req Request, intent Intent, raw, display string) int {
	blocks := ExtractCodeBlocks(raw)
	touched := 0

	switch intent.Kind {
	case IntentFile:
		text := display
		var lang *string
		if len(blocks) > 0 {
			text = blocks[0].Content
			if blocks[0].Language != "" && blocks[0].Language != "text" {
				lang = &blocks[0].Language
			}
		}
		if intent.Language != "" {
			lang = &intent.Language
		}
		if p.writeFile(ctx, req, intent.Path, lang, text) {
			touched++
		}

	case IntentFolder:
		for i := range blocks {
			if blocks[i].Filename == "" {
				continue
			}
			var lang *string
			if blocks[i].Language != "" && blocks[i].Language != "text" {
				lang = &blocks[i].Language
			}
			if p.writeFile(ctx, req, intent.Path+"/"+blocks[i].Filename, lang, blocks[i].Content) {
				touched++
			}
		}
	}
	return touched
}

func (p *Pipeline) writeFile(ctx context.Context, req Request, path string, language *string, content string) bool {
	node, err := p.tree.EnsurePath(ctx, req.RoomKey, path, workspace.NodeTypeFile, language, &content, req.UserID)
	if err != nil {
		p.log.Error().Err(err).Str("path", path).Str("room", req.RoomKey).Msg("materialize file")
		return false
	}

	nodes, err := p.tree.ListNodes(ctx, req.RoomKey)
	if err != nil {
		p.log.Error().Err(err).Str("room", req.RoomKey).Msg("list nodes after materialize")
		return true
	}
	p.broadcaster.Broadcast(req.RoomKey, workspace.TreeRefreshEvent(nodes, &node.ID), "")
	return true
}

// emit routes a status event per the request's visibility: hidden replies go
// only to the requester, broadcast replies to the whole room.
func (p *Pipeline) emit(req Request, event map[string]any) {
	payload, _ := json.Marshal(event)
	if req.Hidden {
		p.broadcaster.SendTo(req.ConnID, payload)
		return
	}
	p.broadcaster.Broadcast(req.RoomKey, payload, "")
}
