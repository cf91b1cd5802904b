package workspace

import "sync"

// colorPalette assigns each user a stable display color by id. The palette
// repeats once exhausted; what matters is that the same user always maps to
// the same color on every instance.
var colorPalette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// ColorFor returns the display color for a user id.
func ColorFor(userID int) string {
	if userID < 0 {
		userID = -userID
	}
	return colorPalette[userID%len(colorPalette)]
}

// Presence is the ephemeral cursor state of one connection in one workspace.
// Never persisted; reconstructed fresh on reconnect with no active node.
type Presence struct {
	ActiveNodeID   *int   `json:"active_node_id"`
	CursorPosition int    `json:"cursor_position"`
	SelectionStart *int   `json:"selection_start,omitempty"`
	SelectionEnd   *int   `json:"selection_end,omitempty"`
	Color          string `json:"color"`
}

// PresenceTracker holds per-connection presence for all workspace sessions.
type PresenceTracker struct {
	mu    sync.Mutex
	conns map[string]*Presence // connID -> presence
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{conns: make(map[string]*Presence)}
}

// Track initializes presence for a freshly connected session.
func (p *PresenceTracker) Track(connID string, userID int) *Presence {
	p.mu.Lock()
	defer p.mu.Unlock()
	presence := &Presence{Color: ColorFor(userID)}
	p.conns[connID] = presence
	return presence
}

// UpdateCursor records a new cursor position and optional selection range.
func (p *PresenceTracker) UpdateCursor(connID string, nodeID *int, position int, selStart, selEnd *int) *Presence {
	p.mu.Lock()
	defer p.mu.Unlock()
	presence, ok := p.conns[connID]
	if !ok {
		return nil
	}
	if nodeID != nil {
		presence.ActiveNodeID = nodeID
	}
	presence.CursorPosition = position
	presence.SelectionStart = selStart
	presence.SelectionEnd = selEnd
	return presence
}

// Focus records which file the connection is looking at.
func (p *PresenceTracker) Focus(connID string, nodeID *int) *Presence {
	p.mu.Lock()
	defer p.mu.Unlock()
	presence, ok := p.conns[connID]
	if !ok {
		return nil
	}
	presence.ActiveNodeID = nodeID
	return presence
}

// Get returns the current presence for a connection, nil when untracked.
func (p *PresenceTracker) Get(connID string) *Presence {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns[connID]
}

// Forget drops presence on disconnect.
func (p *PresenceTracker) Forget(connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, connID)
}
