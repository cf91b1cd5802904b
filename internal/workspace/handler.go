package workspace

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	myMiddleware "github.com/Samijain03/Collab-X/internal/middleware"
	"github.com/Samijain03/Collab-X/internal/room"
	"github.com/Samijain03/Collab-X/internal/runner"
	"github.com/Samijain03/Collab-X/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

type Handler struct {
	registry    *room.Registry
	broadcaster *room.Broadcaster
	tree        *Tree
	presence    *PresenceTracker
	authorizer  Authorizer
	exec        runner.Service
	log         zerolog.Logger
}

func NewHandler(registry *room.Registry, broadcaster *room.Broadcaster, tree *Tree,
	presence *PresenceTracker, authorizer Authorizer, exec runner.Service, log zerolog.Logger) *Handler {
	return &Handler{
		registry:    registry,
		broadcaster: broadcaster,
		tree:        tree,
		presence:    presence,
		authorizer:  authorizer,
		exec:        exec,
		log:         log,
	}
}

// ServeWs upgrades /ws/workspace/{key} into a collaboration session. The key
// is the parent chat or group room key.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(int)
	username, ok2 := r.Context().Value(myMiddleware.UsernameKey).(string)
	if !ok || !ok2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	workspaceKey := chi.URLParam(r, "key")

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	conn := ws.NewConn(wsConn, userID, username, h.log)
	session := NewSession(conn, h.registry, h.broadcaster, h.tree, h.presence, h.authorizer, h.exec, h.log)

	if err := session.Connect(r.Context(), workspaceKey); err != nil {
		wsConn.Close()
		return
	}

	go conn.WritePump()
	go conn.ReadPump(session.Receive, session.Disconnect)
}
