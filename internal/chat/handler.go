package chat

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Samijain03/Collab-X/internal/bot"
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
	store       MessageStore
	directory   Directory
	pipeline    *bot.Pipeline
	exec        runner.Service
	log         zerolog.Logger
}

func NewHandler(registry *room.Registry, broadcaster *room.Broadcaster, store MessageStore,
	directory Directory, pipeline *bot.Pipeline, exec runner.Service, log zerolog.Logger) *Handler {
	return &Handler{
		registry:    registry,
		broadcaster: broadcaster,
		store:       store,
		directory:   directory,
		pipeline:    pipeline,
		exec:        exec,
		log:         log,
	}
}

// ServeChat upgrades /ws/chat/{contactID} into a 1:1 chat session.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "contactID", false)
}

// ServeGroup upgrades /ws/group/{groupID} into a group chat session.
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "groupID", true)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, param string, group bool) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(int)
	username, ok2 := r.Context().Value(myMiddleware.UsernameKey).(string)
	if !ok || !ok2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	targetID, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil {
		http.Error(w, "bad target id", http.StatusBadRequest)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	conn := ws.NewConn(wsConn, userID, username, h.log)
	session := NewSession(conn, h.registry, h.broadcaster, h.store, h.directory, h.pipeline, h.exec, h.log)

	if err := session.Connect(r.Context(), targetID, group); err != nil {
		// Gate failure: close with no explanation event, reason stays in
		// the server log.
		wsConn.Close()
		return
	}

	go conn.WritePump()
	go conn.ReadPump(session.Receive, session.Disconnect)
}

// GetChatHistory serves the recent messages of one room over REST for the
// dashboard bootstrap. Same authorization gate as the websocket path.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(int)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	var parsed room.ParsedKey
	if groupStr := r.URL.Query().Get("group_id"); groupStr != "" {
		groupID, err := strconv.Atoi(groupStr)
		if err != nil {
			http.Error(w, "bad group id", http.StatusBadRequest)
			return
		}
		member, err := h.directory.IsGroupMember(ctx, groupID, userID)
		if err != nil || !member {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		parsed = room.ParsedKey{Group: true, GroupID: groupID}
	} else {
		contactID, err := strconv.Atoi(r.URL.Query().Get("contact_id"))
		if err != nil {
			http.Error(w, "bad contact id", http.StatusBadRequest)
			return
		}
		contacts, err := h.directory.AreContacts(ctx, userID, contactID)
		if err != nil || !contacts {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		parsed, _ = room.ParseKey(room.ChatKey(userID, contactID))
	}

	messages, err := h.store.History(ctx, parsed, 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*Message{}
	}
	json.NewEncoder(w).Encode(messages)
}
