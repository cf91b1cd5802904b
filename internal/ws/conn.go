package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 1 << 20             // Workspace content can be large, so allow up to 1 MiB frames.
	sendBuffer     = 256
)

var errSendClosed = errors.New("connection send buffer closed or full")

// Conn is a middleman between one websocket connection and the rest of the
// server. Inbound frames are handed to the session handler in receipt order;
// outbound payloads are queued on a buffered channel drained by writePump.
type Conn struct {
	id       string
	UserID   int
	Username string

	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func NewConn(wsConn *websocket.Conn, userID int, username string, log zerolog.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:       id,
		UserID:   userID,
		Username: username,
		conn:     wsConn,
		send:     make(chan []byte, sendBuffer),
		log:      log.With().Str("conn", id).Int("user_id", userID).Logger(),
	}
}

func (c *Conn) ID() string { return c.id }

// Send queues a payload for delivery. It never blocks: a full buffer means
// the peer cannot keep up and the caller should reap the connection.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errSendClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errSendClosed
	}
}

// Close stops the write pump and closes the socket. Safe to call more than
// once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump pumps frames from the websocket to the session handler, one at a
// time so a client's own commands are never reordered. onClose runs exactly
// once when the connection dies.
func (c *Conn) ReadPump(handler func(payload []byte), onClose func()) {
	defer func() {
		onClose()
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected close")
			}
			break
		}
		handler(message)
	}
}

// WritePump pumps queued payloads to the websocket and keeps the connection
// alive with periodic pings.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			// Drain any queued payloads in the same pass to cut syscalls.
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
