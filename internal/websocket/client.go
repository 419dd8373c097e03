package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/xelth-com/dmrelay/internal/auth"
	"github.com/xelth-com/dmrelay/internal/config"
	"github.com/xelth-com/dmrelay/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Inline image payloads
	// ride in meta, so this is deliberately generous.
	maxMessageSize = 512 * 1024 // 512KB
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// UserID is the verified identity from the handshake.
	UserID string

	id string

	mu     sync.RWMutex
	closed bool
}

// ID returns the connection handle.
func (c *Client) ID() string { return c.id }

// Enqueue offers a payload to the connection without blocking. It
// reports false when the connection is closed or its buffer is full;
// the payload is dropped in that case.
func (c *Client) Enqueue(msg []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// shutdown marks the client closed and releases the write pump. Called
// only from the hub's run loop.
func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.send)
}

// readPump pumps events from the websocket connection into the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user", c.UserID).Msg("websocket read error")
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			metrics.MalformedEvents.Inc()
			log.Debug().Err(err).Str("user", c.UserID).Msg("unparseable event dropped")
			continue
		}
		c.dispatch(env)
	}
}

// dispatch decodes the envelope into the closed event set and hands it
// to the hub. Per-event failures are local: the event is dropped, an
// error ack is returned when one was requested, and the connection
// keeps processing.
func (c *Client) dispatch(env Envelope) {
	var err error
	switch env.Event {
	case EventToggleEphemeral:
		var p TogglePayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			err = c.hub.Toggle(c, p)
		}

	case EventSendMessage:
		var p SendMessagePayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			var msg *Message
			if msg, err = c.hub.SendMessage(c, p); err == nil {
				c.ack(env.AckID, Ack{Status: AckOK, Message: msg})
				return
			}
		}

	case EventMessageSaved:
		var p MessageSavedPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			err = c.hub.MessageSaved(c, p)
		}

	case EventTyping:
		var p TypingPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			err = c.hub.Typing(c, p)
		}

	default:
		metrics.MalformedEvents.Inc()
		log.Debug().Str("user", c.UserID).Str("event", env.Event).Msg("unknown event dropped")
		c.ack(env.AckID, Ack{Status: AckError, Error: "unknown event: " + env.Event})
		return
	}

	if err != nil {
		metrics.MalformedEvents.Inc()
		log.Debug().Err(err).Str("user", c.UserID).Str("event", env.Event).Msg("event dropped")
		c.ack(env.AckID, Ack{Status: AckError, Error: err.Error()})
		return
	}
	c.ack(env.AckID, Ack{Status: AckOK})
}

// ack replies to a request that asked for one. No-op otherwise.
func (c *Client) ack(ackID string, a Ack) {
	if ackID == "" {
		return
	}
	a.AckID = ackID
	payload, err := encodeEvent(EventAck, a)
	if err != nil {
		log.Error().Err(err).Msg("encode ack")
		return
	}
	if !c.Enqueue(payload) {
		metrics.DroppedSends.Inc()
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs verifies the handshake and admits the connection to the hub.
// A failed verification refuses the handshake outright; the client has
// to re-authenticate and reconnect.
func ServeWs(hub *Hub, cfg *config.Config, w http.ResponseWriter, r *http.Request) {
	sess, err := auth.VerifyRequest(r, cfg.JWTSecret)
	if err != nil {
		metrics.AuthFailures.Inc()
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket handshake refused")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin header.
			return origin == "" || origin == cfg.ClientURL
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		UserID: sess.UserID,
		id:     uuid.New().String(),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
