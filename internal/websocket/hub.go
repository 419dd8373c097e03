package websocket

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/xelth-com/dmrelay/internal/ephemeral"
	"github.com/xelth-com/dmrelay/internal/metrics"
	"github.com/xelth-com/dmrelay/internal/presence"
)

// ErrMissingRecipient marks an event that arrived without a recipient
// id. The event is dropped; the connection stays up.
var ErrMissingRecipient = errors.New("missing recipient")

// Hub routes relay events between connections. Presence changes are
// serialized through the Run loop so every roster broadcast reflects a
// fully-applied register or deregister; event relays read a registry
// snapshot at the instant of dispatch.
type Hub struct {
	registry *presence.Registry
	flags    *ephemeral.Store

	register   chan *Client
	unregister chan *Client
}

// NewHub creates a Hub around an injected registry and ephemeral store.
func NewHub(registry *presence.Registry, flags *ephemeral.Store) *Hub {
	return &Hub{
		registry:   registry,
		flags:      flags,
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			metrics.ConnectionsOpen.Inc()
			if h.registry.Register(client.UserID, client) {
				log.Info().Str("user", client.UserID).Str("conn", client.ID()).Msg("user online")
			}
			h.broadcastRoster()

		case client := <-h.unregister:
			metrics.ConnectionsOpen.Dec()
			if h.registry.Deregister(client.UserID, client) {
				log.Info().Str("user", client.UserID).Str("conn", client.ID()).Msg("user offline")
			}
			client.shutdown()
			h.broadcastRoster()
		}
	}
}

// Toggle applies an ephemeral-mode toggle and notifies every
// connection of both participants. Toggling against an offline
// counterparty still succeeds; missed updates are not replayed.
func (h *Hub) Toggle(c *Client, p TogglePayload) error {
	if p.To == "" {
		return ErrMissingRecipient
	}
	from := p.From
	if from == "" {
		from = c.UserID
	}

	h.flags.Set(from, p.To, p.Enabled)
	metrics.EphemeralToggles.Inc()
	log.Debug().Str("key", ephemeral.ConversationKey(from, p.To)).Bool("enabled", p.Enabled).Msg("ephemeral toggled")

	if err := h.sendToUser(from, EventEphemeralUpdated, EphemeralUpdate{With: p.To, Enabled: p.Enabled}); err != nil {
		return err
	}
	if p.To == from {
		return nil
	}
	return h.sendToUser(p.To, EventEphemeralUpdated, EphemeralUpdate{With: from, Enabled: p.Enabled})
}

// SendMessage stamps an outbound message and fans it out to every
// connection of the recipient and of the sender. An offline recipient
// is a normal outcome, not an error. Persistence is the client's job
// and only happens when the stamped message is not ephemeral.
func (h *Hub) SendMessage(c *Client, p SendMessagePayload) (*Message, error) {
	if p.To == "" {
		return nil, ErrMissingRecipient
	}

	msg := &Message{
		From:      c.UserID,
		To:        p.To,
		Content:   p.Content,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Ephemeral: h.flags.Enabled(c.UserID, p.To),
		Meta:      p.Meta,
		ClientID:  p.ClientID,
	}
	if img, ok := p.Meta["image"].(string); ok {
		msg.Image = img
	}

	if err := h.sendToPair(c.UserID, p.To, EventReceiveMessage, msg); err != nil {
		return nil, err
	}
	metrics.MessagesRelayed.Inc()
	return msg, nil
}

// MessageSaved relays a canonical persisted record to every connection
// of both participants so they can replace their optimistic copy. Pure
// relay: the saved record is passed through untouched.
func (h *Hub) MessageSaved(c *Client, p MessageSavedPayload) error {
	if p.To == "" {
		return ErrMissingRecipient
	}
	update := MessageUpdate{ClientID: p.ClientID, SavedMessage: p.SavedMessage}
	return h.sendToPair(c.UserID, p.To, EventMessageUpdated, update)
}

// Typing forwards a typing signal to the recipient's connections only.
func (h *Hub) Typing(c *Client, p TypingPayload) error {
	if p.To == "" {
		return ErrMissingRecipient
	}
	metrics.TypingSignals.Inc()
	return h.sendToUser(p.To, EventTyping, TypingNotice{From: c.UserID, IsTyping: p.IsTyping})
}

// sendToUser dispatches an event to every open connection of one user.
// Connections that cannot accept the payload are skipped.
func (h *Hub) sendToUser(userID string, event string, data interface{}) error {
	payload, err := encodeEvent(event, data)
	if err != nil {
		return errors.Wrapf(err, "encode %s", event)
	}
	for _, conn := range h.registry.Connections(userID) {
		if !conn.Enqueue(payload) {
			metrics.DroppedSends.Inc()
		}
	}
	return nil
}

// sendToPair dispatches to both participants, once each.
func (h *Hub) sendToPair(a, b string, event string, data interface{}) error {
	if err := h.sendToUser(a, event, data); err != nil {
		return err
	}
	if a == b {
		return nil
	}
	return h.sendToUser(b, event, data)
}

// broadcastRoster pushes the full online roster and distinct-user
// count to every connected client. Called only from the Run loop.
func (h *Hub) broadcastRoster() {
	online := h.registry.Online()
	metrics.UsersOnline.Set(float64(len(online)))

	users, err := encodeEvent(EventOnlineUsers, online)
	if err != nil {
		log.Error().Err(err).Msg("encode roster broadcast")
		return
	}
	count, err := encodeEvent(EventOnlineCount, len(online))
	if err != nil {
		log.Error().Err(err).Msg("encode roster count")
		return
	}

	h.registry.Each(func(_ string, conn presence.Conn) {
		if !conn.Enqueue(users) || !conn.Enqueue(count) {
			metrics.DroppedSends.Inc()
		}
	})
}
