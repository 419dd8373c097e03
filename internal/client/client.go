package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/xelth-com/dmrelay/internal/auth"
	"github.com/xelth-com/dmrelay/internal/websocket"
)

// Handlers are optional notification hooks invoked from the event
// loop after the client state has been updated. Keep them fast; the
// loop does not read further events until they return.
type Handlers struct {
	OnMessage   func(msg websocket.Message)
	OnRoster    func(online []string, count int)
	OnTyping    func(from string, isTyping bool)
	OnEphemeral func(with string, enabled bool)
}

// Client is a connected relay client. It keeps the live view the
// service pushes: the online roster, per-peer typing and ephemeral
// state, and one Conversation per peer with optimistic/canonical
// reconciliation applied.
type Client struct {
	conn     *gws.Conn
	userID   string
	handlers Handlers

	writeMu sync.Mutex

	mu        sync.Mutex
	roster    []string
	count     int
	typing    map[string]bool
	ephemeral map[string]bool
	convs     map[string]*Conversation
	acks      map[string]chan websocket.Ack
	readErr   error

	done chan struct{}
}

// Dial connects to the relay at serverURL (http/https base URL)
// presenting the session token, and starts the event loop. userID must
// match the identity embedded in the token. handlers may be nil.
func Dial(ctx context.Context, serverURL, token, userID string, handlers *Handlers) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse server url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	header := http.Header{}
	header.Add("Cookie", auth.CookieName+"="+token)

	conn, _, err := gws.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, errors.Wrap(err, "dial relay")
	}

	c := &Client{
		conn:      conn,
		userID:    userID,
		handlers:  derefHandlers(handlers),
		typing:    make(map[string]bool),
		ephemeral: make(map[string]bool),
		convs:     make(map[string]*Conversation),
		acks:      make(map[string]chan websocket.Ack),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func derefHandlers(h *Handlers) Handlers {
	if h == nil {
		return Handlers{}
	}
	return *h
}

// Close tears down the connection. The service deregisters the
// connection on transport close; nothing else to do client-side.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed when the event loop exits.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the event loop exited, nil before that.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Send relays a message to a peer. It appends an optimistic Pending
// record keyed by a fresh correlation id, waits for the service ack,
// and returns the stamped message. The record is marked Failed when
// the service rejects the event.
func (c *Client) Send(ctx context.Context, to, content string, meta map[string]interface{}) (*websocket.Message, error) {
	clientID := "c_" + uuid.New().String()
	c.Conversation(to).AppendOptimistic(websocket.Message{
		From:     c.userID,
		To:       to,
		Content:  content,
		Meta:     meta,
		ClientID: clientID,
	})

	ack, err := c.request(ctx, websocket.EventSendMessage, websocket.SendMessagePayload{
		To:       to,
		Content:  content,
		Meta:     meta,
		ClientID: clientID,
	})
	if err != nil {
		c.Conversation(to).MarkFailed(clientID)
		return nil, err
	}
	if ack.Status != websocket.AckOK {
		c.Conversation(to).MarkFailed(clientID)
		return nil, errors.New(ack.Error)
	}
	return ack.Message, nil
}

// ToggleEphemeral flips ephemeral mode for the conversation with a peer.
func (c *Client) ToggleEphemeral(to string, enabled bool) error {
	return c.emit(websocket.EventToggleEphemeral, websocket.TogglePayload{From: c.userID, To: to, Enabled: enabled})
}

// Typing signals the peer that this user started or stopped typing.
// Time-boxing a stop signal after idle is the caller's job.
func (c *Client) Typing(to string, isTyping bool) error {
	return c.emit(websocket.EventTyping, websocket.TypingPayload{To: to, IsTyping: isTyping})
}

// NotifySaved tells the relay this client persisted a message, so both
// sides can swap their optimistic copy for the canonical record.
func (c *Client) NotifySaved(to, clientID string, saved json.RawMessage) error {
	return c.emit(websocket.EventMessageSaved, websocket.MessageSavedPayload{
		To: to, ClientID: clientID, SavedMessage: saved,
	})
}

// Roster returns the latest online roster and distinct-user count.
func (c *Client) Roster() ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.roster))
	copy(out, c.roster)
	return out, c.count
}

// PeerTyping reports the last typing signal from a peer.
func (c *Client) PeerTyping(peer string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing[peer]
}

// EphemeralWith reports the last pushed ephemeral flag for a peer.
func (c *Client) EphemeralWith(peer string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ephemeral[peer]
}

// Conversation returns the view of the exchange with one peer,
// creating it on first use.
func (c *Client) Conversation(peer string) *Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.convs[peer]
	if !ok {
		conv = &Conversation{}
		c.convs[peer] = conv
	}
	return conv
}

// emit writes a fire-and-forget event.
func (c *Client) emit(event string, data interface{}) error {
	return c.write(websocket.Envelope{Event: event}, data)
}

// request writes an event with an ack id and waits for the reply.
func (c *Client) request(ctx context.Context, event string, data interface{}) (websocket.Ack, error) {
	ackID := uuid.New().String()
	ch := make(chan websocket.Ack, 1)
	c.mu.Lock()
	c.acks[ackID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.acks, ackID)
		c.mu.Unlock()
	}()

	if err := c.write(websocket.Envelope{Event: event, AckID: ackID}, data); err != nil {
		return websocket.Ack{}, err
	}

	select {
	case ack := <-ch:
		return ack, nil
	case <-c.done:
		return websocket.Ack{}, errors.New("connection closed")
	case <-ctx.Done():
		return websocket.Ack{}, ctx.Err()
	}
}

func (c *Client) write(env websocket.Envelope, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encode event payload")
	}
	env.Data = raw

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}
		var env websocket.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Debug().Err(err).Msg("client: unparseable event")
			continue
		}
		c.handle(env)
	}
}

func (c *Client) handle(env websocket.Envelope) {
	switch env.Event {
	case websocket.EventOnlineUsers:
		var roster []string
		if json.Unmarshal(env.Data, &roster) == nil {
			c.mu.Lock()
			c.roster = roster
			count := c.count
			c.mu.Unlock()
			if c.handlers.OnRoster != nil {
				c.handlers.OnRoster(roster, count)
			}
		}

	case websocket.EventOnlineCount:
		var count int
		if json.Unmarshal(env.Data, &count) == nil {
			c.mu.Lock()
			c.count = count
			c.mu.Unlock()
		}

	case websocket.EventTyping:
		var n websocket.TypingNotice
		if json.Unmarshal(env.Data, &n) == nil {
			c.mu.Lock()
			c.typing[n.From] = n.IsTyping
			c.mu.Unlock()
			if c.handlers.OnTyping != nil {
				c.handlers.OnTyping(n.From, n.IsTyping)
			}
		}

	case websocket.EventEphemeralUpdated:
		var u websocket.EphemeralUpdate
		if json.Unmarshal(env.Data, &u) == nil {
			c.mu.Lock()
			c.ephemeral[u.With] = u.Enabled
			c.mu.Unlock()
			if c.handlers.OnEphemeral != nil {
				c.handlers.OnEphemeral(u.With, u.Enabled)
			}
		}

	case websocket.EventReceiveMessage:
		var msg websocket.Message
		if json.Unmarshal(env.Data, &msg) == nil {
			c.Conversation(c.peerOf(msg.From, msg.To)).ApplyReceive(msg)
			if c.handlers.OnMessage != nil {
				c.handlers.OnMessage(msg)
			}
		}

	case websocket.EventMessageUpdated:
		var u websocket.MessageUpdate
		if json.Unmarshal(env.Data, &u) != nil {
			return
		}
		var can Canonical
		if json.Unmarshal(u.SavedMessage, &can) != nil {
			return
		}
		conv := c.Conversation(c.peerOf(can.SenderID, can.ReceiverID))
		if err := conv.ApplyUpdate(u.ClientID, u.SavedMessage); err != nil {
			log.Debug().Err(err).Msg("client: bad canonical record")
		}

	case websocket.EventAck:
		var ack websocket.Ack
		if json.Unmarshal(env.Data, &ack) != nil {
			return
		}
		c.mu.Lock()
		ch := c.acks[ack.AckID]
		c.mu.Unlock()
		if ch != nil {
			ch <- ack
		}

	default:
		log.Debug().Str("event", env.Event).Msg("client: unknown event ignored")
	}
}

// peerOf picks the other participant of a message relative to this
// client's identity.
func (c *Client) peerOf(from, to string) string {
	if from == c.userID {
		return to
	}
	return from
}
