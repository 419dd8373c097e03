package websocket

import "encoding/json"

// Inbound event names (client -> service).
const (
	EventToggleEphemeral = "toggle-ephemeral"
	EventSendMessage     = "send-message"
	EventMessageSaved    = "message-saved"
	EventTyping          = "typing"
)

// Outbound event names (service -> client).
const (
	EventOnlineUsers      = "online-users"
	EventOnlineCount      = "online-count"
	EventEphemeralUpdated = "ephemeral-updated"
	EventReceiveMessage   = "receive-message"
	EventMessageUpdated   = "message-updated"
	EventAck              = "ack"
)

// Envelope frames every event in both directions. AckID is set by the
// client when it wants a reply for this particular request.
type Envelope struct {
	Event string          `json:"event"`
	AckID string          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TogglePayload drives an ephemeral-mode toggle for a conversation.
type TogglePayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Enabled bool   `json:"enabled"`
}

// SendMessagePayload is an outbound chat message from a client.
type SendMessagePayload struct {
	To       string                 `json:"to"`
	Content  string                 `json:"content"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
	ClientID string                 `json:"clientId,omitempty"`
}

// MessageSavedPayload tells the relay a client persisted a message and
// both sides should swap their optimistic copy for the canonical one.
type MessageSavedPayload struct {
	To           string          `json:"to"`
	ClientID     string          `json:"clientId"`
	SavedMessage json.RawMessage `json:"savedMessage"`
}

// TypingPayload signals the sender's typing state to the recipient.
type TypingPayload struct {
	To       string `json:"to"`
	IsTyping bool   `json:"isTyping"`
}

// Message is the stamped wire form of a relayed chat message. The
// relay shapes it and fans it out; it never stores it.
type Message struct {
	From      string                 `json:"from"`
	To        string                 `json:"to"`
	Content   string                 `json:"content"`
	CreatedAt string                 `json:"createdAt"`
	Ephemeral bool                   `json:"ephemeral"`
	Meta      map[string]interface{} `json:"meta"`
	Image     string                 `json:"image,omitempty"`
	ClientID  string                 `json:"clientId,omitempty"`
}

// EphemeralUpdate notifies both participants of a toggled conversation.
type EphemeralUpdate struct {
	With    string `json:"with"`
	Enabled bool   `json:"enabled"`
}

// MessageUpdate carries the canonical record for a correlated message.
type MessageUpdate struct {
	ClientID     string          `json:"clientId"`
	SavedMessage json.RawMessage `json:"savedMessage"`
}

// TypingNotice is the recipient-side form of a typing signal.
type TypingNotice struct {
	From     string `json:"from"`
	IsTyping bool   `json:"isTyping"`
}

// Ack answers a request that carried an ack id.
type Ack struct {
	AckID   string   `json:"ackId"`
	Status  string   `json:"status"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

const (
	AckOK    = "ok"
	AckError = "error"
)

// encodeEvent wraps a payload in an Envelope and marshals it.
func encodeEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
