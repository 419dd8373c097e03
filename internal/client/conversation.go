package client

import (
	"encoding/json"
	"sync"

	"github.com/xelth-com/dmrelay/internal/websocket"
)

// Status is the lifecycle state of a message record. A record starts
// Pending when it is sent optimistically; reconciliation with the
// canonical saved copy, or an explicit failure, are the only ways out.
type Status string

const (
	StatusPending   Status = "sending"
	StatusConfirmed Status = "sent"
	StatusFailed    Status = "failed"
)

// Canonical is the durable form of a message as the persistence tier
// returns it. The relay treats it as opaque; the client parses the
// fields it renders.
type Canonical struct {
	ID         string `json:"_id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
	CreatedAt  string `json:"createdAt"`
	Image      string `json:"image,omitempty"`
	ClientID   string `json:"clientId,omitempty"`
}

// Record is one message in a conversation. Exactly one record exists
// per message: the optimistic copy is replaced in place when the
// canonical one arrives, never duplicated.
type Record struct {
	// ClientID is the correlation id. Preserved across reconciliation.
	ClientID string
	// CanonicalID is set once the record is confirmed.
	CanonicalID string
	Status      Status
	// Message is the live relayed form (optimistic or received).
	Message websocket.Message
	// Saved holds the canonical record once reconciled.
	Saved json.RawMessage
}

// Conversation is the client-side ordered view of one peer-to-peer
// message history.
type Conversation struct {
	mu      sync.Mutex
	records []*Record
}

// AppendOptimistic adds a locally-sent message as Pending, keyed by
// its correlation id.
func (c *Conversation) AppendOptimistic(msg websocket.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, &Record{
		ClientID: msg.ClientID,
		Status:   StatusPending,
		Message:  msg,
	})
}

// ApplyReceive merges a relayed message. The sender's own echo matches
// its Pending record by correlation id and is ignored; anything new is
// appended as Confirmed (it is real for the receiver even before the
// persistence tier accepts it).
func (c *Conversation) ApplyReceive(msg websocket.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.ClientID != "" && c.findByClientID(msg.ClientID) != nil {
		return
	}
	c.records = append(c.records, &Record{
		ClientID: msg.ClientID,
		Status:   StatusConfirmed,
		Message:  msg,
	})
}

// ApplyUpdate reconciles a canonical saved record. A matching record
// (by correlation id, then canonical id) is replaced in place with its
// correlation id preserved; with no match the canonical record is
// appended fresh, never dropped.
func (c *Conversation) ApplyUpdate(clientID string, saved json.RawMessage) error {
	var can Canonical
	if err := json.Unmarshal(saved, &can); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.findByClientID(clientID)
	if rec == nil {
		rec = c.findByCanonicalID(can.ID)
	}
	if rec == nil {
		c.records = append(c.records, &Record{
			ClientID:    clientID,
			CanonicalID: can.ID,
			Status:      StatusConfirmed,
			Saved:       saved,
			Message: websocket.Message{
				From:      can.SenderID,
				To:        can.ReceiverID,
				Content:   can.Text,
				CreatedAt: can.CreatedAt,
				Image:     can.Image,
				ClientID:  clientID,
			},
		})
		return nil
	}

	rec.CanonicalID = can.ID
	rec.Status = StatusConfirmed
	rec.Saved = saved
	rec.Message.Content = can.Text
	if can.CreatedAt != "" {
		rec.Message.CreatedAt = can.CreatedAt
	}
	if can.Image != "" {
		rec.Message.Image = can.Image
	}
	return nil
}

// MarkFailed transitions a Pending record to Failed. Used when the
// persistence call for an optimistic message errors out.
func (c *Conversation) MarkFailed(clientID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.findByClientID(clientID)
	if rec == nil || rec.Status != StatusPending {
		return false
	}
	rec.Status = StatusFailed
	return true
}

// Records returns a snapshot of the conversation in arrival order.
func (c *Conversation) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	for i, r := range c.records {
		out[i] = *r
	}
	return out
}

func (c *Conversation) findByClientID(clientID string) *Record {
	if clientID == "" {
		return nil
	}
	for _, r := range c.records {
		if r.ClientID == clientID {
			return r
		}
	}
	return nil
}

func (c *Conversation) findByCanonicalID(id string) *Record {
	if id == "" {
		return nil
	}
	for _, r := range c.records {
		if r.CanonicalID == id {
			return r
		}
	}
	return nil
}
