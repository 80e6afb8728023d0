// Package ingest is the boundary between the chat producers (poller,
// websocket listeners) and the single consumer that drives the simulation.
package ingest

import "time"

// Kind tags which payload of a Message is set.
type Kind uint8

const (
	KindChat Kind = iota + 1
	KindMetrics
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindMetrics:
		return "metrics"
	default:
		return "unknown"
	}
}

// Message is one raw inbound event. Exactly one of Chat or Metrics is set,
// matching Kind.
type Message struct {
	Kind       Kind
	ReceivedAt time.Time

	Chat    *Chat
	Metrics *Metrics
}

// Chat is an untrusted chat line as delivered by the platform client.
type Chat struct {
	Author     string  `json:"author"`
	Text       string  `json:"message"`
	Paid       bool    `json:"is_paid"`
	PaidAmount float64 `json:"paid_amount"`
}

// Metrics carries absolute channel counters. A nil field means the source did
// not report it in this update.
type Metrics struct {
	Likes       *int64 `json:"likes,omitempty"`
	Subscribers *int64 `json:"subscribers,omitempty"`
}

func NewChat(author, text string, at time.Time) Message {
	return Message{Kind: KindChat, ReceivedAt: at, Chat: &Chat{Author: author, Text: text}}
}

func NewPaidChat(author, text string, amount float64, at time.Time) Message {
	return Message{Kind: KindChat, ReceivedAt: at, Chat: &Chat{Author: author, Text: text, Paid: true, PaidAmount: amount}}
}

func NewMetrics(m Metrics, at time.Time) Message {
	return Message{Kind: KindMetrics, ReceivedAt: at, Metrics: &m}
}

// Valid reports whether the tag and payload agree.
func (m Message) Valid() bool {
	switch m.Kind {
	case KindChat:
		return m.Chat != nil && m.Metrics == nil
	case KindMetrics:
		return m.Metrics != nil && m.Chat == nil
	default:
		return false
	}
}
