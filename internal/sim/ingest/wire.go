package ingest

import (
	"time"

	"digstream.live/internal/protocol"
)

// FromChatMsg converts a validated CHAT frame. Paid chats keep their amount
// even when it is zero; the interpreter clamps units.
func FromChatMsg(m protocol.ChatMsg, at time.Time) Message {
	if m.IsPaid {
		return NewPaidChat(m.Author, m.Message, m.PaidAmount, at)
	}
	return NewChat(m.Author, m.Message, at)
}

func FromMetricsMsg(m protocol.MetricsMsg, at time.Time) Message {
	return NewMetrics(Metrics{Likes: m.Likes, Subscribers: m.Subscribers}, at)
}
