package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/ingest"
	"digstream.live/internal/sim/simclock"
)

func newTestServer(t *testing.T, capacity int) (*Server, *ingest.Queue) {
	t.Helper()
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	q := ingest.New(capacity, nil)
	clk := simclock.NewManual(time.Unix(1000, 0))
	return NewServer(q, v, clk, nil), q
}

func TestHandleFrame_ChatQueued(t *testing.T) {
	s, q := newTestServer(t, 10)
	reply := s.HandleFrame([]byte(`{"type":"CHAT","protocol_version":"1.0","author":"alice","message":"tnt please"}`))
	ack, ok := reply.(protocol.AckMsg)
	if !ok {
		t.Fatalf("reply=%T %+v want AckMsg", reply, reply)
	}
	if ack.Queued != 1 || ack.Evicted {
		t.Fatalf("ack=%+v", ack)
	}
	m, ok := q.Pop()
	if !ok || m.Kind != ingest.KindChat || m.Chat.Author != "alice" || m.Chat.Text != "tnt please" {
		t.Fatalf("queued=%+v ok=%v", m, ok)
	}
	if !m.ReceivedAt.Equal(time.Unix(1000, 0)) {
		t.Fatalf("received_at=%v", m.ReceivedAt)
	}
}

func TestHandleFrame_PaidChatAndMetrics(t *testing.T) {
	s, q := newTestServer(t, 10)
	_ = s.HandleFrame([]byte(`{"type":"CHAT","protocol_version":"1.0","author":"bob","message":"","is_paid":true,"paid_amount":5}`))
	_ = s.HandleFrame([]byte(`{"type":"METRICS","protocol_version":"1.0","likes":42}`))

	m, _ := q.Pop()
	if !m.Chat.Paid || m.Chat.PaidAmount != 5 {
		t.Fatalf("paid chat=%+v", m.Chat)
	}
	m, _ = q.Pop()
	if m.Kind != ingest.KindMetrics || m.Metrics.Likes == nil || *m.Metrics.Likes != 42 || m.Metrics.Subscribers != nil {
		t.Fatalf("metrics=%+v", m.Metrics)
	}
}

func TestHandleFrame_Errors(t *testing.T) {
	s, q := newTestServer(t, 10)
	cases := []struct {
		frame string
		code  string
	}{
		{`not json`, protocol.ErrProtoBadRequest},
		{`{"type":"CHAT","protocol_version":"0.9","author":"a","message":"x"}`, protocol.ErrProtoBadRequest},
		{`{"type":"CHAT","protocol_version":"1.0","message":"x"}`, protocol.ErrProtoBadRequest},
		{`{"type":"METRICS","protocol_version":"1.0"}`, protocol.ErrProtoBadRequest},
		{`{"type":"METRICS","protocol_version":"1.0","likes":-1}`, protocol.ErrProtoBadRequest},
		{`{"type":"HELLO","protocol_version":"1.0"}`, protocol.ErrUnknownType},
	}
	for _, tc := range cases {
		reply := s.HandleFrame([]byte(tc.frame))
		em, ok := reply.(protocol.ErrorMsg)
		if !ok {
			t.Fatalf("frame=%s reply=%T want ErrorMsg", tc.frame, reply)
		}
		if em.Code != tc.code || !protocol.IsKnownCode(em.Code) {
			t.Fatalf("frame=%s code=%s want=%s", tc.frame, em.Code, tc.code)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue len=%d want=0", q.Len())
	}
	if st := s.Stats(); st.Refused != uint64(len(cases)) || st.Accepted != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestHandleFrame_EvictionFlagged(t *testing.T) {
	s, _ := newTestServer(t, 1)
	frame := []byte(`{"type":"CHAT","protocol_version":"1.0","author":"a","message":"fast"}`)
	first := s.HandleFrame(frame).(protocol.AckMsg)
	second := s.HandleFrame(frame).(protocol.AckMsg)
	if first.Evicted || !second.Evicted || second.Queued != 1 {
		t.Fatalf("first=%+v second=%+v", first, second)
	}
}

func TestHandler_RoundTrip(t *testing.T) {
	s, q := newTestServer(t, 10)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CHAT","protocol_version":"1.0","author":"carol","message":"left2"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ack protocol.AckMsg
	if err := json.Unmarshal(b, &ack); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ack.Type != protocol.TypeAck || ack.Queued != 1 {
		t.Fatalf("ack=%+v", ack)
	}
	if q.Len() != 1 {
		t.Fatalf("queue len=%d want=1", q.Len())
	}
}
