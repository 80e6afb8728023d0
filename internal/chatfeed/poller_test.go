package chatfeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/ingest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedSource struct {
	mu      sync.Mutex
	batches []Batch
	errs    []error
	calls   int
}

func (s *scriptedSource) Fetch(ctx context.Context) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Batch{}, s.errs[i]
	}
	if i < len(s.batches) {
		return s.batches[i], nil
	}
	return Batch{}, nil
}

func chat(author, text string) protocol.ChatMsg {
	return protocol.ChatMsg{Type: protocol.TypeChat, ProtocolVersion: protocol.Version, Author: author, Message: text}
}

func TestPoll_SkipsHistoryOnFirstFetch(t *testing.T) {
	src := &scriptedSource{batches: []Batch{
		{Messages: []protocol.ChatMsg{chat("old1", "tnt"), chat("old2", "fast")}},
		{Messages: []protocol.ChatMsg{chat("alice", "tnt"), chat("", "fast")}},
	}}
	q := ingest.New(10, nil)
	p := NewPoller(src, q, nil, Config{}, nil)

	p.Poll(context.Background())
	if q.Len() != 0 {
		t.Fatalf("queue len=%d want=0 after history", q.Len())
	}
	p.Poll(context.Background())
	if q.Len() != 1 {
		t.Fatalf("queue len=%d want=1", q.Len())
	}
	m, _ := q.Pop()
	if m.Chat.Author != "alice" {
		t.Fatalf("author=%q want=alice", m.Chat.Author)
	}
	st := p.Stats()
	if st.Skipped != 2 || st.Pushed != 1 || st.Polls != 2 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestPoll_ReplayHistoryAndMetrics(t *testing.T) {
	likes := int64(7)
	src := &scriptedSource{batches: []Batch{
		{Messages: []protocol.ChatMsg{chat("a", "tnt")}, Metrics: &protocol.MetricsMsg{Likes: &likes}},
	}}
	q := ingest.New(10, nil)
	p := NewPoller(src, q, nil, Config{ReplayHistory: true}, nil)
	p.Poll(context.Background())
	if q.Len() != 2 {
		t.Fatalf("queue len=%d want=2", q.Len())
	}
	_, _ = q.Pop()
	m, _ := q.Pop()
	if m.Kind != ingest.KindMetrics || *m.Metrics.Likes != 7 {
		t.Fatalf("metrics=%+v", m)
	}
}

func TestPoll_ErrorsDoNotPrime(t *testing.T) {
	src := &scriptedSource{
		errs:    []error{errors.New("boom"), errors.New("boom")},
		batches: []Batch{{}, {}, {Messages: []protocol.ChatMsg{chat("old", "tnt")}}},
	}
	q := ingest.New(10, nil)
	p := NewPoller(src, q, nil, Config{}, nil)
	for i := 0; i < 3; i++ {
		p.Poll(context.Background())
	}
	if q.Len() != 0 {
		t.Fatalf("first successful fetch should be treated as history; len=%d", q.Len())
	}
	if st := p.Stats(); st.Errors != 2 || st.Skipped != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &scriptedSource{}
	q := ingest.New(10, nil)
	p := NewPoller(src, q, nil, Config{Interval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
	if p.Stats().Polls < 2 {
		t.Fatalf("polls=%d want>=2", p.Stats().Polls)
	}
}

func TestHTTPSource_SendsCursor(t *testing.T) {
	var cursors []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cursors = append(cursors, r.URL.Query().Get("cursor"))
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(Batch{
			Messages:   []protocol.ChatMsg{chat("alice", "tnt")},
			NextCursor: "c1",
		})
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	for i := 0; i < 2; i++ {
		b, err := src.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if len(b.Messages) != 1 || b.Messages[0].Author != "alice" {
			t.Fatalf("batch=%+v", b)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(cursors) != 2 || cursors[0] != "" || cursors[1] != "c1" {
		t.Fatalf("cursors=%v", cursors)
	}
	srv.CloseClientConnections()
}

func TestHTTPSource_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	srv.CloseClientConnections()
}
