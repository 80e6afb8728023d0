package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/catalogs"
	"digstream.live/internal/sim/world"
)

type fakeWorld struct {
	mu     sync.Mutex
	breaks []string
	full   bool
}

func (f *fakeWorld) ID() string          { return "stream_1" }
func (f *fakeWorld) TickRateHz() int     { return 20 }
func (f *fakeWorld) CurrentTick() uint64 { return 42 }
func (f *fakeWorld) GameState() world.GameState {
	return world.GameState{Tick: 41, CurrentPossessor: "alice", TotalPlayers: 1, LastCommandAge: -1}
}
func (f *fakeWorld) ReportBlockBroken(block string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.breaks = append(f.breaks, block)
	return true
}

func (f *fakeWorld) Breaks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.breaks...)
}

func newServer(t *testing.T, fw *fakeWorld) (*Server, *Hub) {
	t.Helper()
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	hub := NewHub()
	return NewServer(fw, hub, catalogs.DefaultBlockPoints(), v, nil), hub
}

func TestBootstrap(t *testing.T) {
	s, _ := newServer(t, &fakeWorld{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	s.BootstrapHandler()(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want=200", rr.Code)
	}
	var resp BootstrapResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Tick != 42 || resp.State.CurrentPossessor != "alice" || resp.TickRateHz != 20 {
		t.Fatalf("resp=%+v", resp)
	}
	if len(resp.Blocks) == 0 || resp.Blocks[0].Points != 1 {
		t.Fatalf("blocks=%+v", resp.Blocks)
	}
	last := resp.Blocks[len(resp.Blocks)-1]
	if last.Points != 1<<last.Tier {
		t.Fatalf("last block=%+v", last)
	}
}

func TestBootstrap_RemoteForbidden(t *testing.T) {
	s, _ := newServer(t, &fakeWorld{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/observer/bootstrap", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	s.BootstrapHandler()(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d want=403", rr.Code)
	}

	s.AllowRemote = true
	rr = httptest.NewRecorder()
	s.BootstrapHandler()(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want=200 with AllowRemote", rr.Code)
	}
}

func TestHub_DropsForSlowSession(t *testing.T) {
	h := NewHub()
	ch := h.subscribe("O1", 1)
	h.Publish(protocol.EventMsg{Kind: protocol.EventScore})
	h.Publish(protocol.EventMsg{Kind: protocol.EventScore})
	if len(ch) != 1 {
		t.Fatalf("buffered=%d want=1", len(ch))
	}
	st := h.Stats()
	if st.Published != 2 || st.Dropped != 1 || st.Sessions != 1 {
		t.Fatalf("stats=%+v", st)
	}
	h.unsubscribe("O1")
	if h.Stats().Sessions != 0 {
		t.Fatalf("sessions not removed")
	}
}

func dial(t *testing.T, s *Server) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(s.WSHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func waitSessions(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Stats().Sessions == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("sessions=%d want=%d", h.Stats().Sessions, n)
}

func TestWS_StreamsEventsAndAcceptsBreaks(t *testing.T) {
	fw := &fakeWorld{}
	s, hub := newServer(t, fw)
	conn, done := dial(t, s)
	defer done()
	waitSessions(t, hub, 1)

	hub.Publish(protocol.EventMsg{Type: protocol.TypeEvent, ProtocolVersion: protocol.Version, Kind: protocol.EventAccepted, Author: "alice", Token: "tnt"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev protocol.EventMsg
	if err := json.Unmarshal(b, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Kind != protocol.EventAccepted || ev.Author != "alice" {
		t.Fatalf("event=%+v", ev)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"BLOCK_BROKEN","protocol_version":"1.0","block":"Diamond_Ore"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(fw.Breaks()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := fw.Breaks(); len(got) != 1 || got[0] != "diamond_ore" {
		t.Fatalf("breaks=%v", got)
	}
}

func TestWS_ReportsQueueFull(t *testing.T) {
	fw := &fakeWorld{full: true}
	s, hub := newServer(t, fw)
	conn, done := dial(t, s)
	defer done()
	waitSessions(t, hub, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"BLOCK_BROKEN","protocol_version":"1.0","block":"stone"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var em protocol.ErrorMsg
	if err := json.Unmarshal(b, &em); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if em.Type != protocol.TypeError || em.Code != protocol.ErrQueueFull {
		t.Fatalf("reply=%+v", em)
	}
}
