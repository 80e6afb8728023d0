package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"digstream.live/internal/chatfeed"
	"digstream.live/internal/persistence/indexdb"
	persistlog "digstream.live/internal/persistence/log"
	"digstream.live/internal/sim/world"
	"digstream.live/internal/transport/observer"
	"digstream.live/internal/transport/ws"
)

// adminWorld is what the HTTP surface needs from the world loop.
type adminWorld interface {
	ID() string
	CurrentTick() uint64
	Metrics() world.WorldMetrics
	GameState() world.GameState
	RequestPlayerInfo(ctx context.Context, player string) (world.PlayerInfo, error)
	RequestReset(ctx context.Context, clearScores bool) (uint64, error)
}

// httpDeps groups the optional components whose stats appear on /metrics.
type httpDeps struct {
	world  adminWorld
	index  runtimeIndex
	chat   *ws.Server
	hub    *observer.Hub
	poller *chatfeed.Poller
	logs   []lineCounter
}

// lineCounter is a JSONL log that reports how many entries it wrote.
type lineCounter interface {
	Lines() uint64
}

func (d httpDeps) metricsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		id := d.world.ID()
		m := d.world.Metrics()
		tick := d.world.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		fmt.Fprintf(rw, "# HELP digstream_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE digstream_tick gauge\n")
		fmt.Fprintf(rw, "digstream_tick{stream=%q} %d\n", id, tick)

		fmt.Fprintf(rw, "# HELP digstream_players Players who have held possession this session.\n")
		fmt.Fprintf(rw, "# TYPE digstream_players gauge\n")
		fmt.Fprintf(rw, "digstream_players{stream=%q} %d\n", id, m.Players)

		fmt.Fprintf(rw, "# HELP digstream_queue_depth Backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE digstream_queue_depth gauge\n")
		fmt.Fprintf(rw, "digstream_queue_depth{stream=%q,queue=%q} %d\n", id, "ingest", m.QueueDepths.Ingest)
		fmt.Fprintf(rw, "digstream_queue_depth{stream=%q,queue=%q} %d\n", id, "exec", m.QueueDepths.Exec)
		fmt.Fprintf(rw, "digstream_queue_depth{stream=%q,queue=%q} %d\n", id, "block_broken", m.QueueDepths.BlockBroken)

		fmt.Fprintf(rw, "# HELP digstream_dropped_total Inputs dropped under backpressure.\n")
		fmt.Fprintf(rw, "# TYPE digstream_dropped_total counter\n")
		fmt.Fprintf(rw, "digstream_dropped_total{stream=%q,queue=%q} %d\n", id, "ingest", m.IngestDropped)
		fmt.Fprintf(rw, "digstream_dropped_total{stream=%q,queue=%q} %d\n", id, "exec", m.ExecDropped)
		fmt.Fprintf(rw, "digstream_dropped_total{stream=%q,queue=%q} %d\n", id, "block_broken", m.BlockBrokenDropped)

		fmt.Fprintf(rw, "# HELP digstream_commands_total Commands by arbitration result.\n")
		fmt.Fprintf(rw, "# TYPE digstream_commands_total counter\n")
		fmt.Fprintf(rw, "digstream_commands_total{stream=%q,result=%q} %d\n", id, "accepted", m.Totals.Accepted)
		fmt.Fprintf(rw, "digstream_commands_total{stream=%q,result=%q} %d\n", id, "rejected", m.Totals.Rejected)
		fmt.Fprintf(rw, "digstream_commands_total{stream=%q,result=%q} %d\n", id, "executed", m.Totals.Executed)

		fmt.Fprintf(rw, "# HELP digstream_handoffs_total Possession changes.\n")
		fmt.Fprintf(rw, "# TYPE digstream_handoffs_total counter\n")
		fmt.Fprintf(rw, "digstream_handoffs_total{stream=%q} %d\n", id, m.Totals.Handoffs)

		fmt.Fprintf(rw, "# HELP digstream_score_events_total Blocks credited to a possessor.\n")
		fmt.Fprintf(rw, "# TYPE digstream_score_events_total counter\n")
		fmt.Fprintf(rw, "digstream_score_events_total{stream=%q} %d\n", id, m.Totals.ScoreEvents)

		fmt.Fprintf(rw, "# HELP digstream_reset_total Session resets.\n")
		fmt.Fprintf(rw, "# TYPE digstream_reset_total counter\n")
		fmt.Fprintf(rw, "digstream_reset_total{stream=%q} %d\n", id, m.ResetTotal)

		fmt.Fprintf(rw, "# HELP digstream_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE digstream_step_ms gauge\n")
		fmt.Fprintf(rw, "digstream_step_ms{stream=%q} %.3f\n", id, m.StepMS)

		fmt.Fprintf(rw, "# HELP digstream_stats_window Rolling window stats.\n")
		fmt.Fprintf(rw, "# TYPE digstream_stats_window gauge\n")
		fmt.Fprintf(rw, "digstream_stats_window{stream=%q,metric=%q} %d\n", id, "accepted", m.StatsWindow.Accepted)
		fmt.Fprintf(rw, "digstream_stats_window{stream=%q,metric=%q} %d\n", id, "rejected", m.StatsWindow.Rejected)
		fmt.Fprintf(rw, "digstream_stats_window{stream=%q,metric=%q} %d\n", id, "handoffs", m.StatsWindow.Handoffs)
		fmt.Fprintf(rw, "digstream_stats_window{stream=%q,metric=%q} %d\n", id, "blocks", m.StatsWindow.Blocks)
		fmt.Fprintf(rw, "digstream_stats_window{stream=%q,metric=%q} %d\n", id, "points", m.StatsWindow.Points)

		fmt.Fprintf(rw, "# HELP digstream_stats_window_ticks Rolling window size in ticks.\n")
		fmt.Fprintf(rw, "# TYPE digstream_stats_window_ticks gauge\n")
		fmt.Fprintf(rw, "digstream_stats_window_ticks{stream=%q} %d\n", id, m.StatsWindowTicks)

		if d.chat != nil {
			st := d.chat.Stats()
			fmt.Fprintf(rw, "# HELP digstream_chat_conns Connected chat bridges.\n")
			fmt.Fprintf(rw, "# TYPE digstream_chat_conns gauge\n")
			fmt.Fprintf(rw, "digstream_chat_conns{stream=%q} %d\n", id, st.Conns)
			fmt.Fprintf(rw, "# HELP digstream_chat_frames_total Chat frames by result.\n")
			fmt.Fprintf(rw, "# TYPE digstream_chat_frames_total counter\n")
			fmt.Fprintf(rw, "digstream_chat_frames_total{stream=%q,result=%q} %d\n", id, "accepted", st.Accepted)
			fmt.Fprintf(rw, "digstream_chat_frames_total{stream=%q,result=%q} %d\n", id, "refused", st.Refused)
		}
		if d.hub != nil {
			st := d.hub.Stats()
			fmt.Fprintf(rw, "# HELP digstream_observer_sessions Connected observer sessions.\n")
			fmt.Fprintf(rw, "# TYPE digstream_observer_sessions gauge\n")
			fmt.Fprintf(rw, "digstream_observer_sessions{stream=%q} %d\n", id, st.Sessions)
			fmt.Fprintf(rw, "# HELP digstream_observer_dropped_total Events dropped for slow observers.\n")
			fmt.Fprintf(rw, "# TYPE digstream_observer_dropped_total counter\n")
			fmt.Fprintf(rw, "digstream_observer_dropped_total{stream=%q} %d\n", id, st.Dropped)
		}
		if d.poller != nil {
			st := d.poller.Stats()
			fmt.Fprintf(rw, "# HELP digstream_feed_polls_total Chat feed polls.\n")
			fmt.Fprintf(rw, "# TYPE digstream_feed_polls_total counter\n")
			fmt.Fprintf(rw, "digstream_feed_polls_total{stream=%q} %d\n", id, st.Polls)
			fmt.Fprintf(rw, "# HELP digstream_feed_errors_total Chat feed fetch errors.\n")
			fmt.Fprintf(rw, "# TYPE digstream_feed_errors_total counter\n")
			fmt.Fprintf(rw, "digstream_feed_errors_total{stream=%q} %d\n", id, st.Errors)
		}
		if len(d.logs) > 0 {
			fmt.Fprintf(rw, "# HELP digstream_log_lines_total Entries written to the JSONL logs.\n")
			fmt.Fprintf(rw, "# TYPE digstream_log_lines_total counter\n")
			for _, l := range d.logs {
				fmt.Fprintf(rw, "digstream_log_lines_total{stream=%q,log=%q} %d\n", id, logName(l), l.Lines())
			}
		}
		if d.index != nil {
			writeIndexMetrics(rw, id, d.index.Stats())
		}
	}
}

func logName(l lineCounter) string {
	switch l.(type) {
	case *persistlog.TickLogger:
		return "ticks"
	case *persistlog.AuditLogger:
		return "audit"
	default:
		return "other"
	}
}

func writeIndexMetrics(rw http.ResponseWriter, id string, s indexdb.Stats) {
	fmt.Fprintf(rw, "# HELP digstream_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE digstream_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "digstream_index_queue_depth{stream=%q} %d\n", id, s.QueueDepth)
	fmt.Fprintf(rw, "# HELP digstream_index_dropped_total Entries the index writer dropped.\n")
	fmt.Fprintf(rw, "# TYPE digstream_index_dropped_total counter\n")
	fmt.Fprintf(rw, "digstream_index_dropped_total{stream=%q,kind=%q} %d\n", id, "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "digstream_index_dropped_total{stream=%q,kind=%q} %d\n", id, "audit", s.DropAuditTotal)
}

func (d httpDeps) registerAdmin(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			StreamID string             `json:"stream_id"`
			Tick     uint64             `json:"tick"`
			State    world.GameState    `json:"state"`
			Metrics  world.WorldMetrics `json:"metrics"`
		}{
			StreamID: d.world.ID(),
			Tick:     d.world.CurrentTick(),
			State:    d.world.GameState(),
			Metrics:  d.world.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/player", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			http.Error(rw, "missing name", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		info, err := d.world.RequestPlayerInfo(ctx, name)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(info)
	})
	mux.HandleFunc("/admin/v1/reset", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		clearScores, _ := strconv.ParseBool(r.URL.Query().Get("clear_scores"))
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tick, err := d.world.RequestReset(ctx, clearScores)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick, "clear_scores": clearScores})
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
