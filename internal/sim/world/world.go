package world

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/ingest"
	"digstream.live/internal/sim/simclock"
)

type WorldConfig struct {
	ID         string
	TickRateHz int

	// CommandsPerTick is how many ingest entries one tick drains.
	CommandsPerTick int

	LeaderboardSize       int
	LeaderboardEveryTicks int
	SweepEveryTicks       int
	StatsBucketTicks      int
	StatsWindowTicks      int

	Executor ExecutorConfig
}

func (c *WorldConfig) normalize() {
	if c.ID == "" {
		c.ID = "main"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.CommandsPerTick <= 0 {
		c.CommandsPerTick = 1
	}
	if c.LeaderboardSize <= 0 {
		c.LeaderboardSize = 10
	}
	if c.LeaderboardEveryTicks <= 0 {
		c.LeaderboardEveryTicks = c.TickRateHz
	}
	if c.StatsBucketTicks <= 0 {
		c.StatsBucketTicks = 200
	}
	if c.StatsWindowTicks <= 0 {
		c.StatsWindowTicks = 6 * c.StatsBucketTicks
	}
}

// World drives one Session. All session state is touched only from the
// world loop goroutine; other goroutines talk to it through channels or read
// the published snapshot.
type World struct {
	cfg     WorldConfig
	clock   simclock.Clock
	logger  *log.Logger
	session *Session
	exec    *Executor
	queue   *ingest.Queue

	tick atomic.Uint64

	blockBroken   chan string
	adminReset    chan adminResetReq
	playerInfoReq chan playerInfoReq
	stop          chan struct{}
	stopOnce      sync.Once

	// Optional sinks (may be nil).
	tickLogger  TickLogger
	auditLogger AuditLogger
	events      EventSink

	stats       *WorldStats
	totals      Totals
	resetTotal  atomic.Uint64
	breakDrops  atomic.Uint64
	leaderDirty bool

	metrics atomic.Value // WorldMetrics
	state   atomic.Value // GameState
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// EventSink receives outbound events. Publish must not block.
type EventSink interface {
	Publish(ev protocol.EventMsg)
}

// TickLogEntry records every input a tick consumed, which is enough to replay
// the session deterministically.
type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	TimeMS   int64             `json:"time_ms"`
	Messages []RecordedMessage `json:"messages,omitempty"`
	Breaks   []string          `json:"breaks,omitempty"`
	Reset    *RecordedReset    `json:"reset,omitempty"`
	Executed string            `json:"executed,omitempty"`
	Digest   string            `json:"digest"`
}

type RecordedMessage struct {
	Kind    string          `json:"kind"`
	Chat    *ingest.Chat    `json:"chat,omitempty"`
	Metrics *ingest.Metrics `json:"metrics,omitempty"`
}

type RecordedReset struct {
	ClearScores bool `json:"clear_scores,omitempty"`
}

type AuditEntry struct {
	Tick      uint64  `json:"tick"`
	TimeMS    int64   `json:"time_ms"`
	ID        string  `json:"id"`
	Kind      string  `json:"kind"` // e.g. "ACCEPTED"
	Actor     string  `json:"actor"`
	Token     string  `json:"token,omitempty"`
	Previous  string  `json:"previous,omitempty"`
	Handoff   bool    `json:"handoff,omitempty"`
	Remaining float64 `json:"remaining_s,omitempty"`
	Block     string  `json:"block,omitempty"`
	Points    int     `json:"points,omitempty"`
	Score     int     `json:"score,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

func New(cfg WorldConfig, sess *Session, q *ingest.Queue, logger *log.Logger) (*World, error) {
	if sess == nil {
		return nil, errors.New("world: nil session")
	}
	if q == nil {
		return nil, errors.New("world: nil ingest queue")
	}
	cfg.normalize()
	if logger == nil {
		logger = log.New(log.Writer(), "[world] ", log.LstdFlags|log.Lmicroseconds)
	}
	sess.Arbiter.Queue().SetLogger(logger)
	w := &World{
		cfg:           cfg,
		clock:         sess.Clock,
		logger:        logger,
		session:       sess,
		exec:          NewExecutor(cfg.Executor, sess.Clock, logger),
		queue:         q,
		blockBroken:   make(chan string, 1024),
		adminReset:    make(chan adminResetReq, 8),
		playerInfoReq: make(chan playerInfoReq, 64),
		stop:          make(chan struct{}),
		stats:         NewWorldStats(uint64(cfg.StatsBucketTicks), uint64(cfg.StatsWindowTicks)),
	}
	w.publish(0, 0)
	return w, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func recordMessage(m ingest.Message) RecordedMessage {
	return RecordedMessage{Kind: m.Kind.String(), Chat: m.Chat, Metrics: m.Metrics}
}

// Message rebuilds the ingest message a tick log recorded.
func (r RecordedMessage) Message(at time.Time) ingest.Message {
	switch {
	case r.Chat != nil:
		return ingest.Message{Kind: ingest.KindChat, ReceivedAt: at, Chat: r.Chat}
	case r.Metrics != nil:
		return ingest.Message{Kind: ingest.KindMetrics, ReceivedAt: at, Metrics: r.Metrics}
	default:
		return ingest.Message{}
	}
}
