package chatfeed

import (
	"context"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"digstream.live/internal/sim/ingest"
	"digstream.live/internal/sim/simclock"
)

type Sink interface {
	Push(m ingest.Message) bool
}

type Config struct {
	Interval time.Duration
	// ReplayHistory keeps the chat returned by the first fetch. By default
	// that backlog is discarded so old commands do not fire on startup.
	ReplayHistory bool
}

type Poller struct {
	src    Source
	sink   Sink
	clock  simclock.Clock
	cfg    Config
	logger *log.Logger

	primed   bool
	errCount uint64

	polls   atomic.Uint64
	pushed  atomic.Uint64
	skipped atomic.Uint64
	errors  atomic.Uint64
}

type Stats struct {
	Polls   uint64 `json:"polls"`
	Pushed  uint64 `json:"pushed"`
	Skipped uint64 `json:"skipped"`
	Errors  uint64 `json:"errors"`
}

func NewPoller(src Source, sink Sink, clock simclock.Clock, cfg Config, logger *log.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if clock == nil {
		clock = simclock.System{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Poller{src: src, sink: sink, clock: clock, cfg: cfg, logger: logger}
}

func (p *Poller) Stats() Stats {
	return Stats{
		Polls:   p.polls.Load(),
		Pushed:  p.pushed.Load(),
		Skipped: p.skipped.Load(),
		Errors:  p.errors.Load(),
	}
}

// Run polls until ctx is done. Fetch errors never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one fetch and pushes the result into the sink.
func (p *Poller) Poll(ctx context.Context) {
	p.polls.Add(1)
	batch, err := p.src.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.errCount++
		p.errors.Add(1)
		if p.errCount%10 == 1 {
			p.logger.Printf("chat fetch error (shown every 10 errors) count=%d: %v", p.errCount, err)
		}
		return
	}

	now := p.clock.Now()
	msgs := batch.Messages
	if !p.primed {
		p.primed = true
		if !p.cfg.ReplayHistory && len(msgs) > 0 {
			p.skipped.Add(uint64(len(msgs)))
			p.logger.Printf("chat feed: skipped %d historical messages", len(msgs))
			msgs = nil
		}
	}
	for _, m := range msgs {
		if strings.TrimSpace(m.Author) == "" {
			continue
		}
		p.sink.Push(ingest.FromChatMsg(m, now))
		p.pushed.Add(1)
	}
	if batch.Metrics != nil && (batch.Metrics.Likes != nil || batch.Metrics.Subscribers != nil) {
		p.sink.Push(ingest.FromMetricsMsg(*batch.Metrics, now))
		p.pushed.Add(1)
	}
}
