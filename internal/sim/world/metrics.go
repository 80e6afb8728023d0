package world

// Totals are monotonic counters since process start.
type Totals struct {
	Accepted    uint64 `json:"accepted"`
	Rejected    uint64 `json:"rejected"`
	Handoffs    uint64 `json:"handoffs"`
	Executed    uint64 `json:"executed"`
	ScoreEvents uint64 `json:"score_events"`
	Intents     uint64 `json:"intents"`
}

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players    int    `json:"players"`
	ResetTotal uint64 `json:"reset_total"`

	QueueDepths QueueDepths `json:"queue_depths"`

	IngestDropped      uint64 `json:"ingest_dropped"`
	ExecDropped        uint64 `json:"exec_dropped"`
	BlockBrokenDropped uint64 `json:"block_broken_dropped"`

	StepMS float64 `json:"step_ms"`

	Totals Totals `json:"totals"`

	StatsWindowTicks uint64      `json:"stats_window_ticks"`
	StatsWindow      StatsBucket `json:"stats_window"`
}

type QueueDepths struct {
	Ingest      int `json:"ingest"`
	Exec        int `json:"exec"`
	BlockBroken int `json:"block_broken"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

// GameState returns the state published at the end of the last tick.
func (w *World) GameState() GameState {
	if w == nil {
		return GameState{}
	}
	gs, _ := w.state.Load().(GameState)
	return gs
}

// publish copies session state for readers on other goroutines.
func (w *World) publish(nowTick uint64, stepMS float64) {
	gs := w.session.GameState(w.cfg.LeaderboardSize)
	gs.Tick = nowTick
	gs.Actor = w.exec.View()
	w.state.Store(gs)

	w.metrics.Store(WorldMetrics{
		Tick:       nowTick,
		Players:    gs.TotalPlayers,
		ResetTotal: w.resetTotal.Load(),
		QueueDepths: QueueDepths{
			Ingest:      w.queue.Len(),
			Exec:        gs.PendingExecutions,
			BlockBroken: len(w.blockBroken),
		},
		IngestDropped:      w.queue.Dropped(),
		ExecDropped:        w.session.Arbiter.Queue().Dropped(),
		BlockBrokenDropped: w.breakDrops.Load(),
		StepMS:             stepMS,
		Totals:             w.totals,
		StatsWindowTicks:   w.stats.WindowTicks(),
		StatsWindow:        w.stats.Summarize(nowTick),
	})
}
