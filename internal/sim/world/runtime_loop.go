package world

import (
	"context"
	"time"

	"digstream.live/internal/sim/ingest"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingBreaks []string
	var pendingReset []adminResetReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case b := <-w.blockBroken:
			pendingBreaks = append(pendingBreaks, b)
		case req := <-w.adminReset:
			pendingReset = append(pendingReset, req)
		case req := <-w.playerInfoReq:
			w.handlePlayerInfoReq(req)
		case <-ticker.C:
			msgs := w.queue.PopN(w.cfg.CommandsPerTick)
			w.step(msgs, pendingBreaks, w.takeReset(pendingReset))
			w.answerResetRequests(pendingReset)
			pendingBreaks = pendingBreaks[:0]
			pendingReset = pendingReset[:0]
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(msgs []ingest.Message, breaks []string, reset *RecordedReset) (tick uint64, digest string) {
	tick = w.tick.Load()
	digest = w.step(msgs, breaks, reset)
	return tick, digest
}
