package world

import (
	"time"

	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/arbiter"
	"digstream.live/internal/sim/ingest"
)

// stepper is implemented by clocks that hold one reading per tick.
type stepper interface {
	Step() time.Time
}

// step runs one tick: reset, block credits, arbitration of the drained
// messages, at most one execution, modifier expiry, then publication.
func (w *World) step(msgs []ingest.Message, breaks []string, reset *RecordedReset) string {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	if st, ok := w.clock.(stepper); ok {
		st.Step()
	}
	now := w.clock.Now()

	if reset != nil {
		w.applyReset(nowTick, *reset)
	}

	// Breaks that arrived since the last tick go to whoever holds possession
	// before this tick's commands can move it.
	for _, b := range breaks {
		w.creditBlock(nowTick, b)
	}

	recorded := make([]RecordedMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.Valid() {
			continue
		}
		recorded = append(recorded, recordMessage(m))
		for _, o := range w.session.Handle(m) {
			w.onOutcome(nowTick, o)
		}
	}

	executed := ""
	if en, ok := w.session.Arbiter.Queue().Pop(); ok {
		executed = string(en.Command.Token)
		w.totals.Executed++
		w.stats.RecordExecuted(nowTick)
		for _, in := range w.exec.Apply(en) {
			w.emitIntent(nowTick, in)
		}
	}
	for _, in := range w.exec.Expire() {
		w.emitIntent(nowTick, in)
	}

	if w.cfg.SweepEveryTicks > 0 && nowTick > 0 && nowTick%uint64(w.cfg.SweepEveryTicks) == 0 {
		w.session.Cooldowns.Sweep()
	}
	if w.leaderDirty && nowTick%uint64(w.cfg.LeaderboardEveryTicks) == 0 {
		w.emitLeaderboard(nowTick)
		w.leaderDirty = false
	}

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		entry := TickLogEntry{
			Tick:     nowTick,
			TimeMS:   now.UnixMilli(),
			Messages: recorded,
			Reset:    reset,
			Executed: executed,
			Digest:   digest,
		}
		if len(breaks) > 0 {
			entry.Breaks = append([]string(nil), breaks...)
		}
		_ = w.tickLogger.WriteTick(entry)
	}

	w.tick.Add(1)
	w.publish(nowTick, float64(time.Since(stepStart).Microseconds())/1000.0)
	return digest
}

func (w *World) onOutcome(nowTick uint64, o arbiter.Outcome) {
	c := o.Command
	if !o.Accepted() {
		w.totals.Rejected++
		w.stats.RecordRejected(nowTick)
		code := protocol.ErrCooldown
		if o.Reason == arbiter.ReasonUnknownToken {
			code = protocol.ErrUnknownCommand
		}
		w.audit(AuditEntry{
			Tick: nowTick, Kind: protocol.EventRejected, Actor: c.Author, Token: string(c.Token),
			Previous: o.Previous, Remaining: o.Remaining, Reason: string(o.Reason),
		})
		w.emit(protocol.EventMsg{
			Tick: nowTick, Kind: protocol.EventRejected, Author: c.Author, Token: string(c.Token),
			Code: code, RemainingSeconds: o.Remaining,
		})
		return
	}

	w.totals.Accepted++
	handoff := o.PossessionChanged()
	if handoff {
		w.totals.Handoffs++
		w.leaderDirty = true
	}
	w.stats.RecordAccepted(nowTick, handoff)
	w.audit(AuditEntry{
		Tick: nowTick, Kind: protocol.EventAccepted, Actor: c.Author, Token: string(c.Token),
		Previous: o.Previous, Handoff: handoff, Score: w.session.Scores.Score(c.Author),
	})
	w.emit(protocol.EventMsg{
		Tick: nowTick, Kind: protocol.EventAccepted, Author: c.Author, Token: string(c.Token),
		PossessionChanged: handoff, Previous: o.Previous,
	})
}

func (w *World) creditBlock(nowTick uint64, block string) {
	player, pts := w.session.BlockBroken(block)
	if pts == 0 {
		return
	}
	w.totals.ScoreEvents++
	w.stats.RecordBlock(nowTick, pts)
	w.leaderDirty = true
	w.audit(AuditEntry{
		Tick: nowTick, Kind: protocol.EventScore, Actor: player, Block: block,
		Points: pts, Score: w.session.Scores.Score(player),
	})
	w.emit(protocol.EventMsg{Tick: nowTick, Kind: protocol.EventScore, Author: player, Block: block, Points: pts})
}

func (w *World) emitIntent(nowTick uint64, in Intent) {
	w.totals.Intents++
	w.emit(protocol.EventMsg{
		Tick: nowTick, Kind: protocol.EventIntent, Author: in.Author, Token: string(in.Token),
		Intent: in.Wire(),
	})
}

func (w *World) emitLeaderboard(nowTick uint64) {
	top := w.session.Scores.TopPlayers(w.cfg.LeaderboardSize)
	lb := make([]protocol.Standing, 0, len(top))
	for _, s := range top {
		lb = append(lb, protocol.Standing{Player: s.Player, Score: s.Score, BlocksBroken: s.BlocksBroken})
	}
	w.emit(protocol.EventMsg{Tick: nowTick, Kind: protocol.EventLeaderboard, Leaderboard: lb})
}

func (w *World) applyReset(nowTick uint64, r RecordedReset) {
	w.session.ResetForNewGame(r.ClearScores)
	w.resetTotal.Add(1)
	w.leaderDirty = true
	w.audit(AuditEntry{Tick: nowTick, Kind: protocol.EventReset, Actor: "SYSTEM", Reason: resetReason(r)})
	w.emit(protocol.EventMsg{Tick: nowTick, Kind: protocol.EventReset})
	w.logger.Printf("session reset tick=%d clear_scores=%v", nowTick, r.ClearScores)
}

const (
	ResetReasonKeepScores  = "ADMIN_RESET"
	ResetReasonClearScores = "ADMIN_RESET_SCORES"
)

func resetReason(r RecordedReset) string {
	if r.ClearScores {
		return ResetReasonClearScores
	}
	return ResetReasonKeepScores
}
