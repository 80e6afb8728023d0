// Package cooldown implements the per-(player, command) rate limiter.
//
// A Ledger stores at most one last-use stamp per (player, bucket). A new use
// overwrites the old stamp. Stamps are never required to be deleted: once the
// window has elapsed they are indistinguishable from "never used".
package cooldown

import (
	"sort"
	"time"

	"digstream.live/internal/sim/simclock"
)

const DefaultWindow = 60 * time.Second

// Ledger is owned by the single arbitration goroutine and is not safe for
// concurrent use.
type Ledger struct {
	clock  simclock.Clock
	window time.Duration

	lastUse map[string]map[string]time.Time
}

func New(clock simclock.Clock, window time.Duration) *Ledger {
	if clock == nil {
		clock = simclock.System{}
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ledger{
		clock:   clock,
		window:  window,
		lastUse: map[string]map[string]time.Time{},
	}
}

func (l *Ledger) Window() time.Duration { return l.window }

// CanUse reports whether player may use bucket now, and if not, how many
// seconds remain until the window elapses.
func (l *Ledger) CanUse(player, bucket string) (bool, float64) {
	last, ok := l.lastUse[player][bucket]
	if !ok {
		return true, 0
	}
	elapsed := l.clock.Now().Sub(last)
	if elapsed >= l.window {
		return true, 0
	}
	return false, simclock.Seconds(l.window - elapsed)
}

// RecordUse unconditionally stamps now for (player, bucket).
func (l *Ledger) RecordUse(player, bucket string) {
	m := l.lastUse[player]
	if m == nil {
		m = map[string]time.Time{}
		l.lastUse[player] = m
	}
	m[bucket] = l.clock.Now()
}

// Remaining returns the seconds left for every bucket still cooling down for player.
func (l *Ledger) Remaining(player string) map[string]float64 {
	out := map[string]float64{}
	now := l.clock.Now()
	for bucket, last := range l.lastUse[player] {
		if elapsed := now.Sub(last); elapsed < l.window {
			out[bucket] = simclock.Seconds(l.window - elapsed)
		}
	}
	return out
}

// ClearAll forgets every stamp. Used on session restart.
func (l *Ledger) ClearAll() {
	l.lastUse = map[string]map[string]time.Time{}
}

// Sweep drops stamps whose window has elapsed and returns how many were removed.
// It never changes the answer of CanUse.
func (l *Ledger) Sweep() int {
	now := l.clock.Now()
	removed := 0
	for player, m := range l.lastUse {
		for bucket, last := range m {
			if now.Sub(last) >= l.window {
				delete(m, bucket)
				removed++
			}
		}
		if len(m) == 0 {
			delete(l.lastUse, player)
		}
	}
	return removed
}

// Players lists players with at least one stamp, sorted.
func (l *Ledger) Players() []string {
	out := make([]string, 0, len(l.lastUse))
	for p := range l.lastUse {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Each calls fn for every stamp in (player, bucket) order.
func (l *Ledger) Each(fn func(player, bucket string, last time.Time)) {
	for _, p := range l.Players() {
		m := l.lastUse[p]
		buckets := make([]string, 0, len(m))
		for b := range m {
			buckets = append(buckets, b)
		}
		sort.Strings(buckets)
		for _, b := range buckets {
			fn(p, b, m[b])
		}
	}
}
