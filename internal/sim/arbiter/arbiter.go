// Package arbiter decides, for every recognized command, whether it is
// accepted and whether it moves possession of the shared actor.
package arbiter

import (
	"digstream.live/internal/sim/command"
	"digstream.live/internal/sim/cooldown"
	"digstream.live/internal/sim/score"
	"digstream.live/internal/sim/simclock"
)

// Arbiter owns no state of its own beyond the exec queue; it is the only
// writer of the cooldown and score ledgers it is given. Not safe for
// concurrent use.
type Arbiter struct {
	clock     simclock.Clock
	cooldowns *cooldown.Ledger
	scores    *score.Ledger
	queue     ExecQueue
}

func New(clock simclock.Clock, cooldowns *cooldown.Ledger, scores *score.Ledger) *Arbiter {
	if clock == nil {
		clock = simclock.System{}
	}
	return &Arbiter{clock: clock, cooldowns: cooldowns, scores: scores}
}

func (a *Arbiter) Queue() *ExecQueue { return &a.queue }

// Submit arbitrates cmd.
//
// A rejection leaves every ledger untouched. An acceptance stamps the
// cooldown bucket, hands possession to the author and enqueues the command.
// Privileged tokens are accepted unconditionally and leave both ledgers
// alone.
func (a *Arbiter) Submit(cmd command.Command) Outcome {
	previous, _ := a.scores.CurrentPossessor()
	out := Outcome{Command: cmd, Previous: previous}

	if !cmd.Token.Valid() {
		out.Status = StatusRejected
		out.Reason = ReasonUnknownToken
		return out
	}
	if cmd.Token.Privileged() {
		out.Status = StatusAccepted
		a.enqueue(cmd, out)
		return out
	}

	bucket := cmd.Token.Bucket()
	if ok, remaining := a.cooldowns.CanUse(cmd.Author, bucket); !ok {
		out.Status = StatusRejected
		out.Reason = ReasonCooldown
		out.Remaining = remaining
		return out
	}

	a.cooldowns.RecordUse(cmd.Author, bucket)
	if a.scores.TakePossession(cmd.Author) {
		out.NewPossessor = cmd.Author
	}
	out.Status = StatusAccepted
	a.enqueue(cmd, out)
	return out
}

func (a *Arbiter) enqueue(cmd command.Command, out Outcome) {
	a.queue.Push(Entry{
		Author:     cmd.Author,
		Command:    cmd,
		Outcome:    out,
		EnqueuedAt: a.clock.Now(),
	})
}
