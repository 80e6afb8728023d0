// Package rewards converts channel metric updates into privileged commands.
package rewards

import (
	"digstream.live/internal/sim/command"
	"digstream.live/internal/sim/ingest"
)

const (
	DefaultTNTPerLike          = 10
	DefaultMaxLikeUnits        = 200
	DefaultMaxSubscriberEvents = 5
)

type Config struct {
	TNTPerLike          int
	MaxLikeUnits        int
	MaxSubscriberEvents int
}

// Tracker remembers the last counters it saw. The first observation of each
// counter only sets the baseline. Likes use a high-water mark so an
// unlike/like cycle is not paid twice; subscribers follow the reported value.
type Tracker struct {
	cfg Config

	likesHigh int64
	haveLikes bool

	subs     int64
	haveSubs bool
}

func New(cfg Config) *Tracker {
	if cfg.TNTPerLike <= 0 {
		cfg.TNTPerLike = DefaultTNTPerLike
	}
	if cfg.MaxLikeUnits <= 0 {
		cfg.MaxLikeUnits = DefaultMaxLikeUnits
	}
	if cfg.MaxSubscriberEvents <= 0 {
		cfg.MaxSubscriberEvents = DefaultMaxSubscriberEvents
	}
	return &Tracker{cfg: cfg}
}

// Observe returns the commands earned since the previous update.
func (t *Tracker) Observe(m ingest.Metrics) []command.Command {
	var out []command.Command

	if m.Likes != nil {
		n := *m.Likes
		switch {
		case !t.haveLikes:
			t.likesHigh, t.haveLikes = n, true
		case n > t.likesHigh:
			// Bound the delta before multiplying; a wrapped subtraction reads
			// as negative and also earns the cap.
			diff := n - t.likesHigh
			units := int64(t.cfg.MaxLikeUnits)
			if diff > 0 && diff <= units/int64(t.cfg.TNTPerLike) {
				units = diff * int64(t.cfg.TNTPerLike)
			}
			t.likesHigh = n
			out = append(out, command.Inject(command.TokenLikeTNT, int(units)))
		}
	}

	if m.Subscribers != nil {
		n := *m.Subscribers
		if t.haveSubs && n > t.subs {
			diff := n - t.subs
			if diff > int64(t.cfg.MaxSubscriberEvents) {
				diff = int64(t.cfg.MaxSubscriberEvents)
			}
			for i := int64(0); i < diff; i++ {
				out = append(out, command.Inject(command.TokenNewSubscriber, 1))
			}
		}
		t.subs, t.haveSubs = n, true
	}
	return out
}

// Baselines reports the counters currently held, for diagnostics.
func (t *Tracker) Baselines() (likes int64, subscribers int64) {
	return t.likesHigh, t.subs
}
