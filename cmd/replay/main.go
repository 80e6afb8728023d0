package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	persistlog "digstream.live/internal/persistence/log"
	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/catalogs"
	"digstream.live/internal/sim/ingest"
	"digstream.live/internal/sim/simclock"
	"digstream.live/internal/sim/tuning"
	"digstream.live/internal/sim/world"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory")
		streamID   = flag.String("stream", "main", "stream id")
		dir        = flag.String("dir", "", "stream directory (overrides -data/-stream)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		cooldown   = flag.Float64("cooldown", 0, "cooldown window in seconds; must match the recorded run")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		top        = flag.Int("top", 10, "leaderboard size to print from the audit log (0 to skip)")
	)
	flag.Parse()

	sessionDir := strings.TrimSpace(*dir)
	if sessionDir == "" {
		sessionDir = filepath.Join(*dataDir, "streams", *streamID)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	if err := tuning.ApplyEnv(&tune, nil); err != nil {
		fmt.Fprintln(os.Stderr, "tuning env:", err)
		os.Exit(1)
	}
	if *cooldown > 0 {
		tune.CooldownWindowSeconds = *cooldown
	}

	res, err := replayTicks(sessionDir, *streamID, tune, cats, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks last_tick=%d possessor=%q players=%d\n",
		res.Checked, res.LastTick, res.State.CurrentPossessor, res.State.TotalPlayers)

	if *top > 0 {
		board, err := foldLeaderboard(sessionDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "audit:", err)
			os.Exit(1)
		}
		if len(board) > *top {
			board = board[:*top]
		}
		for i, s := range board {
			fmt.Printf("%2d. %-24s score=%d blocks=%d handoffs=%d\n", i+1, s.Player, s.Score, s.Blocks, s.Handoffs)
		}
	}
}

type replayResult struct {
	Checked  uint64
	LastTick uint64
	State    world.GameState
}

// replayTicks rebuilds the session from the tick log and checks every
// recorded digest. The clock is pinned to each entry's recorded time.
func replayTicks(sessionDir, id string, tune tuning.Tuning, cats *catalogs.Catalogs, toTick uint64) (replayResult, error) {
	var res replayResult

	clock := simclock.NewManual(time.UnixMilli(0))
	wcfg, scfg := world.ConfigFromTuning(id, tune)
	sess, err := world.NewSession(clock, cats, scfg)
	if err != nil {
		return res, err
	}
	w, err := world.New(wcfg, sess, ingest.New(1, nil), log.New(io.Discard, "", 0))
	if err != nil {
		return res, err
	}

	errStop := errors.New("stop")
	err = persistlog.ReadTicks(sessionDir, func(entry world.TickLogEntry) error {
		if toTick != 0 && entry.Tick > toTick {
			return errStop
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}
		at := time.UnixMilli(entry.TimeMS)
		clock.Set(at)

		msgs := make([]ingest.Message, 0, len(entry.Messages))
		for _, rm := range entry.Messages {
			msgs = append(msgs, rm.Message(at))
		}
		tick, digest := w.StepOnce(msgs, entry.Breaks, entry.Reset)
		if digest != entry.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
		}
		res.Checked++
		res.LastTick = tick
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return res, err
	}
	if res.Checked == 0 {
		return res, fmt.Errorf("no tick entries under %s", sessionDir)
	}
	res.State = w.GameState()
	return res, nil
}

type standing struct {
	Player   string
	Score    int
	Blocks   int
	Handoffs int
	first    int
}

// foldLeaderboard rebuilds standings from the audit log alone. Ties keep the
// order in which players first appeared.
func foldLeaderboard(sessionDir string) ([]standing, error) {
	by := map[string]*standing{}
	seen := 0
	get := func(p string) *standing {
		s, ok := by[p]
		if !ok {
			s = &standing{Player: p, first: seen}
			seen++
			by[p] = s
		}
		return s
	}
	err := persistlog.ReadAudits(sessionDir, func(a world.AuditEntry) error {
		switch a.Kind {
		case protocol.EventAccepted:
			if a.Handoff {
				get(a.Actor).Handoffs++
			}
		case protocol.EventScore:
			s := get(a.Actor)
			s.Score = a.Score
			s.Blocks++
		case protocol.EventReset:
			if a.Reason == world.ResetReasonClearScores {
				by = map[string]*standing{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]standing, 0, len(by))
	for _, s := range by {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].first < out[j].first
	})
	return out, nil
}
