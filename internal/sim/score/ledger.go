// Package score tracks who holds possession of the shared actor and credits
// every scoring event to that player.
package score

import (
	"sort"
	"time"

	"digstream.live/internal/sim/catalogs"
	"digstream.live/internal/sim/simclock"
)

// HistoryEntry is recorded when possession is taken away from Player.
type HistoryEntry struct {
	Player   string  `json:"player"`
	Duration float64 `json:"duration_s"`
	Score    int     `json:"score"`
}

type Standing struct {
	Player       string `json:"player"`
	Score        int    `json:"score"`
	BlocksBroken int    `json:"blocks_broken"`
}

type PlayerStats struct {
	Score                 int     `json:"score"`
	BlocksBroken          int     `json:"blocks_broken"`
	IsCurrentPossessor    bool    `json:"is_current_possessor"`
	AveragePointsPerBlock float64 `json:"average_points_per_block"`
}

// Ledger is owned by the arbitration goroutine. Readers on other goroutines
// must use Snapshot.
type Ledger struct {
	clock  simclock.Clock
	points *catalogs.BlockPoints

	possessor    string
	hasPossessor bool
	start        time.Time

	scores  map[string]int
	blocks  map[string]int
	order   []string // first-possession order, used for stable ties
	history []HistoryEntry
}

func New(clock simclock.Clock, points *catalogs.BlockPoints) *Ledger {
	if clock == nil {
		clock = simclock.System{}
	}
	if points == nil {
		points = catalogs.DefaultBlockPoints()
	}
	return &Ledger{
		clock:  clock,
		points: points,
		scores: map[string]int{},
		blocks: map[string]int{},
	}
}

// CurrentPossessor returns the holder, or ("", false) when nobody holds possession.
func (l *Ledger) CurrentPossessor() (string, bool) {
	return l.possessor, l.hasPossessor
}

// TakePossession hands possession to player. Re-taking by the current holder
// is a no-op and does not reset the possession timer. It reports whether the
// holder changed.
func (l *Ledger) TakePossession(player string) bool {
	if l.hasPossessor && l.possessor == player {
		return false
	}
	now := l.clock.Now()
	if l.hasPossessor {
		l.history = append(l.history, HistoryEntry{
			Player:   l.possessor,
			Duration: simclock.Seconds(now.Sub(l.start)),
			Score:    l.scores[l.possessor],
		})
	}
	l.possessor = player
	l.hasPossessor = true
	l.start = now
	if _, ok := l.scores[player]; !ok {
		l.scores[player] = 0
		l.blocks[player] = 0
		l.order = append(l.order, player)
	}
	return true
}

// AddScore credits block to the current possessor and returns the points
// awarded. With no possessor it awards 0 and changes nothing.
func (l *Ledger) AddScore(block string) int {
	if !l.hasPossessor {
		return 0
	}
	pts := l.points.Points(block)
	l.scores[l.possessor] += pts
	l.blocks[l.possessor]++
	return pts
}

func (l *Ledger) CurrentPossessionDuration() float64 {
	if !l.hasPossessor {
		return 0
	}
	return simclock.Seconds(l.clock.Now().Sub(l.start))
}

func (l *Ledger) Score(player string) int { return l.scores[player] }

// TopPlayers returns up to n standings by descending score. Equal scores keep
// the order in which players first took possession.
func (l *Ledger) TopPlayers(n int) []Standing {
	all := make([]Standing, 0, len(l.order))
	for _, p := range l.order {
		all = append(all, Standing{Player: p, Score: l.scores[p], BlocksBroken: l.blocks[p]})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

func (l *Ledger) PlayerStats(player string) PlayerStats {
	score := l.scores[player]
	blocks := l.blocks[player]
	div := blocks
	if div < 1 {
		div = 1
	}
	return PlayerStats{
		Score:                 score,
		BlocksBroken:          blocks,
		IsCurrentPossessor:    l.hasPossessor && l.possessor == player,
		AveragePointsPerBlock: float64(score) / float64(div),
	}
}

func (l *Ledger) TotalPlayers() int { return len(l.order) }

// History returns a copy of the hand-off log.
func (l *Ledger) History() []HistoryEntry {
	out := make([]HistoryEntry, len(l.history))
	copy(out, l.history)
	return out
}

// Reset clears possession, scores and history.
func (l *Ledger) Reset() {
	l.possessor = ""
	l.hasPossessor = false
	l.start = time.Time{}
	l.scores = map[string]int{}
	l.blocks = map[string]int{}
	l.order = nil
	l.history = nil
}

// Snapshot is a deep copy safe to hand to other goroutines.
type Snapshot struct {
	Possessor          string         `json:"possessor,omitempty"`
	PossessionDuration float64        `json:"possession_duration_s"`
	Standings          []Standing     `json:"standings"`
	History            []HistoryEntry `json:"history"`
}

func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Possessor:          l.possessor,
		PossessionDuration: l.CurrentPossessionDuration(),
		Standings:          l.TopPlayers(-1),
		History:            l.History(),
	}
}
