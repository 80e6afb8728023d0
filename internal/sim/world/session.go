package world

import (
	"time"

	"digstream.live/internal/sim/arbiter"
	"digstream.live/internal/sim/catalogs"
	"digstream.live/internal/sim/command"
	"digstream.live/internal/sim/cooldown"
	"digstream.live/internal/sim/ingest"
	"digstream.live/internal/sim/rewards"
	"digstream.live/internal/sim/score"
	"digstream.live/internal/sim/simclock"
)

type SessionConfig struct {
	CooldownWindow time.Duration
	Interpreter    command.Config
	Rewards        rewards.Config

	// ExecCapacity bounds accepted commands waiting for the executor.
	ExecCapacity int
}

// Session is the arbitration context for one livestream. It is built once at
// start and handed to the world loop, which becomes its only user.
type Session struct {
	Clock       simclock.Clock
	Blocks      *catalogs.BlockPoints
	Cooldowns   *cooldown.Ledger
	Scores      *score.Ledger
	Arbiter     *arbiter.Arbiter
	Interpreter *command.Interpreter
	Rewards     *rewards.Tracker

	lastCommandAt time.Time
}

func NewSession(clock simclock.Clock, cats *catalogs.Catalogs, cfg SessionConfig) (*Session, error) {
	if clock == nil {
		clock = simclock.System{}
	}
	if cats == nil {
		cats = catalogs.Defaults()
	}
	interp, err := command.NewInterpreter(cats.Aliases, cfg.Interpreter)
	if err != nil {
		return nil, err
	}
	cd := cooldown.New(clock, cfg.CooldownWindow)
	sc := score.New(clock, cats.Blocks)
	arb := arbiter.New(clock, cd, sc)
	arb.Queue().SetCapacity(cfg.ExecCapacity)
	return &Session{
		Clock:       clock,
		Blocks:      cats.Blocks,
		Cooldowns:   cd,
		Scores:      sc,
		Arbiter:     arb,
		Interpreter: interp,
		Rewards:     rewards.New(cfg.Rewards),
	}, nil
}

// Handle interprets one raw message and arbitrates every command it yields.
// Malformed and unrecognized messages return nil.
func (s *Session) Handle(m ingest.Message) []arbiter.Outcome {
	if !m.Valid() {
		return nil
	}
	var cmds []command.Command
	switch m.Kind {
	case ingest.KindChat:
		cmds = s.Interpreter.Interpret(*m.Chat)
	case ingest.KindMetrics:
		cmds = s.Rewards.Observe(*m.Metrics)
	}
	if len(cmds) == 0 {
		return nil
	}
	out := make([]arbiter.Outcome, 0, len(cmds))
	for _, c := range cmds {
		o := s.Arbiter.Submit(c)
		if o.Accepted() && !c.Token.Privileged() {
			s.lastCommandAt = s.Clock.Now()
		}
		out = append(out, o)
	}
	return out
}

// BlockBroken credits block to the current possessor.
func (s *Session) BlockBroken(block string) (player string, points int) {
	player, ok := s.Scores.CurrentPossessor()
	if !ok {
		return "", 0
	}
	return player, s.Scores.AddScore(block)
}

// ResetForNewGame clears cooldowns and pending executions. Scores and
// possession survive unless clearScores is set.
func (s *Session) ResetForNewGame(clearScores bool) {
	s.Cooldowns.ClearAll()
	s.Arbiter.Queue().Clear()
	if clearScores {
		s.Scores.Reset()
		s.lastCommandAt = time.Time{}
	}
}

type PlayerInfo struct {
	Player string `json:"player"`
	score.PlayerStats
	Cooldowns map[string]float64 `json:"cooldowns"`
}

func (s *Session) PlayerInfo(player string) PlayerInfo {
	return PlayerInfo{
		Player:      player,
		PlayerStats: s.Scores.PlayerStats(player),
		Cooldowns:   s.Cooldowns.Remaining(player),
	}
}

// GameState is a copy of the session view, safe to share across goroutines.
type GameState struct {
	Tick               uint64           `json:"tick"`
	CurrentPossessor   string           `json:"current_possessor,omitempty"`
	PossessionDuration float64          `json:"possession_duration_s"`
	TopPlayers         []score.Standing `json:"top_players"`
	TotalPlayers       int              `json:"total_players"`
	LastCommandAge     float64          `json:"last_command_age_s"`
	PendingExecutions  int              `json:"pending_executions"`
	Actor              ActorView        `json:"actor"`
}

func (s *Session) GameState(top int) GameState {
	possessor, _ := s.Scores.CurrentPossessor()
	gs := GameState{
		CurrentPossessor:   possessor,
		PossessionDuration: s.Scores.CurrentPossessionDuration(),
		TopPlayers:         s.Scores.TopPlayers(top),
		TotalPlayers:       s.Scores.TotalPlayers(),
		LastCommandAge:     -1,
		PendingExecutions:  s.Arbiter.Queue().Len(),
	}
	if !s.lastCommandAt.IsZero() {
		gs.LastCommandAge = simclock.Seconds(s.Clock.Now().Sub(s.lastCommandAt))
	}
	return gs
}
