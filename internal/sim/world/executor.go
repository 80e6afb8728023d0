package world

import (
	"log"
	"sort"
	"time"

	"digstream.live/internal/sim/arbiter"
	"digstream.live/internal/sim/command"
	"digstream.live/internal/sim/simclock"
)

type ExecutorConfig struct {
	Rainbow time.Duration
	Shield  time.Duration
	Freeze  time.Duration
	Big     time.Duration

	SpeedSlow   float64
	SpeedNormal float64
	SpeedFast   float64

	// MoveLimit bounds the actor's horizontal offset in columns.
	MoveLimit int
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Rainbow:     15 * time.Second,
		Shield:      10 * time.Second,
		Freeze:      5 * time.Second,
		Big:         10 * time.Second,
		SpeedSlow:   0.5,
		SpeedNormal: 1,
		SpeedFast:   2,
		MoveLimit:   8,
	}
}

func (c *ExecutorConfig) normalize() {
	d := DefaultExecutorConfig()
	if c.Rainbow <= 0 {
		c.Rainbow = d.Rainbow
	}
	if c.Shield <= 0 {
		c.Shield = d.Shield
	}
	if c.Freeze <= 0 {
		c.Freeze = d.Freeze
	}
	if c.Big <= 0 {
		c.Big = d.Big
	}
	if c.SpeedSlow <= 0 {
		c.SpeedSlow = d.SpeedSlow
	}
	if c.SpeedNormal <= 0 {
		c.SpeedNormal = d.SpeedNormal
	}
	if c.SpeedFast <= 0 {
		c.SpeedFast = d.SpeedFast
	}
	if c.MoveLimit <= 0 {
		c.MoveLimit = d.MoveLimit
	}
}

// Executor applies accepted commands to the actor and reports what the
// renderer should do about it. It never draws anything itself.
type Executor struct {
	cfg    ExecutorConfig
	clock  simclock.Clock
	logger *log.Logger

	speed        float64
	offset       int
	tool         command.Token
	modifiers    map[command.Token]time.Time
	spawned      int
	celebrations int
}

func NewExecutor(cfg ExecutorConfig, clock simclock.Clock, logger *log.Logger) *Executor {
	cfg.normalize()
	if clock == nil {
		clock = simclock.System{}
	}
	return &Executor{
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		speed:     cfg.SpeedNormal,
		tool:      command.TokenPickaxeWood,
		modifiers: map[command.Token]time.Time{},
	}
}

type applyFn func(e *Executor, en arbiter.Entry, now time.Time) []Intent

var applyTable = map[command.Token]applyFn{
	command.TokenTNT:          (*Executor).applySpawn,
	command.TokenSuperchatTNT: (*Executor).applySpawn,
	command.TokenLikeTNT:      (*Executor).applySpawn,

	command.TokenFast:   (*Executor).applySpeed,
	command.TokenSlow:   (*Executor).applySpeed,
	command.TokenNormal: (*Executor).applySpeed,

	command.TokenBig:     (*Executor).applyModifier,
	command.TokenRainbow: (*Executor).applyModifier,
	command.TokenShield:  (*Executor).applyModifier,
	command.TokenFreeze:  (*Executor).applyModifier,

	command.TokenLeft:  (*Executor).applyMove,
	command.TokenRight: (*Executor).applyMove,

	command.TokenPickaxeWood:      (*Executor).applyTool,
	command.TokenPickaxeStone:     (*Executor).applyTool,
	command.TokenPickaxeIron:      (*Executor).applyTool,
	command.TokenPickaxeGold:      (*Executor).applyTool,
	command.TokenPickaxeDiamond:   (*Executor).applyTool,
	command.TokenPickaxeNetherite: (*Executor).applyTool,

	command.TokenNewMember:     (*Executor).applyCelebrate,
	command.TokenNewSubscriber: (*Executor).applyCelebrate,
}

// Apply dispatches one entry. Unknown tokens are logged and dropped.
func (e *Executor) Apply(en arbiter.Entry) []Intent {
	fn, ok := applyTable[en.Command.Token]
	if !ok {
		if e.logger != nil {
			e.logger.Printf("executor: dropping unknown token %q from %q", en.Command.Token, en.Author)
		}
		return nil
	}
	return fn(e, en, e.clock.Now())
}

func (e *Executor) applySpawn(en arbiter.Entry, now time.Time) []Intent {
	units := en.Command.Units
	if units < 1 {
		units = 1
	}
	e.spawned += units
	return []Intent{{Op: IntentSpawn, Token: en.Command.Token, Author: en.Author, Units: units, At: now}}
}

func (e *Executor) applySpeed(en arbiter.Entry, now time.Time) []Intent {
	switch en.Command.Token {
	case command.TokenFast:
		e.speed = e.cfg.SpeedFast
	case command.TokenSlow:
		e.speed = e.cfg.SpeedSlow
	default:
		e.speed = e.cfg.SpeedNormal
	}
	return []Intent{{Op: IntentSpeed, Token: en.Command.Token, Author: en.Author, Speed: e.speed, At: now}}
}

func (e *Executor) modifierDuration(t command.Token) time.Duration {
	switch t {
	case command.TokenRainbow:
		return e.cfg.Rainbow
	case command.TokenShield:
		return e.cfg.Shield
	case command.TokenFreeze:
		return e.cfg.Freeze
	case command.TokenBig:
		return e.cfg.Big
	}
	return 0
}

// applyModifier refreshes the expiry. It never shortens a running modifier.
func (e *Executor) applyModifier(en arbiter.Entry, now time.Time) []Intent {
	until := now.Add(e.modifierDuration(en.Command.Token))
	if cur, ok := e.modifiers[en.Command.Token]; ok && cur.After(until) {
		until = cur
	}
	e.modifiers[en.Command.Token] = until
	return []Intent{{Op: IntentModifier, Token: en.Command.Token, Author: en.Author, At: now, Until: until}}
}

func (e *Executor) applyMove(en arbiter.Entry, now time.Time) []Intent {
	steps := en.Command.Repeat
	if steps < 1 {
		steps = 1
	}
	if en.Command.Token == command.TokenLeft {
		steps = -steps
	}
	next := e.offset + steps
	if next > e.cfg.MoveLimit {
		next = e.cfg.MoveLimit
	}
	if next < -e.cfg.MoveLimit {
		next = -e.cfg.MoveLimit
	}
	moved := next - e.offset
	e.offset = next
	if moved == 0 {
		return nil
	}
	return []Intent{{Op: IntentMove, Token: en.Command.Token, Author: en.Author, Steps: moved, At: now}}
}

func (e *Executor) applyTool(en arbiter.Entry, now time.Time) []Intent {
	e.tool = en.Command.Token
	return []Intent{{Op: IntentTool, Token: en.Command.Token, Author: en.Author, Tool: string(en.Command.Token), At: now}}
}

func (e *Executor) applyCelebrate(en arbiter.Entry, now time.Time) []Intent {
	e.celebrations++
	return []Intent{{Op: IntentCelebrate, Token: en.Command.Token, Author: en.Author, At: now}}
}

// Expire removes modifiers whose time is up, in token order.
func (e *Executor) Expire() []Intent {
	if len(e.modifiers) == 0 {
		return nil
	}
	now := e.clock.Now()
	var done []command.Token
	for t, until := range e.modifiers {
		if !now.Before(until) {
			done = append(done, t)
		}
	}
	sort.Slice(done, func(i, j int) bool { return done[i] < done[j] })
	out := make([]Intent, 0, len(done))
	for _, t := range done {
		delete(e.modifiers, t)
		out = append(out, Intent{Op: IntentExpire, Token: t, At: now})
	}
	return out
}

// ActorView is a read-only copy of the actor state.
type ActorView struct {
	Speed        float64            `json:"speed"`
	Offset       int                `json:"offset"`
	Tool         string             `json:"tool"`
	Modifiers    map[string]float64 `json:"modifiers,omitempty"` // seconds left
	Spawned      int                `json:"spawned"`
	Celebrations int                `json:"celebrations"`
}

func (e *Executor) View() ActorView {
	v := ActorView{
		Speed:        e.speed,
		Offset:       e.offset,
		Tool:         string(e.tool),
		Spawned:      e.spawned,
		Celebrations: e.celebrations,
	}
	if len(e.modifiers) > 0 {
		now := e.clock.Now()
		v.Modifiers = make(map[string]float64, len(e.modifiers))
		for t, until := range e.modifiers {
			v.Modifiers[string(t)] = simclock.Seconds(until.Sub(now))
		}
	}
	return v
}
