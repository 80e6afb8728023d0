package tuning

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override key.
const EnvPrefix = "DIG_"

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz      int `yaml:"tick_rate_hz" env:"TICK_RATE_HZ"`
	CommandsPerTick int `yaml:"commands_per_tick" env:"COMMANDS_PER_TICK"`

	CooldownWindowSeconds float64 `yaml:"cooldown_window_seconds" env:"COOLDOWN_WINDOW_SECONDS"`
	IngestCapacity        int     `yaml:"ingest_capacity" env:"INGEST_CAPACITY"`
	// ExecCapacity bounds accepted commands awaiting execution; 0 follows
	// IngestCapacity.
	ExecCapacity int `yaml:"exec_capacity" env:"EXEC_CAPACITY"`

	LeaderboardSize       int `yaml:"leaderboard_size" env:"LEADERBOARD_SIZE"`
	LeaderboardEveryTicks int `yaml:"leaderboard_every_ticks" env:"LEADERBOARD_EVERY_TICKS"`
	SweepEveryTicks       int `yaml:"sweep_every_ticks" env:"SWEEP_EVERY_TICKS"`
	StatsBucketTicks      int `yaml:"stats_bucket_ticks" env:"STATS_BUCKET_TICKS"`
	StatsWindowTicks      int `yaml:"stats_window_ticks" env:"STATS_WINDOW_TICKS"`
	MoveLimit             int `yaml:"move_limit" env:"MOVE_LIMIT"`

	Effects   Effects   `yaml:"effects" envPrefix:"EFFECT_"`
	Speed     Speed     `yaml:"speed" envPrefix:"SPEED_"`
	Superchat Superchat `yaml:"superchat" envPrefix:"SUPERCHAT_"`
	Rewards   Rewards   `yaml:"rewards" envPrefix:"REWARD_"`
	Feed      Feed      `yaml:"feed" envPrefix:"FEED_"`
}

type Effects struct {
	RainbowSeconds float64 `yaml:"rainbow_seconds" env:"RAINBOW_SECONDS"`
	ShieldSeconds  float64 `yaml:"shield_seconds" env:"SHIELD_SECONDS"`
	FreezeSeconds  float64 `yaml:"freeze_seconds" env:"FREEZE_SECONDS"`
	BigSeconds     float64 `yaml:"big_seconds" env:"BIG_SECONDS"`
}

type Speed struct {
	Slow   float64 `yaml:"slow" env:"SLOW"`
	Normal float64 `yaml:"normal" env:"NORMAL"`
	Fast   float64 `yaml:"fast" env:"FAST"`
}

type Superchat struct {
	UnitPrice float64 `yaml:"unit_price" env:"UNIT_PRICE"`
	MaxUnits  int     `yaml:"max_units" env:"MAX_UNITS"`
}

type Rewards struct {
	TNTPerLike          int `yaml:"tnt_per_like" env:"TNT_PER_LIKE"`
	MaxLikeUnits        int `yaml:"max_like_units" env:"MAX_LIKE_UNITS"`
	MaxSubscriberEvents int `yaml:"max_subscriber_events" env:"MAX_SUBSCRIBER_EVENTS"`
}

type Feed struct {
	PollIntervalMs int `yaml:"poll_interval_ms" env:"POLL_INTERVAL_MS"`
	FetchTimeoutMs int `yaml:"fetch_timeout_ms" env:"FETCH_TIMEOUT_MS"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:       "1.0",
		TickRateHz:            20,
		CommandsPerTick:       1,
		CooldownWindowSeconds: 60,
		IngestCapacity:        10_000,
		LeaderboardSize:       10,
		LeaderboardEveryTicks: 20,
		SweepEveryTicks:       1200,
		StatsBucketTicks:      200,
		StatsWindowTicks:      1200,
		MoveLimit:             8,
		Effects: Effects{
			RainbowSeconds: 15,
			ShieldSeconds:  10,
			FreezeSeconds:  5,
			BigSeconds:     10,
		},
		Speed:     Speed{Slow: 0.5, Normal: 1, Fast: 2},
		Superchat: Superchat{UnitPrice: 1, MaxUnits: 50},
		Rewards:   Rewards{TNTPerLike: 10, MaxLikeUnits: 200, MaxSubscriberEvents: 5},
		Feed:      Feed{PollIntervalMs: 500, FetchTimeoutMs: 5000},
	}
}

// Load reads path on top of Defaults. Keys absent from the file keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, t.Validate()
}

// ApplyEnv overrides fields from DIG_* environment variables. A nil environ
// reads the process environment.
func ApplyEnv(t *Tuning, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(t, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return t.Validate()
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0 || t.TickRateHz > 240:
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	case t.CommandsPerTick <= 0:
		return fmt.Errorf("commands_per_tick must be positive: %d", t.CommandsPerTick)
	case t.CooldownWindowSeconds < 0:
		return fmt.Errorf("cooldown_window_seconds must not be negative: %v", t.CooldownWindowSeconds)
	case t.IngestCapacity <= 0:
		return fmt.Errorf("ingest_capacity must be positive: %d", t.IngestCapacity)
	case t.ExecCapacity < 0:
		return fmt.Errorf("exec_capacity must not be negative: %d", t.ExecCapacity)
	case t.Superchat.UnitPrice <= 0:
		return fmt.Errorf("superchat.unit_price must be positive: %v", t.Superchat.UnitPrice)
	}
	return nil
}

// ExecLimit is the effective exec queue capacity.
func (t Tuning) ExecLimit() int {
	if t.ExecCapacity > 0 {
		return t.ExecCapacity
	}
	return t.IngestCapacity
}
