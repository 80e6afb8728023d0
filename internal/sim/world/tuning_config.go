package world

import (
	"digstream.live/internal/sim/command"
	"digstream.live/internal/sim/rewards"
	"digstream.live/internal/sim/simclock"
	"digstream.live/internal/sim/tuning"
)

// ConfigFromTuning maps the tuning file onto the world and session configs.
// The server and the replay tool both build their worlds through it.
func ConfigFromTuning(id string, t tuning.Tuning) (WorldConfig, SessionConfig) {
	wc := WorldConfig{
		ID:                    id,
		TickRateHz:            t.TickRateHz,
		CommandsPerTick:       t.CommandsPerTick,
		LeaderboardSize:       t.LeaderboardSize,
		LeaderboardEveryTicks: t.LeaderboardEveryTicks,
		SweepEveryTicks:       t.SweepEveryTicks,
		StatsBucketTicks:      t.StatsBucketTicks,
		StatsWindowTicks:      t.StatsWindowTicks,
		Executor: ExecutorConfig{
			Rainbow:     simclock.FromSeconds(t.Effects.RainbowSeconds),
			Shield:      simclock.FromSeconds(t.Effects.ShieldSeconds),
			Freeze:      simclock.FromSeconds(t.Effects.FreezeSeconds),
			Big:         simclock.FromSeconds(t.Effects.BigSeconds),
			SpeedSlow:   t.Speed.Slow,
			SpeedNormal: t.Speed.Normal,
			SpeedFast:   t.Speed.Fast,
			MoveLimit:   t.MoveLimit,
		},
	}
	sc := SessionConfig{
		CooldownWindow: simclock.FromSeconds(t.CooldownWindowSeconds),
		ExecCapacity:   t.ExecLimit(),
		Interpreter: command.Config{
			SuperchatUnitPrice: t.Superchat.UnitPrice,
			SuperchatMaxUnits:  t.Superchat.MaxUnits,
		},
		Rewards: rewards.Config{
			TNTPerLike:          t.Rewards.TNTPerLike,
			MaxLikeUnits:        t.Rewards.MaxLikeUnits,
			MaxSubscriberEvents: t.Rewards.MaxSubscriberEvents,
		},
	}
	return wc, sc
}
