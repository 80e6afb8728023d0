package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		dir = filepath.Dir(dir)
	}
	t.Fatalf("repo root not found")
	return ""
}

func TestLoad_RepoTuning(t *testing.T) {
	root := findRepoRoot(t)
	tu, err := Load(filepath.Join(root, "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.CooldownWindowSeconds != 60 {
		t.Fatalf("cooldown=%v want=60", tu.CooldownWindowSeconds)
	}
	if tu.CommandsPerTick != 1 || tu.IngestCapacity != 10000 {
		t.Fatalf("commands_per_tick=%d ingest_capacity=%d", tu.CommandsPerTick, tu.IngestCapacity)
	}
	if tu.Effects.RainbowSeconds != 15 || tu.Effects.FreezeSeconds != 5 {
		t.Fatalf("effects=%+v", tu.Effects)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_rate_hz: 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 30 {
		t.Fatalf("tick_rate_hz=%d want=30", tu.TickRateHz)
	}
	if tu.Speed.Fast != 2 || tu.Superchat.MaxUnits != 50 {
		t.Fatalf("defaults lost: %+v %+v", tu.Speed, tu.Superchat)
	}
}

func TestLoad_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	_ = os.WriteFile(p, []byte("tick_rate_hz: 0\n"), 0o644)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
	_ = os.WriteFile(p, []byte("tick_rate_hz: [\n"), 0o644)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestApplyEnv(t *testing.T) {
	tu := Defaults()
	err := ApplyEnv(&tu, map[string]string{
		"DIG_COOLDOWN_WINDOW_SECONDS":    "30",
		"DIG_EFFECT_SHIELD_SECONDS":      "4.5",
		"DIG_SUPERCHAT_MAX_UNITS":        "7",
		"DIG_FEED_POLL_INTERVAL_MS":      "250",
		"UNRELATED_COOLDOWN_WINDOW_SECS": "1",
	})
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if tu.CooldownWindowSeconds != 30 || tu.Effects.ShieldSeconds != 4.5 || tu.Superchat.MaxUnits != 7 || tu.Feed.PollIntervalMs != 250 {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.TickRateHz != 20 {
		t.Fatalf("unset vars must not change fields: tick_rate_hz=%d", tu.TickRateHz)
	}

	if err := ApplyEnv(&tu, map[string]string{"DIG_TICK_RATE_HZ": "abc"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
