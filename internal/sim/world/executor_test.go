package world

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"digstream.live/internal/sim/arbiter"
	"digstream.live/internal/sim/command"
	"digstream.live/internal/sim/simclock"
)

func entry(tok command.Token, mut ...func(*command.Command)) arbiter.Entry {
	c := command.Command{Author: "alice", Token: tok}
	for _, m := range mut {
		m(&c)
	}
	return arbiter.Entry{Author: c.Author, Command: c}
}

func TestExecutor_ModifierLifecycle(t *testing.T) {
	clk := simclock.NewManual(time.Unix(1000, 0))
	e := NewExecutor(ExecutorConfig{}, clk, nil)

	in := e.Apply(entry(command.TokenRainbow))
	if len(in) != 1 || in[0].Op != IntentModifier || !in[0].Until.Equal(time.Unix(1015, 0)) {
		t.Fatalf("intent=%+v", in)
	}
	e.Apply(entry(command.TokenFreeze))

	clk.Advance(5 * time.Second)
	exp := e.Expire()
	if len(exp) != 1 || exp[0].Token != command.TokenFreeze || exp[0].Op != IntentExpire {
		t.Fatalf("expired=%+v", exp)
	}
	if _, ok := e.View().Modifiers["rainbow"]; !ok {
		t.Fatalf("rainbow should still run")
	}

	// Re-applying refreshes from now and never shortens.
	e.Apply(entry(command.TokenRainbow))
	if got := e.View().Modifiers["rainbow"]; got != 15 {
		t.Fatalf("rainbow remaining=%v want=15", got)
	}
	clk.Advance(15 * time.Second)
	if exp := e.Expire(); len(exp) != 1 || exp[0].Token != command.TokenRainbow {
		t.Fatalf("expired=%+v", exp)
	}
}

func TestExecutor_SpeedToolAndSpawn(t *testing.T) {
	clk := simclock.NewManual(time.Unix(0, 0))
	e := NewExecutor(ExecutorConfig{}, clk, nil)

	e.Apply(entry(command.TokenFast))
	if e.View().Speed != 2 {
		t.Fatalf("speed=%v want=2", e.View().Speed)
	}
	e.Apply(entry(command.TokenSlow))
	e.Apply(entry(command.TokenSlow))
	if e.View().Speed != 0.5 {
		t.Fatalf("speed=%v want=0.5", e.View().Speed)
	}
	e.Apply(entry(command.TokenNormal))
	if e.View().Speed != 1 {
		t.Fatalf("speed=%v want=1", e.View().Speed)
	}

	e.Apply(entry(command.TokenPickaxeDiamond))
	if e.View().Tool != "pickaxe_diamond" {
		t.Fatalf("tool=%s", e.View().Tool)
	}

	in := e.Apply(entry(command.TokenSuperchatTNT, func(c *command.Command) { c.Units = 7 }))
	if len(in) != 1 || in[0].Op != IntentSpawn || in[0].Units != 7 {
		t.Fatalf("spawn=%+v", in)
	}
	e.Apply(entry(command.TokenTNT))
	if e.View().Spawned != 8 {
		t.Fatalf("spawned=%d want=8", e.View().Spawned)
	}
}

func TestExecutor_MoveClamps(t *testing.T) {
	e := NewExecutor(ExecutorConfig{MoveLimit: 4}, simclock.NewManual(time.Unix(0, 0)), nil)
	right3 := func(c *command.Command) { c.Repeat = 3 }
	in := e.Apply(entry(command.TokenRight, right3))
	if len(in) != 1 || in[0].Steps != 3 {
		t.Fatalf("move=%+v", in)
	}
	in = e.Apply(entry(command.TokenRight, right3))
	if len(in) != 1 || in[0].Steps != 1 || e.View().Offset != 4 {
		t.Fatalf("move=%+v offset=%d", in, e.View().Offset)
	}
	if in := e.Apply(entry(command.TokenRight)); in != nil {
		t.Fatalf("move at the wall must be a no-op: %+v", in)
	}
	e.Apply(entry(command.TokenLeft, right3))
	if e.View().Offset != 1 {
		t.Fatalf("offset=%d want=1", e.View().Offset)
	}
}

func TestExecutor_UnknownTokenLoggedAndDropped(t *testing.T) {
	var buf bytes.Buffer
	e := NewExecutor(ExecutorConfig{}, simclock.NewManual(time.Unix(0, 0)), log.New(&buf, "", 0))
	if in := e.Apply(entry(command.Token("nuke"))); in != nil {
		t.Fatalf("intents=%+v", in)
	}
	if !strings.Contains(buf.String(), "nuke") {
		t.Fatalf("log=%q", buf.String())
	}
}

func TestExecutor_EveryTokenHasHandler(t *testing.T) {
	for _, tok := range command.AllTokens() {
		if _, ok := applyTable[tok]; !ok {
			t.Fatalf("token %q has no apply function", tok)
		}
	}
}
