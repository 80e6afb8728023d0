package world

import (
	"time"

	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/command"
)

type IntentOp string

const (
	IntentSpawn     IntentOp = "SPAWN"
	IntentModifier  IntentOp = "MODIFIER"
	IntentSpeed     IntentOp = "SPEED"
	IntentMove      IntentOp = "MOVE"
	IntentTool      IntentOp = "TOOL"
	IntentCelebrate IntentOp = "CELEBRATE"
	IntentExpire    IntentOp = "EXPIRE"
)

// Intent is what the renderer should do, and when. Until is zero unless the
// intent has a duration.
type Intent struct {
	Op     IntentOp
	Token  command.Token
	Author string
	Units  int
	Steps  int
	Speed  float64
	Tool   string
	At     time.Time
	Until  time.Time
}

func (in Intent) Wire() *protocol.Intent {
	out := &protocol.Intent{
		Op:     string(in.Op),
		Token:  string(in.Token),
		Author: in.Author,
		Units:  in.Units,
		Steps:  in.Steps,
		Speed:  in.Speed,
		Tool:   in.Tool,
		AtMS:   in.At.UnixMilli(),
	}
	if !in.Until.IsZero() {
		out.UntilMS = in.Until.UnixMilli()
	}
	return out
}
