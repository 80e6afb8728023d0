package protocol_test

import (
	"encoding/json"
	"testing"

	"digstream.live/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	ok := map[string]string{
		protocol.TypeChat:        `{"type":"CHAT","protocol_version":"1.0","author":"alice","message":"tnt pls"}`,
		protocol.TypeMetrics:     `{"type":"METRICS","protocol_version":"1.0","likes":12}`,
		protocol.TypeBlockBroken: `{"type":"BLOCK_BROKEN","protocol_version":"1.0","block":"diamond_ore"}`,
	}
	for typ, raw := range ok {
		if err := v.Validate(typ, []byte(raw)); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
	}

	bad := map[string]string{
		protocol.TypeChat:        `{"type":"CHAT","protocol_version":"1.0","author":"","message":"tnt"}`,
		protocol.TypeMetrics:     `{"type":"METRICS","protocol_version":"1.0"}`,
		protocol.TypeBlockBroken: `{"type":"BLOCK_BROKEN","protocol_version":"1.0","block":"x","extra":1}`,
	}
	for typ, raw := range bad {
		if err := v.Validate(typ, []byte(raw)); err == nil {
			t.Fatalf("%s: expected validation error for %s", typ, raw)
		}
	}
	if err := v.Validate("NOPE", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestSchemas_EventRoundTrip(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	ev := protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		ID:              "e1",
		Tick:            7,
		Kind:            protocol.EventIntent,
		Author:          "bob",
		Token:           "rainbow",
		Intent:          &protocol.Intent{Op: "MODIFIER", Token: "rainbow", AtMS: 1000, UntilMS: 16000},
	}
	b, _ := json.Marshal(ev)
	if err := v.Validate(protocol.TypeEvent, b); err != nil {
		t.Fatalf("event: %v\n%s", err, b)
	}

	lb := protocol.EventMsg{
		Type: protocol.TypeEvent, ProtocolVersion: protocol.Version, ID: "e2", Kind: protocol.EventLeaderboard,
		Leaderboard: []protocol.Standing{{Player: "a", Score: 3, BlocksBroken: 2}},
	}
	b, _ = json.Marshal(lb)
	if err := v.Validate(protocol.TypeEvent, b); err != nil {
		t.Fatalf("leaderboard: %v\n%s", err, b)
	}
}

func TestDecodeBase(t *testing.T) {
	b, err := protocol.DecodeBase([]byte(`{"type":"CHAT","protocol_version":"1.0","author":"x"}`))
	if err != nil || b.Type != protocol.TypeChat || b.ProtocolVersion != "1.0" {
		t.Fatalf("base=%+v err=%v", b, err)
	}
}
