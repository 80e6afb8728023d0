package command

import (
	"reflect"
	"testing"

	"digstream.live/internal/sim/catalogs"
	"digstream.live/internal/sim/ingest"
)

func newTestInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	in, err := NewInterpreter(catalogs.Defaults().Aliases, Config{SuperchatUnitPrice: 2, SuperchatMaxUnits: 10})
	if err != nil {
		t.Fatalf("NewInterpreter: %v", err)
	}
	return in
}

func tokens(cmds []Command) []Token {
	out := make([]Token, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Token)
	}
	return out
}

func TestInterpret_SubstringAliases(t *testing.T) {
	in := newTestInterpreter(t)
	cases := []struct {
		text string
		want []Token
	}{
		{"TNT please", []Token{TokenTNT}},
		{"BOOOM boom", []Token{TokenTNT}},
		{"fast rainbow", []Token{TokenFast, TokenRainbow}},
		{"rainbow fast", []Token{TokenFast, TokenRainbow}},
		{"go golden!", []Token{TokenPickaxeGold}},
		{"hello there", nil},
		{"tnt tnt tnt", []Token{TokenTNT}},
	}
	for _, tc := range cases {
		got := tokens(in.Interpret(ingest.Chat{Author: "alice", Text: tc.text}))
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("text=%q got=%v want=%v", tc.text, got, tc.want)
		}
	}
}

func TestInterpret_Movement(t *testing.T) {
	in := newTestInterpreter(t)
	got := in.Interpret(ingest.Chat{Author: "bob", Text: "LEFT3 then right then left"})
	if len(got) != 2 {
		t.Fatalf("got=%v", got)
	}
	if got[0].Token != TokenLeft || got[0].Repeat != 3 {
		t.Fatalf("left=%+v", got[0])
	}
	if got[1].Token != TokenRight || got[1].Repeat != 1 {
		t.Fatalf("right=%+v", got[1])
	}

	got = in.Interpret(ingest.Chat{Author: "bob", Text: "right9"})
	if len(got) != 1 || got[0].Repeat != MaxRepeat {
		t.Fatalf("clamp got=%v", got)
	}
	if got := in.Interpret(ingest.Chat{Author: "bob", Text: "rightful leftover"}); len(got) != 0 {
		t.Fatalf("non-movement words matched: %v", got)
	}
}

func TestInterpret_Normal(t *testing.T) {
	in := newTestInterpreter(t)
	got := tokens(in.Interpret(ingest.Chat{Author: "c", Text: "back to normal"}))
	if !reflect.DeepEqual(got, []Token{TokenNormal}) {
		t.Fatalf("got=%v", got)
	}
	if got := in.Interpret(ingest.Chat{Author: "c", Text: "abnormal"}); len(got) != 0 {
		t.Fatalf("substring must not trigger normal: %v", got)
	}
}

func TestInterpret_Superchat(t *testing.T) {
	in := newTestInterpreter(t)
	got := in.Interpret(ingest.Chat{Author: "rich", Text: "", Paid: true, PaidAmount: 7.5})
	if len(got) != 1 || got[0].Token != TokenSuperchatTNT {
		t.Fatalf("got=%v", got)
	}
	if got[0].Units != 3 || got[0].PaidAmount != 7.5 {
		t.Fatalf("superchat=%+v want units=3", got[0])
	}
	if got[0].Token.Bucket() != TokenTNT.Bucket() {
		t.Fatalf("superchat bucket=%s want=%s", got[0].Token.Bucket(), TokenTNT.Bucket())
	}

	got = in.Interpret(ingest.Chat{Author: "rich", Text: "tnt", Paid: true, PaidAmount: 1000})
	if !reflect.DeepEqual(tokens(got), []Token{TokenSuperchatTNT}) {
		t.Fatalf("got=%v", got)
	}
	if got[0].Units != 10 {
		t.Fatalf("units=%d want=10 (capped)", got[0].Units)
	}

	got = in.Interpret(ingest.Chat{Author: "fan", Text: "BOOM fast", Paid: true, PaidAmount: 5})
	if !reflect.DeepEqual(tokens(got), []Token{TokenSuperchatTNT, TokenFast}) {
		t.Fatalf("got=%v", got)
	}

	got = in.Interpret(ingest.Chat{Author: "cheap", Paid: true, PaidAmount: 0.5})
	if len(got) != 1 || got[0].Units != 1 {
		t.Fatalf("minimum one unit: %v", got)
	}
}

func TestInterpret_Membership(t *testing.T) {
	in := newTestInterpreter(t)
	got := tokens(in.Interpret(ingest.Chat{Author: "m", Text: "Dana just Became A Member!"}))
	if !reflect.DeepEqual(got, []Token{TokenNewMember}) {
		t.Fatalf("got=%v", got)
	}
}

func TestInterpret_MalformedDropped(t *testing.T) {
	in := newTestInterpreter(t)
	if got := in.Interpret(ingest.Chat{Author: "  ", Text: "tnt"}); got != nil {
		t.Fatalf("empty author got=%v", got)
	}
	if got := in.Interpret(ingest.Chat{Author: "a", Text: "   "}); got != nil {
		t.Fatalf("empty text got=%v", got)
	}
}

func TestNewInterpreter_RejectsUnknownTokens(t *testing.T) {
	if _, err := NewInterpreter(catalogs.AliasCatalog{ByToken: map[string][]string{"nuke": {"nuke"}}}, Config{}); err == nil {
		t.Fatalf("expected error for unknown token")
	}
	if _, err := NewInterpreter(catalogs.AliasCatalog{ByToken: map[string][]string{"like_tnt": {"like"}}}, Config{}); err == nil {
		t.Fatalf("expected error for non-aliasable token")
	}
}

func TestToken_Properties(t *testing.T) {
	for _, tok := range AllTokens() {
		if p, ok := ParseToken(string(tok)); !ok || p != tok {
			t.Fatalf("ParseToken(%q) failed", tok)
		}
	}
	if _, ok := ParseToken("TNT"); ok {
		t.Fatalf("token space is lower case")
	}
	if !TokenLikeTNT.Privileged() || !TokenNewSubscriber.Privileged() || TokenSuperchatTNT.Privileged() {
		t.Fatalf("privileged set mismatch")
	}
	if TokenFast.Bucket() != "fast" {
		t.Fatalf("bucket=%s", TokenFast.Bucket())
	}
}
