package command

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"digstream.live/internal/sim/catalogs"
	"digstream.live/internal/sim/ingest"
)

const (
	DefaultSuperchatUnitPrice = 1.0
	DefaultSuperchatMaxUnits  = 50
	MaxRepeat                 = 3
)

var memberPhrases = []string{"became a member", "joined as a member", "is now a member", "new member"}

type Config struct {
	// SuperchatUnitPrice is the paid amount that buys one spawn unit.
	SuperchatUnitPrice float64
	SuperchatMaxUnits  int
}

type alias struct {
	token    Token
	patterns []string
}

// Interpreter maps chat lines to tokens. It holds no per-message state and
// is safe for concurrent use.
type Interpreter struct {
	cfg     Config
	aliases []alias
}

// NewInterpreter validates the alias table against the closed token set.
func NewInterpreter(table catalogs.AliasCatalog, cfg Config) (*Interpreter, error) {
	if cfg.SuperchatUnitPrice <= 0 {
		cfg.SuperchatUnitPrice = DefaultSuperchatUnitPrice
	}
	if cfg.SuperchatMaxUnits <= 0 {
		cfg.SuperchatMaxUnits = DefaultSuperchatMaxUnits
	}
	in := &Interpreter{cfg: cfg}
	for name, pats := range table.ByToken {
		tok, ok := ParseToken(name)
		if !ok {
			return nil, fmt.Errorf("unknown command token %q", name)
		}
		if !tok.Aliasable() {
			return nil, fmt.Errorf("command token %q cannot be aliased", name)
		}
		ps := make([]string, 0, len(pats))
		for _, p := range pats {
			if p = Normalize(p); p != "" {
				ps = append(ps, p)
			}
		}
		if len(ps) == 0 {
			continue
		}
		in.aliases = append(in.aliases, alias{token: tok, patterns: ps})
	}
	sort.Slice(in.aliases, func(i, j int) bool { return in.aliases[i].token.order() < in.aliases[j].token.order() })
	return in, nil
}

// Normalize case-folds and trims s.
func Normalize(s string) string {
	return strings.TrimSpace(cases.Lower(language.Und).String(s))
}

// Interpret returns the commands in c, at most one per token, in canonical
// token order. Lines with an empty author, or an empty unpaid message, yield
// nothing.
func (in *Interpreter) Interpret(c ingest.Chat) []Command {
	author := strings.TrimSpace(c.Author)
	if author == "" {
		return nil
	}
	text := Normalize(c.Text)
	if text == "" && !c.Paid {
		return nil
	}

	var out []Command
	for _, a := range in.aliases {
		for _, p := range a.patterns {
			if strings.Contains(text, p) {
				out = append(out, Command{Author: author, Token: a.token, Units: unitsFor(a.token, 1)})
				break
			}
		}
	}

	var sawNormal, sawLeft, sawRight bool
	for _, w := range words(text) {
		if w == "normal" && !sawNormal {
			sawNormal = true
			out = append(out, Command{Author: author, Token: TokenNormal})
			continue
		}
		dir, rep, ok := parseMove(w)
		if !ok {
			continue
		}
		if (dir == TokenLeft && sawLeft) || (dir == TokenRight && sawRight) {
			continue
		}
		if dir == TokenLeft {
			sawLeft = true
		} else {
			sawRight = true
		}
		out = append(out, Command{Author: author, Token: dir, Repeat: rep})
	}

	// Paid lines yield superchat_tnt in place of any plain tnt hit.
	if c.Paid {
		kept := out[:0]
		for _, cmd := range out {
			if cmd.Token != TokenTNT {
				kept = append(kept, cmd)
			}
		}
		out = append(kept, Command{
			Author:     author,
			Token:      TokenSuperchatTNT,
			Units:      in.superchatUnits(c.PaidAmount),
			PaidAmount: c.PaidAmount,
		})
	}

	for _, p := range memberPhrases {
		if strings.Contains(text, p) {
			out = append(out, Command{Author: author, Token: TokenNewMember})
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Token.order() < out[j].Token.order() })
	return out
}

func (in *Interpreter) superchatUnits(amount float64) int {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 1
	}
	u := math.Floor(amount / in.cfg.SuperchatUnitPrice)
	if u < 1 {
		return 1
	}
	if u > float64(in.cfg.SuperchatMaxUnits) {
		return in.cfg.SuperchatMaxUnits
	}
	return int(u)
}

func unitsFor(t Token, n int) int {
	if t == TokenTNT {
		return n
	}
	return 0
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// parseMove accepts "left", "right" and a single trailing digit such as
// "left2". Digits above MaxRepeat clamp; 0 counts as 1.
func parseMove(w string) (Token, int, bool) {
	var dir Token
	var rest string
	switch {
	case strings.HasPrefix(w, "left"):
		dir, rest = TokenLeft, w[len("left"):]
	case strings.HasPrefix(w, "right"):
		dir, rest = TokenRight, w[len("right"):]
	default:
		return "", 0, false
	}
	if rest == "" {
		return dir, 1, true
	}
	if len(rest) != 1 || rest[0] < '0' || rest[0] > '9' {
		return "", 0, false
	}
	n := int(rest[0] - '0')
	if n < 1 {
		n = 1
	}
	if n > MaxRepeat {
		n = MaxRepeat
	}
	return dir, n, true
}
