// Package command turns free chat text into the closed set of tokens the
// arbitration core understands. Nothing past this package sees raw text.
package command

type Token string

const (
	TokenTNT          Token = "tnt"
	TokenSuperchatTNT Token = "superchat_tnt"

	TokenFast   Token = "fast"
	TokenSlow   Token = "slow"
	TokenNormal Token = "normal"

	TokenBig     Token = "big"
	TokenRainbow Token = "rainbow"
	TokenShield  Token = "shield"
	TokenFreeze  Token = "freeze"

	TokenLeft  Token = "left"
	TokenRight Token = "right"

	TokenPickaxeWood      Token = "pickaxe_wood"
	TokenPickaxeStone     Token = "pickaxe_stone"
	TokenPickaxeIron      Token = "pickaxe_iron"
	TokenPickaxeGold      Token = "pickaxe_gold"
	TokenPickaxeDiamond   Token = "pickaxe_diamond"
	TokenPickaxeNetherite Token = "pickaxe_netherite"

	TokenNewMember Token = "new_member"

	// Injected from channel metrics, never from chat text.
	TokenNewSubscriber Token = "new_subscriber"
	TokenLikeTNT       Token = "like_tnt"
)

var allTokens = []Token{
	TokenTNT, TokenSuperchatTNT,
	TokenFast, TokenSlow, TokenNormal,
	TokenBig, TokenRainbow, TokenShield, TokenFreeze,
	TokenLeft, TokenRight,
	TokenPickaxeWood, TokenPickaxeStone, TokenPickaxeIron, TokenPickaxeGold, TokenPickaxeDiamond, TokenPickaxeNetherite,
	TokenNewMember,
	TokenNewSubscriber, TokenLikeTNT,
}

var tokenIndex = func() map[Token]int {
	m := make(map[Token]int, len(allTokens))
	for i, t := range allTokens {
		m[t] = i
	}
	return m
}()

// AllTokens returns every token in canonical order.
func AllTokens() []Token {
	out := make([]Token, len(allTokens))
	copy(out, allTokens)
	return out
}

func ParseToken(s string) (Token, bool) {
	t := Token(s)
	_, ok := tokenIndex[t]
	return t, ok
}

func (t Token) Valid() bool {
	_, ok := tokenIndex[t]
	return ok
}

func (t Token) String() string { return string(t) }

// Bucket is the cooldown key for t. A superchat shares the bucket of the
// plain command it amplifies.
func (t Token) Bucket() string {
	if t == TokenSuperchatTNT {
		return string(TokenTNT)
	}
	return string(t)
}

// Privileged tokens come from channel metrics. They skip cooldown and never
// move possession.
func (t Token) Privileged() bool {
	return t == TokenNewSubscriber || t == TokenLikeTNT
}

// Aliasable reports whether t may be triggered by a substring alias table.
func (t Token) Aliasable() bool {
	switch t {
	case TokenTNT, TokenFast, TokenSlow, TokenBig, TokenRainbow, TokenShield, TokenFreeze,
		TokenPickaxeWood, TokenPickaxeStone, TokenPickaxeIron, TokenPickaxeGold, TokenPickaxeDiamond, TokenPickaxeNetherite:
		return true
	}
	return false
}

func (t Token) order() int {
	if i, ok := tokenIndex[t]; ok {
		return i
	}
	return len(allTokens)
}
