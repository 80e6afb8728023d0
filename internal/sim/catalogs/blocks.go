package catalogs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MaxTier is the highest rarity tier (2^7 = 128 points).
const MaxTier = 7

// DefaultTiers orders block types from common (tier 0) to godlike (tier 7).
var DefaultTiers = [][]string{
	{"stone", "cobblestone", "dirt", "grass_block"},
	{"coal_ore", "diorite", "granite", "andesite", "mossy_cobblestone"},
	{"iron_ore", "copper_ore"},
	{"gold_ore", "redstone_ore", "lapis_ore"},
	{"diamond_ore"},
	{"emerald_ore", "ancient_debris"},
	{"obsidian", "mega_tnt", "golden_block"},
	{"bedrock"},
}

// BlockPoints maps block types to point values by rarity tier (2^tier).
// Unknown block types are worth 1 point. Immutable after construction.
type BlockPoints struct {
	points map[string]int
	tiers  map[string]int
	digest string
}

func NewBlockPoints(tiers [][]string) (*BlockPoints, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers")
	}
	if len(tiers) > MaxTier+1 {
		return nil, fmt.Errorf("too many tiers: %d (max %d)", len(tiers), MaxTier+1)
	}
	bp := &BlockPoints{
		points: map[string]int{},
		tiers:  map[string]int{},
	}
	for tier, blocks := range tiers {
		for _, b := range blocks {
			b = strings.ToLower(strings.TrimSpace(b))
			if b == "" {
				return nil, fmt.Errorf("tier %d: empty block id", tier)
			}
			if prev, dup := bp.tiers[b]; dup {
				return nil, fmt.Errorf("block %q listed in tiers %d and %d", b, prev, tier)
			}
			bp.tiers[b] = tier
			bp.points[b] = 1 << tier
		}
	}
	raw, _ := json.Marshal(tiers)
	bp.digest = sha256Hex(raw)
	return bp, nil
}

func DefaultBlockPoints() *BlockPoints {
	bp, err := NewBlockPoints(DefaultTiers)
	if err != nil {
		panic(err)
	}
	return bp
}

// Points returns the value of block; unknown types are worth 1.
func (b *BlockPoints) Points(block string) int {
	if b == nil {
		return 1
	}
	if p, ok := b.points[block]; ok {
		return p
	}
	return 1
}

func (b *BlockPoints) Tier(block string) (int, bool) {
	if b == nil {
		return 0, false
	}
	t, ok := b.tiers[block]
	return t, ok
}

func (b *BlockPoints) Digest() string {
	if b == nil {
		return ""
	}
	return b.digest
}

// Blocks lists known block types sorted by tier then name.
func (b *BlockPoints) Blocks() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.tiers))
	for id := range b.tiers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := b.tiers[out[i]], b.tiers[out[j]]
		if ti != tj {
			return ti < tj
		}
		return out[i] < out[j]
	})
	return out
}
