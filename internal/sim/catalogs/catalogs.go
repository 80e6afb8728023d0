package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalogs are the static tables loaded once at start. Nothing mutates them afterwards.
type Catalogs struct {
	Blocks  *BlockPoints
	Aliases AliasCatalog
}

// AliasCatalog maps a command token name to the chat substrings that trigger it.
// Token names are validated by the interpreter against its closed token set.
type AliasCatalog struct {
	ByToken map[string][]string
	Digest  string
}

// Load reads blocks.json and commands.json from configDir. Missing files fall
// back to the built-in tables; malformed files are errors.
func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	blocks, err := loadBlocks(filepath.Join(configDir, "blocks.json"))
	if err != nil {
		return nil, err
	}
	c.Blocks = blocks

	if err := loadAliases(filepath.Join(configDir, "commands.json"), &c.Aliases); err != nil {
		return nil, err
	}
	return &c, nil
}

// Defaults returns the built-in catalogs without touching the filesystem.
func Defaults() *Catalogs {
	al := AliasCatalog{ByToken: DefaultAliases()}
	b, _ := json.Marshal(al.ByToken)
	al.Digest = sha256Hex(b)
	return &Catalogs{Blocks: DefaultBlockPoints(), Aliases: al}
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type blocksFile struct {
	Tiers [][]string `json:"tiers"`
}

func loadBlocks(path string) (*BlockPoints, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultBlockPoints(), nil
		}
		return nil, err
	}
	var f blocksFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	bp, err := NewBlockPoints(f.Tiers)
	if err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	bp.digest = sha256Hex(raw)
	return bp, nil
}

func loadAliases(path string, out *AliasCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			*out = Defaults().Aliases
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)

	var m map[string][]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("commands.json: %w", err)
	}
	out.ByToken = make(map[string][]string, len(m))
	for token, pats := range m {
		token = strings.TrimSpace(token)
		if token == "" {
			return fmt.Errorf("commands.json: empty token")
		}
		clean := make([]string, 0, len(pats))
		for _, p := range pats {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" {
				continue
			}
			clean = append(clean, p)
		}
		if len(clean) == 0 {
			return fmt.Errorf("commands.json: token %q has no patterns", token)
		}
		out.ByToken[token] = clean
	}
	return nil
}

// DefaultAliases is the trigger table used when commands.json is absent.
func DefaultAliases() map[string][]string {
	return map[string][]string{
		"tnt":               {"tnt", "boom", "explode"},
		"fast":              {"fast", "speed", "quick"},
		"slow":              {"slow", "snail"},
		"big":               {"big", "large", "huge"},
		"rainbow":           {"rainbow"},
		"shield":            {"shield", "protect"},
		"freeze":            {"freeze", "stop", "pause"},
		"pickaxe_wood":      {"wood", "wooden"},
		"pickaxe_stone":     {"stone"},
		"pickaxe_iron":      {"iron"},
		"pickaxe_gold":      {"gold", "golden"},
		"pickaxe_diamond":   {"diamond"},
		"pickaxe_netherite": {"netherite"},
	}
}

// SortedTokens returns the alias table keys in a stable order.
func (a AliasCatalog) SortedTokens() []string {
	out := make([]string, 0, len(a.ByToken))
	for k := range a.ByToken {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
