package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"digstream.live/internal/sim/world"
)

// Files lists the rotated logs for prefix under dir, oldest first. The hour
// stamp in the name sorts lexically.
func Files(dir, prefix string) ([]string, error) {
	out, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// ReadLines calls fn for every line in a .jsonl.zst file. A writer that
// reopens the same hour appends a second zstd frame; the decoder reads
// concatenated frames transparently.
func ReadLines(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
	}
	return sc.Err()
}

// ReadTicks streams every tick entry under sessionDir in order.
func ReadTicks(sessionDir string, fn func(world.TickLogEntry) error) error {
	files, err := Files(filepath.Join(sessionDir, "ticks"), "ticks")
	if err != nil {
		return err
	}
	for _, p := range files {
		err := ReadLines(p, func(b []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(b, &e); err != nil {
				return err
			}
			return fn(e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadAudits streams every audit entry under sessionDir in order.
func ReadAudits(sessionDir string, fn func(world.AuditEntry) error) error {
	files, err := Files(filepath.Join(sessionDir, "audit"), "audit")
	if err != nil {
		return err
	}
	for _, p := range files {
		err := ReadLines(p, func(b []byte) error {
			var e world.AuditEntry
			if err := json.Unmarshal(b, &e); err != nil {
				return err
			}
			return fn(e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
