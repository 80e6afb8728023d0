package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"digstream.live/internal/sim/world"
)

const hourLayout = "2006-01-02-15"

// segment is one open hourly file: file -> zstd frame -> line buffer.
type segment struct {
	hour string
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
	js   *json.Encoder
}

func openSegment(path, hour string) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	buf := bufio.NewWriterSize(zw, 64*1024)
	js := json.NewEncoder(buf)
	js.SetEscapeHTML(false)
	return &segment{hour: hour, file: f, zw: zw, buf: buf, js: js}, nil
}

// close ends the zstd frame. Reopening the same hour appends a new frame,
// which readers decode transparently.
func (s *segment) close() error {
	ferr := s.buf.Flush()
	zerr := s.zw.Close()
	cerr := s.file.Close()
	switch {
	case ferr != nil:
		return ferr
	case zerr != nil:
		return zerr
	default:
		return cerr
	}
}

// JSONLZstdWriter appends one JSON document per line to hourly rotated
// <prefix>-YYYY-MM-DD-HH.jsonl.zst files under dir.
type JSONLZstdWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu  sync.Mutex
	seg *segment

	lines     atomic.Uint64
	rotations atomic.Uint64
}

func NewJSONLZstdWriter(dir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, prefix: prefix, now: time.Now}
}

// Write encodes v and flushes it through the compressor so a crash loses at
// most the line being written.
func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format(hourLayout)
	if w.seg == nil || w.seg.hour != hour {
		if w.seg != nil {
			if err := w.seg.close(); err != nil {
				return fmt.Errorf("close %s segment: %w", w.prefix, err)
			}
			w.seg = nil
			w.rotations.Add(1)
		}
		seg, err := openSegment(w.pathForHour(hour), hour)
		if err != nil {
			return fmt.Errorf("open %s segment: %w", w.prefix, err)
		}
		w.seg = seg
	}

	if err := w.seg.js.Encode(v); err != nil {
		return err
	}
	if err := w.seg.buf.Flush(); err != nil {
		return err
	}
	w.lines.Add(1)
	return nil
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return nil
	}
	err := w.seg.close()
	w.seg = nil
	return err
}

// Lines reports how many entries were written since start.
func (w *JSONLZstdWriter) Lines() uint64 { return w.lines.Load() }

// Rotations reports how many hourly segments were closed for a newer one.
func (w *JSONLZstdWriter) Rotations() uint64 { return w.rotations.Load() }

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.dir, w.prefix+"-"+hour+".jsonl.zst")
}

// TickLogger records the tick replay log under <session>/ticks.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(sessionDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(sessionDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Lines() uint64                        { return l.w.Lines() }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger records arbitration and scoring decisions under <session>/audit.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(sessionDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(sessionDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Lines() uint64                       { return l.w.Lines() }
func (l *AuditLogger) Close() error                        { return l.w.Close() }
