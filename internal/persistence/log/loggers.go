package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelbuild.ai/internal/sim/builder"
	"voxelbuild.ai/internal/sim/site"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

// WithClock replaces the clock used to pick the hourly file.
func (w *JSONLZstdWriter) WithClock(now func() time.Time) *JSONLZstdWriter {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now != nil {
		w.now = now
	}
	return w
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickLogger writes one JSONL entry per site tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(siteDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(siteDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(v site.TickSummary) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                       { return l.w.Close() }

// AuditRecord is a builder audit entry stamped with the site tick.
type AuditRecord struct {
	Tick uint64 `json:"tick"`
	builder.AuditEntry
}

// AuditLogger writes audit JSONL entries (compressed).
type AuditLogger struct {
	w    *JSONLZstdWriter
	tick func() uint64
}

// NewAuditLogger stamps entries with tick(); a nil tick writes 0.
func NewAuditLogger(siteDir string, tick func() uint64) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(siteDir, "audit"), "audit"), tick: tick}
}

func (l *AuditLogger) WriteAudit(e builder.AuditEntry) error {
	rec := AuditRecord{AuditEntry: e}
	if l.tick != nil {
		rec.Tick = l.tick()
	}
	return l.w.Write(rec)
}

func (l *AuditLogger) Close() error { return l.w.Close() }
