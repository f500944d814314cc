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

	"shadowchase.ai/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to zstd-compressed files under baseDir.
// A new file starts every UTC hour and whenever the uncompressed size of the
// current file passes rotateBytes (0 disables size rotation). File names sort
// in write order.
type JSONLZstdWriter struct {
	baseDir     string
	prefix      string
	rotateBytes int64

	mu      sync.Mutex
	curHour string
	seq     int
	written int64
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string, rotateBytes int64) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir:     baseDir,
		prefix:      prefix,
		rotateBytes: rotateBytes,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	switch {
	case hour != w.curHour:
		if err := w.rotateLocked(hour, 0); err != nil {
			return err
		}
	case w.rotateBytes > 0 && w.written >= w.rotateBytes:
		if err := w.rotateLocked(hour, w.seq+1); err != nil {
			return err
		}
	}

	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.written += int64(len(b)) + 1
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string, seq int) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathFor(hour, seq)
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
	w.seq = seq
	w.written = 0
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
	return err1
}

func (w *JSONLZstdWriter) pathFor(hour string, seq int) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s-%03d.jsonl.zst", w.prefix, hour, seq))
}

// TickLogger writes one JSONL entry per tick (compressed). The digest is kept
// only on every digestEvery-th tick.
type TickLogger struct {
	w           *JSONLZstdWriter
	digestEvery uint64
}

func NewTickLogger(runDir string, rotateBytes int64, digestEvery int) *TickLogger {
	if digestEvery <= 0 {
		digestEvery = 1
	}
	return &TickLogger{
		w:           NewJSONLZstdWriter(filepath.Join(runDir, "ticks"), "ticks", rotateBytes),
		digestEvery: uint64(digestEvery),
	}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error {
	if e.Tick%l.digestEvery != 0 {
		e.Digest = ""
	}
	return l.w.Write(e)
}

func (l *TickLogger) Close() error { return l.w.Close() }

// SessionEvent records a steering session lifecycle change.
type SessionEvent struct {
	TS        string `json:"ts"`
	Tick      uint64 `json:"tick"`
	SessionID string `json:"session_id,omitempty"`
	Event     string `json:"event"` // CONNECT, DISCONNECT, REJECT
	Remote    string `json:"remote,omitempty"`
	Client    string `json:"client,omitempty"`
	Code      string `json:"code,omitempty"`
}

// SessionLogger writes session JSONL entries (compressed).
type SessionLogger struct{ w *JSONLZstdWriter }

func NewSessionLogger(runDir string) *SessionLogger {
	return &SessionLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, "sessions"), "sessions", 0)}
}

func (l *SessionLogger) WriteSession(e SessionEvent) error {
	if e.TS == "" {
		e.TS = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return l.w.Write(e)
}

func (l *SessionLogger) Close() error { return l.w.Close() }
