// Package telemetry records advancement completion events as compressed
// JSONL, one file per day. Only advancements whose definition opts in are
// reported.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// CompletionEvent is one line of the telemetry log.
type CompletionEvent struct {
	Player      string    `json:"player"`
	Advancement string    `json:"advancement"`
	At          time.Time `json:"at"`
}

// Writer appends events to <dir>/completions-<day>.jsonl.zst, rotating at
// day boundaries.
type Writer struct {
	dir string

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Record(ev CompletionEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := ev.At.UTC().Format("2006-01-02")
	if day != w.curDay {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(ev)
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

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("completions-%s.jsonl.zst", day))
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
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curDay = day
	return nil
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curDay = ""
	return err
}
