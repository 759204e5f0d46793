// Package vlog archives violation records as hour-rotated, zstd-compressed
// JSONL streams. The archive is a best-effort secondary trail; the plain
// daily log and the in-memory counters remain the source of truth.
package vlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"auroragui.dev/packetguard/violation"
)

type Archive struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewArchive(baseDir string) *Archive {
	return &Archive{baseDir: baseDir, prefix: "violations"}
}

// WriteViolation satisfies violation.Sink.
func (a *Archive) WriteViolation(rec violation.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	hour := rec.Timestamp.UTC().Format("2006-01-02-15")
	if hour != a.curHour {
		if err := a.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := a.w.Write(b); err != nil {
		return err
	}
	if err := a.w.WriteByte('\n'); err != nil {
		return err
	}
	return a.w.Flush()
}

func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeLocked()
}

func (a *Archive) rotateLocked(hour string) error {
	if err := a.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(a.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(a.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	a.f = f
	a.enc = enc
	a.w = bufio.NewWriterSize(enc, 64*1024)
	a.curHour = hour
	return nil
}

func (a *Archive) closeLocked() error {
	var err1 error
	if a.w != nil {
		_ = a.w.Flush()
	}
	if a.enc != nil {
		err1 = a.enc.Close()
		a.enc = nil
	}
	if a.f != nil {
		_ = a.f.Close()
		a.f = nil
	}
	a.w = nil
	return err1
}

func (a *Archive) pathForHour(hour string) string {
	return filepath.Join(a.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", a.prefix, hour))
}

// ReadFile decodes one archive file back into records, oldest first.
func ReadFile(path string) ([]violation.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []violation.Record
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec violation.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return out, err
	}
	return out, nil
}

// HourOf formats the rotation key for a timestamp, exposed for tooling.
func HourOf(ts time.Time) string { return ts.UTC().Format("2006-01-02-15") }
