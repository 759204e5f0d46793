// Package violation keeps per-player violation accounting and the audit
// trail: in-memory counters always, a daily plain-text log when enabled,
// plus optional sinks (zstd archive, SQLite index, live ops feed).
package violation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/guard"
)

const lineTimeLayout = "2006-01-02 15:04:05"

// Record is one logged violation.
type Record struct {
	Timestamp  time.Time         `json:"ts"`
	PlayerName string            `json:"player"`
	PlayerID   uuid.UUID         `json:"uuid"`
	GUI        string            `json:"gui"`
	Exploit    guard.ExploitType `json:"exploit"`
	Severity   int               `json:"severity"`
	Details    string            `json:"details,omitempty"`
}

// Line renders the plain-text audit form. ParseLine reverses it.
func (r Record) Line() string {
	return fmt.Sprintf("[%s] %s (%s) - GUI: %s - Exploit: %s (Severity: %d) - Details: %s",
		r.Timestamp.Format(lineTimeLayout), r.PlayerName, r.PlayerID, r.GUI, r.Exploit, r.Severity, r.Details)
}

// ParseLine reads a line written by Line. Used by offline tooling; the hot
// path never parses.
func ParseLine(line string) (Record, error) {
	var r Record
	if !strings.HasPrefix(line, "[") {
		return r, fmt.Errorf("violation line: missing timestamp bracket")
	}
	end := strings.Index(line, "] ")
	if end < 0 {
		return r, fmt.Errorf("violation line: unterminated timestamp")
	}
	ts, err := time.Parse(lineTimeLayout, line[1:end])
	if err != nil {
		return r, fmt.Errorf("violation line: %w", err)
	}
	r.Timestamp = ts

	parts := strings.SplitN(line[end+2:], " - ", 4)
	if len(parts) != 4 {
		return r, fmt.Errorf("violation line: want 4 segments, have %d", len(parts))
	}

	// "name (uuid)"
	open := strings.LastIndex(parts[0], " (")
	if open < 0 || !strings.HasSuffix(parts[0], ")") {
		return r, fmt.Errorf("violation line: malformed player segment %q", parts[0])
	}
	r.PlayerName = parts[0][:open]
	id, err := uuid.Parse(parts[0][open+2 : len(parts[0])-1])
	if err != nil {
		return r, fmt.Errorf("violation line: %w", err)
	}
	r.PlayerID = id

	gui, ok := strings.CutPrefix(parts[1], "GUI: ")
	if !ok {
		return r, fmt.Errorf("violation line: malformed GUI segment %q", parts[1])
	}
	r.GUI = gui

	// "Exploit: TYPE (Severity: n)"
	ex, ok := strings.CutPrefix(parts[2], "Exploit: ")
	if !ok {
		return r, fmt.Errorf("violation line: malformed exploit segment %q", parts[2])
	}
	open = strings.LastIndex(ex, " (Severity: ")
	if open < 0 || !strings.HasSuffix(ex, ")") {
		return r, fmt.Errorf("violation line: malformed severity in %q", parts[2])
	}
	r.Exploit = guard.ExploitType(ex[:open])
	if _, err := fmt.Sscanf(ex[open:], " (Severity: %d)", &r.Severity); err != nil {
		return r, fmt.Errorf("violation line: %w", err)
	}

	details, ok := strings.CutPrefix(parts[3], "Details: ")
	if !ok {
		return r, fmt.Errorf("violation line: malformed details segment %q", parts[3])
	}
	r.Details = details
	return r, nil
}
