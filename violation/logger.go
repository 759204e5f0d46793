package violation

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/guard"
	"auroragui.dev/packetguard/host"
)

// consoleSeverity is the floor above which violations echo to the console.
const consoleSeverity = 4

// Sink receives every record after the in-memory counters are updated.
// Sink failures are diagnostic, never gates: errors are reported to the
// console and dropped.
type Sink interface {
	WriteViolation(rec Record) error
}

// PlayerData is the per-player tally, shared across every GUI in the
// process. Counts are monotonically non-decreasing within a logger
// lifetime. In-memory only; it does not survive a restart.
type PlayerData struct {
	Name   string
	Counts map[guard.ExploitType]int
	Total  int
	First  time.Time
	Last   time.Time
}

// Logger is the process-wide violation recorder. The in-memory tally always
// updates so kick-threshold arithmetic never depends on file I/O; the daily
// text file and the sinks are best-effort extras.
type Logger struct {
	clock   host.Clock
	console *log.Logger

	mu      sync.Mutex
	players map[uuid.UUID]*PlayerData
	sinks   []Sink

	dir    string
	curDay string
	f      *os.File
}

type Option func(*Logger)

// WithDir enables the daily plain-text audit file under dir.
func WithDir(dir string) Option {
	return func(l *Logger) { l.dir = dir }
}

// WithSink attaches an additional destination (archive, index, feed).
func WithSink(s Sink) Option {
	return func(l *Logger) { l.sinks = append(l.sinks, s) }
}

// AddSink attaches a destination after construction. The ops feed needs
// this: it takes the logger for its summary endpoint, then registers
// itself back as a sink.
func (l *Logger) AddSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

func NewLogger(clock host.Clock, console *log.Logger, opts ...Option) *Logger {
	l := &Logger{
		clock:   clock,
		console: console,
		players: make(map[uuid.UUID]*PlayerData),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Tally updates the in-memory counters without writing anywhere. Used when
// audit output is disabled but threshold arithmetic must keep counting.
func (l *Logger) Tally(p host.Player, et guard.ExploitType) {
	l.mu.Lock()
	l.tallyLocked(p.UUID(), p.Name(), et, l.clock.Now())
	l.mu.Unlock()
}

func (l *Logger) tallyLocked(pid uuid.UUID, name string, et guard.ExploitType, now time.Time) {
	d, ok := l.players[pid]
	if !ok {
		d = &PlayerData{Name: name, Counts: make(map[guard.ExploitType]int), First: now}
		l.players[pid] = d
	}
	d.Name = name
	d.Counts[et]++
	d.Total++
	d.Last = now
}

// Log records one violation. The counter update can never be lost to an I/O
// failure; file and sink errors are reported on the console and swallowed.
func (l *Logger) Log(p host.Player, guiName string, et guard.ExploitType, details string) Record {
	now := l.clock.Now()
	rec := Record{
		Timestamp:  now,
		PlayerName: p.Name(),
		PlayerID:   p.UUID(),
		GUI:        guiName,
		Exploit:    et,
		Severity:   et.Severity(),
		Details:    details,
	}

	l.mu.Lock()
	l.tallyLocked(rec.PlayerID, rec.PlayerName, et, now)
	sinks := make([]Sink, len(l.sinks))
	copy(sinks, l.sinks)

	if l.dir != "" {
		if err := l.appendLineLocked(rec); err != nil && l.console != nil {
			l.console.Printf("violation log write: %v", err)
		}
	}
	l.mu.Unlock()

	if rec.Severity >= consoleSeverity && l.console != nil {
		l.console.Printf("violation: %s", rec.Line())
	}
	for _, s := range sinks {
		if err := s.WriteViolation(rec); err != nil && l.console != nil {
			l.console.Printf("violation sink: %v", err)
		}
	}
	return rec
}

// appendLineLocked writes the plain-text line to the date-named file,
// rotating when the calendar day changes.
func (l *Logger) appendLineLocked(rec Record) error {
	day := rec.Timestamp.Format("2006-01-02")
	if day != l.curDay {
		if l.f != nil {
			_ = l.f.Close()
			l.f = nil
		}
		if err := os.MkdirAll(l.dir, 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(l.dir, "violations-"+day+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		l.f = f
		l.curDay = day
	}
	_, err := fmt.Fprintln(l.f, rec.Line())
	return err
}

// TotalViolations returns the cumulative count for a player.
func (l *Logger) TotalViolations(pid uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.players[pid]; ok {
		return d.Total
	}
	return 0
}

// Count returns how often one exploit type was recorded for a player.
func (l *Logger) Count(pid uuid.UUID, et guard.ExploitType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.players[pid]; ok {
		return d.Counts[et]
	}
	return 0
}

// Player returns a copy of the tally, false if the player has none.
func (l *Logger) Player(pid uuid.UUID) (PlayerData, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.players[pid]
	if !ok {
		return PlayerData{}, false
	}
	cp := *d
	cp.Counts = make(map[guard.ExploitType]int, len(d.Counts))
	for k, v := range d.Counts {
		cp.Counts[k] = v
	}
	return cp, true
}

// SummaryReport renders the top-10 offenders for operator review.
func (l *Logger) SummaryReport() string {
	type row struct {
		id uuid.UUID
		d  PlayerData
	}
	l.mu.Lock()
	rows := make([]row, 0, len(l.players))
	for id, d := range l.players {
		rows = append(rows, row{id: id, d: *d})
	}
	l.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].d.Total != rows[j].d.Total {
			return rows[i].d.Total > rows[j].d.Total
		}
		return rows[i].d.Name < rows[j].d.Name
	})
	tracked := len(rows)
	if len(rows) > 10 {
		rows = rows[:10]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Violation summary: %d player(s) tracked\n", tracked)
	for i, r := range rows {
		fmt.Fprintf(&b, "%2d. %s (%s): %d violation(s), last %s\n",
			i+1, r.d.Name, r.id, r.d.Total, r.d.Last.Format(lineTimeLayout))
	}
	return b.String()
}

// ClearPlayer drops a player's tally.
func (l *Logger) ClearPlayer(pid uuid.UUID) {
	l.mu.Lock()
	delete(l.players, pid)
	l.mu.Unlock()
}

// Close releases the current log file. Counters are discarded with the
// process; they are diagnostics, not durable state.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.players = make(map[uuid.UUID]*PlayerData)
	if l.f != nil {
		err := l.f.Close()
		l.f = nil
		l.curDay = ""
		return err
	}
	return nil
}
