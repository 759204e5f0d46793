// Package indexdb maintains a SQLite secondary index of violation records
// for operator queries. Writes go through a single writer goroutine and are
// dropped rather than blocked on when the indexer falls behind; the text
// and archive logs remain the source of truth.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"auroragui.dev/packetguard/violation"
)

type Index struct {
	db *sql.DB

	ch   chan violation.Record
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	x := &Index{
		db: db,
		// Sized for bursts (a click flood logs many records at once)
		// without stalling the click path.
		ch: make(chan violation.Record, 16384),
	}
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		x.loop()
	}()
	return x, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; NORMAL durability is fine for a
	// secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS violations (
			id INTEGER PRIMARY KEY,
			ts TEXT NOT NULL,
			player_uuid TEXT NOT NULL,
			player_name TEXT NOT NULL,
			gui TEXT NOT NULL,
			exploit TEXT NOT NULL,
			severity INTEGER NOT NULL,
			details TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_violations_player_ts ON violations(player_uuid, ts);`,
		`CREATE INDEX IF NOT EXISTS idx_violations_exploit ON violations(exploit);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// WriteViolation satisfies violation.Sink. Never blocks.
func (x *Index) WriteViolation(rec violation.Record) error {
	if x == nil || x.closed.Load() {
		return nil
	}
	select {
	case x.ch <- rec:
	default:
		// Indexer behind; drop.
	}
	return nil
}

// Close drains queued records, stops the writer and closes the database.
func (x *Index) Close() error {
	var err error
	x.once.Do(func() {
		x.closed.Store(true)
		close(x.ch)
		x.wg.Wait()
		err = x.db.Close()
	})
	return err
}

func (x *Index) loop() {
	for rec := range x.ch {
		_, err := x.db.Exec(
			`INSERT INTO violations (ts, player_uuid, player_name, gui, exploit, severity, details)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.PlayerID.String(), rec.PlayerName, rec.GUI,
			string(rec.Exploit), rec.Severity, rec.Details,
		)
		if err != nil {
			// Keep draining; one bad insert must not wedge the writer.
			continue
		}
	}
}

// Offender is one row of the top-offenders query.
type Offender struct {
	PlayerID   string
	PlayerName string
	Total      int
	MaxSev     int
	LastSeen   string
}

func (x *Index) TopOffenders(ctx context.Context, n int) ([]Offender, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT player_uuid, player_name, COUNT(*) AS total, MAX(severity), MAX(ts)
		 FROM violations GROUP BY player_uuid ORDER BY total DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offender
	for rows.Next() {
		var o Offender
		if err := rows.Scan(&o.PlayerID, &o.PlayerName, &o.Total, &o.MaxSev, &o.LastSeen); err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// PlayerHistory returns the most recent records for one player, newest
// first.
func (x *Index) PlayerHistory(ctx context.Context, playerID string, limit int) ([]HistoryRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT ts, gui, exploit, severity, COALESCE(details, '')
		 FROM violations WHERE player_uuid = ? ORDER BY ts DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.TS, &h.GUI, &h.Exploit, &h.Severity, &h.Details); err != nil {
			return out, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// HistoryRow is one row of a per-player history query.
type HistoryRow struct {
	TS       string
	GUI      string
	Exploit  string
	Severity int
	Details  string
}
