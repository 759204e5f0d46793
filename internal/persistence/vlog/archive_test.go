package vlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/guard"
	"auroragui.dev/packetguard/violation"
)

func TestArchive_writeReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := NewArchive(dir)

	ts := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	recs := []violation.Record{
		{Timestamp: ts, PlayerName: "mallory", PlayerID: uuid.New(), GUI: "shop", Exploit: guard.NBTMismatch, Severity: 5, Details: "slot 2"},
		{Timestamp: ts.Add(time.Minute), PlayerName: "eve", PlayerID: uuid.New(), GUI: "vault", Exploit: guard.ClickRate, Severity: 3},
	}
	for _, rec := range recs {
		if err := a.WriteViolation(rec); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, "violations-"+HourOf(ts)+".jsonl.zst")
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].PlayerName != "mallory" || got[0].Exploit != guard.NBTMismatch || got[0].Severity != 5 {
		t.Fatalf("first record mangled: %+v", got[0])
	}
	if got[1].PlayerID != recs[1].PlayerID {
		t.Fatalf("uuid mangled: %s != %s", got[1].PlayerID, recs[1].PlayerID)
	}
}

func TestArchive_rotatesByHour(t *testing.T) {
	dir := t.TempDir()
	a := NewArchive(dir)

	first := time.Date(2026, 8, 26, 10, 59, 0, 0, time.UTC)
	second := first.Add(2 * time.Minute) // crosses into 11:xx
	for _, ts := range []time.Time{first, second} {
		rec := violation.Record{Timestamp: ts, PlayerName: "p", PlayerID: uuid.New(), GUI: "g", Exploit: guard.ClickDelay, Severity: 2}
		if err := a.WriteViolation(rec); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, ts := range []time.Time{first, second} {
		path := filepath.Join(dir, "violations-"+HourOf(ts)+".jsonl.zst")
		recs, err := ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if len(recs) != 1 {
			t.Fatalf("%s holds %d records, want 1", path, len(recs))
		}
	}
}
