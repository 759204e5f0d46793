package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/guard"
	"auroragui.dev/packetguard/violation"
)

func TestIndex_writeAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "violations.db")
	x, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	mallory := uuid.New()
	eve := uuid.New()
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	recs := []violation.Record{
		{Timestamp: base, PlayerName: "mallory", PlayerID: mallory, GUI: "shop", Exploit: guard.SlotDesync, Severity: 4, Details: "slot 3"},
		{Timestamp: base.Add(time.Second), PlayerName: "mallory", PlayerID: mallory, GUI: "shop", Exploit: guard.NBTMismatch, Severity: 5, Details: "slot 3"},
		{Timestamp: base.Add(2 * time.Second), PlayerName: "eve", PlayerID: eve, GUI: "vault", Exploit: guard.ClickDelay, Severity: 2},
	}
	for _, rec := range recs {
		if err := x.WriteViolation(rec); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	// Close drains the writer queue before the queries below.
	if err := x.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	x2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer x2.Close()

	top, err := x2.TopOffenders(context.Background(), 10)
	if err != nil {
		t.Fatalf("top offenders: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("offenders = %d, want 2", len(top))
	}
	if top[0].PlayerName != "mallory" || top[0].Total != 2 || top[0].MaxSev != 5 {
		t.Fatalf("top offender wrong: %+v", top[0])
	}

	hist, err := x2.PlayerHistory(context.Background(), mallory.String(), 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history rows = %d, want 2", len(hist))
	}
	if hist[0].Exploit != string(guard.NBTMismatch) {
		t.Fatalf("history not newest-first: %+v", hist)
	}
}

func TestIndex_writeAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "violations.db")
	x, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := x.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	rec := violation.Record{Timestamp: time.Now(), PlayerName: "p", PlayerID: uuid.New(), GUI: "g", Exploit: guard.ClickDelay, Severity: 2}
	if err := x.WriteViolation(rec); err != nil {
		t.Fatalf("write after close should be a silent no-op, got %v", err)
	}
}
