package guard

import (
	"fmt"
	"testing"
	"time"

	"auroragui.dev/packetguard/host/hosttest"
	"auroragui.dev/packetguard/item"
)

func TestTransactionValidator_loopInsideWindow(t *testing.T) {
	clock := hosttest.NewFakeClock()
	tv := NewTransactionValidator(clock, 100*time.Millisecond, 10)
	p := hosttest.NewFakePlayer("bob")
	fp := item.NewFingerprint(sword())

	if !tv.ValidateShiftClick(p.UUID(), fp) {
		t.Fatalf("first submission rejected")
	}
	clock.Advance(30 * time.Millisecond)
	if tv.ValidateShiftClick(p.UUID(), fp) {
		t.Fatalf("same fingerprint inside the window should be rejected")
	}

	// After the window expires the same fingerprint passes again.
	clock.Advance(200 * time.Millisecond)
	if !tv.ValidateShiftClick(p.UUID(), fp) {
		t.Fatalf("fingerprint after expiry rejected")
	}
}

func TestTransactionValidator_distinctItemsInBatch(t *testing.T) {
	clock := hosttest.NewFakeClock()
	tv := NewTransactionValidator(clock, 100*time.Millisecond, 10)
	p := hosttest.NewFakePlayer("bob")

	// A shift-click batch of distinct stacks in the same tick is legitimate.
	for i := 0; i < 5; i++ {
		st := item.Stack{Material: fmt.Sprintf("ORE_%d", i), Amount: 1}
		if !tv.ValidateShiftClick(p.UUID(), item.NewFingerprint(st)) {
			t.Fatalf("distinct stack %d rejected", i)
		}
	}
}

func TestTransactionValidator_growthGuard(t *testing.T) {
	clock := hosttest.NewFakeClock()
	tv := NewTransactionValidator(clock, time.Hour, 10)
	p := hosttest.NewFakePlayer("flood")

	for i := 0; i < 11; i++ {
		st := item.Stack{Material: fmt.Sprintf("ITEM_%d", i), Amount: 1}
		if !tv.ValidateShiftClick(p.UUID(), item.NewFingerprint(st)) {
			t.Fatalf("distinct stack %d rejected", i)
		}
	}
	// Crossing maxPending drops the accumulated set.
	if got := tv.PendingCount(p.UUID()); got != 0 {
		t.Fatalf("pending count after growth guard = %d, want 0", got)
	}
}

func TestTransactionValidator_emptyFingerprintPasses(t *testing.T) {
	clock := hosttest.NewFakeClock()
	tv := NewTransactionValidator(clock, 100*time.Millisecond, 10)
	p := hosttest.NewFakePlayer("bob")

	var empty item.Fingerprint
	if !tv.ValidateShiftClick(p.UUID(), empty) {
		t.Fatalf("empty fingerprint should always pass")
	}
	if !tv.ValidateShiftClick(p.UUID(), empty) {
		t.Fatalf("repeated empty fingerprint should still pass")
	}
}

func TestTransactionValidator_transactionMismatchSlot(t *testing.T) {
	clock := hosttest.NewFakeClock()
	tv := NewTransactionValidator(clock, 100*time.Millisecond, 10)
	p := hosttest.NewFakePlayer("bob")

	fpA := item.NewFingerprint(item.Stack{Material: "A", Amount: 1})
	fpB := item.NewFingerprint(item.Stack{Material: "B", Amount: 1})

	expected := map[int]item.Fingerprint{0: fpA, 4: fpB}
	actual := map[int]item.Fingerprint{0: fpA, 4: fpB}
	if slot, ok := tv.ValidateTransaction(p.UUID(), expected, actual); !ok {
		t.Fatalf("matching transaction flagged at slot %d", slot)
	}

	actual[4] = fpA
	slot, ok := tv.ValidateTransaction(p.UUID(), expected, actual)
	if ok {
		t.Fatalf("diverged transaction not flagged")
	}
	if slot != 4 {
		t.Fatalf("offending slot = %d, want 4", slot)
	}

	// A slot present only on one side counts as a mismatch there.
	delete(actual, 0)
	actual[4] = fpB
	slot, ok = tv.ValidateTransaction(p.UUID(), expected, actual)
	if ok || slot != 0 {
		t.Fatalf("missing slot: got (%d, %v), want (0, false)", slot, ok)
	}
}
