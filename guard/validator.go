package guard

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/host"
	"auroragui.dev/packetguard/item"
)

// Validator runs the layered per-click pipeline for one GUI. The layers
// escalate with the configured level:
//
//	BASIC:    nothing; event cancellation is the only protection.
//	PACKET:   timing floor, rate ceiling, slot bounds, slot/cursor state,
//	          close desync.
//	ADVANCED: PACKET plus metadata-hash verification, shift-click loop and
//	          transaction-state checks.
//
// Per-click state machine: Receive -> TimingCheck -> RateCheck ->
// BoundsCheck -> StateCheck [-> NBTCheck -> TransactionCheck] -> pass/fail.
type Validator struct {
	cfg   Config
	clock host.Clock
	inv   *ServerSideInventory
	tx    *TransactionValidator

	mu       sync.Mutex
	sessions map[uuid.UUID]*clickSession
}

// clickSession is the per-(GUI, player) validation state, created on first
// click and discarded on close or disconnect.
type clickSession struct {
	lastClick   time.Time
	seenClick   bool
	windowStart time.Time
	windowCount int
}

func NewValidator(cfg Config, clock host.Clock, size int) *Validator {
	return &Validator{
		cfg:      cfg,
		clock:    clock,
		inv:      NewServerSideInventory(size, clock),
		tx:       NewTransactionValidator(clock, cfg.ShiftClickWindow(), cfg.MaxPendingShiftClicks),
		sessions: make(map[uuid.UUID]*clickSession),
	}
}

// Inventory exposes the authoritative state this validator consults. The
// owning GUI mirrors every item placement into it.
func (v *Validator) Inventory() *ServerSideInventory { return v.inv }

// Transactions exposes the loop/mismatch detector.
func (v *Validator) Transactions() *TransactionValidator { return v.tx }

func (v *Validator) Level() ValidationLevel { return v.cfg.ValidationLevel }

// ValidateClick runs every layer the configured level enables. viewing is
// the engine's answer to "is this GUI the player's open inventory". A nil
// result means the click passed; detections are returned, never panicked.
func (v *Validator) ValidateClick(ev *host.ClickEvent, viewing bool) *Violation {
	if v.cfg.ValidationLevel == LevelBasic {
		return nil
	}

	now := v.clock.Now()
	pid := ev.Player.UUID()
	s := v.session(pid)

	// Timing floor.
	v.mu.Lock()
	last, seen := s.lastClick, s.seenClick
	s.lastClick = now
	s.seenClick = true

	// Rate ceiling: fixed one-second window.
	if !s.windowStart.IsZero() && now.Sub(s.windowStart) >= time.Second {
		s.windowStart = now
		s.windowCount = 0
	}
	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	s.windowCount++
	count := s.windowCount
	v.mu.Unlock()

	if seen {
		if delta := now.Sub(last); delta < v.cfg.MinClickDelay() {
			return &Violation{Type: ClickDelay, Details: fmt.Sprintf("interval %dms below floor %dms", delta.Milliseconds(), v.cfg.MinClickDelayMs)}
		}
	}
	if count > v.cfg.MaxClicksPerSecond {
		return &Violation{Type: ClickRate, Details: fmt.Sprintf("%d clicks in window, ceiling %d/s", count, v.cfg.MaxClicksPerSecond)}
	}

	// Bounds.
	if ev.Slot < 0 || ev.Slot >= v.inv.Size() {
		return &Violation{Type: InvalidSlot, Details: fmt.Sprintf("slot %d outside 0..%d", ev.Slot, v.inv.Size()-1)}
	}

	// State truth.
	if !viewing {
		return &Violation{Type: CloseDesync, Details: "click for an inventory the engine reports closed"}
	}
	if !v.inv.ValidateSlotState(ev.Slot, ev.Clicked) {
		return &Violation{Type: SlotDesync, Details: fmt.Sprintf("slot %d content differs from server state", ev.Slot)}
	}
	if !v.inv.ValidateCursorState(pid, ev.Cursor) {
		return &Violation{Type: CursorDesync, Details: "cursor content differs from server state"}
	}

	if v.cfg.ValidationLevel == LevelAdvanced {
		if viol := v.validateAdvanced(ev, pid); viol != nil {
			return viol
		}
	}
	return nil
}

func (v *Validator) validateAdvanced(ev *host.ClickEvent, pid uuid.UUID) *Violation {
	// Metadata hash: coarse state already matched, so a differing
	// fingerprint means the client rewrote name/lore/enchants.
	auth := v.inv.AuthoritativeItem(ev.Slot)
	if !auth.IsAir() || !ev.Clicked.IsAir() {
		if !item.NewFingerprint(auth).Matches(ev.Clicked) {
			return &Violation{Type: NBTMismatch, Details: fmt.Sprintf("slot %d metadata hash differs from authorized item", ev.Slot)}
		}
	}

	if ev.Type.IsShift() {
		fp := item.NewFingerprint(ev.Clicked)
		if !v.tx.ValidateShiftClick(pid, fp) {
			return &Violation{Type: ShiftClickLoop, Details: fmt.Sprintf("fingerprint %s re-submitted inside %dms window", fp.Material, v.cfg.ShiftClickWindowMs)}
		}
	}
	return nil
}

// VerifyTransaction compares the live inventory against authoritative state
// after a click action ran (ADVANCED only). The GUI calls it once the
// consumer handler has finished mutating state through the GUI's own
// setters, so any residual difference came from the client side.
func (v *Validator) VerifyTransaction(pid uuid.UUID, inv host.Inventory) *Violation {
	if v.cfg.ValidationLevel != LevelAdvanced {
		return nil
	}
	expected := make(map[int]item.Fingerprint)
	actual := make(map[int]item.Fingerprint)
	for slot := 0; slot < v.inv.Size() && slot < inv.Size(); slot++ {
		if fp := item.NewFingerprint(v.inv.AuthoritativeItem(slot)); !fp.IsEmpty() {
			expected[slot] = fp
		}
		if fp := item.NewFingerprint(inv.Item(slot)); !fp.IsEmpty() {
			actual[slot] = fp
		}
	}
	if slot, ok := v.tx.ValidateTransaction(pid, expected, actual); !ok {
		return &Violation{Type: TransactionMismatch, Details: fmt.Sprintf("slot %d diverged after transaction", slot)}
	}
	return nil
}

func (v *Validator) session(pid uuid.UUID) *clickSession {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.sessions[pid]
	if !ok {
		s = &clickSession{}
		v.sessions[pid] = s
	}
	return s
}

// EndSession discards per-player validation state on close or disconnect.
func (v *Validator) EndSession(pid uuid.UUID) {
	v.mu.Lock()
	delete(v.sessions, pid)
	v.mu.Unlock()
	v.tx.ClearPlayer(pid)
	v.inv.ClearPlayer(pid)
}

// Reset wipes all sessions and authoritative state on GUI destruction.
func (v *Validator) Reset() {
	v.mu.Lock()
	v.sessions = make(map[uuid.UUID]*clickSession)
	v.mu.Unlock()
	v.inv.Clear()
}
