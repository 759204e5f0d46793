// Package guard implements the packet-level anti-duplication validation
// core: authoritative server-side inventory state, a layered per-click
// validation pipeline, and shift-click/transaction loop detection.
package guard

// ExploitType identifies one detected duplication-exploit pattern. Severity
// is a fixed property of the kind, not of context: it feeds logging, handler
// dispatch and kick-threshold arithmetic uniformly.
type ExploitType string

const (
	// Click arrived faster than the configured per-click delay floor.
	ClickDelay ExploitType = "CLICK_DELAY"
	// Sustained click rate above the per-second ceiling.
	ClickRate ExploitType = "CLICK_RATE"
	// Client claimed a slot outside the GUI bounds.
	InvalidSlot ExploitType = "INVALID_SLOT"
	// Client's claimed slot content disagrees with authoritative state.
	SlotDesync ExploitType = "SLOT_DESYNC"
	// Client's claimed cursor disagrees with authoritative cursor state
	// (covers pick-up/desync duplication and cursor swaps).
	CursorDesync ExploitType = "CURSOR_DESYNC"
	// Click arrived for a GUI the engine reports as no longer open.
	CloseDesync ExploitType = "CLOSE_DESYNC"
	// Item metadata hash differs from the authorized item (NBT injection).
	NBTMismatch ExploitType = "NBT_MISMATCH"
	// Same fingerprint shift-clicked again inside the processing window.
	ShiftClickLoop ExploitType = "SHIFT_CLICK_LOOP"
	// Post-transaction slot state differs from the expected outcome.
	TransactionMismatch ExploitType = "TRANSACTION_MISMATCH"
	// Session bookkeeping says the GUI is open but the engine disagrees
	// and no close event ever fired (withheld close packet).
	NoClosePacket ExploitType = "NO_CLOSE_PACKET"
	// Session idle past the timeout with the GUI genuinely still open.
	StaleSession ExploitType = "STALE_SESSION"
)

type exploitInfo struct {
	severity int
	desc     string
}

var exploits = map[ExploitType]exploitInfo{
	ClickDelay:          {2, "click faster than delay floor"},
	ClickRate:           {3, "click rate above ceiling"},
	InvalidSlot:         {3, "click on out-of-bounds slot"},
	SlotDesync:          {4, "slot state desynced from server"},
	CursorDesync:        {4, "cursor state desynced from server"},
	CloseDesync:         {4, "click on closed inventory"},
	NBTMismatch:         {5, "item metadata tampered client-side"},
	ShiftClickLoop:      {4, "shift-click duplication loop"},
	TransactionMismatch: {5, "transaction outcome mismatch"},
	NoClosePacket:       {5, "close packet withheld"},
	StaleSession:        {1, "session idle past timeout"},
}

// Severity is 1 (benign) through 5 (certain exploit). Unknown types report 0.
func (t ExploitType) Severity() int { return exploits[t].severity }

// Description is a short human label for operator output.
func (t ExploitType) Description() string { return exploits[t].desc }

func (t ExploitType) Known() bool {
	_, ok := exploits[t]
	return ok
}

func (t ExploitType) String() string { return string(t) }

// Violation is the outcome of a failed validation layer.
type Violation struct {
	Type    ExploitType
	Details string
}
