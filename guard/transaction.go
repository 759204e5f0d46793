package guard

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/host"
	"auroragui.dev/packetguard/item"
)

// TransactionValidator detects shift-click duplication loops and
// post-transaction state mismatches. It keeps a short-lived per-player set
// of just-processed fingerprints: a legitimate shift-click batch moves
// several distinct stacks per tick, but a loop exploit re-submits the same
// stack faster than it can logically be processed, so a repeat inside the
// window is conclusive.
type TransactionValidator struct {
	mu         sync.Mutex
	clock      host.Clock
	window     time.Duration
	maxPending int
	recent     map[uuid.UUID][]pendingFingerprint
}

type pendingFingerprint struct {
	fp item.Fingerprint
	at time.Time
}

func NewTransactionValidator(clock host.Clock, window time.Duration, maxPending int) *TransactionValidator {
	if window <= 0 {
		window = 100 * time.Millisecond
	}
	if maxPending <= 0 {
		maxPending = 10
	}
	return &TransactionValidator{
		clock:      clock,
		window:     window,
		maxPending: maxPending,
		recent:     make(map[uuid.UUID][]pendingFingerprint),
	}
}

// ValidateShiftClick records fp for the player and reports false if the
// same fingerprint was already processed inside the window. Expired entries
// are purged inline, so no separate cleanup task is needed; if one player
// still accumulates more than maxPending live entries (a flood from one
// connection), the whole set is dropped rather than growing without bound.
func (v *TransactionValidator) ValidateShiftClick(player uuid.UUID, fp item.Fingerprint) bool {
	if fp.IsEmpty() {
		return true
	}
	now := v.clock.Now()

	v.mu.Lock()
	defer v.mu.Unlock()

	pending := v.recent[player][:0]
	for _, p := range v.recent[player] {
		if now.Sub(p.at) < v.window {
			pending = append(pending, p)
		}
	}
	for _, p := range pending {
		if p.fp == fp {
			v.recent[player] = pending
			return false
		}
	}
	pending = append(pending, pendingFingerprint{fp: fp, at: now})
	if len(pending) > v.maxPending {
		delete(v.recent, player)
		return true
	}
	v.recent[player] = pending
	return true
}

// ValidateTransaction compares the expected post-transaction slot
// fingerprints against what actually ended up in the inventory. It returns
// the lowest offending slot and false on the first mismatch, -1 and true
// when every slot agrees. Slots absent from a map count as empty.
func (v *TransactionValidator) ValidateTransaction(player uuid.UUID, expected, actual map[int]item.Fingerprint) (int, bool) {
	slots := make(map[int]struct{}, len(expected)+len(actual))
	for s := range expected {
		slots[s] = struct{}{}
	}
	for s := range actual {
		slots[s] = struct{}{}
	}
	ordered := make([]int, 0, len(slots))
	for s := range slots {
		ordered = append(ordered, s)
	}
	sort.Ints(ordered)

	for _, s := range ordered {
		if expected[s] != actual[s] {
			return s, false
		}
	}
	return -1, true
}

// ClearPlayer discards the player's pending set on close or disconnect.
func (v *TransactionValidator) ClearPlayer(player uuid.UUID) {
	v.mu.Lock()
	delete(v.recent, player)
	v.mu.Unlock()
}

// PendingCount reports live (unexpired) entries for the player.
func (v *TransactionValidator) PendingCount(player uuid.UUID) int {
	now := v.clock.Now()
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, p := range v.recent[player] {
		if now.Sub(p.at) < v.window {
			n++
		}
	}
	return n
}
