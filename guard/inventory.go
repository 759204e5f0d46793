package guard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/host"
	"auroragui.dev/packetguard/item"
)

// ServerSideInventory is the authoritative copy of a GUI's contents,
// independent of anything the client packet claims. Exactly one PacketGui
// owns each instance. Every stack stored here is a defensive clone; nothing
// in this struct aliases an engine-owned object.
type ServerSideInventory struct {
	mu       sync.RWMutex
	size     int
	slots    map[int]item.Stack
	cursors  map[uuid.UUID]item.Stack
	lastSync map[uuid.UUID]time.Time
	clock    host.Clock
}

func NewServerSideInventory(size int, clock host.Clock) *ServerSideInventory {
	return &ServerSideInventory{
		size:     size,
		slots:    make(map[int]item.Stack),
		cursors:  make(map[uuid.UUID]item.Stack),
		lastSync: make(map[uuid.UUID]time.Time),
		clock:    clock,
	}
}

func (s *ServerSideInventory) Size() int { return s.size }

// InitializeFromInventory deep-clones every non-air slot of the live
// inventory into authoritative storage.
func (s *ServerSideInventory) InitializeFromInventory(inv host.Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[int]item.Stack, inv.Size())
	n := inv.Size()
	if n > s.size {
		n = s.size
	}
	for slot := 0; slot < n; slot++ {
		if st := inv.Item(slot); !st.IsAir() {
			s.slots[slot] = st.Clone()
		}
	}
}

// SetAuthoritativeItem records the item placed at slot. Air clears it.
func (s *ServerSideInventory) SetAuthoritativeItem(slot int, st item.Stack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.IsAir() {
		delete(s.slots, slot)
		return
	}
	s.slots[slot] = st.Clone()
}

// AuthoritativeItem returns a clone of the recorded item, air if empty.
func (s *ServerSideInventory) AuthoritativeItem(slot int) item.Stack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.slots[slot]
	if !ok {
		return item.Air
	}
	return st.Clone()
}

// ValidateSlotState reports whether the client-claimed stack agrees with
// authoritative state on the coarse fields (material, amount, durability).
// Both sides empty counts as a match. Metadata tampering is the ADVANCED
// fingerprint layer's job, not this one.
func (s *ServerSideInventory) ValidateSlotState(slot int, claimed item.Stack) bool {
	s.mu.RLock()
	auth, ok := s.slots[slot]
	s.mu.RUnlock()
	if !ok {
		return claimed.IsAir()
	}
	return coarseMatch(auth, claimed)
}

// SetCursor records what the server put on the player's cursor.
func (s *ServerSideInventory) SetCursor(player uuid.UUID, st item.Stack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.IsAir() {
		delete(s.cursors, player)
		return
	}
	s.cursors[player] = st.Clone()
}

// Cursor returns a clone of the authoritative cursor stack, air if empty.
func (s *ServerSideInventory) Cursor(player uuid.UUID) item.Stack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.cursors[player]
	if !ok {
		return item.Air
	}
	return st.Clone()
}

// ValidateCursorState is the cursor analog of ValidateSlotState. Dupe
// exploits frequently manipulate the cursor independent of slots (pick an
// item up, desync before placing it, end up with two copies), so the cursor
// gets its own authoritative record.
func (s *ServerSideInventory) ValidateCursorState(player uuid.UUID, claimed item.Stack) bool {
	s.mu.RLock()
	auth, ok := s.cursors[player]
	s.mu.RUnlock()
	if !ok {
		return claimed.IsAir()
	}
	return coarseMatch(auth, claimed)
}

// ForceResync overwrites every slot of the live inventory with the
// authoritative copy and clears the player's cursor. This is the recovery
// path: a detected mismatch heals the client's view instead of crashing.
func (s *ServerSideInventory) ForceResync(p host.Player, inv host.Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for slot := 0; slot < s.size && slot < inv.Size(); slot++ {
		st, ok := s.slots[slot]
		if !ok {
			inv.SetItem(slot, item.Air)
			continue
		}
		inv.SetItem(slot, st.Clone())
	}
	p.SetCursor(item.Air)
	delete(s.cursors, p.UUID())
	s.lastSync[p.UUID()] = s.clock.Now()
}

// IsPlayerSynced checks every slot plus the cursor against the live view.
func (s *ServerSideInventory) IsPlayerSynced(p host.Player, inv host.Inventory) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for slot := 0; slot < s.size && slot < inv.Size(); slot++ {
		auth, ok := s.slots[slot]
		live := inv.Item(slot)
		if !ok {
			if !live.IsAir() {
				return false
			}
			continue
		}
		if !coarseMatch(auth, live) {
			return false
		}
	}
	cursor, ok := s.cursors[p.UUID()]
	if !ok {
		return p.Cursor().IsAir()
	}
	return coarseMatch(cursor, p.Cursor())
}

// LastSync returns when the player was last force-resynced.
func (s *ServerSideInventory) LastSync(player uuid.UUID) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastSync[player]
	return t, ok
}

// ClearPlayer drops per-player cursor and sync state on close/cleanup.
func (s *ServerSideInventory) ClearPlayer(player uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, player)
	delete(s.lastSync, player)
}

// Clear wipes all state on GUI destruction.
func (s *ServerSideInventory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[int]item.Stack)
	s.cursors = make(map[uuid.UUID]item.Stack)
	s.lastSync = make(map[uuid.UUID]time.Time)
}

func coarseMatch(a, b item.Stack) bool {
	if a.IsAir() || b.IsAir() {
		return a.IsAir() == b.IsAir()
	}
	return a.Material == b.Material && a.Amount == b.Amount && a.Durability == b.Durability
}
