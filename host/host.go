// Package host is the boundary to the game engine the guard is embedded in.
// The engine owns the rendered inventory, the event loop and the tick
// scheduler; everything the guard needs from it is expressed as the small
// interfaces below so the core stays engine-agnostic and the timing-heavy
// behavior stays testable against fakes.
package host

import (
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/item"
)

// Clock is the guard's time source. Production uses SystemClock; tests
// advance a fake by hand.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// CancelFunc stops a scheduled repeating task. Safe to call more than once.
type CancelFunc func()

// Scheduler is the engine's repeating-timer facility. Callbacks run on the
// engine's main simulation thread, same as event delivery.
type Scheduler interface {
	ScheduleRepeating(interval time.Duration, fn func()) CancelFunc
}

// InventoryFactory creates an engine-backed container of the given size
// with a display title. GUIs create their backing inventory lazily through
// this on first open.
type InventoryFactory func(size int, title string) Inventory

// Inventory is an engine-owned container view. Item returns a copy the
// caller may keep; SetItem replaces the slot with the given stack.
type Inventory interface {
	Size() int
	Item(slot int) item.Stack
	SetItem(slot int, st item.Stack)
	Clear()
}

// Player is a connected player as the engine sees them.
type Player interface {
	UUID() uuid.UUID
	Name() string
	SendMessage(msg string)
	Kick(reason string)

	// Cursor is the stack the engine believes the player is carrying on
	// their cursor; SetCursor overwrites it (used during forced resync).
	Cursor() item.Stack
	SetCursor(st item.Stack)

	// OpenInventory shows inv to the player as their open container.
	OpenInventory(inv Inventory)

	// IsViewing reports whether inv is the player's currently open
	// inventory according to the engine. This is the ground truth the
	// stale-session sweep compares the guard's bookkeeping against.
	IsViewing(inv Inventory) bool
	CloseInventory()
}
