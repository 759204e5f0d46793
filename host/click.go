package host

import "auroragui.dev/packetguard/item"

// ClickType mirrors the engine's inventory click variants.
type ClickType int

const (
	ClickLeft ClickType = iota
	ClickRight
	ClickShiftLeft
	ClickShiftRight
	ClickMiddle
	ClickDrop
	ClickDouble
	ClickNumberKey
)

func (c ClickType) IsShift() bool {
	return c == ClickShiftLeft || c == ClickShiftRight
}

func (c ClickType) String() string {
	switch c {
	case ClickLeft:
		return "LEFT"
	case ClickRight:
		return "RIGHT"
	case ClickShiftLeft:
		return "SHIFT_LEFT"
	case ClickShiftRight:
		return "SHIFT_RIGHT"
	case ClickMiddle:
		return "MIDDLE"
	case ClickDrop:
		return "DROP"
	case ClickDouble:
		return "DOUBLE"
	case ClickNumberKey:
		return "NUMBER_KEY"
	}
	return "UNKNOWN"
}

// ClickEvent is one inventory click as delivered by the engine. Clicked and
// Cursor carry what the client packet claims was in the slot and on the
// cursor; the guard treats both as untrusted input.
type ClickEvent struct {
	Player  Player
	Slot    int
	Type    ClickType
	Clicked item.Stack
	Cursor  item.Stack

	cancelled bool
}

// SetCancelled flips the engine's event-cancellation flag. The guard cancels
// every raw click and applies effects itself.
func (e *ClickEvent) SetCancelled(v bool) { e.cancelled = v }

func (e *ClickEvent) Cancelled() bool { return e.cancelled }
