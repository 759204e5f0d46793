// Package hosttest provides hand-driven fakes for the host boundary so the
// timing-dependent guard behavior can be exercised deterministically.
package hosttest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/host"
	"auroragui.dev/packetguard/item"
)

// FakeClock starts at a fixed instant and only moves when advanced.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FakeScheduler records repeating tasks and runs them only when pumped.
type FakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

type fakeTask struct {
	interval  time.Duration
	fn        func()
	cancelled bool
}

func NewFakeScheduler() *FakeScheduler { return &FakeScheduler{} }

func (s *FakeScheduler) ScheduleRepeating(interval time.Duration, fn func()) host.CancelFunc {
	s.mu.Lock()
	t := &fakeTask{interval: interval, fn: fn}
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

// Tick runs every live task once, as if one scheduler interval elapsed.
func (s *FakeScheduler) Tick() {
	s.mu.Lock()
	tasks := make([]*fakeTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.cancelled {
			tasks = append(tasks, t)
		}
	}
	s.mu.Unlock()
	for _, t := range tasks {
		t.fn()
	}
}

// TaskCount returns the number of live tasks.
func (s *FakeScheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// FakeInventory is an in-memory container.
type FakeInventory struct {
	slots []item.Stack
}

func NewFakeInventory(size int) *FakeInventory {
	return &FakeInventory{slots: make([]item.Stack, size)}
}

func (f *FakeInventory) Size() int { return len(f.slots) }

func (f *FakeInventory) Item(slot int) item.Stack {
	if slot < 0 || slot >= len(f.slots) {
		return item.Air
	}
	return f.slots[slot].Clone()
}

func (f *FakeInventory) SetItem(slot int, st item.Stack) {
	if slot < 0 || slot >= len(f.slots) {
		return
	}
	f.slots[slot] = st.Clone()
}

func (f *FakeInventory) Clear() {
	for i := range f.slots {
		f.slots[i] = item.Air
	}
}

// FakePlayer records messages and kicks, and lets tests control which
// inventory the "engine" reports as open.
type FakePlayer struct {
	ID       uuid.UUID
	Username string

	Messages   []string
	KickedWith string
	Kicked     bool

	CursorItem item.Stack
	Viewing    host.Inventory
}

func NewFakePlayer(name string) *FakePlayer {
	return &FakePlayer{ID: uuid.New(), Username: name}
}

func (p *FakePlayer) UUID() uuid.UUID { return p.ID }
func (p *FakePlayer) Name() string    { return p.Username }

func (p *FakePlayer) SendMessage(msg string) { p.Messages = append(p.Messages, msg) }

func (p *FakePlayer) Kick(reason string) {
	p.Kicked = true
	p.KickedWith = reason
	p.Viewing = nil
}

func (p *FakePlayer) Cursor() item.Stack      { return p.CursorItem.Clone() }
func (p *FakePlayer) SetCursor(st item.Stack) { p.CursorItem = st.Clone() }

func (p *FakePlayer) OpenInventory(inv host.Inventory) { p.Viewing = inv }

func (p *FakePlayer) IsViewing(inv host.Inventory) bool {
	return p.Viewing != nil && p.Viewing == inv
}

func (p *FakePlayer) CloseInventory() { p.Viewing = nil }
