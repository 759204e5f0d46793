// Package gui provides the packet-validated inventory GUI: a facade that
// owns the anti-duplication validator, intercepts every click, enforces
// cooldowns and conditions, tracks per-player sessions, and sweeps for
// stale sessions that indicate a withheld close packet.
package gui

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/host"
	"auroragui.dev/packetguard/violation"
)

// Registry is the process-wide lookup substrate: which GUI is a player
// currently inside, and which template is registered under a name. It is an
// explicitly constructed object passed to every GUI rather than a global,
// so ownership and test reset stay visible. It also owns the shared
// session-monitor task, started lazily the first time a stale-detecting GUI
// opens.
type Registry struct {
	scheduler  host.Scheduler
	clock      host.Clock
	console    *log.Logger
	violations *violation.Logger
	newInv     host.InventoryFactory

	mu        sync.RWMutex
	active    map[uuid.UUID]*PacketGui
	templates map[string]*PacketGui

	monitorOnce   sync.Once
	monitorCancel host.CancelFunc
}

func NewRegistry(scheduler host.Scheduler, clock host.Clock, console *log.Logger, violations *violation.Logger, newInv host.InventoryFactory) *Registry {
	return &Registry{
		scheduler:  scheduler,
		clock:      clock,
		console:    console,
		violations: violations,
		newInv:     newInv,
		active:     make(map[uuid.UUID]*PacketGui),
		templates:  make(map[string]*PacketGui),
	}
}

// Violations exposes the shared violation logger.
func (r *Registry) Violations() *violation.Logger { return r.violations }

func (r *Registry) register(g *PacketGui) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[g.name]; exists {
		return fmt.Errorf("gui %q already registered", g.name)
	}
	r.templates[g.name] = g
	return nil
}

func (r *Registry) unregister(name string) {
	r.mu.Lock()
	delete(r.templates, name)
	r.mu.Unlock()
}

// Lookup finds a registered GUI template by name.
func (r *Registry) Lookup(name string) (*PacketGui, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.templates[name]
	return g, ok
}

// ActiveGUI reports which GUI the player currently has open, if any.
func (r *Registry) ActiveGUI(pid uuid.UUID) (*PacketGui, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.active[pid]
	return g, ok
}

func (r *Registry) setActive(pid uuid.UUID, g *PacketGui) {
	r.mu.Lock()
	r.active[pid] = g
	r.mu.Unlock()
}

func (r *Registry) clearActive(pid uuid.UUID, g *PacketGui) {
	r.mu.Lock()
	if cur, ok := r.active[pid]; ok && cur == g {
		delete(r.active, pid)
	}
	r.mu.Unlock()
}

// DispatchClick routes an engine click event to the player's active GUI.
// Events for players without an active GUI are not ours and pass through
// untouched.
func (r *Registry) DispatchClick(ev *host.ClickEvent) {
	g, ok := r.ActiveGUI(ev.Player.UUID())
	if !ok {
		return
	}
	g.HandleClick(ev)
}

// DispatchClose routes an engine close event.
func (r *Registry) DispatchClose(p host.Player) {
	g, ok := r.ActiveGUI(p.UUID())
	if !ok {
		return
	}
	g.Cleanup(p)
}

// ensureMonitor starts the shared sweep task once, at the given interval.
// The first stale-detecting GUI to open decides the interval; later GUIs
// reuse the running task.
func (r *Registry) ensureMonitor(interval time.Duration) {
	r.monitorOnce.Do(func() {
		r.monitorCancel = r.scheduler.ScheduleRepeating(interval, r.sweep)
		if r.console != nil {
			r.console.Printf("session monitor started (interval=%s)", interval)
		}
	})
}

func (r *Registry) sweep() {
	r.mu.RLock()
	guis := make([]*PacketGui, 0, len(r.templates))
	for _, g := range r.templates {
		guis = append(guis, g)
	}
	r.mu.RUnlock()

	now := r.clock.Now()
	for _, g := range guis {
		if g.cfg.DetectStaleSession {
			g.checkStaleSessions(now)
		}
	}
}

// Shutdown stops the monitor and destroys every registered GUI.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	cancel := r.monitorCancel
	r.monitorCancel = nil
	guis := make([]*PacketGui, 0, len(r.templates))
	for _, g := range r.templates {
		guis = append(guis, g)
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, g := range guis {
		g.Destroy()
	}
	if r.console != nil {
		r.console.Printf("gui registry shutdown: %d template(s) destroyed", len(guis))
	}
}
