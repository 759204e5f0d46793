package gui

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"auroragui.dev/packetguard/guard"
	"auroragui.dev/packetguard/host"
	"auroragui.dev/packetguard/item"
)

// ClickAction runs after a click on its slot passed every validation layer.
type ClickAction func(p host.Player, ev *host.ClickEvent)

// ClickCondition gates a slot's action per player. Returning false quietly
// swallows the click.
type ClickCondition func(p host.Player) bool

// PreClickHook may veto a click before any guard logic runs.
type PreClickHook func(p host.Player, ev *host.ClickEvent) bool

// PostClickHook observes clicks whose action ran.
type PostClickHook func(p host.Player, ev *host.ClickEvent)

// ViolationHandler is invoked synchronously on every detection. Must not
// block.
type ViolationHandler func(p host.Player, et guard.ExploitType)

// ErrNotRegistered is returned by Open before Register was called.
var ErrNotRegistered = fmt.Errorf("gui: open before register")

// session is the per-player lifecycle record. Both timestamps exist
// together or not at all.
type session struct {
	player       host.Player
	openedAt     time.Time
	lastActivity time.Time
}

// PacketGui is a GUI whose every click is validated against authoritative
// server-side state before any consumer handler runs. Detected exploits are
// logged, dispatched to the violation handler, and answered with rollback,
// forced close, or a kick depending on configuration; they never panic and
// never disturb other viewers.
type PacketGui struct {
	name  string
	title string
	rows  int
	cfg   guard.Config

	reg       *Registry
	validator *guard.Validator

	mu             sync.RWMutex
	inv            host.Inventory
	items          map[int]item.Stack
	actions        map[int]ClickAction
	conditions     map[int]ClickCondition
	globalCooldown time.Duration
	slotCooldowns  map[int]time.Duration
	lastUse        map[uuid.UUID]time.Time
	lastSlotUse    map[uuid.UUID]map[int]time.Time
	sessions       map[uuid.UUID]*session
	preClick       []PreClickHook
	postClick      []PostClickHook
	onViolation    ViolationHandler
	registered     bool
	destroyed      bool
}

// New builds a GUI of rows*9 slots. rows outside 1..6 is a programming
// error and panics.
func New(name, title string, rows int, cfg guard.Config, reg *Registry) *PacketGui {
	if rows < 1 || rows > 6 {
		panic(fmt.Sprintf("gui: rows %d outside 1..6", rows))
	}
	return &PacketGui{
		name:          name,
		title:         title,
		rows:          rows,
		cfg:           cfg,
		reg:           reg,
		validator:     guard.NewValidator(cfg, reg.clock, rows*9),
		items:         make(map[int]item.Stack),
		actions:       make(map[int]ClickAction),
		conditions:    make(map[int]ClickCondition),
		slotCooldowns: make(map[int]time.Duration),
		lastUse:       make(map[uuid.UUID]time.Time),
		lastSlotUse:   make(map[uuid.UUID]map[int]time.Time),
		sessions:      make(map[uuid.UUID]*session),
	}
}

func (g *PacketGui) Name() string         { return g.name }
func (g *PacketGui) Size() int            { return g.rows * 9 }
func (g *PacketGui) Config() guard.Config { return g.cfg }

// Validator exposes the guard pipeline, mainly for inspection.
func (g *PacketGui) Validator() *guard.Validator { return g.validator }

// SetItem places an item with an optional click action. Air items and
// out-of-range slots are programming errors in the consuming plugin and
// panic immediately.
func (g *PacketGui) SetItem(slot int, st item.Stack, action ClickAction) {
	if slot < 0 || slot >= g.Size() {
		panic(fmt.Sprintf("gui %q: slot %d outside 0..%d", g.name, slot, g.Size()-1))
	}
	if st.IsAir() {
		panic(fmt.Sprintf("gui %q: air item at slot %d", g.name, slot))
	}
	g.mu.Lock()
	g.items[slot] = st.Clone()
	if action != nil {
		g.actions[slot] = action
	} else {
		delete(g.actions, slot)
	}
	inv := g.inv
	g.mu.Unlock()

	// Authoritative state mirrors every placement; click handlers never
	// touch it directly.
	g.validator.Inventory().SetAuthoritativeItem(slot, st)
	if inv != nil {
		inv.SetItem(slot, st)
	}
}

// AddItem places into the first free slot, reporting false when full.
func (g *PacketGui) AddItem(st item.Stack, action ClickAction) (int, bool) {
	if st.IsAir() {
		panic(fmt.Sprintf("gui %q: air item", g.name))
	}
	g.mu.RLock()
	slot := -1
	for i := 0; i < g.Size(); i++ {
		if _, used := g.items[i]; !used {
			slot = i
			break
		}
	}
	g.mu.RUnlock()
	if slot < 0 {
		return -1, false
	}
	g.SetItem(slot, st, action)
	return slot, true
}

// RemoveItem clears a slot and its action.
func (g *PacketGui) RemoveItem(slot int) {
	if slot < 0 || slot >= g.Size() {
		panic(fmt.Sprintf("gui %q: slot %d outside 0..%d", g.name, slot, g.Size()-1))
	}
	g.mu.Lock()
	delete(g.items, slot)
	delete(g.actions, slot)
	delete(g.conditions, slot)
	inv := g.inv
	g.mu.Unlock()

	g.validator.Inventory().SetAuthoritativeItem(slot, item.Air)
	if inv != nil {
		inv.SetItem(slot, item.Air)
	}
}

// SetCondition gates the slot's action per player.
func (g *PacketGui) SetCondition(slot int, cond ClickCondition) {
	g.mu.Lock()
	g.conditions[slot] = cond
	g.mu.Unlock()
}

// SetGlobalCooldown throttles all clicks per player.
func (g *PacketGui) SetGlobalCooldown(d time.Duration) {
	g.mu.Lock()
	g.globalCooldown = d
	g.mu.Unlock()
}

// SetSlotCooldown throttles one slot per player.
func (g *PacketGui) SetSlotCooldown(slot int, d time.Duration) {
	g.mu.Lock()
	g.slotCooldowns[slot] = d
	g.mu.Unlock()
}

// OnPreClick adds a veto hook that runs before validation.
func (g *PacketGui) OnPreClick(h PreClickHook) {
	g.mu.Lock()
	g.preClick = append(g.preClick, h)
	g.mu.Unlock()
}

// OnPostClick adds an observer hook that runs after the action.
func (g *PacketGui) OnPostClick(h PostClickHook) {
	g.mu.Lock()
	g.postClick = append(g.postClick, h)
	g.mu.Unlock()
}

// OnViolation installs the consumer's violation callback.
func (g *PacketGui) OnViolation(h ViolationHandler) {
	g.mu.Lock()
	g.onViolation = h
	g.mu.Unlock()
}

// Register enters the GUI into the registry. Required before Open.
func (g *PacketGui) Register() error {
	if err := g.reg.register(g); err != nil {
		return err
	}
	g.mu.Lock()
	g.registered = true
	g.mu.Unlock()
	return nil
}

// Open shows the GUI to the player, creating the backing inventory lazily,
// recording the session, and starting the shared session monitor if stale
// detection is configured.
func (g *PacketGui) Open(p host.Player) error {
	g.mu.Lock()
	if !g.registered {
		g.mu.Unlock()
		return ErrNotRegistered
	}
	if g.destroyed {
		g.mu.Unlock()
		return fmt.Errorf("gui %q: destroyed", g.name)
	}
	if g.inv == nil {
		g.inv = g.reg.newInv(g.Size(), g.title)
		for slot, st := range g.items {
			g.inv.SetItem(slot, st)
		}
	}
	inv := g.inv
	now := g.reg.clock.Now()
	g.sessions[p.UUID()] = &session{player: p, openedAt: now, lastActivity: now}
	g.mu.Unlock()

	p.OpenInventory(inv)
	g.reg.setActive(p.UUID(), g)
	if g.cfg.DetectStaleSession {
		g.reg.ensureMonitor(g.cfg.InactivityCheckInterval())
	}
	return nil
}

// Inventory returns the backing inventory, nil before first open.
func (g *PacketGui) Inventory() host.Inventory {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inv
}

// OpenSessions reports how many players currently have a session.
func (g *PacketGui) OpenSessions() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// HandleClick is the validation front door for one click event. The raw
// event is always cancelled: the guard, not the engine, decides effective
// state.
func (g *PacketGui) HandleClick(ev *host.ClickEvent) {
	ev.SetCancelled(true)
	p := ev.Player
	pid := p.UUID()
	now := g.reg.clock.Now()

	g.mu.Lock()
	pre := g.preClick
	post := g.postClick
	sess, hasSession := g.sessions[pid]
	inv := g.inv
	if hasSession {
		sess.lastActivity = now
	}
	g.mu.Unlock()

	for _, h := range pre {
		if !h(p, ev) {
			return
		}
	}

	if !g.cooldownReady(p, ev.Slot, now) {
		return
	}

	g.mu.RLock()
	cond := g.conditions[ev.Slot]
	action := g.actions[ev.Slot]
	g.mu.RUnlock()
	if cond != nil && !cond(p) {
		return
	}

	viewing := hasSession && inv != nil && p.IsViewing(inv)
	if viol := g.validator.ValidateClick(ev, viewing); viol != nil {
		g.handleViolation(p, viol)
		return
	}

	if action != nil {
		g.markUsed(pid, ev.Slot, now)
		action(p, ev)
	}

	if viol := g.validator.VerifyTransaction(pid, inv); viol != nil {
		g.handleViolation(p, viol)
		return
	}

	for _, h := range post {
		h(p, ev)
	}
}

// cooldownReady enforces the global then per-slot cooldown, messaging the
// player with the remaining time. Cooldown rejection short-circuits before
// any click-specific logic.
func (g *PacketGui) cooldownReady(p host.Player, slot int, now time.Time) bool {
	pid := p.UUID()
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.globalCooldown > 0 {
		if last, ok := g.lastUse[pid]; ok {
			if remaining := g.globalCooldown - now.Sub(last); remaining > 0 {
				p.SendMessage(fmt.Sprintf("Please wait %.1fs", remaining.Seconds()))
				return false
			}
		}
	}
	if d := g.slotCooldowns[slot]; d > 0 {
		if last, ok := g.lastSlotUse[pid][slot]; ok {
			if remaining := d - now.Sub(last); remaining > 0 {
				p.SendMessage(fmt.Sprintf("Please wait %.1fs", remaining.Seconds()))
				return false
			}
		}
	}
	return true
}

func (g *PacketGui) markUsed(pid uuid.UUID, slot int, now time.Time) {
	g.mu.Lock()
	g.lastUse[pid] = now
	m, ok := g.lastSlotUse[pid]
	if !ok {
		m = make(map[int]time.Time)
		g.lastSlotUse[pid] = m
	}
	m[slot] = now
	g.mu.Unlock()
}

// handleViolation runs the common detection response: log, dispatch the
// handler, roll back desynced state, and escalate to a kick once the
// player's cumulative count crosses the threshold. Benign AFK staleness
// is recorded but never escalates to a kick.
func (g *PacketGui) handleViolation(p host.Player, viol *guard.Violation) {
	pid := p.UUID()
	vlog := g.reg.violations
	if vlog != nil {
		if g.cfg.LogViolations {
			vlog.Log(p, g.name, viol.Type, viol.Details)
		} else {
			// Counters still advance so the kick threshold keeps working
			// with the audit trail switched off.
			vlog.Tally(p, viol.Type)
		}
	}

	g.mu.RLock()
	handler := g.onViolation
	inv := g.inv
	g.mu.RUnlock()
	if handler != nil {
		handler(p, viol.Type)
	}

	if g.cfg.AutoRollbackOnViolation && inv != nil && isStateViolation(viol.Type) {
		g.validator.Inventory().ForceResync(p, inv)
	}

	if viol.Type == guard.StaleSession {
		return
	}
	if g.cfg.KickOnViolation && vlog != nil &&
		vlog.TotalViolations(pid) >= g.cfg.ViolationKickThreshold {
		p.Kick(fmt.Sprintf("Inventory exploit detected: %s", viol.Type.Description()))
		g.Cleanup(p)
	}
}

func isStateViolation(et guard.ExploitType) bool {
	switch et {
	case guard.SlotDesync, guard.CursorDesync, guard.CloseDesync,
		guard.NBTMismatch, guard.TransactionMismatch:
		return true
	}
	return false
}

// checkForStaleSessions is run by the registry's shared monitor. A stale
// session whose inventory the engine no longer reports open means the
// client withheld its close packet; a stale session that is genuinely still
// open is benign AFK staleness.
func (g *PacketGui) checkStaleSessions(now time.Time) {
	timeout := g.cfg.SessionTimeout()

	g.mu.RLock()
	stale := make([]*session, 0)
	for _, s := range g.sessions {
		inactive := now.Sub(s.lastActivity)
		duration := now.Sub(s.openedAt)
		viewing := g.inv != nil && s.player.IsViewing(g.inv)
		if inactive >= timeout || (duration >= timeout && !viewing) {
			stale = append(stale, s)
		}
	}
	inv := g.inv
	g.mu.RUnlock()

	for _, s := range stale {
		p := s.player
		if inv == nil || !p.IsViewing(inv) {
			// Server bookkeeping says open, engine says closed, and no
			// close event ever fired.
			g.handleViolation(p, &guard.Violation{
				Type:    guard.NoClosePacket,
				Details: fmt.Sprintf("session open %ds with no close packet", int(now.Sub(s.openedAt).Seconds())),
			})
			p.CloseInventory()
			g.Cleanup(p)
			continue
		}

		g.handleViolation(p, &guard.Violation{
			Type:    guard.StaleSession,
			Details: fmt.Sprintf("inactive %ds", int(now.Sub(s.lastActivity).Seconds())),
		})
		p.SendMessage("Session expired.")
		if g.cfg.ForceCloseOnTimeout {
			p.CloseInventory()
			g.Cleanup(p)
		}
	}
}

// Cleanup tears down one player's session: registry entry, validator
// session state, cursor records, cooldown bookkeeping.
func (g *PacketGui) Cleanup(p host.Player) {
	pid := p.UUID()
	g.mu.Lock()
	delete(g.sessions, pid)
	delete(g.lastUse, pid)
	delete(g.lastSlotUse, pid)
	g.mu.Unlock()

	g.reg.clearActive(pid, g)
	g.validator.EndSession(pid)
}

// Destroy closes every session and removes the GUI from the registry.
func (g *PacketGui) Destroy() {
	g.mu.Lock()
	sessions := make([]*session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.destroyed = true
	g.mu.Unlock()

	for _, s := range sessions {
		s.player.CloseInventory()
		g.Cleanup(s.player)
	}
	g.reg.unregister(g.name)
	g.validator.Reset()
}
