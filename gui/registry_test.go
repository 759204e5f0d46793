package gui

import (
	"testing"

	"auroragui.dev/packetguard/guard"
	"auroragui.dev/packetguard/host"
	"auroragui.dev/packetguard/host/hosttest"
)

func TestRegistry_registerLookup(t *testing.T) {
	e := newEnv(t)
	g := New("shop", "Shop", 3, guard.Normal(), e.reg)
	if err := g.Register(); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := New("shop", "Other", 1, guard.Normal(), e.reg).Register(); err == nil {
		t.Fatalf("duplicate name accepted")
	}
	got, ok := e.reg.Lookup("shop")
	if !ok || got != g {
		t.Fatalf("lookup returned %v, %v", got, ok)
	}
	if _, ok := e.reg.Lookup("missing"); ok {
		t.Fatalf("phantom template found")
	}
}

func TestRegistry_dispatchRouting(t *testing.T) {
	e := newEnv(t)
	shop := New("shop", "Shop", 3, guard.Normal(), e.reg)
	vault := New("vault", "Vault", 3, guard.Normal(), e.reg)
	shopClicks, vaultClicks := 0, 0
	shop.SetItem(0, button(), func(host.Player, *host.ClickEvent) { shopClicks++ })
	vault.SetItem(0, button(), func(host.Player, *host.ClickEvent) { vaultClicks++ })

	alice := hosttest.NewFakePlayer("alice")
	bob := hosttest.NewFakePlayer("bob")
	openGui(t, e, shop, alice)
	openGui(t, e, vault, bob)

	e.reg.DispatchClick(guiClick(alice, 0, button()))
	e.reg.DispatchClick(guiClick(bob, 0, button()))
	if shopClicks != 1 || vaultClicks != 1 {
		t.Fatalf("clicks routed wrong: shop=%d vault=%d", shopClicks, vaultClicks)
	}

	// A player with no active GUI is not ours.
	stranger := hosttest.NewFakePlayer("stranger")
	ev := guiClick(stranger, 0, button())
	e.reg.DispatchClick(ev)
	if ev.Cancelled() {
		t.Fatalf("foreign click cancelled")
	}

	e.reg.DispatchClose(alice)
	if shop.OpenSessions() != 0 {
		t.Fatalf("close not routed")
	}
	if _, ok := e.reg.ActiveGUI(alice.UUID()); ok {
		t.Fatalf("active entry survived close")
	}
}

func TestRegistry_monitorStartsOnce(t *testing.T) {
	e := newEnv(t)
	cfg := guard.Normal()
	cfg.InactivityCheckIntervalMs = 500
	a := New("a", "A", 1, cfg, e.reg)
	b := New("b", "B", 1, cfg, e.reg)
	p1 := hosttest.NewFakePlayer("p1")
	p2 := hosttest.NewFakePlayer("p2")
	openGui(t, e, a, p1)
	openGui(t, e, b, p2)

	if got := e.sched.TaskCount(); got != 1 {
		t.Fatalf("monitor tasks = %d, want 1 shared", got)
	}
}

func TestRegistry_shutdown(t *testing.T) {
	e := newEnv(t)
	g := New("shop", "Shop", 3, guard.Normal(), e.reg)
	p := hosttest.NewFakePlayer("alice")
	openGui(t, e, g, p)

	e.reg.Shutdown()

	if e.sched.TaskCount() != 0 {
		t.Fatalf("monitor survived shutdown")
	}
	if g.OpenSessions() != 0 {
		t.Fatalf("sessions survived shutdown")
	}
	if _, ok := e.reg.Lookup("shop"); ok {
		t.Fatalf("template survived shutdown")
	}
}
