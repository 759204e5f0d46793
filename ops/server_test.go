package ops

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"auroragui.dev/packetguard/guard"
	"auroragui.dev/packetguard/host/hosttest"
	"auroragui.dev/packetguard/violation"
)

func newTestServer(t *testing.T) (*Server, *violation.Logger) {
	t.Helper()
	console := log.New(io.Discard, "", 0)
	vlog := violation.NewLogger(hosttest.NewFakeClock(), console)
	srv := NewServer(vlog, console)
	vlog.AddSink(srv)
	return srv, vlog
}

func dial(t *testing.T, url string, minSeverity int) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	sub := SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: Version, MinSeverity: minSeverity}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func waitSubscribers(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for srv.SubscriberCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers: have %d, want %d", srv.SubscriberCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFeed_BroadcastsViolations(t *testing.T) {
	srv, vlog := newTestServer(t)
	ts := httptest.NewServer(srv.WSHandler())
	defer ts.Close()

	conn := dial(t, ts.URL, 0)
	defer conn.Close()
	waitSubscribers(t, srv, 1)

	p := hosttest.NewFakePlayer("mallory")
	vlog.Log(p, "shop", guard.NBTMismatch, "lore edited client-side")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg FeedMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read feed: %v", err)
	}
	if msg.Type != "VIOLATION" || msg.ProtocolVersion != Version {
		t.Fatalf("bad envelope: %+v", msg)
	}
	if msg.Record.PlayerName != "mallory" || msg.Record.Exploit != guard.NBTMismatch {
		t.Fatalf("bad record: %+v", msg.Record)
	}
	if msg.Record.Severity != guard.NBTMismatch.Severity() {
		t.Fatalf("severity: have %d", msg.Record.Severity)
	}
}

func TestFeed_SeverityFilter(t *testing.T) {
	srv, vlog := newTestServer(t)
	ts := httptest.NewServer(srv.WSHandler())
	defer ts.Close()

	conn := dial(t, ts.URL, 4)
	defer conn.Close()
	waitSubscribers(t, srv, 1)

	p := hosttest.NewFakePlayer("steve")
	vlog.Log(p, "shop", guard.ClickDelay, "") // severity 2, filtered
	vlog.Log(p, "shop", guard.SlotDesync, "") // severity 4, delivered

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg FeedMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read feed: %v", err)
	}
	if msg.Record.Exploit != guard.SlotDesync {
		t.Fatalf("filter leaked %s", msg.Record.Exploit)
	}
}

func TestFeed_RejectsBadHandshake(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.WSHandler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(map[string]any{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close after bad handshake")
	}
	if srv.SubscriberCount() != 0 {
		t.Fatalf("bad handshake left a subscriber")
	}
}

func TestSummaryHandler(t *testing.T) {
	srv, vlog := newTestServer(t)
	ts := httptest.NewServer(srv.SummaryHandler())
	defer ts.Close()

	p := hosttest.NewFakePlayer("alex")
	vlog.Log(p, "bank", guard.TransactionMismatch, "stack grew")

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out SummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(out.Report, "alex") {
		t.Fatalf("report missing player:\n%s", out.Report)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:51000", true},
		{"[::1]:51000", true},
		{"10.0.0.7:51000", false},
		{"example.com:80", false},
		{"garbage", false},
	}
	for _, c := range cases {
		if have := isLoopbackRemote(c.addr); have != c.want {
			t.Fatalf("isLoopbackRemote(%q) = %v, want %v", c.addr, have, c.want)
		}
	}
}
