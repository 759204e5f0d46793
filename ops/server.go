// Package ops exposes the guard to operators at runtime: a websocket feed
// broadcasting violation records as they are detected, and an HTTP summary
// endpoint. Both are loopback-guarded; this surface is for server admins,
// not players.
package ops

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"auroragui.dev/packetguard/violation"
)

// Version pins the feed message shape; see schemas/violation.schema.json.
const Version = "1.0"

// SubscribeMsg is the client's handshake. MinSeverity filters the feed.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MinSeverity     int    `json:"min_severity,omitempty"`
}

// FeedMsg wraps one violation record on the wire.
type FeedMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Record          violation.Record `json:"record"`
}

// SummaryResponse is the HTTP summary payload.
type SummaryResponse struct {
	GeneratedAt string `json:"generated_at"`
	Report      string `json:"report"`
}

type subscriber struct {
	out         chan []byte
	minSeverity atomic.Int32
}

// Server fans violation records out to subscribed operator connections.
// It satisfies violation.Sink, so it plugs into the logger like any other
// destination; a slow subscriber is dropped behind, never waited on.
type Server struct {
	vlog *violation.Logger
	log  *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewServer(vlog *violation.Logger, logger *log.Logger) *Server {
	return &Server{
		vlog: vlog,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback-only anyway
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// WriteViolation satisfies violation.Sink: broadcast to every subscriber
// whose severity filter admits the record. Never blocks.
func (s *Server) WriteViolation(rec violation.Record) error {
	msg := FeedMsg{Type: "VIOLATION", ProtocolVersion: Version, Record: rec}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		if rec.Severity < int(sub.minSeverity.Load()) {
			continue
		}
		select {
		case sub.out <- b:
		default:
			// Subscriber behind; drop this record for them.
		}
	}
	return nil
}

// SubscriberCount reports live feed connections.
func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// WSHandler upgrades operator connections. Handshake: the client sends
// SUBSCRIBE first, then only reads.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != Version {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"),
				time.Now().Add(time.Second))
			return
		}

		sb := &subscriber{out: make(chan []byte, 256)}
		sb.minSeverity.Store(int32(sub.MinSeverity))
		s.mu.Lock()
		s.subs[sb] = struct{}{}
		s.mu.Unlock()
		if s.log != nil {
			s.log.Printf("feed subscriber joined (min_severity=%d)", sub.MinSeverity)
		}
		defer func() {
			s.mu.Lock()
			delete(s.subs, sb)
			s.mu.Unlock()
			if s.log != nil {
				s.log.Printf("feed subscriber left")
			}
		}()

		done := make(chan struct{})

		// Reader: notices the peer going away and accepts SUBSCRIBE updates
		// so the severity filter can be retuned without reconnecting.
		go func() {
			defer close(done)
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var upd SubscribeMsg
				if err := json.Unmarshal(msg, &upd); err != nil {
					continue
				}
				if upd.Type != "SUBSCRIBE" || upd.ProtocolVersion != Version {
					continue
				}
				sb.minSeverity.Store(int32(upd.MinSeverity))
			}
		}()

		for {
			select {
			case <-done:
				return
			case b := <-sb.out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}

// SummaryHandler serves the top-offenders report as JSON.
func (s *Server) SummaryHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := SummaryResponse{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Report:      s.vlog.SummaryReport(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func isLoopbackRemote(remote string) bool {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	host = strings.Trim(host, "[]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
