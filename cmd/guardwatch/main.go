// guardwatch tails a running guard's violation feed over websocket.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"auroragui.dev/packetguard/ops"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8090/v1/feed", "feed url")
		minSeverity = flag.Int("min_severity", 0, "drop records below this severity")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[guardwatch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := ops.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: ops.Version,
		MinSeverity:     *minSeverity,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		var msg ops.FeedMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "VIOLATION" {
			continue
		}
		logger.Println(msg.Record.Line())
	}
}
