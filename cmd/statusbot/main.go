package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"tenacitos.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/status", "status ws url")
		name     = flag.String("name", "statusbot", "feed source name")
		interval = flag.Duration("interval", 4*time.Second, "time between status flips")
		seed     = flag.Int64("seed", 0, "random seed (0 = time based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[statusbot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		SourceName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	logger.Printf("WELCOME session=%s office=%s tick_rate=%d agents=%v", welcome.SessionID, welcome.OfficeID, welcome.TickRateHz, welcome.KnownAgents)
	if len(welcome.KnownAgents) == 0 {
		logger.Fatalf("office has no desks; nothing to drive")
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(*seed))

	// ACK reader.
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAck {
				continue
			}
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			if !ack.Accepted {
				logger.Printf("ACK seq=%d rejected code=%s msg=%s", ack.AckFor, ack.Code, ack.Message)
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	cur := initialStatuses(welcome.KnownAgents)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	var seq uint64
	for {
		seq++
		msg := protocol.StatusMsg{
			Type:            protocol.TypeStatus,
			ProtocolVersion: protocol.Version,
			Seq:             seq,
			Agents:          cur,
		}
		if err := conn.WriteJSON(msg); err != nil {
			logger.Printf("send STATUS: %v", err)
			return
		}

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		var changed string
		cur, changed = flipOne(r, cur)
		logger.Printf("seq=%d %s", seq+1, changed)
	}
}

var botStatuses = []string{
	protocol.StatusIdle,
	protocol.StatusWorking,
	protocol.StatusThinking,
	protocol.StatusError,
	protocol.StatusSleeping,
}

func initialStatuses(ids []string) []protocol.AgentStatus {
	out := make([]protocol.AgentStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, protocol.AgentStatus{ID: id, Status: protocol.StatusIdle})
	}
	return out
}

// flipOne returns a copy of cur with one agent moved to a different status.
func flipOne(r *rand.Rand, cur []protocol.AgentStatus) ([]protocol.AgentStatus, string) {
	next := append([]protocol.AgentStatus(nil), cur...)
	if len(next) == 0 {
		return next, ""
	}
	i := r.Intn(len(next))
	old := next[i].Status
	for next[i].Status == old {
		next[i].Status = botStatuses[r.Intn(len(botStatuses))]
	}
	return next, next[i].ID + ": " + old + " -> " + next[i].Status
}
