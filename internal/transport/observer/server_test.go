package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tenacitos.ai/internal/observerproto"
	"tenacitos.ai/internal/protocol"
	"tenacitos.ai/internal/sim/layout"
	"tenacitos.ai/internal/sim/office"
)

const testLayout = `id: test_office
bounds: { min_x: -6, max_x: 6, min_z: -5, max_z: 5 }
obstacles:
  - { id: plant, x: 0, z: 0, radius: 0.5 }
desks:
  - { agent: main, x: -3, z: -2 }
  - { agent: infra, x: 3, z: 2 }
`

func startOffice(t *testing.T) (*office.Office, context.CancelFunc) {
	t.Helper()
	l, err := layout.Parse([]byte(testLayout))
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	cfg := office.DefaultConfig()
	cfg.ID = "test_office"
	cfg.TickRateHz = 50
	o, err := office.New(cfg, l)
	if err != nil {
		t.Fatalf("office: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = o.Run(ctx) }()
	return o, cancel
}

func TestBootstrapHandler(t *testing.T) {
	o, cancel := startOffice(t)
	defer cancel()
	s := NewServer(o, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var b observerproto.BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.OfficeID != "test_office" || len(b.Obstacles) != 1 || len(b.Graph.Nodes) == 0 {
		t.Fatalf("bootstrap=%+v", b)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "10.0.0.8:5555"
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d", rec.Code)
	}
}

func TestWSStreamsFilteredFrames(t *testing.T) {
	o, cancel := startOffice(t)
	defer cancel()
	s := NewServer(o, nil)
	ts := httptest.NewServer(s.WSHandler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, AgentIDs: []string{"infra"}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	o.StatusInbox() <- office.StatusUpdate{Source: "test", Seq: 1, Agents: []protocol.AgentStatus{
		{ID: "main", Status: "idle"},
		{ID: "infra", Status: "working"},
	}}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var f observerproto.FrameMsg
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(f.Agents) == 0 {
			continue
		}
		if len(f.Agents) != 1 || f.Agents[0].ID != "infra" || f.Agents[0].Mode != "SEATED" {
			t.Fatalf("frame agents=%+v", f.Agents)
		}
		return
	}
	t.Fatalf("no frame carrying infra")
}

func TestWSRequiresSubscribe(t *testing.T) {
	o, cancel := startOffice(t)
	defer cancel()
	ts := httptest.NewServer(NewServer(o, nil).WSHandler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:9000":   true,
		"10.1.2.3:80":  false,
		"garbage":      false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("%s: got %v want %v", in, got, want)
		}
	}
}
