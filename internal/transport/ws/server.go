package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tenacitos.ai/internal/protocol"
	"tenacitos.ai/internal/sim/office"
)

// Server accepts status feeds: HELLO, then any number of STATUS messages,
// each answered with an ACK.
type Server struct {
	office *office.Office
	log    *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(o *office.Office, logger *log.Logger) *Server {
	s := &Server{
		office: o,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		source := s.handshake(conn)
		if source == "" {
			return
		}
		if s.log != nil {
			s.log.Printf("status feed %q connected from %s", source, r.RemoteAddr)
		}

		var lastSeq uint64
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeStatus {
				continue
			}
			var st protocol.StatusMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				_ = writeJSON(conn, s.reject(0, protocol.ErrProtoBadRequest, err.Error()))
				continue
			}
			ack := s.Submit(source, &st, &lastSeq)
			if err := writeJSON(conn, ack); err != nil {
				break
			}
		}
		if s.log != nil {
			s.log.Printf("status feed %q disconnected", source)
		}
	}
}

// Submit validates one STATUS message and queues it for the next tick.
// lastSeq tracks the highest accepted sequence number for the connection.
func (s *Server) Submit(source string, st *protocol.StatusMsg, lastSeq *uint64) protocol.AckMsg {
	if code, err := protocol.ValidateStatus(st); err != nil {
		return s.reject(st.Seq, code, err.Error())
	}
	if st.Seq != 0 && st.Seq <= *lastSeq {
		return s.reject(st.Seq, protocol.ErrStaleSeq, fmt.Sprintf("seq %d <= %d", st.Seq, *lastSeq))
	}
	select {
	case s.office.StatusInbox() <- office.StatusUpdate{Source: source, Seq: st.Seq, Agents: st.Agents}:
	default:
		return s.reject(st.Seq, protocol.ErrOfficeBusy, "status queue full")
	}
	if st.Seq > *lastSeq {
		*lastSeq = st.Seq
	}
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          st.Seq,
		Accepted:        true,
		ServerTick:      s.office.CurrentTick(),
	}
}

func (s *Server) reject(seq uint64, code, msg string) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          seq,
		Accepted:        false,
		Code:            code,
		Message:         msg,
		ServerTick:      s.office.CurrentTick(),
	}
}

func (s *Server) handshake(conn *websocket.Conn) (source string) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}
	source = strings.TrimSpace(hello.SourceName)
	if source == "" {
		source = "feed"
	}

	cfg := s.office.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       fmt.Sprintf("S%d", s.nextID.Add(1)),
		OfficeID:        cfg.ID,
		TickRateHz:      cfg.TickRateHz,
		LayoutDigest:    s.office.Layout().Digest,
		KnownAgents:     s.office.Layout().AgentIDs(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	return source
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
