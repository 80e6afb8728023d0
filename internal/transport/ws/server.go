package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/ingest"
	"digstream.live/internal/sim/simclock"
)

// Sink receives decoded chat traffic. *ingest.Queue implements it.
type Sink interface {
	Push(m ingest.Message) bool
	Len() int
}

// Server accepts CHAT and METRICS frames from chat bridges on /v1/chat.
// Every frame gets exactly one reply: ACK or ERROR.
type Server struct {
	sink      Sink
	validator *protocol.Validator
	clock     simclock.Clock
	log       *log.Logger

	upgrader websocket.Upgrader

	conns    atomic.Int64
	accepted atomic.Uint64
	refused  atomic.Uint64
}

type Stats struct {
	Conns    int64  `json:"conns"`
	Accepted uint64 `json:"accepted"`
	Refused  uint64 `json:"refused"`
}

func NewServer(sink Sink, v *protocol.Validator, clock simclock.Clock, logger *log.Logger) *Server {
	if clock == nil {
		clock = simclock.System{}
	}
	return &Server{
		sink:      sink,
		validator: v,
		clock:     clock,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Stats() Stats {
	return Stats{Conns: s.conns.Load(), Accepted: s.accepted.Load(), Refused: s.refused.Load()}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.conns.Add(1)
		defer s.conns.Add(-1)

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := writeJSON(conn, s.HandleFrame(msg)); err != nil {
				return
			}
		}
	}
}

// HandleFrame decodes one inbound frame, queues it and returns the reply.
func (s *Server) HandleFrame(msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return s.refuse(protocol.ErrProtoBadRequest, "invalid json")
	}
	if base.ProtocolVersion != protocol.Version {
		return s.refuse(protocol.ErrProtoBadRequest, fmt.Sprintf("bad protocol_version %q", base.ProtocolVersion))
	}

	var m ingest.Message
	switch base.Type {
	case protocol.TypeChat:
		var chat protocol.ChatMsg
		if err := s.decode(base.Type, msg, &chat); err != nil {
			return s.refuse(protocol.ErrProtoBadRequest, err.Error())
		}
		m = ingest.FromChatMsg(chat, s.clock.Now())
	case protocol.TypeMetrics:
		var met protocol.MetricsMsg
		if err := s.decode(base.Type, msg, &met); err != nil {
			return s.refuse(protocol.ErrProtoBadRequest, err.Error())
		}
		m = ingest.FromMetricsMsg(met, s.clock.Now())
	default:
		return s.refuse(protocol.ErrUnknownType, fmt.Sprintf("unknown type %q", base.Type))
	}

	kept := s.sink.Push(m)
	s.accepted.Add(1)
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		Queued:          s.sink.Len(),
		Evicted:         !kept,
	}
}

func (s *Server) decode(typ string, raw []byte, out any) error {
	if s.validator != nil {
		if err := s.validator.Validate(typ, raw); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, out)
}

func (s *Server) refuse(code, message string) protocol.ErrorMsg {
	s.refused.Add(1)
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}
