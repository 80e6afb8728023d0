package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/catalogs"
	"digstream.live/internal/sim/world"
)

// World is the part of the world loop observers touch.
type World interface {
	ID() string
	TickRateHz() int
	CurrentTick() uint64
	GameState() world.GameState
	ReportBlockBroken(block string) bool
}

type BootstrapResponse struct {
	ProtocolVersion string          `json:"protocol_version"`
	WorldID         string          `json:"world_id"`
	Tick            uint64          `json:"tick"`
	TickRateHz      int             `json:"tick_rate_hz"`
	State           world.GameState `json:"state"`
	Blocks          []BlockValue    `json:"blocks"`
}

type BlockValue struct {
	Block  string `json:"block"`
	Tier   int    `json:"tier"`
	Points int    `json:"points"`
}

type Server struct {
	world     World
	hub       *Hub
	blocks    *catalogs.BlockPoints
	validator *protocol.Validator
	log       *log.Logger

	// AllowRemote lifts the loopback restriction (for overlays on another host).
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w World, hub *Hub, blocks *catalogs.BlockPoints, v *protocol.Validator, logger *log.Logger) *Server {
	return &Server{
		world:     w,
		hub:       hub,
		blocks:    blocks,
		validator: v,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		resp := BootstrapResponse{
			ProtocolVersion: protocol.Version,
			WorldID:         s.world.ID(),
			Tick:            s.world.CurrentTick(),
			TickRateHz:      s.world.TickRateHz(),
			State:           s.world.GameState(),
		}
		for _, b := range s.blocks.Blocks() {
			tier, _ := s.blocks.Tier(b)
			resp.Blocks = append(resp.Blocks, BlockValue{Block: b, Tier: tier, Points: s.blocks.Points(b)})
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// WSHandler streams EVENT frames to the client. The client may send
// BLOCK_BROKEN frames back; those are credited to the current possessor.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		dataOut := s.hub.subscribe(sid, 1024)
		defer s.hub.unsubscribe(sid)
		// Replies to BLOCK_BROKEN share the single writer with the event stream.
		replyOut := make(chan []byte, 16)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b = <-dataOut:
				case b = <-replyOut:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			reply := s.handleFrame(msg)
			if reply == nil {
				continue
			}
			b, _ := json.Marshal(reply)
			select {
			case replyOut <- b:
			default:
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// handleFrame returns nil when the frame needs no reply.
func (s *Server) handleFrame(msg []byte) *protocol.ErrorMsg {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.ProtocolVersion != protocol.Version {
		return errorMsg(protocol.ErrProtoBadRequest, "bad frame")
	}
	if base.Type != protocol.TypeBlockBroken {
		return errorMsg(protocol.ErrUnknownType, fmt.Sprintf("unknown type %q", base.Type))
	}
	if s.validator != nil {
		if err := s.validator.Validate(base.Type, msg); err != nil {
			return errorMsg(protocol.ErrProtoBadRequest, err.Error())
		}
	}
	var bb protocol.BlockBrokenMsg
	if err := json.Unmarshal(msg, &bb); err != nil {
		return errorMsg(protocol.ErrProtoBadRequest, err.Error())
	}
	block := strings.ToLower(strings.TrimSpace(bb.Block))
	if !s.world.ReportBlockBroken(block) {
		return errorMsg(protocol.ErrQueueFull, "block report dropped")
	}
	return nil
}

func errorMsg(code, message string) *protocol.ErrorMsg {
	return &protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
