package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/catalogs"
)

var chatLines = []string{
	"tnt", "BOOM!!", "fast", "go faster speed", "slow down", "big", "rainbow please", "shield",
	"freeze", "left", "left3", "right2", "normal", "diamond pickaxe", "iron", "netherite", "gg",
	"lol", "where is the diamond", "tnt tnt tnt",
}

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/chat", "chat ws url")
		obsURL   = flag.String("observer", "", "observer ws url; when set the bot also plays the renderer and reports broken blocks")
		viewers  = flag.Int("viewers", 20, "number of fake viewers")
		every    = flag.Duration("every", 200*time.Millisecond, "interval between chat lines")
		paidProb = flag.Float64("paid", 0.02, "probability a line is a paid superchat")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	rng := rand.New(rand.NewSource(*seed))

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	go readReplies(conn, logger)

	var obs *websocket.Conn
	if *obsURL != "" {
		obs, _, err = websocket.DefaultDialer.Dial(*obsURL, nil)
		if err != nil {
			logger.Fatalf("dial observer: %v", err)
		}
		defer obs.Close()
		go readEvents(obs, logger)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	blocks := catalogs.DefaultBlockPoints().Blocks()
	var likes, subs int64 = 100, 10
	n := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		n++

		msg := protocol.ChatMsg{
			Type:            protocol.TypeChat,
			ProtocolVersion: protocol.Version,
			Author:          fmt.Sprintf("viewer_%02d", rng.Intn(*viewers)),
			Message:         chatLines[rng.Intn(len(chatLines))],
		}
		if rng.Float64() < *paidProb {
			msg.IsPaid = true
			msg.PaidAmount = float64(1 + rng.Intn(20))
		}
		if err := conn.WriteJSON(msg); err != nil {
			logger.Printf("send CHAT: %v", err)
			return
		}

		if n%25 == 0 {
			likes += int64(rng.Intn(4))
			if rng.Intn(4) == 0 {
				subs++
			}
			m := protocol.MetricsMsg{Type: protocol.TypeMetrics, ProtocolVersion: protocol.Version, Likes: &likes, Subscribers: &subs}
			if err := conn.WriteJSON(m); err != nil {
				logger.Printf("send METRICS: %v", err)
				return
			}
		}

		if obs != nil && n%2 == 0 {
			// Blocks() lists common tiers first.
			k := int(rng.ExpFloat64() * 2)
			if k >= len(blocks) {
				k = len(blocks) - 1
			}
			bb := protocol.BlockBrokenMsg{Type: protocol.TypeBlockBroken, ProtocolVersion: protocol.Version, Block: blocks[k]}
			if err := obs.WriteJSON(bb); err != nil {
				logger.Printf("send BLOCK_BROKEN: %v", err)
				return
			}
		}
	}
}

func readReplies(conn *websocket.Conn, logger *log.Logger) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err == nil && ack.Evicted {
				logger.Printf("ACK evicted queued=%d", ack.Queued)
			}
		case protocol.TypeError:
			var em protocol.ErrorMsg
			if err := json.Unmarshal(msg, &em); err == nil {
				logger.Printf("ERROR code=%s message=%s", em.Code, em.Message)
			}
		}
	}
}

func readEvents(conn *websocket.Conn, logger *log.Logger) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev protocol.EventMsg
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		switch ev.Kind {
		case protocol.EventAccepted:
			if ev.PossessionChanged {
				logger.Printf("tick=%d %s took possession from %q with %s", ev.Tick, ev.Author, ev.Previous, ev.Token)
			}
		case protocol.EventScore:
			logger.Printf("tick=%d %s +%d (%s)", ev.Tick, ev.Author, ev.Points, ev.Block)
		case protocol.EventLeaderboard:
			if len(ev.Leaderboard) > 0 {
				top := ev.Leaderboard[0]
				logger.Printf("tick=%d leader=%s score=%d", ev.Tick, top.Player, top.Score)
			}
		}
	}
}
