package world

import (
	"context"
	"errors"
	"strings"
)

type playerInfoReq struct {
	Player string
	Resp   chan PlayerInfo
}

// RequestPlayerInfo reads one player's stats and active cooldowns from the
// world loop goroutine.
func (w *World) RequestPlayerInfo(ctx context.Context, player string) (PlayerInfo, error) {
	if w == nil || w.playerInfoReq == nil {
		return PlayerInfo{}, errors.New("player info not available")
	}
	player = strings.TrimSpace(player)
	if player == "" {
		return PlayerInfo{}, errors.New("missing player")
	}
	req := playerInfoReq{Player: player, Resp: make(chan PlayerInfo, 1)}
	select {
	case w.playerInfoReq <- req:
	case <-ctx.Done():
		return PlayerInfo{}, ctx.Err()
	}
	select {
	case info := <-req.Resp:
		return info, nil
	case <-ctx.Done():
		return PlayerInfo{}, ctx.Err()
	}
}

func (w *World) handlePlayerInfoReq(req playerInfoReq) {
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- w.session.PlayerInfo(req.Player):
	default:
	}
}
