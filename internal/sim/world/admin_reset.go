package world

import (
	"context"
	"errors"
)

type adminResetReq struct {
	ClearScores bool
	Resp        chan adminResetResp
}

type adminResetResp struct {
	Tick uint64
	Err  string
}

// RequestReset asks the world loop goroutine to reset the session at the next tick boundary.
// It is safe to call from other goroutines (e.g. admin HTTP handlers).
func (w *World) RequestReset(ctx context.Context, clearScores bool) (tick uint64, err error) {
	if w == nil || w.adminReset == nil {
		return 0, errors.New("admin reset not available")
	}
	resp := make(chan adminResetResp, 1)
	req := adminResetReq{ClearScores: clearScores, Resp: resp}

	select {
	case w.adminReset <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// takeReset folds the pending requests into one reset. Any request asking
// for a score wipe wins.
func (w *World) takeReset(reqs []adminResetReq) *RecordedReset {
	if len(reqs) == 0 {
		return nil
	}
	r := &RecordedReset{}
	for _, q := range reqs {
		if q.ClearScores {
			r.ClearScores = true
		}
	}
	return r
}

func (w *World) answerResetRequests(reqs []adminResetReq) {
	if len(reqs) == 0 {
		return
	}
	// step has already advanced the counter past the tick that applied the reset.
	resp := adminResetResp{Tick: w.tick.Load() - 1}
	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
		}
	}
}
