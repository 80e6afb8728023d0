package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"
	"time"
)

// stateDigest hashes everything that decides future outcomes: ledgers, the
// pending exec queue and the actor. Event ids and wall-clock step timings
// are excluded so a replay with the same inputs reproduces it.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)

	s := w.session
	possessor, ok := s.Scores.CurrentPossessor()
	digestWriteString(h, &tmp, possessor)
	h.Write([]byte{boolByte(ok)})
	digestWriteF64(h, &tmp, s.Scores.CurrentPossessionDuration())

	for _, st := range s.Scores.TopPlayers(-1) {
		digestWriteString(h, &tmp, st.Player)
		digestWriteI64(h, &tmp, int64(st.Score))
		digestWriteI64(h, &tmp, int64(st.BlocksBroken))
	}
	for _, e := range s.Scores.History() {
		digestWriteString(h, &tmp, e.Player)
		digestWriteF64(h, &tmp, e.Duration)
		digestWriteI64(h, &tmp, int64(e.Score))
	}

	s.Cooldowns.Each(func(player, bucket string, last time.Time) {
		digestWriteString(h, &tmp, player)
		digestWriteString(h, &tmp, bucket)
		digestWriteI64(h, &tmp, last.UnixNano())
	})

	for _, en := range s.Arbiter.Queue().Peek() {
		digestWriteString(h, &tmp, en.Author)
		digestWriteString(h, &tmp, string(en.Command.Token))
		digestWriteI64(h, &tmp, int64(en.Command.Repeat))
		digestWriteI64(h, &tmp, int64(en.Command.Units))
	}

	v := w.exec.View()
	digestWriteF64(h, &tmp, v.Speed)
	digestWriteI64(h, &tmp, int64(v.Offset))
	digestWriteString(h, &tmp, v.Tool)
	digestWriteI64(h, &tmp, int64(v.Spawned))
	digestWriteI64(h, &tmp, int64(v.Celebrations))
	mods := make([]string, 0, len(v.Modifiers))
	for k := range v.Modifiers {
		mods = append(mods, k)
	}
	sort.Strings(mods)
	for _, k := range mods {
		digestWriteString(h, &tmp, k)
		digestWriteF64(h, &tmp, v.Modifiers[k])
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hash.Hash, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteString(h hash.Hash, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
