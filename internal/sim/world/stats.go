package world

type StatsBucket struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Handoffs int `json:"handoffs"`
	Executed int `json:"executed"`
	Blocks   int `json:"blocks"`
	Points   int `json:"points"`
}

// WorldStats keeps a rolling window of per-bucket counters keyed by tick.
type WorldStats struct {
	bucketTicks uint64
	windowTicks uint64

	buckets []StatsBucket
	curIdx  int
	curBase uint64 // start tick (inclusive) of current bucket
}

func NewWorldStats(bucketTicks, windowTicks uint64) *WorldStats {
	if bucketTicks <= 0 {
		bucketTicks = 200
	}
	if windowTicks < bucketTicks {
		windowTicks = bucketTicks
	}
	n := int(windowTicks / bucketTicks)
	if n < 1 {
		n = 1
	}
	return &WorldStats{
		bucketTicks: bucketTicks,
		windowTicks: uint64(n) * bucketTicks,
		buckets:     make([]StatsBucket, n),
	}
}

func (s *WorldStats) rotate(nowTick uint64) {
	if s == nil {
		return
	}
	// Move forward until nowTick is in [curBase, curBase+bucketTicks).
	for nowTick >= s.curBase+s.bucketTicks {
		s.curIdx = (s.curIdx + 1) % len(s.buckets)
		s.buckets[s.curIdx] = StatsBucket{}
		s.curBase += s.bucketTicks
	}
}

func (s *WorldStats) current(nowTick uint64) *StatsBucket {
	s.rotate(nowTick)
	return &s.buckets[s.curIdx]
}

func (s *WorldStats) RecordAccepted(nowTick uint64, handoff bool) {
	if s == nil {
		return
	}
	b := s.current(nowTick)
	b.Accepted++
	if handoff {
		b.Handoffs++
	}
}

func (s *WorldStats) RecordRejected(nowTick uint64) {
	if s == nil {
		return
	}
	s.current(nowTick).Rejected++
}

func (s *WorldStats) RecordExecuted(nowTick uint64) {
	if s == nil {
		return
	}
	s.current(nowTick).Executed++
}

func (s *WorldStats) RecordBlock(nowTick uint64, points int) {
	if s == nil {
		return
	}
	b := s.current(nowTick)
	b.Blocks++
	b.Points += points
}

func (s *WorldStats) WindowTicks() uint64 {
	if s == nil {
		return 0
	}
	return s.windowTicks
}

func (s *WorldStats) Summarize(nowTick uint64) StatsBucket {
	if s == nil {
		return StatsBucket{}
	}
	s.rotate(nowTick)
	var out StatsBucket
	for _, b := range s.buckets {
		out.Accepted += b.Accepted
		out.Rejected += b.Rejected
		out.Handoffs += b.Handoffs
		out.Executed += b.Executed
		out.Blocks += b.Blocks
		out.Points += b.Points
	}
	return out
}
