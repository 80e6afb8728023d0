package rewards

import (
	"math"
	"testing"

	"digstream.live/internal/sim/command"
	"digstream.live/internal/sim/ingest"
)

func i64(n int64) *int64 { return &n }

func TestObserve_LikesHighWaterMark(t *testing.T) {
	tr := New(Config{})
	if got := tr.Observe(ingest.Metrics{Likes: i64(100)}); len(got) != 0 {
		t.Fatalf("baseline must not reward: %v", got)
	}
	got := tr.Observe(ingest.Metrics{Likes: i64(103)})
	if len(got) != 1 || got[0].Token != command.TokenLikeTNT || got[0].Units != 30 {
		t.Fatalf("got=%v want one like_tnt x30", got)
	}
	if got := tr.Observe(ingest.Metrics{Likes: i64(101)}); len(got) != 0 {
		t.Fatalf("decrease must not reward: %v", got)
	}
	if got := tr.Observe(ingest.Metrics{Likes: i64(103)}); len(got) != 0 {
		t.Fatalf("recovering to the high-water mark must not reward: %v", got)
	}
	got = tr.Observe(ingest.Metrics{Likes: i64(1000)})
	if len(got) != 1 || got[0].Units != DefaultMaxLikeUnits {
		t.Fatalf("got=%v want capped units", got)
	}
}

func TestObserve_Subscribers(t *testing.T) {
	tr := New(Config{MaxSubscriberEvents: 3})
	tr.Observe(ingest.Metrics{Subscribers: i64(50)})
	got := tr.Observe(ingest.Metrics{Subscribers: i64(52)})
	if len(got) != 2 {
		t.Fatalf("got=%d want=2", len(got))
	}
	for _, c := range got {
		if c.Token != command.TokenNewSubscriber || c.Author != command.SystemAuthor {
			t.Fatalf("cmd=%+v", c)
		}
	}
	tr.Observe(ingest.Metrics{Subscribers: i64(48)})
	if got := tr.Observe(ingest.Metrics{Subscribers: i64(60)}); len(got) != 3 {
		t.Fatalf("got=%d want=3 (capped, from new baseline)", len(got))
	}
	if _, subs := tr.Baselines(); subs != 60 {
		t.Fatalf("subs=%d want=60", subs)
	}
}

func TestObserve_PartialUpdates(t *testing.T) {
	tr := New(Config{TNTPerLike: 1})
	tr.Observe(ingest.Metrics{Likes: i64(1), Subscribers: i64(1)})
	got := tr.Observe(ingest.Metrics{Likes: i64(2)})
	if len(got) != 1 || got[0].Units != 1 {
		t.Fatalf("got=%v", got)
	}
	if likes, subs := tr.Baselines(); likes != 2 || subs != 1 {
		t.Fatalf("baselines=%d,%d", likes, subs)
	}
}

func TestObserve_LikesHugeJumpCaps(t *testing.T) {
	cases := []struct {
		name     string
		baseline int64
		next     int64
	}{
		{"multiply would wrap", 0, math.MaxInt64 / 2},
		{"subtraction would wrap", math.MinInt64 + 1, math.MaxInt64},
		{"max counter", 1, math.MaxInt64},
	}
	for _, tc := range cases {
		tr := New(Config{TNTPerLike: 10, MaxLikeUnits: 200})
		tr.Observe(ingest.Metrics{Likes: i64(tc.baseline)})
		got := tr.Observe(ingest.Metrics{Likes: i64(tc.next)})
		if len(got) != 1 || got[0].Units != 200 {
			t.Fatalf("%s: got=%v want units=200", tc.name, got)
		}
	}
}

func TestObserve_LikesExactlyAtCap(t *testing.T) {
	tr := New(Config{TNTPerLike: 10, MaxLikeUnits: 200})
	tr.Observe(ingest.Metrics{Likes: i64(0)})
	if got := tr.Observe(ingest.Metrics{Likes: i64(20)}); len(got) != 1 || got[0].Units != 200 {
		t.Fatalf("got=%v want units=200", got)
	}
	if got := tr.Observe(ingest.Metrics{Likes: i64(39)}); len(got) != 1 || got[0].Units != 190 {
		t.Fatalf("got=%v want units=190", got)
	}
}
