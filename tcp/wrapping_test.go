package tcp_test

import (
	"math/rand"
	"testing"

	"github.com/loopstack/mintcp/tcp"
)

func TestWrapUnwrap_roundTrip(t *testing.T) {
	cases := []struct {
		a   uint64
		isn tcp.Value
	}{
		{0, 0},
		{0, 12345},
		{1, 0xFFFFFFFF},
		{1 << 32, 0},
		{1<<32 - 1, 0},
		{1 << 40, 0x80000000},
	}
	for _, c := range cases {
		w := tcp.Wrap(c.a, c.isn)
		got := tcp.Unwrap(w, c.isn, c.a)
		if got != c.a {
			t.Errorf("Unwrap(Wrap(%d, %d), %d, checkpoint=%d) = %d, want %d", c.a, c.isn, c.isn, c.a, got, c.a)
		}
	}
}

func TestWrapUnwrap_roundTrip_random(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		a := rng.Uint64() >> (rng.Intn(64)) // bias toward smaller values too.
		isn := tcp.Value(rng.Uint32())
		w := tcp.Wrap(a, isn)
		got := tcp.Unwrap(w, isn, a)
		if got != a {
			t.Fatalf("round trip failed: a=%d isn=%d got=%d", a, isn, got)
		}
	}
}

func TestUnwrap_closeToCheckpoint(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		a := rng.Uint64() % (1 << 40)
		isn := tcp.Value(rng.Uint32())
		delta := int64(rng.Intn(1<<31)) - (1 << 30)
		checkpoint := uint64(int64(a) - delta)
		if int64(checkpoint) < 0 {
			continue
		}
		dist := delta
		if dist < 0 {
			dist = -dist
		}
		if uint64(dist) >= 1<<31 {
			continue
		}
		w := tcp.Wrap(a, isn)
		got := tcp.Unwrap(w, isn, checkpoint)
		if got != a {
			t.Fatalf("Unwrap(Wrap(%d,%d), %d, checkpoint=%d) = %d, want %d (delta=%d)", a, isn, isn, checkpoint, got, a, delta)
		}
	}
}

func TestUnwrap_tieBreaksSmaller(t *testing.T) {
	// checkpoint exactly between two candidates 2**32 apart (each 2**31
	// away): distance ties, expect the smaller of the two.
	const isn tcp.Value = 0
	checkpoint := uint64(1) << 31
	w := tcp.Wrap(0, isn) // candidates: 0 and 2**32, both distance 2**31 from checkpoint.
	got := tcp.Unwrap(w, isn, checkpoint)
	if got != 0 {
		t.Errorf("expected tie to break toward smaller absolute value 0, got %d", got)
	}
}
