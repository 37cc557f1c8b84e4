package engine

import (
	"math"
	"testing"
	"time"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSmooth(t *testing.T) {
	cases := []struct {
		name       string
		prev, x, a float64
		want       float64
	}{
		{"step", 0.5, 1, 0.1, 0.55},
		{"non-finite prev takes sample", math.NaN(), 0.7, 0.1, 0.7},
		{"non-finite sample keeps prev", 0.4, math.NaN(), 0.1, 0.4},
		{"infinite sample keeps prev", 0.4, math.Inf(1), 0.1, 0.4},
		{"both bad", math.NaN(), math.Inf(-1), 0.1, 0},
		{"alpha clamped high", 0, 1, 5, MaxAlpha},
		{"alpha clamped low", 0, 1, 0, MinAlpha},
	}
	for _, c := range cases {
		if got := Smooth(c.prev, c.x, c.a); !near(got, c.want) {
			t.Fatalf("%s: Smooth(%v,%v,%v)=%v want %v", c.name, c.prev, c.x, c.a, got, c.want)
		}
	}
}

func TestSmoothNeverOvershoots(t *testing.T) {
	prev := 0.0
	for i := 0; i < 200; i++ {
		next := Smooth(prev, 0.8, 0.6)
		if next < prev || next > 0.8 {
			t.Fatalf("step %d left [%v,0.8]: %v", i, prev, next)
		}
		prev = next
	}
	if math.Abs(prev-0.8) > 1e-6 {
		t.Fatalf("expected convergence to 0.8, got %v", prev)
	}
}

func TestEMASeedsOnFirstFiniteSample(t *testing.T) {
	e := NewEMA(0.1)
	e.Add(math.NaN())
	if e.Seeded() {
		t.Fatalf("NaN must not seed")
	}
	if got := e.Add(0.3); got != 0.3 {
		t.Fatalf("first sample should be taken as is, got %v", got)
	}
	if got := e.Add(1.3); !near(got, 0.4) {
		t.Fatalf("second sample: got %v want 0.4", got)
	}
}

func TestMissRate(t *testing.T) {
	cases := []struct {
		misses int
		played float64
		want   float64
	}{
		{0, 30, 0},
		{-2, 30, 0},
		{3, 20, 0.5},
		{6, 20, 1},
		{30, 20, 1},
		{2, 0, 2.0 / 3},
		{2, math.Inf(1), 2.0 / 3},
		{3, 25, 1.0 / 3},
	}
	for _, c := range cases {
		if got := MissRate(c.misses, c.played, 3); !near(got, c.want) {
			t.Fatalf("MissRate(%d,%v)=%v want %v", c.misses, c.played, got, c.want)
		}
	}
}

func TestCooldownGate(t *testing.T) {
	t0 := time.Unix(1000, 0)
	c := NewCooldown(500 * time.Millisecond)
	if !c.TryFire(t0) {
		t.Fatalf("fresh cooldown must be open")
	}
	if c.TryFire(t0.Add(499 * time.Millisecond)) {
		t.Fatalf("gate should be closed inside the interval")
	}
	if !c.TryFire(t0.Add(500 * time.Millisecond)) {
		t.Fatalf("gate should reopen at the interval")
	}
	if last, ok := c.LastFired(); !ok || !last.Equal(t0.Add(500*time.Millisecond)) {
		t.Fatalf("unexpected last fired %v %v", last, ok)
	}
}

func TestSeededRngReproducible(t *testing.T) {
	a, b := NewSeededRng("seed-1"), NewSeededRng("seed-1")
	for i := 0; i < 16; i++ {
		x, y := a.Float64(), b.Float64()
		if x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
		if x < 0 || x >= 1 {
			t.Fatalf("Float64 out of range: %v", x)
		}
	}
	if NewSeededRng("seed-1").Uint64() == NewSeededRng("seed-2").Uint64() {
		t.Fatalf("different seeds should give different streams")
	}
	if n := NewSeededRng("x").Intn(0); n != 0 {
		t.Fatalf("Intn(0) should be 0, got %d", n)
	}
}
