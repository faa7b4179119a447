package oracle

import "testing"

func TestNewRingSeedsOneObservation(t *testing.T) {
	r := NewRing(0, 1000)
	if !r.Initialized() {
		t.Fatal("expected ring to be initialized after construction")
	}
	if r.Cardinality() != 1 {
		t.Fatalf("cardinality = %d, want 1", r.Cardinality())
	}
}

func TestObserveAccumulatesUsingPriorTick(t *testing.T) {
	r := NewRing(0, 1000)
	r.Observe(0, 1010)   // tick was 0 for the preceding 10s
	r.Observe(100, 1020) // tick was 100 for the next 10s

	age, err := r.Age(1020)
	if err != nil {
		t.Fatal(err)
	}
	if age != 0 {
		t.Fatalf("age = %d, want 0", age)
	}
	if r.latest().TickCumulative != 1000 {
		t.Fatalf("tick_cumulative = %d, want 1000 (0*10 + 100*10)", r.latest().TickCumulative)
	}
}

func TestTwapTickFlatPrice(t *testing.T) {
	r := NewRing(500, 1000)
	r.GrowCardinality(8)
	r.Observe(500, 1020)
	r.Observe(500, 1040)
	r.Observe(500, 1060)

	// the history spans exactly MinTwapDuration, the shortest window TwapTick uses.
	twap, err := r.TwapTick(1060, 60, 500)
	if err != nil {
		t.Fatal(err)
	}
	if twap != 500 {
		t.Fatalf("twap = %d, want 500 for a flat price series", twap)
	}
}

func TestTwapTickWidensShortWindow(t *testing.T) {
	r := NewRing(0, 1000)
	r.GrowCardinality(8)
	r.Observe(200, 1100)

	short, err := r.TwapTick(1100, 5, 200)
	if err != nil {
		t.Fatal(err)
	}
	wide, err := r.TwapTick(1100, MinTwapDuration, 200)
	if err != nil {
		t.Fatal(err)
	}
	if short != wide {
		t.Fatalf("window below MinTwapDuration should behave as MinTwapDuration: got %d vs %d", short, wide)
	}
}

func TestTwapTickExtrapolatesFromLatest(t *testing.T) {
	r := NewRing(0, 1000)
	r.Observe(0, 1060) // cumulative 0 over first 60s at tick 0

	// now is 30s after the latest observation, with currentTick=300;
	// extrapolation should pull the average toward 300 for that tail.
	twap, err := r.TwapTick(1090, 90, 300)
	if err != nil {
		t.Fatal(err)
	}
	if twap <= 0 || twap >= 300 {
		t.Fatalf("twap = %d, expected a value between 0 and 300 from the extrapolated tail", twap)
	}
}

func TestAgeErrorsWhenUninitialized(t *testing.T) {
	r := &Ring{}
	if _, err := r.Age(100); err == nil {
		t.Fatal("expected error for uninitialized ring")
	}
}

func TestCardinalityGrowsOnWrap(t *testing.T) {
	r := NewRing(0, 0)
	r.GrowCardinality(4)
	for i := int64(1); i <= 10; i++ {
		r.Observe(int32(i), i*10)
	}
	if r.Cardinality() != 4 {
		t.Fatalf("cardinality = %d, want 4 after growth request and wraparound", r.Cardinality())
	}
}
