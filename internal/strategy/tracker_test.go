package strategy

import (
	"math/rand"
	"testing"

	"priceaction/internal/domain"
)

func TestTrackerNotReadyBeforeLookBack(t *testing.T) {
	tr := NewTracker(4)
	for i := 0; i < 3; i++ {
		tr.Update(flatBar(i, 100))
		if _, _, ok := tr.LastTwoHighs(); ok {
			t.Fatalf("after %d bars LastTwoHighs ok = true, want false", i+1)
		}
		if _, _, ok := tr.LastTwoLows(); ok {
			t.Fatalf("after %d bars LastTwoLows ok = true, want false", i+1)
		}
	}
	tr.Update(flatBar(3, 100))
	if !tr.Ready() {
		t.Fatal("Ready() = false after lookBack bars")
	}
}

func TestTrackerWindowBounded(t *testing.T) {
	tr := NewTracker(5)
	for i := 0; i < 50; i++ {
		tr.Update(flatBar(i, float64(100+i)))
		if tr.Len() > 5 {
			t.Fatalf("Len() = %d after %d updates, want <= 5", tr.Len(), i+1)
		}
		if len(tr.Highs()) != tr.Len() || len(tr.Lows()) != tr.Len() {
			t.Fatalf("extremum lengths %d/%d != window length %d",
				len(tr.Highs()), len(tr.Lows()), tr.Len())
		}
	}
}

func TestTrackerLastTwoComparesAgainstPreviousWindow(t *testing.T) {
	tr := NewTracker(3)
	for i, c := range []float64{100, 105, 102} {
		tr.Update(flatBar(i, c))
	}
	// Window is now [100 105 102]; a new bar at 103 evicts 100 afterwards.
	tr.Update(flatBar(3, 103))

	prevHigh, currHigh, ok := tr.LastTwoHighs()
	if !ok {
		t.Fatal("LastTwoHighs not ready")
	}
	if prevHigh != 105 || currHigh != 105 {
		t.Errorf("highs = (%v, %v), want (105, 105)", prevHigh, currHigh)
	}
	prevLow, currLow, _ := tr.LastTwoLows()
	// The running low is taken over [100 105 102 103] before eviction.
	if prevLow != 100 || currLow != 100 {
		t.Errorf("lows = (%v, %v), want (100, 100)", prevLow, currLow)
	}

	// Next bar: window before update is [105 102 103].
	tr.Update(flatBar(4, 99))
	prevLow, currLow, _ = tr.LastTwoLows()
	if prevLow != 102 || currLow != 99 {
		t.Errorf("lows = (%v, %v), want (102, 99)", prevLow, currLow)
	}
	prevHigh, currHigh, _ = tr.LastTwoHighs()
	if prevHigh != 105 || currHigh != 105 {
		t.Errorf("highs = (%v, %v), want (105, 105)", prevHigh, currHigh)
	}
}

func TestTrackerRunningExtremesMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr := NewTracker(20)
	price := 100.0
	for i := 0; i < 500; i++ {
		price *= 1 + (rng.Float64()-0.5)*0.04
		tr.Update(domain.Bar{OpenTime: int64(i), Open: price, High: price, Low: price, Close: price})

		highs, lows := tr.Highs(), tr.Lows()
		for j := 1; j < len(highs); j++ {
			if highs[j] < highs[j-1] {
				t.Fatalf("update %d: highs not non-decreasing at %d: %v", i, j, highs)
			}
			if lows[j] > lows[j-1] {
				t.Fatalf("update %d: lows not non-increasing at %d: %v", i, j, lows)
			}
		}
	}
}

func TestTrackerHighsReturnsCopy(t *testing.T) {
	tr := NewTracker(2)
	tr.Update(flatBar(0, 1))
	tr.Update(flatBar(1, 2))
	h := tr.Highs()
	h[0] = 999
	if tr.Highs()[0] == 999 {
		t.Error("Highs() exposed internal slice")
	}
}
