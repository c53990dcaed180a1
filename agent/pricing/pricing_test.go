package pricing

import (
	"testing"

	recordx "github.com/pawdesk/groomflow/agent/record"
)

var basicWash = recordx.Service{ServiceID: "SVCAAAAAA", ServiceName: "Basic Wash", Price: 30}

func TestQuoteDeterministic(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(Config{
		TierBoundsKg:    []float64{10, 25, 40},
		TierSurcharges:  []float64{0, 10, 25, 45},
		MattedSurcharge: 15,
	})

	first := calc.Quote(basicWash, 18, "Good")
	for i := 0; i < 5; i++ {
		if got := calc.Quote(basicWash, 18, "Good"); got != first {
			t.Fatalf("Quote() not deterministic: %v vs %v", got, first)
		}
	}
	if first != 40 {
		t.Fatalf("Quote(18kg) = %v, want 40", first)
	}
}

func TestQuoteMonotonicInWeight(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(Config{
		TierBoundsKg:    []float64{10, 25, 40},
		TierSurcharges:  []float64{0, 10, 25, 45},
		MattedSurcharge: 15,
	})

	prev := 0.0
	for w := 1.0; w <= 60; w++ {
		got := calc.Quote(basicWash, w, "Good")
		if got < prev {
			t.Fatalf("Quote() dropped from %v to %v at %vkg", prev, got, w)
		}
		prev = got
	}
}

func TestQuoteMattedCoatSurcharge(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(Config{
		TierBoundsKg:    []float64{10},
		TierSurcharges:  []float64{0, 10},
		MattedSurcharge: 15,
	})

	clean := calc.Quote(basicWash, 5, "Good")
	matted := calc.Quote(basicWash, 5, "Matted")
	if matted != clean+15 {
		t.Fatalf("matted quote = %v, want %v", matted, clean+15)
	}
}

func TestQuoteRepairsNonMonotonicConfig(t *testing.T) {
	t.Parallel()

	// A misconfigured tier table must never yield a cheaper quote for
	// a heavier pet.
	calc := NewCalculator(Config{
		TierBoundsKg:   []float64{10, 20},
		TierSurcharges: []float64{20, 5, 40},
	})

	light := calc.Quote(basicWash, 8, "")
	mid := calc.Quote(basicWash, 15, "")
	if mid < light {
		t.Fatalf("quote dropped with weight: %v -> %v", light, mid)
	}
}
