// Package pricing computes a deterministic quote for one service and
// one pet. The exact tier table is business configuration, not core
// logic; the core only guarantees the quote is monotonic in weight.
package pricing

import (
	"sort"
	"strings"

	recordx "github.com/pawdesk/groomflow/agent/record"
)

// Config carries the weight-tier surcharges. Tiers are matched by upper
// bound; pets above the last bound pay the open-ended surcharge.
type Config struct {
	TierBoundsKg    []float64 `envconfig:"TIER_BOUNDS_KG" split_words:"true" default:"10,25,40"`
	TierSurcharges  []float64 `envconfig:"TIER_SURCHARGES" split_words:"true" default:"0,10,25,45"`
	MattedSurcharge float64   `envconfig:"MATTED_SURCHARGE" split_words:"true" default:"15"`
}

type Calculator struct {
	bounds     []float64
	surcharges []float64
	matted     float64
}

func NewCalculator(cfg Config) *Calculator {
	bounds := append([]float64(nil), cfg.TierBoundsKg...)
	sort.Float64s(bounds)

	surcharges := append([]float64(nil), cfg.TierSurcharges...)
	// One surcharge per tier plus the open-ended top tier. Monotonicity
	// is enforced here so a misconfigured table cannot produce a quote
	// that drops as the pet gets heavier.
	for len(surcharges) < len(bounds)+1 {
		last := 0.0
		if len(surcharges) > 0 {
			last = surcharges[len(surcharges)-1]
		}
		surcharges = append(surcharges, last)
	}
	for i := 1; i < len(surcharges); i++ {
		if surcharges[i] < surcharges[i-1] {
			surcharges[i] = surcharges[i-1]
		}
	}

	return &Calculator{bounds: bounds, surcharges: surcharges, matted: cfg.MattedSurcharge}
}

// Quote returns the price for one service given the pet's weight and
// coat condition: base price + weight-tier surcharge (+ matted-coat
// surcharge). Deterministic and monotonic in weight.
func (c *Calculator) Quote(svc recordx.Service, weightKg float64, coatCondition string) float64 {
	price := svc.Price + c.surchargeFor(weightKg)
	if strings.EqualFold(strings.TrimSpace(coatCondition), "matted") {
		price += c.matted
	}
	return price
}

func (c *Calculator) surchargeFor(weightKg float64) float64 {
	for i, bound := range c.bounds {
		if weightKg <= bound {
			return c.surcharges[i]
		}
	}
	return c.surcharges[len(c.surcharges)-1]
}
