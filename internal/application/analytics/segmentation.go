// Package analytics computes derived views over the canonical order
// store: performance tiers, aligned comparison windows, and the query
// surface the reporting layer consumes. Tiers are recomputed per query
// over the exact filtered population and never persisted.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dplus/backend/internal/infrastructure/config"
)

// Tier is a population-relative performance label.
type Tier string

const (
	TierMin    Tier = "Min"
	TierMiddle Tier = "Middle"
	TierMax    Tier = "Max"
)

// Product tier labels layered on top of Min/Middle/Max.
const (
	ProductLabelHero   = "Hero"
	ProductLabelCore   = "Core"
	ProductLabelVolume = "Volume"
)

// Thresholds carries the tier boundaries. Defaults: top and bottom 20%
// of entities for revenue tiers, 1.2x/0.8x mean for AOV tiers, 67%
// cumulative revenue share for Hero products, and a minimum population
// of 5 below which everything is Middle.
type Thresholds struct {
	TopFraction    float64
	BottomFraction float64
	AOVHigh        float64
	AOVLow         float64
	HeroShare      float64
	MinPopulation  int
}

// DefaultThresholds returns the documented default boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TopFraction:    0.20,
		BottomFraction: 0.20,
		AOVHigh:        1.2,
		AOVLow:         0.8,
		HeroShare:      0.67,
		MinPopulation:  5,
	}
}

// ThresholdsFromConfig lifts the configured boundaries into the engine.
func ThresholdsFromConfig(cfg config.SegmentationConfig) Thresholds {
	return Thresholds{
		TopFraction:    cfg.RevenueTopFraction,
		BottomFraction: cfg.RevenueBottomFraction,
		AOVHigh:        cfg.AOVHighMultiplier,
		AOVLow:         cfg.AOVLowMultiplier,
		HeroShare:      cfg.ProductHeroShare,
		MinPopulation:  cfg.MinPopulation,
	}
}

// Entity is one segmentable unit: a day, a product, or any other
// aggregate with revenue, order count, and quantity.
type Entity struct {
	ID       string
	Revenue  decimal.Decimal
	Orders   int64
	Quantity int64
}

// TieredEntity is an entity with its assigned tier.
type TieredEntity struct {
	Entity
	Tier Tier
	// Label carries the product-matrix name (Hero/Core/Volume) when the
	// product dimension produced this assignment; empty otherwise.
	Label string
}

// Segmentation is the result of one tier computation. When Insufficient
// is true the population was too small or carried no revenue, and every
// entity is Middle.
type Segmentation struct {
	Entities     []TieredEntity
	Insufficient bool
}

// insufficient labels every entity Middle and flags the result.
func insufficient(entities []Entity) Segmentation {
	out := make([]TieredEntity, len(entities))
	for i, e := range entities {
		out[i] = TieredEntity{Entity: e, Tier: TierMiddle}
	}
	return Segmentation{Entities: out, Insufficient: true}
}

func totalRevenue(entities []Entity) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entities {
		total = total.Add(e.Revenue)
	}
	return total
}

// SegmentRevenue ranks entities by revenue descending and labels the top
// fraction Max and the bottom fraction Min, counting by entities. Ties
// keep their input order, so any fixed population partitions the same
// way every time. Results come back in rank order.
func SegmentRevenue(entities []Entity, th Thresholds) Segmentation {
	n := len(entities)
	if n == 0 {
		return Segmentation{}
	}
	if n < th.MinPopulation || !totalRevenue(entities).IsPositive() {
		return insufficient(entities)
	}

	ranked := make([]TieredEntity, n)
	for i, e := range entities {
		ranked[i] = TieredEntity{Entity: e, Tier: TierMiddle}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Revenue.GreaterThan(ranked[j].Revenue)
	})

	maxCount := int(float64(n) * th.TopFraction)
	minCount := int(float64(n) * th.BottomFraction)
	for i := 0; i < maxCount; i++ {
		ranked[i].Tier = TierMax
	}
	for i := n - minCount; i < n; i++ {
		ranked[i].Tier = TierMin
	}
	return Segmentation{Entities: ranked}
}

// SegmentAOV labels entities against the population mean order value:
// strictly above mean*AOVHigh is Max, strictly below mean*AOVLow is Min.
// An entity sitting exactly on a boundary stays Middle. Results keep
// their input order.
func SegmentAOV(entities []Entity, th Thresholds) Segmentation {
	n := len(entities)
	if n == 0 {
		return Segmentation{}
	}

	var totalOrders int64
	for _, e := range entities {
		totalOrders += e.Orders
	}
	total := totalRevenue(entities)
	if n < th.MinPopulation || totalOrders == 0 || !total.IsPositive() {
		return insufficient(entities)
	}

	mean := total.Div(decimal.NewFromInt(totalOrders))
	high := mean.Mul(decimal.NewFromFloat(th.AOVHigh))
	low := mean.Mul(decimal.NewFromFloat(th.AOVLow))

	out := make([]TieredEntity, n)
	for i, e := range entities {
		tier := TierMiddle
		if e.Orders > 0 {
			aov := e.Revenue.Div(decimal.NewFromInt(e.Orders))
			switch {
			case aov.GreaterThan(high):
				tier = TierMax
			case aov.LessThan(low):
				tier = TierMin
			}
		}
		out[i] = TieredEntity{Entity: e, Tier: tier}
	}
	return Segmentation{Entities: out}
}

// SegmentProducts sorts products by revenue descending and labels the
// ones cumulatively contributing up to HeroShare of total revenue Hero
// (including the product that crosses the boundary). Of the rest, high
// movers with quantity at or above the population median are Volume,
// everything else Core. Results come back in rank order.
func SegmentProducts(products []Entity, th Thresholds) Segmentation {
	n := len(products)
	if n == 0 {
		return Segmentation{}
	}
	total := totalRevenue(products)
	if n < th.MinPopulation || !total.IsPositive() {
		seg := insufficient(products)
		for i := range seg.Entities {
			seg.Entities[i].Label = ProductLabelCore
		}
		return seg
	}

	ranked := make([]TieredEntity, n)
	for i, p := range products {
		ranked[i] = TieredEntity{Entity: p}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Revenue.GreaterThan(ranked[j].Revenue)
	})

	median := medianQuantity(products)
	heroShare := decimal.NewFromFloat(th.HeroShare)
	cumulative := decimal.Zero
	crossed := false
	for i := range ranked {
		if !crossed {
			cumulative = cumulative.Add(ranked[i].Revenue)
			ranked[i].Tier = TierMax
			ranked[i].Label = ProductLabelHero
			if cumulative.Div(total).GreaterThanOrEqual(heroShare) {
				crossed = true
			}
			continue
		}
		if float64(ranked[i].Quantity) >= median {
			ranked[i].Tier = TierMin
			ranked[i].Label = ProductLabelVolume
		} else {
			ranked[i].Tier = TierMiddle
			ranked[i].Label = ProductLabelCore
		}
	}
	return Segmentation{Entities: ranked}
}

// medianQuantity returns the population median quantity; for even
// populations it averages the two middle values.
func medianQuantity(entities []Entity) float64 {
	qs := make([]int64, len(entities))
	for i, e := range entities {
		qs[i] = e.Quantity
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i] < qs[j] })

	mid := len(qs) / 2
	if len(qs)%2 == 1 {
		return float64(qs[mid])
	}
	return float64(qs[mid-1]+qs[mid]) / 2
}
