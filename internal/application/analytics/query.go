package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dplus/backend/internal/domain/order"
)

// Period is the bucketing granularity of a time series.
type Period string

const (
	PeriodDay     Period = "day"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
)

// ParsePeriod validates a period string from the API surface.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return PeriodDay, nil
	}
	switch Period(s) {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodQuarter:
		return Period(s), nil
	default:
		return "", order.NewDomainError(order.ErrCodeInvalidInput,
			fmt.Sprintf("unknown period %q", s))
	}
}

// QueryService is the read side of the store. It shares the store lock
// with the ingestion service so queries never observe a partial merge.
type QueryService struct {
	orders order.Repository
	th     Thresholds
	logger *zap.Logger
	mu     *sync.RWMutex
}

// NewQueryService creates the analytics query service.
func NewQueryService(orders order.Repository, th Thresholds, logger *zap.Logger, mu *sync.RWMutex) *QueryService {
	return &QueryService{orders: orders, th: th, logger: logger, mu: mu}
}

// Bucket is one aggregated period of the series.
type Bucket struct {
	Start    time.Time       `json:"start"`
	Revenue  decimal.Decimal `json:"revenue"`
	Orders   int64           `json:"orders"`
	Quantity int64           `json:"quantity"`
	AOV      decimal.Decimal `json:"aov"`
	Tier     Tier            `json:"tier"`
}

// RevenueReport is a bucketed revenue series with revenue tiers.
type RevenueReport struct {
	Period       Period   `json:"period"`
	Buckets      []Bucket `json:"buckets"`
	Insufficient bool     `json:"insufficient_data"`
}

// AOVReport is a bucketed order-value series with AOV tiers.
type AOVReport struct {
	Period       Period          `json:"period"`
	Mean         decimal.Decimal `json:"mean"`
	Buckets      []Bucket        `json:"buckets"`
	Insufficient bool            `json:"insufficient_data"`
}

// Revenue returns the revenue series over the filter, bucketed by
// period, each bucket labeled with its population-relative revenue tier.
func (s *QueryService) Revenue(ctx context.Context, f order.Filter, period Period) (*RevenueReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets, err := s.bucketed(ctx, f, period)
	if err != nil {
		return nil, err
	}

	seg := SegmentRevenue(bucketEntities(buckets), s.th)
	applyTiers(buckets, seg)
	return &RevenueReport{Period: period, Buckets: buckets, Insufficient: seg.Insufficient}, nil
}

// AOV returns the order-value series over the filter, each bucket
// labeled against the population mean.
func (s *QueryService) AOV(ctx context.Context, f order.Filter, period Period) (*AOVReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets, err := s.bucketed(ctx, f, period)
	if err != nil {
		return nil, err
	}

	var totalRevenue decimal.Decimal
	var totalOrders int64
	for _, b := range buckets {
		totalRevenue = totalRevenue.Add(b.Revenue)
		totalOrders += b.Orders
	}
	mean := decimal.Zero
	if totalOrders > 0 {
		mean = totalRevenue.Div(decimal.NewFromInt(totalOrders)).Round(2)
	}

	seg := SegmentAOV(bucketEntities(buckets), s.th)
	applyTiers(buckets, seg)
	return &AOVReport{Period: period, Mean: mean, Buckets: buckets, Insufficient: seg.Insufficient}, nil
}

// ProductEntry is one product with its tier in the product matrix.
type ProductEntry struct {
	Name     string          `json:"name"`
	Revenue  decimal.Decimal `json:"revenue"`
	Share    decimal.Decimal `json:"share"`
	Quantity int64           `json:"quantity"`
	Orders   int64           `json:"orders"`
	Tier     Tier            `json:"tier"`
	Label    string          `json:"label"`
}

// ProductReport is the Hero/Core/Volume product matrix.
type ProductReport struct {
	Products     []ProductEntry `json:"products"`
	Insufficient bool           `json:"insufficient_data"`
}

// Products returns per-product aggregates with Hero/Core/Volume labels,
// highest revenue first. Platforms are folded together per product name.
func (s *QueryService) Products(ctx context.Context, f order.Filter) (*ProductReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities, err := s.productEntities(ctx, f)
	if err != nil {
		return nil, err
	}

	seg := SegmentProducts(entities, s.th)
	total := totalRevenue(entities)

	report := &ProductReport{Insufficient: seg.Insufficient}
	for _, e := range seg.Entities {
		share := decimal.Zero
		if total.IsPositive() {
			share = e.Revenue.Div(total).Round(4)
		}
		report.Products = append(report.Products, ProductEntry{
			Name:     e.ID,
			Revenue:  e.Revenue,
			Share:    share,
			Quantity: e.Quantity,
			Orders:   e.Orders,
			Tier:     e.Tier,
			Label:    e.Label,
		})
	}
	return report, nil
}

// Summary returns the headline metrics over the filter.
func (s *QueryService) Summary(ctx context.Context, f order.Filter) (order.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orders.Summarize(ctx, f)
}

// PortfolioSegment is one slice of the portfolio mix.
type PortfolioSegment struct {
	Label      string          `json:"label"`
	Revenue    decimal.Decimal `json:"revenue"`
	Percentage decimal.Decimal `json:"percentage"`
	Products   int             `json:"products"`
}

// PortfolioReport is the revenue mix per product tier with a risk
// reading for how concentrated the portfolio is.
type PortfolioReport struct {
	Segments       []PortfolioSegment `json:"segments"`
	RiskLevel      string             `json:"risk_level"`
	Recommendation string             `json:"recommendation"`
	Insufficient   bool               `json:"insufficient_data"`
}

// Portfolio computes the revenue mix across Hero/Core/Volume products
// and grades concentration risk.
func (s *QueryService) Portfolio(ctx context.Context, f order.Filter) (*PortfolioReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities, err := s.productEntities(ctx, f)
	if err != nil {
		return nil, err
	}
	seg := SegmentProducts(entities, s.th)
	total := totalRevenue(entities)

	byLabel := map[string]*PortfolioSegment{}
	for _, label := range []string{ProductLabelHero, ProductLabelCore, ProductLabelVolume} {
		byLabel[label] = &PortfolioSegment{Label: label, Revenue: decimal.Zero, Percentage: decimal.Zero}
	}
	for _, e := range seg.Entities {
		slice, ok := byLabel[e.Label]
		if !ok {
			continue
		}
		slice.Revenue = slice.Revenue.Add(e.Revenue)
		slice.Products++
	}

	report := &PortfolioReport{Insufficient: seg.Insufficient}
	hundred := decimal.NewFromInt(100)
	for _, label := range []string{ProductLabelHero, ProductLabelCore, ProductLabelVolume} {
		slice := byLabel[label]
		if total.IsPositive() {
			slice.Percentage = slice.Revenue.Div(total).Mul(hundred).Round(2)
		}
		report.Segments = append(report.Segments, *slice)
	}

	heroPct := report.Segments[0].Percentage
	corePct := report.Segments[1].Percentage
	switch {
	case seg.Insufficient:
		report.RiskLevel = "Unknown"
		report.Recommendation = "Not enough products to grade the portfolio."
	case heroPct.GreaterThan(decimal.NewFromInt(60)):
		report.RiskLevel = "High"
		report.Recommendation = "High reliance on Hero products. Promote Core products."
	case corePct.LessThan(decimal.NewFromInt(25)):
		report.RiskLevel = "Medium"
		report.Recommendation = "Core segment weak. Opportunity to grow mid-tier."
	default:
		report.RiskLevel = "Low"
		report.Recommendation = "Portfolio is well-balanced."
	}
	return report, nil
}

// ComparisonReport pairs a current window with its aligned baseline.
type ComparisonReport struct {
	Mode            Mode          `json:"mode"`
	Current         DateRange     `json:"current"`
	Baseline        DateRange     `json:"baseline"`
	CurrentSummary  order.Summary `json:"current_summary"`
	BaselineSummary order.Summary `json:"baseline_summary"`
	Revenue         Delta         `json:"revenue"`
	Orders          Delta         `json:"orders"`
	AOV             Delta         `json:"aov"`
}

// Compare summarizes the current window and its derived baseline and
// reports the deltas between them. The filter's From/To define the
// current window and must both be set.
func (s *QueryService) Compare(ctx context.Context, f order.Filter, mode Mode, n int) (*ComparisonReport, error) {
	if f.From.IsZero() || f.To.IsZero() {
		return nil, order.NewDomainError(order.ErrCodeInvalidInput,
			"comparison requires an explicit from/to range")
	}

	current := DateRange{From: f.From, To: f.To}
	baseline, err := BaselineRange(current, mode, n)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, err := s.orders.Summarize(ctx, f)
	if err != nil {
		return nil, err
	}
	baseFilter := f
	baseFilter.From = baseline.From
	baseFilter.To = baseline.To
	base, err := s.orders.Summarize(ctx, baseFilter)
	if err != nil {
		return nil, err
	}

	return &ComparisonReport{
		Mode:            mode,
		Current:         current,
		Baseline:        baseline,
		CurrentSummary:  cur,
		BaselineSummary: base,
		Revenue:         ComputeDelta(cur.TotalRevenue, base.TotalRevenue),
		Orders:          ComputeDelta(decimal.NewFromInt(cur.TotalOrders), decimal.NewFromInt(base.TotalOrders)),
		AOV:             ComputeDelta(cur.AOV, base.AOV),
	}, nil
}

// bucketed loads the daily aggregates and folds them into period buckets
// in chronological order.
func (s *QueryService) bucketed(ctx context.Context, f order.Filter, period Period) ([]Bucket, error) {
	days, err := s.orders.RevenueByDay(ctx, f)
	if err != nil {
		return nil, err
	}

	grouped := map[time.Time]*Bucket{}
	for _, d := range days {
		start := bucketStart(d.Date, period)
		b, ok := grouped[start]
		if !ok {
			b = &Bucket{Start: start, Revenue: decimal.Zero}
			grouped[start] = b
		}
		b.Revenue = b.Revenue.Add(d.Revenue)
		b.Orders += d.Orders
		b.Quantity += d.Quantity
	}

	buckets := make([]Bucket, 0, len(grouped))
	for _, b := range grouped {
		if b.Orders > 0 {
			b.AOV = b.Revenue.Div(decimal.NewFromInt(b.Orders)).Round(2)
		}
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Start.Before(buckets[j].Start) })
	return buckets, nil
}

// productEntities folds per-platform product stats into one entity per
// product name.
func (s *QueryService) productEntities(ctx context.Context, f order.Filter) ([]Entity, error) {
	stats, err := s.orders.ProductStats(ctx, f)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	var entities []Entity
	for _, st := range stats {
		i, ok := index[st.ProductName]
		if !ok {
			index[st.ProductName] = len(entities)
			entities = append(entities, Entity{ID: st.ProductName, Revenue: decimal.Zero})
			i = len(entities) - 1
		}
		entities[i].Revenue = entities[i].Revenue.Add(st.Revenue)
		entities[i].Quantity += st.Quantity
		entities[i].Orders += st.Orders
	}
	return entities, nil
}

// bucketStart truncates a date to its period start; weeks start Monday.
func bucketStart(d time.Time, period Period) time.Time {
	switch period {
	case PeriodWeek:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	case PeriodQuarter:
		return quarterStart(d)
	default:
		return d
	}
}

// bucketEntities adapts buckets to the segmentation engine's input.
func bucketEntities(buckets []Bucket) []Entity {
	entities := make([]Entity, len(buckets))
	for i, b := range buckets {
		entities[i] = Entity{
			ID:       b.Start.Format(time.DateOnly),
			Revenue:  b.Revenue,
			Orders:   b.Orders,
			Quantity: b.Quantity,
		}
	}
	return entities
}

// applyTiers copies tier labels from a segmentation back onto the
// chronological bucket series.
func applyTiers(buckets []Bucket, seg Segmentation) {
	tiers := make(map[string]Tier, len(seg.Entities))
	for _, e := range seg.Entities {
		tiers[e.ID] = e.Tier
	}
	for i := range buckets {
		if t, ok := tiers[buckets[i].Start.Format(time.DateOnly)]; ok {
			buckets[i].Tier = t
		}
	}
}
