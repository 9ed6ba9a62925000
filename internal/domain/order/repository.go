package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Filter narrows query populations by date range and platform. A nil
// platform means all platforms; From/To are inclusive calendar dates in
// the canonical timezone.
type Filter struct {
	From     time.Time
	To       time.Time
	Platform *Platform
}

// DayStat is one day's aggregate for a platform.
type DayStat struct {
	Date     time.Time
	Platform Platform
	Revenue  decimal.Decimal
	Orders   int64
	Quantity int64
}

// ProductStat aggregates one product's performance over a filtered range.
type ProductStat struct {
	ProductName string
	Platform    Platform
	Revenue     decimal.Decimal
	Quantity    int64
	Orders      int64
}

// Summary holds headline metrics over a filtered population.
type Summary struct {
	TotalOrders    int64
	TotalRevenue   decimal.Decimal
	TotalQuantity  int64
	AOV            decimal.Decimal
	UniqueProducts int64
}

// Snapshot captures the store population size and total revenue; the
// validator compares pre/post-merge snapshots.
type Snapshot struct {
	Rows    int64
	Revenue decimal.Decimal
}

// IntegrityCounts holds the diagnostic counters of a full-store scan.
type IntegrityCounts struct {
	TotalRows          int64
	UniqueKeys         int64
	DuplicateKeys      int64
	EmptyOrderIDs      int64
	MissingDates       int64
	OutOfRangeDates    int64
	MissingProductName int64
	NegativeRevenue    int64
}

// Repository is the store contract for canonical orders. Orders are
// created only through batch inserts during a merge and removed only by
// a full wipe (rebuild); there are no partial updates.
type Repository interface {
	InsertBatch(ctx context.Context, orders []Order) error
	ExistingKeys(ctx context.Context) (map[Key]struct{}, error)
	Snapshot(ctx context.Context) (Snapshot, error)
	IntegrityCounts(ctx context.Context, minDate, maxDate time.Time) (IntegrityCounts, error)
	RevenueByDay(ctx context.Context, f Filter) ([]DayStat, error)
	ProductStats(ctx context.Context, f Filter) ([]ProductStat, error)
	Summarize(ctx context.Context, f Filter) (Summary, error)
	DateRange(ctx context.Context) (min, max time.Time, err error)
	DeleteAll(ctx context.Context) error

	// Transaction runs fn against a repository bound to a single
	// transaction; returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(Repository) error) error
}
