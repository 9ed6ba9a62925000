package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dplus/backend/internal/domain/order"
	"github.com/dplus/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// InsertBatch inserts canonical orders. Callers are responsible for
// deduplicating against ExistingKeys first; a key collision here
// surfaces as a unique constraint error and rolls the transaction back.
func (r *GormOrderRepository) InsertBatch(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	orderModels := make([]*models.OrderModel, len(orders))
	for i := range orders {
		m := &models.OrderModel{}
		m.FromDomain(&orders[i])
		orderModels[i] = m
	}
	return r.db.WithContext(ctx).CreateInBatches(orderModels, 500).Error
}

// ExistingKeys returns every dedup key currently in the store.
func (r *GormOrderRepository) ExistingKeys(ctx context.Context) (map[order.Key]struct{}, error) {
	type keyRow struct {
		OrderID  string
		Platform string
	}
	var rows []keyRow
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Select("order_id", "platform").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	keys := make(map[order.Key]struct{}, len(rows))
	for _, row := range rows {
		keys[order.Key{OrderID: row.OrderID, Platform: order.Platform(row.Platform)}] = struct{}{}
	}
	return keys, nil
}

// Snapshot returns the store's population size and total revenue.
func (r *GormOrderRepository) Snapshot(ctx context.Context) (order.Snapshot, error) {
	var result struct {
		Rows    int64
		Revenue decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Select("COUNT(*) AS rows, COALESCE(SUM(subtotal_net), 0) AS revenue").
		Scan(&result).Error
	if err != nil {
		return order.Snapshot{}, err
	}
	return order.Snapshot{Rows: result.Rows, Revenue: result.Revenue}, nil
}

// IntegrityCounts runs the full-store diagnostic scan. Dates outside
// [minDate, maxDate] count as out of range.
func (r *GormOrderRepository) IntegrityCounts(ctx context.Context, minDate, maxDate time.Time) (order.IntegrityCounts, error) {
	var c order.IntegrityCounts
	db := r.db.WithContext(ctx).Model(&models.OrderModel{})

	if err := db.Session(&gorm.Session{}).Count(&c.TotalRows).Error; err != nil {
		return c, err
	}
	if err := db.Session(&gorm.Session{}).
		Select("COUNT(DISTINCT order_id || '|' || platform)").
		Scan(&c.UniqueKeys).Error; err != nil {
		return c, err
	}
	c.DuplicateKeys = c.TotalRows - c.UniqueKeys

	if err := db.Session(&gorm.Session{}).
		Where("TRIM(order_id) = ''").Count(&c.EmptyOrderIDs).Error; err != nil {
		return c, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("date IS NULL").Count(&c.MissingDates).Error; err != nil {
		return c, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("date < ? OR date > ?", minDate, maxDate).
		Count(&c.OutOfRangeDates).Error; err != nil {
		return c, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("TRIM(product_name) = ''").Count(&c.MissingProductName).Error; err != nil {
		return c, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("subtotal_net < 0").Count(&c.NegativeRevenue).Error; err != nil {
		return c, err
	}
	return c, nil
}

// RevenueByDay aggregates revenue, order count, and quantity per day and
// platform over the filtered population, ordered by date.
func (r *GormOrderRepository) RevenueByDay(ctx context.Context, f order.Filter) ([]order.DayStat, error) {
	type dayRow struct {
		Date     time.Time
		Platform string
		Revenue  decimal.Decimal
		Orders   int64
		Quantity int64
	}
	var rows []dayRow
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), f)
	err := query.
		Select("date, platform, COALESCE(SUM(subtotal_net), 0) AS revenue, COUNT(*) AS orders, COALESCE(SUM(quantity), 0) AS quantity").
		Group("date, platform").
		Order("date ASC, platform ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make([]order.DayStat, len(rows))
	for i, row := range rows {
		stats[i] = order.DayStat{
			Date:     row.Date,
			Platform: order.Platform(row.Platform),
			Revenue:  row.Revenue,
			Orders:   row.Orders,
			Quantity: row.Quantity,
		}
	}
	return stats, nil
}

// ProductStats aggregates per-product performance over the filtered
// population, highest revenue first.
func (r *GormOrderRepository) ProductStats(ctx context.Context, f order.Filter) ([]order.ProductStat, error) {
	type productRow struct {
		ProductName string
		Platform    string
		Revenue     decimal.Decimal
		Quantity    int64
		Orders      int64
	}
	var rows []productRow
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), f)
	err := query.
		Select("product_name, platform, COALESCE(SUM(subtotal_net), 0) AS revenue, COALESCE(SUM(quantity), 0) AS quantity, COUNT(*) AS orders").
		Group("product_name, platform").
		Order("revenue DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make([]order.ProductStat, len(rows))
	for i, row := range rows {
		stats[i] = order.ProductStat{
			ProductName: row.ProductName,
			Platform:    order.Platform(row.Platform),
			Revenue:     row.Revenue,
			Quantity:    row.Quantity,
			Orders:      row.Orders,
		}
	}
	return stats, nil
}

// Summarize computes headline metrics over the filtered population.
func (r *GormOrderRepository) Summarize(ctx context.Context, f order.Filter) (order.Summary, error) {
	var result struct {
		TotalOrders    int64
		TotalRevenue   decimal.Decimal
		TotalQuantity  int64
		UniqueProducts int64
	}
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), f)
	err := query.
		Select("COUNT(*) AS total_orders, COALESCE(SUM(subtotal_net), 0) AS total_revenue, COALESCE(SUM(quantity), 0) AS total_quantity, COUNT(DISTINCT product_name) AS unique_products").
		Scan(&result).Error
	if err != nil {
		return order.Summary{}, err
	}

	s := order.Summary{
		TotalOrders:    result.TotalOrders,
		TotalRevenue:   result.TotalRevenue,
		TotalQuantity:  result.TotalQuantity,
		UniqueProducts: result.UniqueProducts,
	}
	if s.TotalOrders > 0 {
		s.AOV = s.TotalRevenue.Div(decimal.NewFromInt(s.TotalOrders)).Round(2)
	}
	return s, nil
}

// DateRange returns the earliest and latest order dates in the store.
// An empty store returns order.ErrNotFound. MIN/MAX aggregates come
// back from sqlite as strings, so the bounds are read with ordered
// single-row queries instead.
func (r *GormOrderRepository) DateRange(ctx context.Context) (time.Time, time.Time, error) {
	var first, last models.OrderModel
	err := r.db.WithContext(ctx).Order("date ASC").First(&first).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, time.Time{}, order.ErrNotFound
		}
		return time.Time{}, time.Time{}, err
	}
	if err := r.db.WithContext(ctx).Order("date DESC").First(&last).Error; err != nil {
		return time.Time{}, time.Time{}, err
	}
	return first.Date, last.Date, nil
}

// DeleteAll wipes the order store; only a rebuild calls this.
func (r *GormOrderRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("DELETE FROM orders").Error
}

// Transaction runs fn against a repository bound to one transaction.
func (r *GormOrderRepository) Transaction(ctx context.Context, fn func(order.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormOrderRepository(tx))
	})
}

// applyFilter applies the date range and platform filter to a query.
func (r *GormOrderRepository) applyFilter(query *gorm.DB, f order.Filter) *gorm.DB {
	if !f.From.IsZero() {
		query = query.Where("date >= ?", f.From)
	}
	if !f.To.IsZero() {
		query = query.Where("date <= ?", f.To)
	}
	if f.Platform != nil {
		query = query.Where("platform = ?", string(*f.Platform))
	}
	return query
}

// Ensure GormOrderRepository implements order.Repository
var _ order.Repository = (*GormOrderRepository)(nil)
