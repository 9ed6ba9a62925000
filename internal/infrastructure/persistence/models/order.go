package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dplus/backend/internal/domain/order"
)

// OrderModel is the persistence model for the canonical Order entity.
// The composite unique index enforces the store-wide dedup key.
type OrderModel struct {
	ID               uint            `gorm:"primaryKey;autoIncrement"`
	OrderID          string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_orders_order_id_platform"`
	Platform         string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_orders_order_id_platform"`
	ProductName      string          `gorm:"type:varchar(500);not null;default:''"`
	Quantity         int             `gorm:"not null;default:0"`
	SubtotalNet      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	OrderTotalAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	CreatedAt        time.Time       `gorm:"not null;index"`
	Date             time.Time       `gorm:"not null;index"`
	SellerSKU        string          `gorm:"type:varchar(100);default:''"`
	OrderStatus      string          `gorm:"type:varchar(50);default:''"`
	ProductCategory  string          `gorm:"type:varchar(200);default:''"`
	Attributes       string          `gorm:"type:text;default:''"`
	IngestedAt       time.Time       `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order entity.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		OrderID:          m.OrderID,
		Platform:         order.Platform(m.Platform),
		ProductName:      m.ProductName,
		Quantity:         m.Quantity,
		SubtotalNet:      m.SubtotalNet,
		OrderTotalAmount: m.OrderTotalAmount,
		CreatedAt:        m.CreatedAt,
		Date:             m.Date,
		SellerSKU:        m.SellerSKU,
		OrderStatus:      m.OrderStatus,
		ProductCategory:  m.ProductCategory,
	}
	if m.Attributes != "" {
		_ = json.Unmarshal([]byte(m.Attributes), &o.Attributes)
	}
	return o
}

// FromDomain populates the persistence model from a domain Order entity.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.OrderID = o.OrderID
	m.Platform = string(o.Platform)
	m.ProductName = o.ProductName
	m.Quantity = o.Quantity
	m.SubtotalNet = o.SubtotalNet
	m.OrderTotalAmount = o.OrderTotalAmount
	m.CreatedAt = o.CreatedAt
	m.Date = o.Date
	m.SellerSKU = o.SellerSKU
	m.OrderStatus = o.OrderStatus
	m.ProductCategory = o.ProductCategory
	if len(o.Attributes) > 0 {
		if data, err := json.Marshal(o.Attributes); err == nil {
			m.Attributes = string(data)
		}
	}
}
