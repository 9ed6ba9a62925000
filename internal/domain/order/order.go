package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Platform identifies the marketplace an order export came from.
type Platform string

const (
	PlatformTikTok Platform = "TikTok"
	PlatformShopee Platform = "Shopee"
)

// IsValid checks if the platform is a known marketplace
func (p Platform) IsValid() bool {
	switch p {
	case PlatformTikTok, PlatformShopee:
		return true
	}
	return false
}

// ParsePlatform resolves a platform name case-insensitively.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(s) {
	case "tiktok":
		return PlatformTikTok, true
	case "shopee":
		return PlatformShopee, true
	}
	return "", false
}

// Key is the store-wide dedup key. Two rows sharing a Key describe the
// same real-world order line and only one may survive a merge.
type Key struct {
	OrderID  string
	Platform Platform
}

// Order is the canonical representation of one order line, identical in
// shape regardless of the source platform.
type Order struct {
	OrderID          string
	Platform         Platform
	ProductName      string
	Quantity         int
	SubtotalNet      decimal.Decimal
	OrderTotalAmount decimal.Decimal
	// CreatedAt always carries the canonical business timezone; raw
	// timestamps are naive wall-clock strings localized exactly once at
	// ingestion.
	CreatedAt time.Time
	// Date is derived from CreatedAt in the same timezone and is never
	// edited independently.
	Date            time.Time
	SellerSKU       string
	OrderStatus     string
	ProductCategory string
	// Attributes carries all unmapped source columns through unmodified,
	// keyed by the raw header name.
	Attributes map[string]string
}

// Key returns the dedup key for this order.
func (o *Order) Key() Key {
	return Key{OrderID: o.OrderID, Platform: o.Platform}
}

// Validate checks the invariants every stored order must satisfy.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.OrderID) == "" {
		return NewDomainError(ErrCodeInvalidInput, "order ID cannot be empty")
	}
	if !o.Platform.IsValid() {
		return NewDomainError(ErrCodeInvalidInput, "unknown platform: "+string(o.Platform))
	}
	if o.Quantity < 0 {
		return NewDomainError(ErrCodeInvalidInput, "quantity cannot be negative")
	}
	if o.CreatedAt.IsZero() {
		return NewDomainError(ErrCodeInvalidInput, "created_at is required")
	}
	return nil
}
