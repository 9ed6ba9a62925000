package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dplus/backend/internal/domain/order"
)

// Canonical field names shared by every platform schema.
const (
	FieldOrderID          = "order_id"
	FieldOrderTotalAmount = "order_total_amount"
	FieldCreatedAt        = "created_at"
	FieldProductName      = "product_name"
	FieldQuantity         = "quantity"
	FieldSubtotalNet      = "subtotal_net"
	FieldProductCategory  = "product_category"
	FieldOrderStatus      = "order_status"
	FieldSellerSKU        = "seller_sku"
)

// PlatformSchema describes how one marketplace's export maps onto the
// canonical order fields.
type PlatformSchema struct {
	Platform order.Platform
	// ColumnMap maps source header names to canonical field names.
	ColumnMap map[string]string
	// DateLayouts are tried in order when parsing created_at.
	DateLayouts []string
	// Required lists canonical fields whose source column must be present
	// in the header for the file to be accepted at all.
	Required []string
}

// TikTokSchema returns the schema for TikTok Shop order exports
// (English headers, DD/MM/YYYY timestamps).
func TikTokSchema() PlatformSchema {
	return PlatformSchema{
		Platform: order.PlatformTikTok,
		ColumnMap: map[string]string{
			"Order ID":                    FieldOrderID,
			"Order Amount":                FieldOrderTotalAmount,
			"Created Time":                FieldCreatedAt,
			"Product Name":                FieldProductName,
			"Quantity":                    FieldQuantity,
			"SKU Subtotal After Discount": FieldSubtotalNet,
			"Product Category":            FieldProductCategory,
			"Order Status":                FieldOrderStatus,
			"Seller SKU":                  FieldSellerSKU,
		},
		DateLayouts: []string{
			"02/01/2006 15:04:05",
			"02/01/2006 15:04",
		},
		Required: []string{FieldOrderID, FieldCreatedAt, FieldProductName},
	}
}

// ShopeeSchema returns the schema for Shopee order exports
// (Thai headers, ISO timestamps without seconds).
func ShopeeSchema() PlatformSchema {
	return PlatformSchema{
		Platform: order.PlatformShopee,
		ColumnMap: map[string]string{
			"หมายเลขคำสั่งซื้อ":                FieldOrderID,
			"จำนวนเงินทั้งหมด":                 FieldOrderTotalAmount,
			"วันที่ทำการสั่งซื้อ":              FieldCreatedAt,
			"ชื่อสินค้า":                       FieldProductName,
			"จำนวน":                            FieldQuantity,
			"ราคาขายสุทธิ":                     FieldSubtotalNet,
			"สถานะการสั่งซื้อ":                 FieldOrderStatus,
			"เลขอ้างอิง SKU (SKU Reference No.)": FieldSellerSKU,
		},
		DateLayouts: []string{
			"2006-01-02 15:04",
			"2006-01-02 15:04:05",
		},
		Required: []string{FieldOrderID, FieldCreatedAt, FieldProductName},
	}
}

// SchemaFor returns the schema registered for a platform.
func SchemaFor(p order.Platform) (PlatformSchema, bool) {
	switch p {
	case order.PlatformTikTok:
		return TikTokSchema(), true
	case order.PlatformShopee:
		return ShopeeSchema(), true
	default:
		return PlatformSchema{}, false
	}
}

// sourceHeader returns the source column name for a canonical field.
func (s PlatformSchema) sourceHeader(field string) (string, bool) {
	for src, canonical := range s.ColumnMap {
		if canonical == field {
			return src, true
		}
	}
	return "", false
}

// ValidateHeaders checks that every required source column is present.
func (s PlatformSchema) ValidateHeaders(file string, src RowSource) error {
	var missing []string
	for _, field := range s.Required {
		header, ok := s.sourceHeader(field)
		if !ok || !src.HasHeader(header) {
			missing = append(missing, header)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{
			File:    file,
			Reason:  "required columns missing from header",
			Missing: missing,
		}
	}
	return nil
}

// Normalizer converts raw source rows into canonical orders. Rows failing
// normalization are recorded in an ErrorCollection rather than aborting
// the file.
type Normalizer struct {
	schema   PlatformSchema
	loc      *time.Location
	denylist []string
}

// NewNormalizer builds a normalizer for one platform schema. Denylist
// keywords are matched case-insensitively as substrings of product names.
func NewNormalizer(schema PlatformSchema, loc *time.Location, denylist []string) *Normalizer {
	lowered := make([]string, 0, len(denylist))
	for _, kw := range denylist {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Normalizer{schema: schema, loc: loc, denylist: lowered}
}

// NormalizeResult summarizes one file's normalization pass.
type NormalizeResult struct {
	Orders   []*order.Order
	Errors   *ErrorCollection
	Excluded int // rows dropped by the product denylist
	Total    int // data rows seen
}

// NormalizeRows converts rows into orders. Rows with an empty order ID,
// an unparseable date, or a malformed number are skipped and recorded.
func (n *Normalizer) NormalizeRows(rows []*Row, maxErrors int) *NormalizeResult {
	res := &NormalizeResult{
		Errors: NewErrorCollection(maxErrors),
		Total:  len(rows),
	}
	for _, row := range rows {
		o, rowErr := n.normalizeRow(row)
		if rowErr != nil {
			res.Errors.Add(*rowErr)
			continue
		}
		if o == nil {
			res.Excluded++
			continue
		}
		res.Orders = append(res.Orders, o)
	}
	return res
}

// normalizeRow maps one source row to an order. A nil order with a nil
// error means the row was excluded by the denylist.
func (n *Normalizer) normalizeRow(row *Row) (*order.Order, *RowError) {
	get := func(field string) string {
		header, ok := n.schema.sourceHeader(field)
		if !ok {
			return ""
		}
		return row.Get(header)
	}

	orderID := strings.TrimSpace(get(FieldOrderID))
	if orderID == "" {
		rowErr := NewEmptyKeyError(row.LineNumber, mustHeader(n.schema, FieldOrderID))
		return nil, &rowErr
	}

	productName := strings.TrimSpace(get(FieldProductName))
	if n.isDenied(productName) {
		return nil, nil
	}

	rawDate := get(FieldCreatedAt)
	createdAt, err := n.parseTime(rawDate)
	if err != nil {
		rowErr := NewDateError(row.LineNumber, mustHeader(n.schema, FieldCreatedAt), rawDate)
		return nil, &rowErr
	}

	quantity, rowErr := n.parseQuantity(row, get(FieldQuantity))
	if rowErr != nil {
		return nil, rowErr
	}

	subtotal, rowErr := n.parseAmount(row, FieldSubtotalNet, get(FieldSubtotalNet))
	if rowErr != nil {
		return nil, rowErr
	}
	total, rowErr := n.parseAmount(row, FieldOrderTotalAmount, get(FieldOrderTotalAmount))
	if rowErr != nil {
		return nil, rowErr
	}

	o := &order.Order{
		OrderID:          orderID,
		Platform:         n.schema.Platform,
		ProductName:      productName,
		Quantity:         quantity,
		SubtotalNet:      subtotal,
		OrderTotalAmount: total,
		CreatedAt:        createdAt,
		Date:             truncateToDay(createdAt),
		SellerSKU:        strings.TrimSpace(get(FieldSellerSKU)),
		OrderStatus:      strings.TrimSpace(get(FieldOrderStatus)),
		ProductCategory:  strings.TrimSpace(get(FieldProductCategory)),
		Attributes:       n.collectAttributes(row),
	}
	return o, nil
}

func (n *Normalizer) isDenied(productName string) bool {
	if productName == "" {
		return false
	}
	lowered := strings.ToLower(productName)
	for _, kw := range n.denylist {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func (n *Normalizer) parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range n.schema.DateLayouts {
		t, err := time.ParseInLocation(layout, raw, n.loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseQuantity parses the quantity column. Empty values default to 1,
// matching single-item rows some exports omit the count for. Negatives
// clip to zero.
func (n *Normalizer) parseQuantity(row *Row, raw string) (int, *RowError) {
	raw = cleanNumeric(raw)
	if raw == "" {
		return 1, nil
	}
	q, err := strconv.Atoi(raw)
	if err != nil {
		// exports sometimes write quantities as "2.0"
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			rowErr := NewNumberError(row.LineNumber, mustHeader(n.schema, FieldQuantity), "unparseable quantity", raw)
			return 0, &rowErr
		}
		q = int(f)
	}
	if q < 0 {
		q = 0
	}
	return q, nil
}

// parseAmount parses a money column. Empty values are zero, malformed
// values are row errors, and negatives clip to zero.
func (n *Normalizer) parseAmount(row *Row, field, raw string) (decimal.Decimal, *RowError) {
	raw = cleanNumeric(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		rowErr := NewNumberError(row.LineNumber, mustHeader(n.schema, field), "unparseable amount", raw)
		return decimal.Zero, &rowErr
	}
	if d.IsNegative() {
		return decimal.Zero, nil
	}
	return d, nil
}

// collectAttributes preserves source columns outside the canonical map so
// no exported detail is lost during normalization.
func (n *Normalizer) collectAttributes(row *Row) map[string]string {
	var attrs map[string]string
	for header, value := range row.Data {
		if _, mapped := n.schema.ColumnMap[header]; mapped {
			continue
		}
		if value == "" {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[header] = value
	}
	return attrs
}

// cleanNumeric strips grouping separators and currency markers that the
// marketplace exports embed in numeric cells.
func cleanNumeric(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimPrefix(raw, "฿")
	raw = strings.TrimPrefix(raw, "THB")
	return strings.TrimSpace(raw)
}

func mustHeader(s PlatformSchema, field string) string {
	header, _ := s.sourceHeader(field)
	return header
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
