package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dplus/backend/internal/domain/order"
)

func bangkok(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	return loc
}

func tiktokRow(t *testing.T, fields map[string]string) *Row {
	t.Helper()
	data := map[string]string{
		"Order ID":                    "579000001",
		"Order Amount":                "1250.00",
		"Created Time":                "15/03/2024 14:30:00",
		"Product Name":                "Vitamin C Serum 30ml",
		"Quantity":                    "2",
		"SKU Subtotal After Discount": "1100.00",
		"Product Category":            "Beauty",
		"Order Status":                "Completed",
		"Seller SKU":                  "VC-SERUM-30",
	}
	for k, v := range fields {
		data[k] = v
	}
	return &Row{LineNumber: 2, Data: data}
}

func TestNormalizer_TikTokRow(t *testing.T) {
	n := NewNormalizer(TikTokSchema(), bangkok(t), nil)

	res := n.NormalizeRows([]*Row{tiktokRow(t, nil)}, 10)
	require.Len(t, res.Orders, 1)
	assert.False(t, res.Errors.HasErrors())

	o := res.Orders[0]
	assert.Equal(t, "579000001", o.OrderID)
	assert.Equal(t, order.PlatformTikTok, o.Platform)
	assert.Equal(t, 2, o.Quantity)
	assert.True(t, o.SubtotalNet.Equal(decimal.RequireFromString("1100.00")))
	assert.True(t, o.OrderTotalAmount.Equal(decimal.RequireFromString("1250.00")))
	assert.Equal(t, "VC-SERUM-30", o.SellerSKU)

	// DD/MM/YYYY in the canonical timezone
	assert.Equal(t, time.March, o.CreatedAt.Month())
	assert.Equal(t, 15, o.CreatedAt.Day())
	assert.Equal(t, 14, o.CreatedAt.Hour())
	_, offset := o.CreatedAt.Zone()
	assert.Equal(t, 7*3600, offset)

	// Date truncates to midnight of the same local day
	assert.Equal(t, 0, o.Date.Hour())
	assert.Equal(t, 15, o.Date.Day())
}

func TestNormalizer_ShopeeRow(t *testing.T) {
	n := NewNormalizer(ShopeeSchema(), bangkok(t), nil)

	row := &Row{LineNumber: 2, Data: map[string]string{
		"หมายเลขคำสั่งซื้อ":                "2404SHP001",
		"จำนวนเงินทั้งหมด":                 "890.00",
		"วันที่ทำการสั่งซื้อ":              "2024-04-02 09:15",
		"ชื่อสินค้า":                       "คอลลาเจนผง 100g",
		"จำนวน":                            "1",
		"ราคาขายสุทธิ":                     "790.00",
		"สถานะการสั่งซื้อ":                 "สำเร็จ",
		"เลขอ้างอิง SKU (SKU Reference No.)": "COL-100",
	}}

	res := n.NormalizeRows([]*Row{row}, 10)
	require.Len(t, res.Orders, 1)

	o := res.Orders[0]
	assert.Equal(t, "2404SHP001", o.OrderID)
	assert.Equal(t, order.PlatformShopee, o.Platform)
	assert.Equal(t, "คอลลาเจนผง 100g", o.ProductName)
	assert.Equal(t, time.April, o.CreatedAt.Month())
	assert.Equal(t, 9, o.CreatedAt.Hour())
	assert.Equal(t, 15, o.CreatedAt.Minute())
}

func TestNormalizer_TimestampRoundTrip(t *testing.T) {
	loc := bangkok(t)

	raw := "15/03/2024 14:30:05"
	res := NewNormalizer(TikTokSchema(), loc, nil).
		NormalizeRows([]*Row{tiktokRow(t, map[string]string{"Created Time": raw})}, 10)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, raw, res.Orders[0].CreatedAt.Format("02/01/2006 15:04:05"))

	rawShopee := "2024-04-02 09:15"
	row := &Row{LineNumber: 2, Data: map[string]string{
		"หมายเลขคำสั่งซื้อ":   "2404SHP002",
		"จำนวนเงินทั้งหมด":    "890.00",
		"วันที่ทำการสั่งซื้อ": rawShopee,
		"ชื่อสินค้า":          "คอลลาเจนผง 100g",
		"จำนวน":               "1",
		"ราคาขายสุทธิ":        "790.00",
	}}
	res = NewNormalizer(ShopeeSchema(), loc, nil).NormalizeRows([]*Row{row}, 10)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, rawShopee, res.Orders[0].CreatedAt.Format("2006-01-02 15:04"))
}

func TestNormalizer_EmptyOrderID(t *testing.T) {
	n := NewNormalizer(TikTokSchema(), bangkok(t), nil)

	res := n.NormalizeRows([]*Row{tiktokRow(t, map[string]string{"Order ID": "  "})}, 10)
	assert.Empty(t, res.Orders)
	require.True(t, res.Errors.HasErrors())
	assert.Equal(t, ErrCodeRowEmptyKey, res.Errors.Errors()[0].Code)
}

func TestNormalizer_BadDate(t *testing.T) {
	n := NewNormalizer(TikTokSchema(), bangkok(t), nil)

	// ISO date in a TikTok file means the platform layout does not apply
	res := n.NormalizeRows([]*Row{tiktokRow(t, map[string]string{"Created Time": "2024-03-15 14:30"})}, 10)
	assert.Empty(t, res.Orders)
	require.True(t, res.Errors.HasErrors())
	assert.Equal(t, ErrCodeRowBadDate, res.Errors.Errors()[0].Code)
}

func TestNormalizer_NumberCoercion(t *testing.T) {
	n := NewNormalizer(TikTokSchema(), bangkok(t), nil)

	t.Run("grouping separators and currency", func(t *testing.T) {
		res := n.NormalizeRows([]*Row{tiktokRow(t, map[string]string{
			"Order Amount":                "฿1,250.50",
			"SKU Subtotal After Discount": "1,100",
		})}, 10)
		require.Len(t, res.Orders, 1)
		assert.True(t, res.Orders[0].OrderTotalAmount.Equal(decimal.RequireFromString("1250.50")))
		assert.True(t, res.Orders[0].SubtotalNet.Equal(decimal.NewFromInt(1100)))
	})

	t.Run("negative amounts clip to zero", func(t *testing.T) {
		res := n.NormalizeRows([]*Row{tiktokRow(t, map[string]string{
			"SKU Subtotal After Discount": "-50.00",
		})}, 10)
		require.Len(t, res.Orders, 1)
		assert.True(t, res.Orders[0].SubtotalNet.IsZero())
	})

	t.Run("empty quantity defaults to one", func(t *testing.T) {
		res := n.NormalizeRows([]*Row{tiktokRow(t, map[string]string{"Quantity": ""})}, 10)
		require.Len(t, res.Orders, 1)
		assert.Equal(t, 1, res.Orders[0].Quantity)
	})

	t.Run("float quantity truncates", func(t *testing.T) {
		res := n.NormalizeRows([]*Row{tiktokRow(t, map[string]string{"Quantity": "2.0"})}, 10)
		require.Len(t, res.Orders, 1)
		assert.Equal(t, 2, res.Orders[0].Quantity)
	})

	t.Run("garbage amount is a row error", func(t *testing.T) {
		res := n.NormalizeRows([]*Row{tiktokRow(t, map[string]string{"Order Amount": "abc"})}, 10)
		assert.Empty(t, res.Orders)
		require.True(t, res.Errors.HasErrors())
		assert.Equal(t, ErrCodeRowBadNumber, res.Errors.Errors()[0].Code)
	})
}

func TestNormalizer_Denylist(t *testing.T) {
	denylist := []string{"iphone", "case", "charger"}
	n := NewNormalizer(TikTokSchema(), bangkok(t), denylist)

	rows := []*Row{
		tiktokRow(t, map[string]string{"Product Name": "iPhone 15 Case - Clear"}),
		tiktokRow(t, map[string]string{"Product Name": "Fast CHARGER 20W"}),
		tiktokRow(t, map[string]string{"Product Name": "Vitamin C Serum"}),
	}

	res := n.NormalizeRows(rows, 10)
	assert.Equal(t, 2, res.Excluded)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "Vitamin C Serum", res.Orders[0].ProductName)
	assert.False(t, res.Errors.HasErrors())
}

func TestNormalizer_Attributes(t *testing.T) {
	n := NewNormalizer(TikTokSchema(), bangkok(t), nil)

	row := tiktokRow(t, map[string]string{
		"Tracking ID":      "TH123456789",
		"Shipping Country": "Thailand",
	})
	res := n.NormalizeRows([]*Row{row}, 10)
	require.Len(t, res.Orders, 1)

	attrs := res.Orders[0].Attributes
	assert.Equal(t, "TH123456789", attrs["Tracking ID"])
	assert.Equal(t, "Thailand", attrs["Shipping Country"])
	assert.NotContains(t, attrs, "Order ID")
}

func TestPlatformSchema_ValidateHeaders(t *testing.T) {
	schema := TikTokSchema()

	p, err := NewCSVParser(strings.NewReader("Order ID,Created Time,Product Name\n"))
	require.NoError(t, err)
	assert.NoError(t, schema.ValidateHeaders("orders.csv", p))

	p, err = NewCSVParser(strings.NewReader("Order ID,Product Name\n"))
	require.NoError(t, err)
	err = schema.ValidateHeaders("orders.csv", p)
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "orders.csv", schemaErr.File)
	assert.Equal(t, []string{"Created Time"}, schemaErr.Missing)
}

func TestSchemaFor(t *testing.T) {
	s, ok := SchemaFor(order.PlatformTikTok)
	require.True(t, ok)
	assert.Equal(t, order.PlatformTikTok, s.Platform)

	s, ok = SchemaFor(order.PlatformShopee)
	require.True(t, ok)
	assert.Equal(t, order.PlatformShopee, s.Platform)

	_, ok = SchemaFor(order.Platform("lazada"))
	assert.False(t, ok)
}
