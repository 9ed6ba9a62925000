package ingest

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVParser_Basic(t *testing.T) {
	csvData := "Order ID,Product Name,Quantity\n579000001,Vitamin C Serum,2\n579000002,Collagen Powder,1\n"

	p, err := NewCSVParser(strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, []string{"Order ID", "Product Name", "Quantity"}, p.Headers())
	assert.True(t, p.HasHeader("Order ID"))
	assert.False(t, p.HasHeader("Missing"))

	rows, err := p.ReadAllRows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "579000001", rows[0].Get("Order ID"))
	assert.Equal(t, "Collagen Powder", rows[1].Get("Product Name"))
	assert.Equal(t, 2, rows[0].LineNumber)
	assert.Equal(t, 3, rows[1].LineNumber)
	assert.Equal(t, 2, p.TotalRows())
}

func TestCSVParser_BOM(t *testing.T) {
	csvData := "\xEF\xBB\xBFOrder ID,Product Name\n579000001,Serum\n"

	p, err := NewCSVParser(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.True(t, p.HasHeader("Order ID"))
}

func TestCSVParser_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("Order ID,Product Name\n579000001,Serum\n579000002,Powder\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	p, err := NewCSVParser(&buf)
	require.NoError(t, err)

	rows, err := p.ReadAllRows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "579000002", rows[1].Get("Order ID"))
}

func TestCSVParser_EmptyFile(t *testing.T) {
	_, err := NewCSVParser(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestCSVParser_InvalidEncoding(t *testing.T) {
	// Latin-1 bytes that are not valid UTF-8
	_, err := NewCSVParser(bytes.NewReader([]byte{0x4f, 0x72, 0xe9, 0xe8, 0x0a}))
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestCSVParser_RaggedRow(t *testing.T) {
	csvData := "Order ID,Product Name,Quantity\n579000001,Serum\n"

	p, err := NewCSVParser(strings.NewReader(csvData))
	require.NoError(t, err)

	rows, err := p.ReadAllRows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Get("Quantity"))
}

func TestCSVParser_SkipsEmptyRows(t *testing.T) {
	csvData := "Order ID,Product Name\n579000001,Serum\n,\n579000002,Powder\n"

	p, err := NewCSVParser(strings.NewReader(csvData))
	require.NoError(t, err)

	rows, err := p.ReadAllRows()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCSVParser_ThaiContent(t *testing.T) {
	csvData := "หมายเลขคำสั่งซื้อ,ชื่อสินค้า\n2404SHP001,เซรั่มวิตามินซี\n"

	p, err := NewCSVParser(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.True(t, p.HasHeader("หมายเลขคำสั่งซื้อ"))

	rows, err := p.ReadAllRows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "เซรั่มวิตามินซี", rows[0].Get("ชื่อสินค้า"))
}
