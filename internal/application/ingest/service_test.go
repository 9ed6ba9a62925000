package ingestapp

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/dplus/backend/internal/domain/ingestion"
	"github.com/dplus/backend/internal/domain/order"
	"github.com/dplus/backend/internal/infrastructure/config"
	"github.com/dplus/backend/internal/infrastructure/persistence"
)

const tiktokHeader = "Order ID,Order Amount,Created Time,Product Name,Quantity,SKU Subtotal After Discount,Product Category,Order Status,Seller SKU\n"

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		Ingest: config.IngestConfig{
			DataDirs:              []string{dataDir},
			TikTokPatterns:        []string{"*.csv", "*.csv.gz"},
			ShopeePatterns:        []string{"*.xlsx"},
			Timezone:              "Asia/Bangkok",
			DenylistKeywords:      []string{"case", "charger"},
			MaxRowErrors:          100,
			MalformedRowTolerance: 0.25,
		},
		Validation: config.ValidationConfig{
			DataLossTolerance: 0.10,
			SaneDateFloor:     2020,
		},
	}
}

func newTestService(t *testing.T, dataDir string) (*IngestionService, order.Repository) {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Path: ":memory:", BusyTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	orders := persistence.NewGormOrderRepository(db.DB)
	files := persistence.NewGormSourceFileRepository(db.DB)
	runs := persistence.NewGormRunRepository(db.DB)

	svc, err := NewIngestionService(orders, files, runs, testConfig(dataDir), zap.NewNop(), &sync.RWMutex{})
	require.NoError(t, err)
	return svc, orders
}

func writeTikTokCSV(t *testing.T, path string, rows ...string) {
	t.Helper()
	content := tiktokHeader
	for _, r := range rows {
		content += r + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeTikTokGzip(t *testing.T, path string, rows ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(tiktokHeader))
	require.NoError(t, err)
	for _, r := range rows {
		_, err = gz.Write([]byte(r + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func writeShopeeXLSX(t *testing.T, path string, rows ...[]any) {
	t.Helper()
	f := excelize.NewFile()
	header := []any{
		"หมายเลขคำสั่งซื้อ", "จำนวนเงินทั้งหมด", "วันที่ทำการสั่งซื้อ", "ชื่อสินค้า",
		"จำนวน", "ราคาขายสุทธิ", "สถานะการสั่งซื้อ", "เลขอ้างอิง SKU (SKU Reference No.)",
	}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func TestIngestionService_RunMergesBothPlatforms(t *testing.T) {
	dir := t.TempDir()
	writeTikTokCSV(t, filepath.Join(dir, "tiktok_march.csv"),
		`579000001,1250.00,15/03/2024 14:30:00,Vitamin C Serum,2,1100.00,Beauty,Completed,VC-30`,
		`579000002,500.00,16/03/2024 09:00:00,Phone Case Clear,1,450.00,Accessories,Completed,PC-01`,
		`579000003,890.00,16/03/2024 20:15:00,Collagen Powder,1,790.00,Health,Completed,COL-100`,
	)
	writeShopeeXLSX(t, filepath.Join(dir, "shopee_april.xlsx"),
		[]any{"2404SHP001", "890.00", "2024-04-02 09:15", "เซรั่มวิตามินซี", "1", "790.00", "สำเร็จ", "VC-30"},
		[]any{"2404SHP002", "450.00", "2024-04-03 18:40", "คอลลาเจนผง", "2", "400.00", "สำเร็จ", "COL-100"},
	)

	svc, orders := newTestService(t, dir)
	ctx := context.Background()

	report, err := svc.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, ingestion.RunStatusCompleted, report.Status)
	assert.Equal(t, 2, report.FilesScanned)
	assert.Equal(t, 2, report.FilesIngested)
	assert.Equal(t, 5, report.RowsRead)
	assert.Equal(t, 4, report.OrdersAdded)
	assert.Equal(t, 1, report.RowsExcluded) // the phone case
	assert.Zero(t, report.Duplicates)
	assert.Equal(t, "4 added, 0 duplicates, 0 rejected", report.Summary())

	snap, err := orders.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), snap.Rows)

	t.Run("second run is a no-op", func(t *testing.T) {
		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, ingestion.RunStatusNoChange, report.Status)
		assert.Equal(t, 2, report.FilesSkipped)
		assert.Zero(t, report.OrdersAdded)

		snap, err := orders.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), snap.Rows)
	})
}

func TestIngestionService_GzipAndCrossFileDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeTikTokCSV(t, filepath.Join(dir, "a_orders.csv"),
		`579000001,1250.00,15/03/2024 14:30:00,Vitamin C Serum,2,1100.00,Beauty,Completed,VC-30`,
	)
	writeTikTokGzip(t, filepath.Join(dir, "b_orders.csv.gz"),
		`579000001,1250.00,15/03/2024 14:30:00,Vitamin C Serum,2,1100.00,Beauty,Completed,VC-30`,
		`579000009,300.00,17/03/2024 11:00:00,Sunscreen SPF50,1,280.00,Beauty,Completed,SUN-50`,
	)

	svc, orders := newTestService(t, dir)
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.FilesIngested)
	assert.Equal(t, 2, report.OrdersAdded)
	assert.Equal(t, 1, report.Duplicates)

	keys, err := orders.ExistingKeys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestIngestionService_ChangedFileReingested(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")
	writeTikTokCSV(t, path,
		`579000001,1250.00,15/03/2024 14:30:00,Vitamin C Serum,2,1100.00,Beauty,Completed,VC-30`,
	)

	svc, orders := newTestService(t, dir)
	ctx := context.Background()
	_, err := svc.Run(ctx)
	require.NoError(t, err)

	// same file grows a row; only the new order is added
	writeTikTokCSV(t, path,
		`579000001,1250.00,15/03/2024 14:30:00,Vitamin C Serum,2,1100.00,Beauty,Completed,VC-30`,
		`579000002,600.00,18/03/2024 10:00:00,Collagen Powder,1,550.00,Health,Completed,COL-100`,
	)

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesIngested)
	assert.Equal(t, 1, report.OrdersAdded)
	assert.Equal(t, 1, report.Duplicates)

	snap, err := orders.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Rows)
}

func TestIngestionService_MalformedFileRejected(t *testing.T) {
	dir := t.TempDir()
	writeTikTokCSV(t, filepath.Join(dir, "broken.csv"),
		`579000001,1250.00,not-a-date,Vitamin C Serum,2,1100.00,Beauty,Completed,VC-30`,
		`579000002,500.00,also-bad,Collagen Powder,1,450.00,Health,Completed,COL-100`,
		`579000003,890.00,16/03/2024 20:15:00,Sunscreen SPF50,1,790.00,Beauty,Completed,SUN-50`,
	)

	svc, orders := newTestService(t, dir)
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilesFailed)
	require.Len(t, report.FileFailures, 1)
	assert.Contains(t, report.FileFailures[0], "malformed")
	assert.Zero(t, report.OrdersAdded)

	snap, err := orders.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.Rows)
}

func TestIngestionService_MissingHeaderRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.csv"),
		[]byte("Order ID,Product Name\n579000001,Serum\n"), 0o644))

	svc, _ := newTestService(t, dir)
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilesFailed)
	assert.Contains(t, report.FileFailures[0], "Created Time")
}

func TestIngestionService_Rebuild(t *testing.T) {
	dir := t.TempDir()
	writeTikTokCSV(t, filepath.Join(dir, "orders.csv"),
		`579000001,1250.00,15/03/2024 14:30:00,Vitamin C Serum,2,1100.00,Beauty,Completed,VC-30`,
		`579000002,600.00,18/03/2024 10:00:00,Collagen Powder,1,550.00,Health,Completed,COL-100`,
	)

	svc, orders := newTestService(t, dir)
	ctx := context.Background()
	_, err := svc.Run(ctx)
	require.NoError(t, err)

	report, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, ingestion.RunStatusCompleted, report.Status)
	assert.Equal(t, 2, report.OrdersAdded)
	assert.Zero(t, report.FilesSkipped)

	snap, err := orders.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Rows)
}

func TestIngestionService_IntegrityAndRuns(t *testing.T) {
	dir := t.TempDir()
	writeTikTokCSV(t, filepath.Join(dir, "orders.csv"),
		`579000001,1250.00,15/03/2024 14:30:00,Vitamin C Serum,2,1100.00,Beauty,Completed,VC-30`,
	)

	svc, _ := newTestService(t, dir)
	ctx := context.Background()
	_, err := svc.Run(ctx)
	require.NoError(t, err)

	integrity, err := svc.Integrity(ctx)
	require.NoError(t, err)
	assert.True(t, integrity.Healthy)
	assert.Equal(t, int64(1), integrity.Counts.TotalRows)
	assert.Equal(t, int64(1), integrity.Counts.UniqueKeys)

	runs, err := svc.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ingestion.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].OrdersAdded)
}
