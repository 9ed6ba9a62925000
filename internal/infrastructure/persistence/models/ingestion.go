package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dplus/backend/internal/domain/ingestion"
	"github.com/dplus/backend/internal/domain/order"
)

// SourceFileModel tracks one ingested export file.
type SourceFileModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Path       string    `gorm:"type:varchar(500);not null;uniqueIndex"`
	Checksum   string    `gorm:"type:varchar(64);not null"`
	Platform   string    `gorm:"type:varchar(20);not null"`
	SizeBytes  int64     `gorm:"not null;default:0"`
	RowCount   int       `gorm:"not null;default:0"`
	IngestedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SourceFileModel) TableName() string {
	return "source_files"
}

// ToDomain converts the persistence model to a domain SourceFile entity.
func (m *SourceFileModel) ToDomain() *ingestion.SourceFile {
	return &ingestion.SourceFile{
		ID:         m.ID,
		Path:       m.Path,
		Checksum:   m.Checksum,
		Platform:   order.Platform(m.Platform),
		SizeBytes:  m.SizeBytes,
		RowCount:   m.RowCount,
		IngestedAt: m.IngestedAt,
	}
}

// FromDomain populates the persistence model from a domain SourceFile entity.
func (m *SourceFileModel) FromDomain(f *ingestion.SourceFile) {
	m.ID = f.ID
	m.Path = f.Path
	m.Checksum = f.Checksum
	m.Platform = string(f.Platform)
	m.SizeBytes = f.SizeBytes
	m.RowCount = f.RowCount
	m.IngestedAt = f.IngestedAt
}

// IngestionRunModel is the audit record of one ingestion run.
type IngestionRunModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	StartedAt     time.Time `gorm:"not null;index"`
	FinishedAt    time.Time `gorm:"not null"`
	Status        string    `gorm:"type:varchar(20);not null"`
	FilesScanned  int       `gorm:"not null;default:0"`
	FilesIngested int       `gorm:"not null;default:0"`
	FilesSkipped  int       `gorm:"not null;default:0"`
	FilesFailed   int       `gorm:"not null;default:0"`
	RowsRead      int       `gorm:"not null;default:0"`
	OrdersAdded   int       `gorm:"not null;default:0"`
	Duplicates    int       `gorm:"not null;default:0"`
	RowsRejected  int       `gorm:"not null;default:0"`
	RowsExcluded  int       `gorm:"not null;default:0"`
	Message       string    `gorm:"type:text;default:''"`
}

// TableName returns the table name for GORM
func (IngestionRunModel) TableName() string {
	return "ingestion_runs"
}

// ToDomain converts the persistence model to a domain Run entity.
func (m *IngestionRunModel) ToDomain() *ingestion.Run {
	return &ingestion.Run{
		ID:            m.ID,
		StartedAt:     m.StartedAt,
		FinishedAt:    m.FinishedAt,
		Status:        ingestion.RunStatus(m.Status),
		FilesScanned:  m.FilesScanned,
		FilesIngested: m.FilesIngested,
		FilesSkipped:  m.FilesSkipped,
		FilesFailed:   m.FilesFailed,
		RowsRead:      m.RowsRead,
		OrdersAdded:   m.OrdersAdded,
		Duplicates:    m.Duplicates,
		RowsRejected:  m.RowsRejected,
		RowsExcluded:  m.RowsExcluded,
		Message:       m.Message,
	}
}

// FromDomain populates the persistence model from a domain Run entity.
func (m *IngestionRunModel) FromDomain(r *ingestion.Run) {
	m.ID = r.ID
	m.StartedAt = r.StartedAt
	m.FinishedAt = r.FinishedAt
	m.Status = string(r.Status)
	m.FilesScanned = r.FilesScanned
	m.FilesIngested = r.FilesIngested
	m.FilesSkipped = r.FilesSkipped
	m.FilesFailed = r.FilesFailed
	m.RowsRead = r.RowsRead
	m.OrdersAdded = r.OrdersAdded
	m.Duplicates = r.Duplicates
	m.RowsRejected = r.RowsRejected
	m.RowsExcluded = r.RowsExcluded
	m.Message = r.Message
}
