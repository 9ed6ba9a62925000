package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dplus/backend/internal/domain/ingestion"
	"github.com/dplus/backend/internal/domain/order"
	"github.com/dplus/backend/internal/infrastructure/persistence/models"
)

// GormSourceFileRepository implements ingestion.SourceFileRepository using GORM
type GormSourceFileRepository struct {
	db *gorm.DB
}

// NewGormSourceFileRepository creates a new GormSourceFileRepository
func NewGormSourceFileRepository(db *gorm.DB) *GormSourceFileRepository {
	return &GormSourceFileRepository{db: db}
}

// FindByPath finds a source file record by its path
func (r *GormSourceFileRepository) FindByPath(ctx context.Context, path string) (*ingestion.SourceFile, error) {
	var model models.SourceFileModel
	if err := r.db.WithContext(ctx).First(&model, "path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every tracked source file
func (r *GormSourceFileRepository) FindAll(ctx context.Context) ([]ingestion.SourceFile, error) {
	var fileModels []models.SourceFileModel
	if err := r.db.WithContext(ctx).Order("ingested_at ASC").Find(&fileModels).Error; err != nil {
		return nil, err
	}
	files := make([]ingestion.SourceFile, len(fileModels))
	for i, model := range fileModels {
		files[i] = *model.ToDomain()
	}
	return files, nil
}

// Save creates or updates a source file record, keyed by path so a
// re-ingested file replaces its previous entry.
func (r *GormSourceFileRepository) Save(ctx context.Context, file *ingestion.SourceFile) error {
	model := &models.SourceFileModel{}
	model.FromDomain(file)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// DeleteAll wipes the source file registry; only a rebuild calls this.
func (r *GormSourceFileRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("DELETE FROM source_files").Error
}

// GormRunRepository implements ingestion.RunRepository using GORM
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// Save persists an ingestion run record
func (r *GormRunRepository) Save(ctx context.Context, run *ingestion.Run) error {
	model := &models.IngestionRunModel{}
	model.FromDomain(run)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindRecent returns the most recent runs, newest first
func (r *GormRunRepository) FindRecent(ctx context.Context, limit int) ([]ingestion.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runModels []models.IngestionRunModel
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runModels).Error; err != nil {
		return nil, err
	}
	runs := make([]ingestion.Run, len(runModels))
	for i, model := range runModels {
		runs[i] = *model.ToDomain()
	}
	return runs, nil
}

// Ensure implementations satisfy the domain contracts
var (
	_ ingestion.SourceFileRepository = (*GormSourceFileRepository)(nil)
	_ ingestion.RunRepository        = (*GormRunRepository)(nil)
)
