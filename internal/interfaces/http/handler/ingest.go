package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	ingestapp "github.com/dplus/backend/internal/application/ingest"
	"github.com/dplus/backend/internal/interfaces/http/dto"
)

// IngestHandler handles ingestion related HTTP requests
type IngestHandler struct {
	BaseHandler
	service *ingestapp.IngestionService
}

// NewIngestHandler creates a new IngestHandler
func NewIngestHandler(service *ingestapp.IngestionService) *IngestHandler {
	return &IngestHandler{service: service}
}

// RegisterRoutes registers ingestion routes
func (h *IngestHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/ingest")
	{
		group.POST("/run", h.RunIngestion)
		group.POST("/rebuild", h.RebuildStore)
		group.GET("/integrity", h.GetIntegrity)
		group.GET("/runs", h.ListRuns)
	}
}

// RunIngestion godoc
//
//	@Summary		Run an incremental ingestion
//	@Description	Scans the data directories, merges new export files into the store and returns the run report
//	@Tags			ingest
//	@Produce		json
//	@Success		200	{object}	APIResponse[ingestapp.Report]
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/ingest/run [post]
func (h *IngestHandler) RunIngestion(c *gin.Context) {
	report, err := h.service.Run(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// RebuildStore godoc
//
//	@Summary		Rebuild the store from scratch
//	@Description	Wipes all stored orders and re-ingests every discovered export file in one transaction
//	@Tags			ingest
//	@Produce		json
//	@Success		200	{object}	APIResponse[ingestapp.Report]
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/ingest/rebuild [post]
func (h *IngestHandler) RebuildStore(c *gin.Context) {
	report, err := h.service.Rebuild(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetIntegrity godoc
//
//	@Summary		Check store integrity
//	@Description	Counts duplicate keys, blank identifiers, missing or out-of-range dates and negative amounts
//	@Tags			ingest
//	@Produce		json
//	@Success		200	{object}	APIResponse[ingestapp.IntegrityReport]
//	@Failure		500	{object}	ErrorResponse
//	@Router			/ingest/integrity [get]
func (h *IngestHandler) GetIntegrity(c *gin.Context) {
	report, err := h.service.Integrity(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// ListRuns godoc
//
//	@Summary		List recent ingestion runs
//	@Description	Returns the most recent ingestion runs, newest first
//	@Tags			ingest
//	@Produce		json
//	@Param			limit	query	int	false	"Maximum runs to return (default 20)"
//	@Success		200	{object}	APIResponse[[]ingestion.Run]
//	@Failure		400	{object}	ErrorResponse
//	@Router			/ingest/runs [get]
func (h *IngestHandler) ListRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.ValidationError(c, []dto.ValidationDetail{{Field: "limit", Message: "must be a positive integer"}})
			return
		}
		limit = parsed
	}

	runs, err := h.service.Runs(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, runs)
}
