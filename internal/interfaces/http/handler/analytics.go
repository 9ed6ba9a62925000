package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dplus/backend/internal/application/analytics"
	"github.com/dplus/backend/internal/domain/order"
	"github.com/dplus/backend/internal/interfaces/http/dto"
)

// AnalyticsHandler handles analytics related HTTP requests
type AnalyticsHandler struct {
	BaseHandler
	queries *analytics.QueryService
	loc     *time.Location
}

// NewAnalyticsHandler creates a new AnalyticsHandler. loc is the
// canonical business timezone; stored dates are midnights in that
// location, so query dates must be parsed in it too or the inclusive
// range comparison misses the boundary days.
func NewAnalyticsHandler(queries *analytics.QueryService, loc *time.Location) *AnalyticsHandler {
	return &AnalyticsHandler{queries: queries, loc: loc}
}

// RegisterRoutes registers analytics routes
func (h *AnalyticsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/analytics")
	{
		group.GET("/revenue", h.GetRevenue)
		group.GET("/aov", h.GetAOV)
		group.GET("/products", h.GetProducts)
		group.GET("/summary", h.GetSummary)
		group.GET("/portfolio", h.GetPortfolio)
		group.GET("/compare", h.GetComparison)
	}
}

// parseFilter builds an order filter from from/to/platform/quick query
// parameters. A quick range name wins over explicit from/to.
func (h *AnalyticsHandler) parseFilter(c *gin.Context) (order.Filter, bool) {
	var filter order.Filter
	var details []dto.ValidationDetail

	if quick := c.Query("quick"); quick != "" {
		r, err := analytics.QuickRange(quick, time.Now().In(h.loc))
		if err != nil {
			details = append(details, dto.ValidationDetail{Field: "quick", Message: err.Error()})
		} else {
			filter.From = r.From
			filter.To = r.To
		}
	} else {
		if from := c.Query("from"); from != "" {
			t, err := time.ParseInLocation(time.DateOnly, from, h.loc)
			if err != nil {
				details = append(details, dto.ValidationDetail{Field: "from", Message: "must be a date in YYYY-MM-DD format"})
			} else {
				filter.From = t
			}
		}
		if to := c.Query("to"); to != "" {
			t, err := time.ParseInLocation(time.DateOnly, to, h.loc)
			if err != nil {
				details = append(details, dto.ValidationDetail{Field: "to", Message: "must be a date in YYYY-MM-DD format"})
			} else {
				filter.To = t
			}
		}
	}

	if p := c.Query("platform"); p != "" {
		platform, ok := order.ParsePlatform(p)
		if !ok {
			details = append(details, dto.ValidationDetail{Field: "platform", Message: "unknown platform"})
		} else {
			filter.Platform = &platform
		}
	}

	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		details = append(details, dto.ValidationDetail{Field: "to", Message: "must not precede from"})
	}

	if len(details) > 0 {
		h.ValidationError(c, details)
		return order.Filter{}, false
	}
	return filter, true
}

// GetRevenue godoc
//
//	@Summary		Revenue series
//	@Description	Returns the revenue time series bucketed by period, each bucket graded against the population
//	@Tags			analytics
//	@Produce		json
//	@Param			from		query	string	false	"Start date (YYYY-MM-DD)"
//	@Param			to			query	string	false	"End date (YYYY-MM-DD)"
//	@Param			quick		query	string	false	"Named range (today, last_7_days, this_month, ...)"
//	@Param			platform	query	string	false	"Platform filter (tiktok, shopee)"
//	@Param			period		query	string	false	"Bucket size (day, week, month, quarter)"
//	@Success		200	{object}	APIResponse[analytics.RevenueReport]
//	@Failure		400	{object}	ErrorResponse
//	@Router			/analytics/revenue [get]
func (h *AnalyticsHandler) GetRevenue(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	period, err := analytics.ParsePeriod(c.Query("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	report, err := h.queries.Revenue(c.Request.Context(), filter, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetAOV godoc
//
//	@Summary		Average order value series
//	@Description	Returns the AOV time series bucketed by period with each bucket graded against the mean
//	@Tags			analytics
//	@Produce		json
//	@Param			from		query	string	false	"Start date (YYYY-MM-DD)"
//	@Param			to			query	string	false	"End date (YYYY-MM-DD)"
//	@Param			platform	query	string	false	"Platform filter (tiktok, shopee)"
//	@Param			period		query	string	false	"Bucket size (day, week, month, quarter)"
//	@Success		200	{object}	APIResponse[analytics.AOVReport]
//	@Failure		400	{object}	ErrorResponse
//	@Router			/analytics/aov [get]
func (h *AnalyticsHandler) GetAOV(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	period, err := analytics.ParsePeriod(c.Query("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	report, err := h.queries.AOV(c.Request.Context(), filter, period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetProducts godoc
//
//	@Summary		Product matrix
//	@Description	Returns per-product aggregates labeled Hero, Core or Volume, highest revenue first
//	@Tags			analytics
//	@Produce		json
//	@Param			from		query	string	false	"Start date (YYYY-MM-DD)"
//	@Param			to			query	string	false	"End date (YYYY-MM-DD)"
//	@Param			platform	query	string	false	"Platform filter (tiktok, shopee)"
//	@Success		200	{object}	APIResponse[analytics.ProductReport]
//	@Failure		400	{object}	ErrorResponse
//	@Router			/analytics/products [get]
func (h *AnalyticsHandler) GetProducts(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	report, err := h.queries.Products(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetSummary godoc
//
//	@Summary		Headline metrics
//	@Description	Returns total revenue, order count, quantity, AOV and distinct product count over the range
//	@Tags			analytics
//	@Produce		json
//	@Param			from		query	string	false	"Start date (YYYY-MM-DD)"
//	@Param			to			query	string	false	"End date (YYYY-MM-DD)"
//	@Param			platform	query	string	false	"Platform filter (tiktok, shopee)"
//	@Success		200	{object}	APIResponse[order.Summary]
//	@Failure		400	{object}	ErrorResponse
//	@Router			/analytics/summary [get]
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	summary, err := h.queries.Summary(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// GetPortfolio godoc
//
//	@Summary		Portfolio mix
//	@Description	Returns the revenue mix across Hero, Core and Volume products with a concentration risk grade
//	@Tags			analytics
//	@Produce		json
//	@Param			from		query	string	false	"Start date (YYYY-MM-DD)"
//	@Param			to			query	string	false	"End date (YYYY-MM-DD)"
//	@Param			platform	query	string	false	"Platform filter (tiktok, shopee)"
//	@Success		200	{object}	APIResponse[analytics.PortfolioReport]
//	@Failure		400	{object}	ErrorResponse
//	@Router			/analytics/portfolio [get]
func (h *AnalyticsHandler) GetPortfolio(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	report, err := h.queries.Portfolio(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetComparison godoc
//
//	@Summary		Period comparison
//	@Description	Compares the requested window against its derived baseline (day, week, month or quarter back)
//	@Tags			analytics
//	@Produce		json
//	@Param			from		query	string	true	"Start date (YYYY-MM-DD)"
//	@Param			to			query	string	true	"End date (YYYY-MM-DD)"
//	@Param			platform	query	string	false	"Platform filter (tiktok, shopee)"
//	@Param			mode		query	string	true	"Comparison mode (DOD, WOW, MOM, QOQ_CONSECUTIVE, QOQ_SEQUENTIAL, QOQ_YOY)"
//	@Param			n			query	int		false	"Quarters back for QOQ_SEQUENTIAL (default 1)"
//	@Success		200	{object}	APIResponse[analytics.ComparisonReport]
//	@Failure		400	{object}	ErrorResponse
//	@Router			/analytics/compare [get]
func (h *AnalyticsHandler) GetComparison(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	mode, err := analytics.ParseMode(c.Query("mode"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	n := 0
	if raw := c.Query("n"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil {
			h.ValidationError(c, []dto.ValidationDetail{{Field: "n", Message: "must be an integer"}})
			return
		}
	}

	report, err := h.queries.Compare(c.Request.Context(), filter, mode, n)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
