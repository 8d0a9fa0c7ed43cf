package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// defaultReportRange — период отчёта по умолчанию, если границы
// не переданы в query.
const defaultReportRange = 30 * 24 * time.Hour

func (h *Handler) getForecast(c *gin.Context) {
	forecast, err := h.reporting.PredictDemand(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, forecast)
}

func (h *Handler) getRestockReport(c *gin.Context) {
	recommendations, err := h.reporting.RestockRecommendations(c.Request.Context())
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": recommendations})
}

func (h *Handler) getABCReport(c *gin.Context) {
	from, to, ok := h.reportRange(c)
	if !ok {
		return
	}

	report, err := h.reporting.GenerateABCAnalysis(c.Request.Context(), from, to)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) getProfitabilityReport(c *gin.Context) {
	from, to, ok := h.reportRange(c)
	if !ok {
		return
	}

	report, err := h.reporting.GenerateProfitabilityReport(c.Request.Context(), from, to)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) getSeasonalityReport(c *gin.Context) {
	from, to, ok := h.reportRange(c)
	if !ok {
		return
	}

	report, err := h.reporting.GenerateSeasonalityReport(c.Request.Context(), from, to)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) getRotationReport(c *gin.Context) {
	report, err := h.reporting.GenerateStockRotationReport(c.Request.Context())
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) getAuditTrail(c *gin.Context) {
	from, to, ok := h.reportRange(c)
	if !ok {
		return
	}

	records, err := h.reporting.GenerateAuditTrail(c.Request.Context(), from, to)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

// reportRange читает границы периода из query-параметров from/to
// (RFC 3339); по умолчанию — последние 30 дней.
func (h *Handler) reportRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	from := now.Add(-defaultReportRange)
	to := now

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid 'from' parameter, expected RFC 3339 timestamp")
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid 'to' parameter, expected RFC 3339 timestamp")
			return time.Time{}, time.Time{}, false
		}
		to = parsed
	}
	if to.Before(from) {
		writeError(c, http.StatusBadRequest, "'to' must not be before 'from'")
		return time.Time{}, time.Time{}, false
	}

	return from, to, true
}
