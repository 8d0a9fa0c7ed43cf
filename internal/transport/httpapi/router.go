package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/health"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/reporting"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/sales"
)

// Handler связывает HTTP-поверхность с сервисами пайплайна.
type Handler struct {
	sales     *sales.Orchestrator
	reporting *reporting.Service
	logger    *log.Entry
}

// NewHandler создаёт HTTP-обработчик.
func NewHandler(orchestrator *sales.Orchestrator, reports *reporting.Service, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Handler{
		sales:     orchestrator,
		reporting: reports,
		logger:    logger,
	}
}

// NewRouter собирает gin-маршрутизатор сервиса.
func NewRouter(h *Handler, healthHandler *health.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))

	router.GET("/healthz", gin.WrapF(health.LivenessHandler))
	if healthHandler != nil {
		router.GET("/health", gin.WrapH(healthHandler))
		router.GET("/readyz", gin.WrapF(healthHandler.ReadinessHandler))
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/sales", h.createSale)
		api.POST("/sales/:id/status", h.updateSaleStatus)
		api.GET("/sales/:id", h.getSale)

		api.GET("/products/:id/forecast", h.getForecast)

		reports := api.Group("/reports")
		{
			reports.GET("/restock", h.getRestockReport)
			reports.GET("/abc", h.getABCReport)
			reports.GET("/profitability", h.getProfitabilityReport)
			reports.GET("/seasonality", h.getSeasonalityReport)
			reports.GET("/rotation", h.getRotationReport)
			reports.GET("/audit", h.getAuditTrail)
		}
	}

	return router
}

// requestLogger пишет access-лог уровнем debug, ошибки сервера — warn.
func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request handled")
	}
}
