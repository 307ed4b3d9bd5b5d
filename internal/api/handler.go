package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"quote-service/internal/models"
	"quote-service/internal/service"
	"quote-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Handler contains HTTP handlers
type Handler struct {
	quotes  *service.QuoteService
	limiter *rate.Limiter
}

// NewHandler creates a new HTTP handler
func NewHandler(quotes *service.QuoteService, rps float64, burst int) *Handler {
	return &Handler{
		quotes:  quotes,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.rateLimitMiddleware())
	{
		v1.POST("/quotes", h.createQuote)
		v1.POST("/quotes/menu", h.createMenuQuote)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createQuote prices a basket of pre-resolved items across stores
func (h *Handler) createQuote(c *gin.Context) {
	var req models.QuoteRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.quotes.Quote(c.Request.Context(), &req)
	h.writeQuoteResponse(c, resp, err)
}

// createMenuQuote prices a menu of (recipe, servings) selections
func (h *Handler) createMenuQuote(c *gin.Context) {
	var req models.MenuQuoteRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.quotes.QuoteMenu(c.Request.Context(), &req)
	h.writeQuoteResponse(c, resp, err)
}

func (h *Handler) writeQuoteResponse(c *gin.Context, resp *models.QuoteResponse, err error) {
	if err != nil {
		if errors.Is(err, service.ErrInvalidBasket) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid basket",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to compute quote",
			"details": err.Error(),
		})
		return
	}

	if service.AllStoresFailed(resp) {
		c.JSON(http.StatusBadGateway, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// rateLimitMiddleware rejects requests beyond the configured rate
func (h *Handler) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
