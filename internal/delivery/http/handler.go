package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

const (
	actorHeader  = "X-Actor"
	defaultActor = "api"
	serviceName  = "analogpro"
	version      = "1.0.0"
)

// AnalogService is the resolver surface the handlers need
type AnalogService interface {
	Resolve(ctx context.Context, productID, manufacturerID int64, actor string) (*domain.Resolution, error)
	Search(ctx context.Context, productID, manufacturerID int64, opts domain.SearchOptions) (*domain.Resolution, error)
	FindProduct(ctx context.Context, article string, manufacturerID int64) (*domain.Product, error)
	CachedAnalogs(ctx context.Context, productID int64) ([]domain.AnalogCacheEntry, error)
}

// HealthCheckRunner runs batch health checks
type HealthCheckRunner interface {
	Run(ctx context.Context, req domain.HealthCheckRequest) (*domain.HealthCheckReport, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	analogs AnalogService
	checks  HealthCheckRunner
	logger  zerolog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(analogs AnalogService, checks HealthCheckRunner, logger zerolog.Logger) *Handler {
	return &Handler{analogs: analogs, checks: checks, logger: logger}
}

// ResolveRequest identifies the source product by id, or by article within
// an optional source manufacturer
type ResolveRequest struct {
	ProductID            int64  `json:"productId"`
	Article              string `json:"article"`
	SourceManufacturerID int64  `json:"sourceManufacturerId"`
	ManufacturerID       int64  `json:"manufacturerId" binding:"required"`
}

// SearchRequest runs the manual search variant
type SearchRequest struct {
	ProductID      int64 `json:"productId" binding:"required"`
	ManufacturerID int64 `json:"manufacturerId" binding:"required"`
	domain.SearchOptions
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": version,
	})
}

// ResolveAnalog finds (or recalls from cache) the analog of a product
func (h *Handler) ResolveAnalog(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	ctx := c.Request.Context()
	productID := req.ProductID
	if productID == 0 {
		if strings.TrimSpace(req.Article) == "" {
			h.fail(c, fmt.Errorf("%w: productId or article is required", domain.ErrInvalidRequest))
			return
		}
		product, err := h.analogs.FindProduct(ctx, req.Article, req.SourceManufacturerID)
		if err != nil {
			h.fail(c, err)
			return
		}
		productID = product.ID
	}

	res, err := h.analogs.Resolve(ctx, productID, req.ManufacturerID, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SearchAnalog runs a manual search; nothing is cached
func (h *Handler) SearchAnalog(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	res, err := h.analogs.Search(c.Request.Context(), req.ProductID, req.ManufacturerID, req.SearchOptions)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// FindProduct looks a product up by ?article= and optional ?manufacturerId=
func (h *Handler) FindProduct(c *gin.Context) {
	var manufacturerID int64
	if raw := c.Query("manufacturerId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.fail(c, fmt.Errorf("%w: manufacturerId %q", domain.ErrInvalidRequest, raw))
			return
		}
		manufacturerID = id
	}

	product, err := h.analogs.FindProduct(c.Request.Context(), c.Query("article"), manufacturerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ListCachedAnalogs returns the cached analogs of /products/:id
func (h *Handler) ListCachedAnalogs(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.fail(c, fmt.Errorf("%w: product id %q", domain.ErrInvalidRequest, c.Param("id")))
		return
	}

	entries, err := h.analogs.CachedAnalogs(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"productId": id, "analogs": entries})
}

// RunHealthCheck resolves every product of a manufacturer against all
// other trusted manufacturers and returns the report
func (h *Handler) RunHealthCheck(c *gin.Context) {
	var req domain.HealthCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	req.Actor = actor(c)

	report, err := h.checks.Run(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	event := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).
		Str("request_id", RequestID(c)).
		Str("path", c.FullPath()).
		Int("status", status).
		Msg("request failed")

	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), RequestID: RequestID(c)})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrManufacturerNotFound),
		errors.Is(err, domain.ErrAnalogNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAmbiguousMatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCategoryNotFound),
		errors.Is(err, domain.ErrAttributeNotFound),
		errors.Is(err, domain.ErrDataIntegrity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func actor(c *gin.Context) string {
	if a := strings.TrimSpace(c.GetHeader(actorHeader)); a != "" {
		return a
	}
	return defaultActor
}
