package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/middleware"
	"github.com/noah-isme/redtape-api/internal/service"
	"github.com/noah-isme/redtape-api/pkg/response"
)

type transparencyService interface {
	Summary(ctx context.Context) (*dto.TransparencyResponse, bool, error)
}

// TransparencyHandler serves the public statistics and form options.
type TransparencyHandler struct {
	service transparencyService
}

// NewTransparencyHandler constructs the handler.
func NewTransparencyHandler(svc transparencyService) *TransparencyHandler {
	return &TransparencyHandler{service: svc}
}

// Summary godoc
// @Summary Transparency statistics
// @Description Aggregated statistics over approved reports
// @Tags Transparency
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /transparency [get]
func (h *TransparencyHandler) Summary(c *gin.Context) {
	res, hit, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, res, nil, middleware.ExtractMeta(c))
}

// Options godoc
// @Summary Submission form options
// @Description Fixed project types, issue categories, departments and timeline impacts
// @Tags Transparency
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /options [get]
func (h *TransparencyHandler) Options(c *gin.Context) {
	response.JSON(c, http.StatusOK, service.Options(), nil)
}
