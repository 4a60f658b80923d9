package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/models"
	"github.com/noah-isme/redtape-api/internal/service"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
	"github.com/noah-isme/redtape-api/pkg/response"
)

const exportPathPrefix = "export."

type moderationService interface {
	List(ctx context.Context, q dto.ReportListQuery) (*dto.ReportListResponse, *models.Pagination, error)
	Show(ctx context.Context, id string) (*dto.AdminReport, error)
	Approve(ctx context.Context, id string, actor models.Actor) (*models.Report, error)
	SoftDelete(ctx context.Context, id string, actor models.Actor) error
}

type exportService interface {
	Export(ctx context.Context, req dto.ExportRequest, actor models.Actor) (*dto.ExportResult, error)
	ResolveDownload(ctx context.Context, token string) (*dto.ExportDownload, error)
}

// AdminReportHandler serves the admin review and export endpoints.
type AdminReportHandler struct {
	moderation moderationService
	exports    exportService
}

// NewAdminReportHandler constructs the handler.
func NewAdminReportHandler(moderation moderationService, exports exportService) *AdminReportHandler {
	return &AdminReportHandler{moderation: moderation, exports: exports}
}

// List godoc
// @Summary List reports
// @Description Filtered, paginated reports with dashboard counts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param filter query string false "all, pending_review, approved or unverified"
// @Param email query string false "Submitter email"
// @Param department query string false "Department"
// @Param category query string false "Issue category"
// @Param start_date query string false "Verified on or after (YYYY-MM-DD)"
// @Param end_date query string false "Verified on or before (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/reports [get]
func (h *AdminReportHandler) List(c *gin.Context) {
	var q dto.ReportListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	res, pagination, err := h.moderation.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, pagination)
}

// Show godoc
// @Summary Report detail
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/reports/{id} [get]
func (h *AdminReportHandler) Show(c *gin.Context) {
	// export.csv and export.pdf share the :id segment.
	if strings.HasPrefix(c.Param("id"), exportPathPrefix) {
		h.Export(c)
		return
	}
	res, err := h.moderation.Show(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Approve godoc
// @Summary Approve a verified report
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /admin/reports/{id}/approve [post]
func (h *AdminReportHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.moderation.Approve(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAdminReport(*report), nil)
}

// Delete godoc
// @Summary Soft delete a report
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/reports/{id} [delete]
func (h *AdminReportHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.moderation.SoftDelete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export approved reports
// @Description CSV or PDF of approved reports verified within the date range (default the last two months)
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format path string true "csv or pdf"
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD"
// @Success 200 {file} file
// @Failure 422 {object} response.Envelope
// @Router /admin/reports/export.{format} [get]
func (h *AdminReportHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var q dto.ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	start, end, err := service.ParseDateRange(q.StartDate, q.EndDate)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := dto.ExportFormat(strings.ToLower(strings.TrimPrefix(c.Param("id"), exportPathPrefix)))
	result, err := h.exports.Export(c.Request.Context(), dto.ExportRequest{Format: format, StartDate: start, EndDate: end}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("X-Record-Count", strconv.Itoa(result.RecordCount))
	if result.DownloadToken != "" {
		c.Header("X-Download-Token", result.DownloadToken)
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}

// Download godoc
// @Summary Download an archived export
// @Tags Admin
// @Security BearerAuth
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/exports/{token} [get]
func (h *AdminReportHandler) Download(c *gin.Context) {
	file, err := h.exports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
