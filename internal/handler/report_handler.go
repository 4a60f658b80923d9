package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/redtape-api/internal/dto"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
	"github.com/noah-isme/redtape-api/pkg/response"
)

type reportSubmissionService interface {
	Submit(ctx context.Context, req dto.SubmitReportRequest, meta dto.SubmissionMeta) (*dto.SubmitReportResponse, error)
	Verify(ctx context.Context, token string) (*dto.VerifyResult, error)
}

// ReportHandler serves the public submission endpoints.
type ReportHandler struct {
	service reportSubmissionService
}

// NewReportHandler constructs the handler.
func NewReportHandler(svc reportSubmissionService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Submit godoc
// @Summary Submit a report
// @Description Store a permitting obstacle report and email a verification link to the submitter
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.SubmitReportRequest true "Report"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	var req dto.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}

	res, err := h.service.Submit(c.Request.Context(), req, dto.SubmissionMeta{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Status == http.StatusTooManyRequests {
			if retry := appErr.Details["retry_after"]; retry != "" {
				c.Header("Retry-After", retry)
			}
		}
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Verify godoc
// @Summary Verify a report
// @Description Confirm the submitter's email address using the link token
// @Tags Reports
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/verify [get]
func (h *ReportHandler) Verify(c *gin.Context) {
	res, err := h.service.Verify(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
