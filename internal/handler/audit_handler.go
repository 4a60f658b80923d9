package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
	"github.com/noah-isme/redtape-api/pkg/response"
)

type auditQueryService interface {
	List(ctx context.Context, q dto.AuditLogQuery) ([]models.AuditLog, *models.Pagination, error)
}

// AuditHandler exposes the read-only audit trail.
type AuditHandler struct {
	service auditQueryService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc auditQueryService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary Query audit logs
// @Description Audit entries newest first
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param report_id query string false "Report ID"
// @Param user_id query string false "User ID"
// @Param action query string false "report_approved, report_deleted or report_exported"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	var q dto.AuditLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	logs, pagination, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
