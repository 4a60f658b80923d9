package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/handler"
	"github.com/noah-isme/redtape-api/internal/models"
	"github.com/noah-isme/redtape-api/internal/service"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
	"github.com/noah-isme/redtape-api/pkg/config"
)

type tokenStub struct{}

func (tokenStub) ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error) {
	switch token {
	case "admin":
		return &models.JWTClaims{UserID: "u1", SessionID: "s1", Admin: true}, nil
	case "member":
		return &models.JWTClaims{UserID: "u2", SessionID: "s2"}, nil
	default:
		return nil, appErrors.ErrUnauthorized
	}
}

type limiterStub struct{ allowed bool }

func (l limiterStub) AllowIP(ctx context.Context, ip string) service.RateLimitDecision {
	return service.RateLimitDecision{Allowed: l.allowed, RetryAfter: time.Minute}
}

type moderationStub struct{}

func (moderationStub) List(ctx context.Context, q dto.ReportListQuery) (*dto.ReportListResponse, *models.Pagination, error) {
	return &dto.ReportListResponse{Filter: models.StatusFilterAll}, &models.Pagination{Page: 1, PageSize: 25}, nil
}

func (moderationStub) Show(ctx context.Context, id string) (*dto.AdminReport, error) {
	return nil, appErrors.ErrNotFound
}

func (moderationStub) Approve(ctx context.Context, id string, actor models.Actor) (*models.Report, error) {
	return nil, appErrors.ErrNotFound
}

func (moderationStub) SoftDelete(ctx context.Context, id string, actor models.Actor) error {
	return appErrors.ErrNotFound
}

func newTestEngine(allowed bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"}
	return New(Dependencies{
		Config:    cfg,
		Tokens:    tokenStub{},
		IPLimiter: limiterStub{allowed: allowed},
	}, Handlers{
		Reports:      handler.NewReportHandler(nil),
		Transparency: handler.NewTransparencyHandler(nil),
		Auth:         handler.NewAuthHandler(nil),
		AdminReports: handler.NewAdminReportHandler(moderationStub{}, nil),
		Audit:        handler.NewAuditHandler(nil),
		Ops:          handler.NewMetricsHandler(nil, nil),
	})
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOpsAndPublicRoutes(t *testing.T) {
	r := newTestEngine(true)

	w := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Download-Token")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(r, http.MethodGet, "/api/v1/options", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmissionIsThrottledBeforeHandler(t *testing.T) {
	r := newTestEngine(false)

	w := serve(r, http.MethodPost, "/api/v1/reports", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	r := newTestEngine(true)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/admin/reports", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/admin/reports", "forged").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/v1/admin/reports", "member").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/admin/reports", "admin").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPost, "/api/v1/admin/reports/r1/approve", "admin").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/api/v1/auth/logout", "").Code)
}
