package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
	"github.com/noah-isme/redtape-api/pkg/logger"
)

const verificationTokenBytes = 32

const (
	msgSubmitted       = "Thanks! Check your email to verify your report."
	msgVerified        = "Thank you! Your report has been verified and will be reviewed by our team."
	msgAlreadyVerified = "This report has already been verified. Thank you!"
	msgInvalidLink     = "Invalid verification link."
)

type reportStore interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	FindByToken(ctx context.Context, token string) (*models.Report, error)
	MarkVerified(ctx context.Context, token string, verifiedAt time.Time) (*models.Report, error)
}

type submissionLimiter interface {
	AllowEmail(ctx context.Context, email string) RateLimitDecision
}

// ReportService handles public submission and email verification of reports.
type ReportService struct {
	reports   reportStore
	mailer    Mailer
	limiter   submissionLimiter
	cache     cacheInvalidator
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs the service.
func NewReportService(reports reportStore, mailer Mailer, limiter submissionLimiter, cache cacheInvalidator, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		reports:   reports,
		mailer:    mailer,
		limiter:   limiter,
		cache:     cache,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates and stores a new unverified report, then mails the verification link.
func (s *ReportService) Submit(ctx context.Context, req dto.SubmitReportRequest, meta dto.SubmissionMeta) (*dto.SubmitReportResponse, error) {
	if strings.TrimSpace(req.Website) != "" {
		s.metrics.RecordSubmission("spam")
		s.logger.Info("honeypot triggered, rejecting report", zap.String("ip", meta.IP))
		return nil, appErrors.Clone(appErrors.ErrTooManyRequests, "submission rejected")
	}

	req = normalizeSubmission(req)
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordSubmission("invalid")
		return nil, validationError(err, "report is invalid")
	}

	if s.limiter != nil {
		if decision := s.limiter.AllowEmail(ctx, req.Email); !decision.Allowed {
			s.metrics.RecordSubmission("throttled")
			e := appErrors.Clone(appErrors.ErrTooManyRequests, "too many reports from this email address, try again tomorrow")
			e.Details = map[string]string{"retry_after": decision.RetryAfterSeconds()}
			return nil, e
		}
	}

	token, err := newVerificationToken()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create report")
	}

	report := &models.Report{
		Email:              req.Email,
		Name:               req.Name,
		ProjectType:        req.ProjectType,
		ProjectDescription: req.ProjectDescription,
		Location:           req.Location,
		IssueDescription:   req.IssueDescription,
		TimelineImpact:     req.TimelineImpact,
		FinancialImpact:    req.FinancialImpact,
		SolutionIdeas:      req.SolutionIdeas,
		IssueCategories:    pq.StringArray(uniqueStrings(req.IssueCategories)),
		Departments:        pq.StringArray(uniqueStrings(req.Departments)),
		Anonymous:          req.Name == "",
		Status:             models.ReportStatusNew,
		VerificationToken:  token,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		s.metrics.RecordSubmission("error")
		s.logger.Error("create report", logger.Email("email", report.Email), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create report")
	}
	s.metrics.RecordSubmission("accepted")

	if err := s.mailer.SendVerificationRequest(ctx, *report); err != nil {
		s.logger.Warn("verification mail not queued", zap.String("report_id", report.ID), zap.Error(err))
	}

	return &dto.SubmitReportResponse{ID: report.ID, Status: report.Status, Message: msgSubmitted}, nil
}

// Verify consumes a verification token. Only one caller can ever observe the
// verified outcome for a token; later calls see already_verified.
func (s *ReportService) Verify(ctx context.Context, token string) (*dto.VerifyResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, msgInvalidLink)
	}

	report, err := s.reports.MarkVerified(ctx, token, s.now().UTC())
	if err == nil {
		s.metrics.RecordTransition("verified")
		if s.cache != nil {
			s.cache.Invalidate(ctx, TransparencyCacheKey)
		}
		// Deleted reports are hidden from the queue; no admin notification.
		if !report.IsDeleted() {
			if err := s.mailer.SendAdminNotification(ctx, *report); err != nil {
				s.logger.Warn("admin notification not queued", zap.String("report_id", report.ID), zap.Error(err))
			}
		}
		return &dto.VerifyResult{Outcome: dto.VerifyOutcomeVerified, Message: msgVerified, ReportID: report.ID}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("verify report", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to verify report")
	}

	existing, err := s.reports.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgInvalidLink)
		}
		s.logger.Error("find report by token", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to verify report")
	}
	if !existing.IsVerified() {
		return nil, appErrors.Internal(fmt.Errorf("report %s unverified after conditional update", existing.ID), "failed to verify report")
	}
	return &dto.VerifyResult{Outcome: dto.VerifyOutcomeAlreadyVerified, Message: msgAlreadyVerified, ReportID: existing.ID}, nil
}

// Get returns a report by id, including soft-deleted ones.
func (s *ReportService) Get(ctx context.Context, id string) (*models.Report, error) {
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Internal(err, "failed to load report")
	}
	return report, nil
}

// normalizeSubmission trims input. Free text is otherwise stored as typed.
func normalizeSubmission(req dto.SubmitReportRequest) dto.SubmitReportRequest {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.ProjectDescription = strings.TrimSpace(req.ProjectDescription)
	req.Location = strings.TrimSpace(req.Location)
	req.IssueDescription = strings.TrimSpace(req.IssueDescription)
	req.FinancialImpact = strings.TrimSpace(req.FinancialImpact)
	req.SolutionIdeas = strings.TrimSpace(req.SolutionIdeas)
	req.ProjectType = strings.TrimSpace(req.ProjectType)
	req.TimelineImpact = strings.TrimSpace(req.TimelineImpact)
	return req
}

func newVerificationToken() (string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func uniqueStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
