package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type moderationStore interface {
	FindByID(ctx context.Context, id string) (*models.Report, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Report, error)
	ApproveTx(ctx context.Context, tx *sqlx.Tx, id string, approvedAt time.Time) (*models.Report, error)
	SoftDeleteTx(ctx context.Context, tx *sqlx.Tx, id string, deletedAt time.Time) error
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
	Counts(ctx context.Context) (*models.ReportCounts, error)
}

type auditRecorder interface {
	RecordTx(ctx context.Context, tx *sqlx.Tx, entry AuditEntry) (*models.AuditLog, error)
	RecordBatchTx(ctx context.Context, tx *sqlx.Tx, entries []AuditEntry) ([]models.AuditLog, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

// ModerationService implements the admin review workflow. Every mutation and
// its audit row commit or roll back together.
type ModerationService struct {
	tx       txProvider
	reports  moderationStore
	audit    auditRecorder
	cache    cacheInvalidator
	metrics  *MetricsService
	logger   *zap.Logger
	pageSize int
	now      func() time.Time
}

// NewModerationService constructs the service.
func NewModerationService(tx txProvider, reports moderationStore, audit auditRecorder, cache cacheInvalidator, metrics *MetricsService, logger *zap.Logger, pageSize int) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	return &ModerationService{
		tx:       tx,
		reports:  reports,
		audit:    audit,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// List returns one page of reports for the requested view plus the dashboard counts.
func (s *ModerationService) List(ctx context.Context, q dto.ReportListQuery) (*dto.ReportListResponse, *models.Pagination, error) {
	filter, err := BuildReportFilter(q, s.pageSize)
	if err != nil {
		return nil, nil, err
	}

	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		s.logger.Error("list reports", zap.Error(err))
		return nil, nil, appErrors.Internal(err, "failed to list reports")
	}
	counts, err := s.reports.Counts(ctx)
	if err != nil {
		s.logger.Error("count reports", zap.Error(err))
		return nil, nil, appErrors.Internal(err, "failed to count reports")
	}

	items := make([]dto.AdminReport, 0, len(reports))
	for _, r := range reports {
		items = append(items, dto.NewAdminReport(r))
	}
	return &dto.ReportListResponse{Filter: filter.Status, Reports: items, Counts: *counts},
		&models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Show returns a report for the admin detail view, including soft-deleted ones.
func (s *ModerationService) Show(ctx context.Context, id string) (*dto.AdminReport, error) {
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Internal(err, "failed to load report")
	}
	view := dto.NewAdminReport(*report)
	return &view, nil
}

// Approve marks a verified report approved and records report_approved.
func (s *ModerationService) Approve(ctx context.Context, id string, actor models.Actor) (*models.Report, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := s.lockLive(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsVerified() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "report must be verified before it can be approved")
	}

	approved, err := s.reports.ApproveTx(ctx, tx, id, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		s.logger.Error("approve report", zap.String("report_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to approve report")
	}

	if _, err := s.audit.RecordTx(ctx, tx, AuditEntry{
		ReportID: id,
		Actor:    actor,
		Action:   models.AuditActionReportApproved,
		Metadata: models.AuditMetadata{"previous_status": string(current.Status)},
	}); err != nil {
		s.logger.Error("record approval audit", zap.String("report_id", id), zap.Error(err))
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("commit approval", zap.String("report_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to approve report")
	}

	s.metrics.RecordTransition("approved")
	s.invalidateTransparency(ctx)
	s.logger.Info("report approved", zap.String("report_id", id), zap.String("user_id", actor.UserID))
	return approved, nil
}

// SoftDelete hides a report from every view and records report_deleted. The row is kept.
func (s *ModerationService) SoftDelete(ctx context.Context, id string, actor models.Actor) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := s.lockLive(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := s.reports.SoftDeleteTx(ctx, tx, id, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		s.logger.Error("soft delete report", zap.String("report_id", id), zap.Error(err))
		return appErrors.Internal(err, "failed to delete report")
	}

	if _, err := s.audit.RecordTx(ctx, tx, AuditEntry{
		ReportID: id,
		Actor:    actor,
		Action:   models.AuditActionReportDeleted,
		Metadata: models.AuditMetadata{"previous_status": string(current.Status)},
	}); err != nil {
		s.logger.Error("record deletion audit", zap.String("report_id", id), zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("commit deletion", zap.String("report_id", id), zap.Error(err))
		return appErrors.Internal(err, "failed to delete report")
	}

	s.metrics.RecordTransition("deleted")
	s.invalidateTransparency(ctx)
	s.logger.Info("report deleted", zap.String("report_id", id), zap.String("user_id", actor.UserID))
	return nil
}

// lockLive loads and locks a non-deleted report.
func (s *ModerationService) lockLive(ctx context.Context, tx *sqlx.Tx, id string) (*models.Report, error) {
	report, err := s.reports.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		s.logger.Error("lock report", zap.String("report_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load report")
	}
	if report.IsDeleted() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	return report, nil
}

func (s *ModerationService) invalidateTransparency(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, TransparencyCacheKey)
	}
}
