package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
)

type auditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, entry *models.AuditLog) error
	CreateBatchTx(ctx context.Context, tx *sqlx.Tx, entries []models.AuditLog) error
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
}

// AuditEntry is the input for one audit record.
type AuditEntry struct {
	ReportID string
	Actor    models.Actor
	Action   models.AuditAction
	Metadata models.AuditMetadata
}

// AuditService appends audit records. Entries are never updated or removed.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record appends one entry in its own statement.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) (*models.AuditLog, error) {
	log, err := buildAuditLog(entry)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, log); err != nil {
		return nil, appErrors.Internal(err, "failed to record audit log")
	}
	return log, nil
}

// RecordTx appends one entry inside the caller's transaction.
func (s *AuditService) RecordTx(ctx context.Context, tx *sqlx.Tx, entry AuditEntry) (*models.AuditLog, error) {
	log, err := buildAuditLog(entry)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateTx(ctx, tx, log); err != nil {
		return nil, appErrors.Internal(err, "failed to record audit log")
	}
	return log, nil
}

// RecordBatchTx appends several entries atomically inside the caller's transaction.
func (s *AuditService) RecordBatchTx(ctx context.Context, tx *sqlx.Tx, entries []AuditEntry) ([]models.AuditLog, error) {
	logs := make([]models.AuditLog, 0, len(entries))
	for _, entry := range entries {
		log, err := buildAuditLog(entry)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *log)
	}
	if len(logs) == 0 {
		return logs, nil
	}
	if err := s.repo.CreateBatchTx(ctx, tx, logs); err != nil {
		return nil, appErrors.Internal(err, "failed to record audit logs")
	}
	return logs, nil
}

// List returns audit records newest first.
func (s *AuditService) List(ctx context.Context, q dto.AuditLogQuery) ([]models.AuditLog, *models.Pagination, error) {
	filter := models.AuditLogFilter{
		ReportID: q.ReportID,
		UserID:   q.UserID,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Action != "" {
		action := models.AuditAction(q.Action)
		if !action.Valid() {
			return nil, nil, appErrors.Validation("invalid audit filter", map[string]string{"action": "is not included in the list"})
		}
		filter.Action = action
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > maxPageSize {
		filter.PageSize = 25
	}

	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("list audit logs", zap.Error(err))
		return nil, nil, appErrors.Internal(err, "failed to list audit logs")
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func buildAuditLog(entry AuditEntry) (*models.AuditLog, error) {
	fields := map[string]string{}
	if entry.ReportID == "" {
		fields["report_id"] = "can't be blank"
	}
	if entry.Actor.UserID == "" {
		fields["user_id"] = "can't be blank"
	}
	if !entry.Action.Valid() {
		fields["action_type"] = "is not included in the list"
	}
	if len(fields) > 0 {
		return nil, appErrors.Validation("invalid audit entry", fields)
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = models.AuditMetadata{}
	}
	return &models.AuditLog{
		ReportID:   entry.ReportID,
		UserID:     entry.Actor.UserID,
		ActionType: entry.Action,
		IPAddress:  entry.Actor.IP,
		Metadata:   metadata,
	}, nil
}
