package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/redtape-api/internal/models"
	"github.com/noah-isme/redtape-api/pkg/ids"
)

const auditColumns = `id, report_id, user_id, action_type, ip_address, metadata, created_at`

const insertAuditLog = `INSERT INTO audit_logs (id, report_id, user_id, action_type, ip_address, metadata, created_at)
VALUES (:id, :report_id, :user_id, :action_type, :ip_address, :metadata, :created_at)`

// AuditRepository appends and reads audit log rows. It exposes no update or delete.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func prepareAuditLog(entry *models.AuditLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = ids.NewAt(entry.CreatedAt)
	}
	if entry.Metadata == nil {
		entry.Metadata = models.AuditMetadata{}
	}
}

// Create appends one entry outside of a transaction.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	prepareAuditLog(entry)
	if _, err := r.db.NamedExecContext(ctx, insertAuditLog, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// CreateTx appends one entry within tx.
func (r *AuditRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, entry *models.AuditLog) error {
	prepareAuditLog(entry)
	if _, err := tx.NamedExecContext(ctx, insertAuditLog, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// CreateBatchTx appends entries within tx using a single multi-row insert.
func (r *AuditRepository) CreateBatchTx(ctx context.Context, tx *sqlx.Tx, entries []models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		prepareAuditLog(&entries[i])
	}
	if _, err := tx.NamedExecContext(ctx, insertAuditLog, entries); err != nil {
		return fmt.Errorf("create audit log batch: %w", err)
	}
	return nil
}

// List returns audit rows newest first with the total match count.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ReportID != "" {
		args = append(args, filter.ReportID)
		conditions = append(conditions, fmt.Sprintf("report_id = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action_type = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s FROM audit_logs%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d",
		auditColumns, where, pageSize, (page-1)*pageSize)

	logs := make([]models.AuditLog, 0)
	if err := r.db.SelectContext(ctx, &logs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return logs, total, nil
}
