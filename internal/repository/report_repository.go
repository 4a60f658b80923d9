package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/redtape-api/internal/models"
)

const reportColumns = `id, email, name, project_type, project_description, location, issue_description,
timeline_impact, financial_impact, solution_ideas, issue_categories, departments, anonymous, status,
verification_token, verified_at, approved_at, deleted_at, created_at, updated_at`

// ReportRepository persists public reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new report in the new state.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = models.ReportStatusNew
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = report.CreatedAt

	const query = `INSERT INTO reports (id, email, name, project_type, project_description, location, issue_description,
timeline_impact, financial_impact, solution_ideas, issue_categories, departments, anonymous, status,
verification_token, verified_at, approved_at, deleted_at, created_at, updated_at)
VALUES (:id, :email, :name, :project_type, :project_description, :location, :issue_description,
:timeline_impact, :financial_impact, :solution_ideas, :issue_categories, :departments, :anonymous, :status,
:verification_token, :verified_at, :approved_at, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// FindByID returns a report regardless of its lifecycle stage, deleted ones included.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	return &report, nil
}

// FindByToken returns the report owning a verification token.
func (r *ReportRepository) FindByToken(ctx context.Context, token string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE verification_token = $1`
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, token); err != nil {
		return nil, fmt.Errorf("find report by token: %w", err)
	}
	return &report, nil
}

// MarkVerified consumes a verification token in a single conditional update.
// It returns sql.ErrNoRows when the token is unknown or was already consumed.
func (r *ReportRepository) MarkVerified(ctx context.Context, token string, verifiedAt time.Time) (*models.Report, error) {
	query := `UPDATE reports SET verified_at = $2, status = $3, updated_at = $2
WHERE verification_token = $1 AND verified_at IS NULL
RETURNING ` + reportColumns
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, token, verifiedAt, models.ReportStatusVerified); err != nil {
		return nil, fmt.Errorf("mark report verified: %w", err)
	}
	return &report, nil
}

// FindByIDForUpdate locks a report row inside tx.
func (r *ReportRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1 FOR UPDATE`
	var report models.Report
	if err := tx.GetContext(ctx, &report, query, id); err != nil {
		return nil, fmt.Errorf("lock report: %w", err)
	}
	return &report, nil
}

// ApproveTx marks a verified, non-deleted report approved. An existing approval
// timestamp is kept. Returns sql.ErrNoRows when the guard does not hold.
func (r *ReportRepository) ApproveTx(ctx context.Context, tx *sqlx.Tx, id string, approvedAt time.Time) (*models.Report, error) {
	query := `UPDATE reports SET approved_at = COALESCE(approved_at, $2), status = $3, updated_at = $2
WHERE id = $1 AND deleted_at IS NULL AND verified_at IS NOT NULL
RETURNING ` + reportColumns
	var report models.Report
	if err := tx.GetContext(ctx, &report, query, id, approvedAt, models.ReportStatusApproved); err != nil {
		return nil, fmt.Errorf("approve report: %w", err)
	}
	return &report, nil
}

// SoftDeleteTx sets deleted_at on a live report. The row is never removed.
func (r *ReportRepository) SoftDeleteTx(ctx context.Context, tx *sqlx.Tx, id string, deletedAt time.Time) error {
	const query = `UPDATE reports SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	res, err := tx.ExecContext(ctx, query, id, deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check report delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns one page of reports matching the filter plus the total match count.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	q := buildReportQuery(filter)
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s FROM reports%s%s LIMIT %d OFFSET %d",
		reportColumns, q.where(), reportOrderClause(filter.Order), pageSize, (page-1)*pageSize)
	reports := make([]models.Report, 0)
	if err := r.db.SelectContext(ctx, &reports, listQuery, q.args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reports"+q.where(), q.args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return reports, total, nil
}

// ListAll returns every report matching the filter without paging.
func (r *ReportRepository) ListAll(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	q := buildReportQuery(filter)
	query := "SELECT " + reportColumns + " FROM reports" + q.where() + reportOrderClause(filter.Order)
	reports := make([]models.Report, 0)
	if err := r.db.SelectContext(ctx, &reports, query, q.args...); err != nil {
		return nil, fmt.Errorf("list all reports: %w", err)
	}
	return reports, nil
}

// Counts returns the dashboard badges computed over non-deleted reports.
func (r *ReportRepository) Counts(ctx context.Context) (*models.ReportCounts, error) {
	const query = `SELECT
COUNT(*) FILTER (WHERE approved_at IS NOT NULL) AS total_approved,
COUNT(*) FILTER (WHERE verified_at IS NOT NULL AND approved_at IS NULL) AS pending_review,
COUNT(*) FILTER (WHERE verified_at IS NULL) AS unverified
FROM reports WHERE deleted_at IS NULL`
	var counts models.ReportCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count report stages: %w", err)
	}
	return &counts, nil
}

// CountVerified returns how many non-deleted reports completed email verification.
func (r *ReportRepository) CountVerified(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM reports WHERE deleted_at IS NULL AND verified_at IS NOT NULL`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count verified reports: %w", err)
	}
	return total, nil
}

// ExistsByEmailAndDescription is used by seeding to stay idempotent.
func (r *ReportRepository) ExistsByEmailAndDescription(ctx context.Context, email, description string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM reports WHERE email = $1 AND project_description = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email, description); err != nil {
		return false, fmt.Errorf("check report exists: %w", err)
	}
	return exists, nil
}
