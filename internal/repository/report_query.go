package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/redtape-api/internal/models"
)

const (
	defaultReportPageSize = 25
	maxReportPageSize     = 100
)

// reportQuery accumulates WHERE conditions and positional args for report queries.
type reportQuery struct {
	conditions []string
	args       []interface{}
}

func (q *reportQuery) add(condition string, value interface{}) {
	q.args = append(q.args, value)
	q.conditions = append(q.conditions, fmt.Sprintf(condition, len(q.args)))
}

func (q *reportQuery) where() string {
	return " WHERE " + strings.Join(q.conditions, " AND ")
}

// buildReportQuery translates a filter into SQL. Deleted reports are always excluded.
func buildReportQuery(filter models.ReportFilter) *reportQuery {
	q := &reportQuery{conditions: []string{"deleted_at IS NULL"}}

	switch filter.Status {
	case models.StatusFilterPendingReview:
		q.conditions = append(q.conditions, "verified_at IS NOT NULL", "approved_at IS NULL")
	case models.StatusFilterApproved:
		q.conditions = append(q.conditions, "approved_at IS NOT NULL")
	case models.StatusFilterUnverified:
		q.conditions = append(q.conditions, "verified_at IS NULL")
	}

	if email := strings.ToLower(strings.TrimSpace(filter.Email)); email != "" {
		q.add("LOWER(email) = $%d", email)
	}
	if filter.Department != "" {
		q.add("$%d = ANY(departments)", filter.Department)
	}
	if filter.Category != "" {
		q.add("$%d = ANY(issue_categories)", filter.Category)
	}
	if filter.StartDate != nil {
		q.add("verified_at >= $%d", startOfDay(*filter.StartDate))
	}
	if filter.EndDate != nil {
		q.add("verified_at < $%d", startOfDay(*filter.EndDate).AddDate(0, 0, 1))
	}

	return q
}

func reportOrderClause(order models.ReportOrder) string {
	if order == models.OrderVerifiedDesc {
		return " ORDER BY verified_at DESC, id DESC"
	}
	return " ORDER BY created_at DESC, id DESC"
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxReportPageSize {
		pageSize = defaultReportPageSize
	}
	return page, pageSize
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
