package service

import (
	"strings"
	"time"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
)

// DateLayout is the wire format of date-only query parameters.
const DateLayout = "2006-01-02"

// maxPageSize bounds list page sizes; larger requests get the default size.
const maxPageSize = 100

// defaultExportMonths is the look-back used when an export omits its start date.
const defaultExportMonths = 2

// ParseDate parses an optional YYYY-MM-DD value. Blank input yields nil.
func ParseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return nil, appErrors.Validation("invalid date", map[string]string{field: "must be a date in YYYY-MM-DD format"})
	}
	return &parsed, nil
}

// ParseDateRange parses start and end and rejects inverted ranges.
func ParseDateRange(rawStart, rawEnd string) (*time.Time, *time.Time, error) {
	start, err := ParseDate("start_date", rawStart)
	if err != nil {
		return nil, nil, err
	}
	end, err := ParseDate("end_date", rawEnd)
	if err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, appErrors.Validation("invalid date range", map[string]string{"start_date": "must be on or before end_date"})
	}
	return start, end, nil
}

// BuildReportFilter converts admin list query parameters into a filter.
func BuildReportFilter(q dto.ReportListQuery, defaultPageSize int) (models.ReportFilter, error) {
	start, end, err := ParseDateRange(q.StartDate, q.EndDate)
	if err != nil {
		return models.ReportFilter{}, err
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return models.ReportFilter{
		Status:     models.ParseStatusFilter(q.Filter),
		Email:      strings.TrimSpace(q.Email),
		Department: strings.TrimSpace(q.Department),
		Category:   strings.TrimSpace(q.Category),
		StartDate:  start,
		EndDate:    end,
		Order:      models.OrderCreatedDesc,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// ExportWindow resolves the export date range, defaulting to the last two months up to today.
func ExportWindow(start, end *time.Time, now time.Time) (time.Time, time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := today
	if end != nil {
		to = *end
	}
	from := today.AddDate(0, -defaultExportMonths, 0)
	if start != nil {
		from = *start
	}
	return from, to
}

// ExportFilter selects approved, non-deleted reports verified within [start, end].
func ExportFilter(start, end time.Time) models.ReportFilter {
	return models.ReportFilter{
		Status:    models.StatusFilterApproved,
		StartDate: &start,
		EndDate:   &end,
		Order:     models.OrderVerifiedDesc,
	}
}
