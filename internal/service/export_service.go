package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
	"github.com/noah-isme/redtape-api/pkg/export"
	"github.com/noah-isme/redtape-api/pkg/ids"
	"github.com/noah-isme/redtape-api/pkg/storage"
)

const (
	exportTokenSubject = "export"
	exportTopN         = 5
	longDateLayout     = "January 02, 2006"
	cellTimeLayout     = "2006-01-02 15:04:05 MST"
)

var csvHeaders = []string{
	"Report ID",
	"Submitted",
	"Verified",
	"Project Type",
	"Location",
	"Departments",
	"Issue Categories",
	"Timeline Impact",
	"Financial Impact",
	"Issue Description",
	"Solution Ideas",
}

type exportStore interface {
	ListAll(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
}

type archiveStorage interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type tokenSigner interface {
	Sign(subject, payload string) (string, time.Time, error)
	Verify(token string) (subject, payload string, expiresAt time.Time, err error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportService renders approved reports as CSV or PDF, audits each export
// and archives the file behind a signed download token.
type ExportService struct {
	tx        txProvider
	reports   exportStore
	audit     auditRecorder
	storage   archiveStorage
	signer    tokenSigner
	csv       csvRenderer
	pdf       pdfRenderer
	metrics   *MetricsService
	logger    *zap.Logger
	retention time.Duration
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(tx txProvider, reports exportStore, audit auditRecorder, storage archiveStorage, signer tokenSigner, retention time.Duration, metrics *MetricsService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		tx:        tx,
		reports:   reports,
		audit:     audit,
		storage:   storage,
		signer:    signer,
		csv:       csv,
		pdf:       pdf,
		metrics:   metrics,
		logger:    logger,
		retention: retention,
		now:       time.Now,
	}
}

// Export renders approved reports verified within the requested window.
func (s *ExportService) Export(ctx context.Context, req dto.ExportRequest, actor models.Actor) (*dto.ExportResult, error) {
	contentType, err := exportContentType(req.Format)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	start, end := ExportWindow(req.StartDate, req.EndDate, now)
	if start.After(end) {
		return nil, appErrors.Validation("invalid date range", map[string]string{"start_date": "must be on or before end_date"})
	}

	reports, err := s.reports.ListAll(ctx, ExportFilter(start, end))
	if err != nil {
		s.logger.Error("load reports for export", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load reports")
	}

	stats := AggregateStats(reports, now)
	var data []byte
	switch req.Format {
	case dto.ExportFormatCSV:
		data, err = s.csv.Render(buildCSVDataset(reports))
	case dto.ExportFormatPDF:
		data, err = s.pdf.Render(buildPDFDocument(reports, stats, start, end))
	}
	if err != nil {
		s.logger.Error("render export", zap.String("format", string(req.Format)), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to render export")
	}

	if err := s.recordExport(ctx, reports, req.Format, start, end, actor); err != nil {
		return nil, err
	}

	result := &dto.ExportResult{
		Reports:     reports,
		Stats:       stats,
		Filename:    exportFilename(req.Format, now),
		ContentType: contentType,
		Data:        data,
		RecordCount: len(reports),
		StartDate:   start,
		EndDate:     end,
	}
	s.archive(result)
	s.metrics.RecordExport(string(req.Format))
	s.logger.Info("reports exported",
		zap.String("format", string(req.Format)),
		zap.Int("record_count", len(reports)),
		zap.String("user_id", actor.UserID),
	)
	return result, nil
}

// ResolveDownload returns the archived export referenced by a signed token.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*dto.ExportDownload, error) {
	if s.signer == nil || s.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export archive unavailable")
	}
	subject, name, _, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "download link has expired")
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "download link is invalid")
	}
	if subject != exportTokenSubject {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "download link is invalid")
	}

	data, err := s.storage.Read(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export archive not found")
		}
		s.logger.Error("read export archive", zap.String("path", name), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to read export archive")
	}

	return &dto.ExportDownload{
		Filename:    path.Base(name),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

// CleanupArchive removes archived exports past the retention period.
func (s *ExportService) CleanupArchive(ctx context.Context) (int, error) {
	if s.storage == nil {
		return 0, nil
	}
	removed, err := s.storage.CleanupOlderThan(s.retention)
	if err != nil {
		s.logger.Error("cleanup export archive", zap.Error(err))
		return len(removed), err
	}
	if len(removed) > 0 {
		s.logger.Info("export archives removed", zap.Int("count", len(removed)))
	}
	return len(removed), nil
}

// recordExport writes one report_exported row per included report in a single transaction.
func (s *ExportService) recordExport(ctx context.Context, reports []models.Report, format dto.ExportFormat, start, end time.Time, actor models.Actor) error {
	if len(reports) == 0 {
		return nil
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	entries := make([]AuditEntry, 0, len(reports))
	for _, r := range reports {
		entries = append(entries, AuditEntry{
			ReportID: r.ID,
			Actor:    actor,
			Action:   models.AuditActionReportExported,
			Metadata: models.AuditMetadata{
				"format":       string(format),
				"start_date":   start.Format(DateLayout),
				"end_date":     end.Format(DateLayout),
				"record_count": len(reports),
			},
		})
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := s.audit.RecordBatchTx(ctx, tx, entries); err != nil {
		s.logger.Error("record export audit", zap.Error(err))
		return err
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("commit export audit", zap.Error(err))
		return appErrors.Internal(err, "failed to record export")
	}
	return nil
}

// archive stores the rendered file and attaches a download token. Failures are
// logged only; the caller still receives the file.
func (s *ExportService) archive(result *dto.ExportResult) {
	if s.storage == nil || s.signer == nil {
		return
	}
	name, err := s.storage.Save(ids.New()+"/"+result.Filename, result.Data)
	if err != nil {
		s.logger.Warn("archive export", zap.String("filename", result.Filename), zap.Error(err))
		return
	}
	token, expiresAt, err := s.signer.Sign(exportTokenSubject, name)
	if err != nil {
		s.logger.Warn("sign export download", zap.String("path", name), zap.Error(err))
		return
	}
	result.DownloadToken = token
	result.ExpiresAt = expiresAt
}

func exportContentType(format dto.ExportFormat) (string, error) {
	switch format {
	case dto.ExportFormatCSV:
		return "text/csv; charset=utf-8", nil
	case dto.ExportFormatPDF:
		return "application/pdf", nil
	default:
		return "", appErrors.Validation("unsupported export format", map[string]string{"format": "must be csv or pdf"})
	}
}

func exportFilename(format dto.ExportFormat, now time.Time) string {
	return fmt.Sprintf("red-tape-reports-%s.%s", now.Format(DateLayout), format)
}

func buildCSVDataset(reports []models.Report) export.Dataset {
	rows := make([]map[string]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, map[string]string{
			"Report ID":         r.ID,
			"Submitted":         r.CreatedAt.UTC().Format(cellTimeLayout),
			"Verified":          formatOptionalTime(r.VerifiedAt, cellTimeLayout),
			"Project Type":      r.ProjectType,
			"Location":          r.Location,
			"Departments":       strings.Join(r.Departments, ", "),
			"Issue Categories":  strings.Join(r.IssueCategories, ", "),
			"Timeline Impact":   r.TimelineImpact,
			"Financial Impact":  r.FinancialImpact,
			"Issue Description": r.IssueDescription,
			"Solution Ideas":    r.SolutionIdeas,
		})
	}
	return export.Dataset{Headers: csvHeaders, Rows: rows}
}

func buildPDFDocument(reports []models.Report, stats models.ReportStats, start, end time.Time) export.Document {
	doc := export.Document{
		Title:    "Red Tape Report",
		Subtitle: fmt.Sprintf("%s - %s", start.Format(longDateLayout), end.Format(longDateLayout)),
		Summary: fmt.Sprintf(
			"This report documents %d verified reports of bureaucratic barriers in LA's building process, collected between %s and %s.",
			stats.TotalCount, start.Format(longDateLayout), end.Format(longDateLayout),
		),
		Sections: []export.Section{
			{Heading: "Most Frequently Mentioned Departments", Lines: tallyLines(models.Top(stats.Departments, exportTopN))},
			{Heading: "Most Common Issue Categories", Lines: tallyLines(models.Top(stats.IssueCategories, exportTopN))},
			{Heading: "Timeline Impacts", Lines: tallyLines(stats.TimelineImpacts)},
		},
		Footer: "Red Tape Reports",
	}

	for _, r := range reports {
		doc.Entries = append(doc.Entries, export.Entry{
			Heading: fmt.Sprintf("%s in %s", r.ProjectType, r.Location),
			Fields: []export.Line{
				{Label: "Verified", Value: formatOptionalTime(r.VerifiedAt, longDateLayout)},
				{Label: "Project Description", Value: r.ProjectDescription},
				{Label: "Issue Description", Value: r.IssueDescription},
				{Label: "Timeline Impact", Value: r.TimelineImpact},
				{Label: "Financial Impact", Value: r.FinancialImpact},
				{Label: "Departments", Value: strings.Join(r.Departments, ", ")},
				{Label: "Issue Categories", Value: strings.Join(r.IssueCategories, ", ")},
				{Label: "Solution Ideas from Submitter", Value: r.SolutionIdeas},
			},
		})
	}
	return doc
}

func tallyLines(tallies []models.Tally) []export.Line {
	lines := make([]export.Line, 0, len(tallies))
	for _, t := range tallies {
		lines = append(lines, export.Line{Label: t.Label, Value: strconv.Itoa(t.Count) + " reports"})
	}
	return lines
}

func formatOptionalTime(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(layout)
}
