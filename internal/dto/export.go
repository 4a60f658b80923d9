package dto

import (
	"time"

	"github.com/noah-isme/redtape-api/internal/models"
)

// ExportFormat enumerates supported export outputs.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportQuery binds GET /admin/reports/export.:format query parameters.
type ExportQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// ExportRequest describes one export run. Nil dates fall back to the default window.
type ExportRequest struct {
	Format    ExportFormat
	StartDate *time.Time
	EndDate   *time.Time
}

// ExportResult holds the exported reports, their stats, the rendered file and
// its archived download token.
type ExportResult struct {
	Reports       []models.Report
	Stats         models.ReportStats
	Filename      string
	ContentType   string
	Data          []byte
	RecordCount   int
	StartDate     time.Time
	EndDate       time.Time
	DownloadToken string
	ExpiresAt     time.Time
}

// ExportDownload is an archived export resolved from its token.
type ExportDownload struct {
	Filename    string
	ContentType string
	Data        []byte
}
