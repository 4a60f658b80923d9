package dto

import (
	"time"

	"github.com/noah-isme/redtape-api/internal/models"
)

// SubmitReportRequest captures POST /reports payload.
type SubmitReportRequest struct {
	Email              string   `json:"email" validate:"required,email,max=254"`
	Name               string   `json:"name" validate:"max=120,plaintext"`
	ProjectType        string   `json:"project_type" validate:"required,project_type"`
	ProjectDescription string   `json:"project_description" validate:"required,min=10,max=5000,plaintext"`
	Location           string   `json:"location" validate:"required,max=255,plaintext"`
	IssueDescription   string   `json:"issue_description" validate:"required,min=20,max=10000,plaintext"`
	TimelineImpact     string   `json:"timeline_impact" validate:"omitempty,timeline_impact"`
	FinancialImpact    string   `json:"financial_impact" validate:"max=2000,plaintext"`
	SolutionIdeas      string   `json:"solution_ideas" validate:"max=5000,plaintext"`
	IssueCategories    []string `json:"issue_categories" validate:"omitempty,dive,issue_category"`
	Departments        []string `json:"departments" validate:"omitempty,dive,department"`
	// Website is a honeypot; humans never see the field.
	Website string `json:"website"`
}

// SubmissionMeta describes the origin of a submission.
type SubmissionMeta struct {
	IP        string
	UserAgent string
}

// SubmitReportResponse is returned once a report is stored.
type SubmitReportResponse struct {
	ID      string              `json:"id"`
	Status  models.ReportStatus `json:"status"`
	Message string              `json:"message"`
}

// VerifyOutcome distinguishes first verification from a repeated link click.
type VerifyOutcome string

const (
	VerifyOutcomeVerified        VerifyOutcome = "verified"
	VerifyOutcomeAlreadyVerified VerifyOutcome = "already_verified"
)

// VerifyResult is returned by GET /reports/verify.
type VerifyResult struct {
	Outcome  VerifyOutcome `json:"outcome"`
	Message  string        `json:"message"`
	ReportID string        `json:"report_id"`
}

// ReportListQuery binds admin list query parameters.
type ReportListQuery struct {
	Filter     string `form:"filter"`
	Email      string `form:"email"`
	Department string `form:"department"`
	Category   string `form:"category"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// AdminReport is the admin projection of a report with its derived stage.
type AdminReport struct {
	models.Report
	Stage       models.ReportStage `json:"stage"`
	DisplayName string             `json:"display_name"`
}

// NewAdminReport wraps a report for admin responses.
func NewAdminReport(r models.Report) AdminReport {
	return AdminReport{Report: r, Stage: r.Stage(), DisplayName: r.DisplayName()}
}

// ReportListResponse is returned by GET /admin/reports.
type ReportListResponse struct {
	Filter  models.StatusFilter `json:"filter"`
	Reports []AdminReport       `json:"reports"`
	Counts  models.ReportCounts `json:"counts"`
}

// OptionsResponse exposes the fixed option lists of the submission form.
type OptionsResponse struct {
	ProjectTypes    []string `json:"project_types"`
	IssueCategories []string `json:"issue_categories"`
	Departments     []string `json:"departments"`
	TimelineImpacts []string `json:"timeline_impacts"`
}

// TransparencyResponse carries the public statistics and when they were computed.
type TransparencyResponse struct {
	models.TransparencyStats
	GeneratedAt time.Time `json:"generated_at"`
}
