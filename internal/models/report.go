package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// ReportStatus mirrors the furthest lifecycle stage a report has reached.
// Soft deletion is tracked separately through DeletedAt.
type ReportStatus string

const (
	ReportStatusNew      ReportStatus = "new"
	ReportStatusVerified ReportStatus = "verified"
	ReportStatusApproved ReportStatus = "approved"
)

// ReportStage is the derived review stage of a non-deleted report.
type ReportStage string

const (
	StageUnverified    ReportStage = "unverified"
	StagePendingReview ReportStage = "pending_review"
	StageApproved      ReportStage = "approved"
	StageDeleted       ReportStage = "deleted"
)

// Fixed option lists offered by the submission form.
var (
	ProjectTypes = []string{
		"Accessory dwelling unit (ADU)",
		"New construction",
		"Renovation / Remodel",
		"Change of use",
		"Other",
	}
	IssueCategories = []string{
		"Permits",
		"Inspections",
		"Zoning",
		"Fees",
		"Plan review",
		"Other",
	}
	Departments = []string{
		"Building & Safety",
		"Planning",
		"Water & Power",
		"Bureau of Engineering",
		"Housing Authority",
		"Housing Department",
		"Fire Department",
		"Sanitation Bureau",
		"Other",
	}
	TimelineImpacts = []string{
		"Less than 3 months",
		"3-6 months",
		"6-12 months",
		"More than 12 months",
	}
)

// Report is one public submission describing a permitting obstacle.
type Report struct {
	ID                 string         `db:"id" json:"id"`
	Email              string         `db:"email" json:"email"`
	Name               string         `db:"name" json:"name,omitempty"`
	ProjectType        string         `db:"project_type" json:"project_type"`
	ProjectDescription string         `db:"project_description" json:"project_description"`
	Location           string         `db:"location" json:"location"`
	IssueDescription   string         `db:"issue_description" json:"issue_description"`
	TimelineImpact     string         `db:"timeline_impact" json:"timeline_impact,omitempty"`
	FinancialImpact    string         `db:"financial_impact" json:"financial_impact,omitempty"`
	SolutionIdeas      string         `db:"solution_ideas" json:"solution_ideas,omitempty"`
	IssueCategories    pq.StringArray `db:"issue_categories" json:"issue_categories"`
	Departments        pq.StringArray `db:"departments" json:"departments"`
	Anonymous          bool           `db:"anonymous" json:"anonymous"`
	Status             ReportStatus   `db:"status" json:"status"`
	VerificationToken  string         `db:"verification_token" json:"-"`
	VerifiedAt         *time.Time     `db:"verified_at" json:"verified_at,omitempty"`
	ApprovedAt         *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	DeletedAt          *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// IsVerified reports whether the submitter confirmed their email.
func (r *Report) IsVerified() bool { return r.VerifiedAt != nil }

// IsApproved reports whether an admin approved the report.
func (r *Report) IsApproved() bool { return r.ApprovedAt != nil }

// IsDeleted reports whether the report was soft deleted.
func (r *Report) IsDeleted() bool { return r.DeletedAt != nil }

// Stage derives the review stage. Deleted reports are StageDeleted regardless
// of how far they progressed before deletion.
func (r *Report) Stage() ReportStage {
	switch {
	case r.IsDeleted():
		return StageDeleted
	case r.IsApproved():
		return StageApproved
	case r.IsVerified():
		return StagePendingReview
	default:
		return StageUnverified
	}
}

// DisplayName returns the submitter name or "Anonymous".
func (r *Report) DisplayName() string {
	if r.Anonymous || strings.TrimSpace(r.Name) == "" {
		return "Anonymous"
	}
	return r.Name
}

// StatusFilter selects reports by review stage in admin views.
type StatusFilter string

const (
	StatusFilterAll           StatusFilter = "all"
	StatusFilterPendingReview StatusFilter = "pending_review"
	StatusFilterApproved      StatusFilter = "approved"
	StatusFilterUnverified    StatusFilter = "unverified"
)

// ParseStatusFilter maps unknown or empty tokens to StatusFilterAll.
func ParseStatusFilter(raw string) StatusFilter {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusFilterPendingReview:
		return StatusFilterPendingReview
	case StatusFilterApproved:
		return StatusFilterApproved
	case StatusFilterUnverified:
		return StatusFilterUnverified
	default:
		return StatusFilterAll
	}
}

// Matches applies the filter predicate to a single report. Deleted reports never match.
func (f StatusFilter) Matches(r *Report) bool {
	if r.IsDeleted() {
		return false
	}
	switch f {
	case StatusFilterPendingReview:
		return r.IsVerified() && !r.IsApproved()
	case StatusFilterApproved:
		return r.IsApproved()
	case StatusFilterUnverified:
		return !r.IsVerified()
	default:
		return true
	}
}

// ReportOrder selects the ordering of a filtered result set.
type ReportOrder int

const (
	// OrderCreatedDesc lists newest submissions first.
	OrderCreatedDesc ReportOrder = iota
	// OrderVerifiedDesc lists most recently verified first, used by exports.
	OrderVerifiedDesc
)

// ReportFilter captures a requested admin or export view.
type ReportFilter struct {
	Status     StatusFilter
	Email      string
	Department string
	Category   string
	StartDate  *time.Time
	EndDate    *time.Time
	Order      ReportOrder
	Page       int
	PageSize   int
}

// ReportCounts are the dashboard badges over non-deleted reports.
type ReportCounts struct {
	TotalApproved int `db:"total_approved" json:"total_approved"`
	PendingReview int `db:"pending_review" json:"pending_review"`
	Unverified    int `db:"unverified" json:"unverified"`
}

// Contains reports whether value is one of options.
func Contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
