package models

// Tally is one row of a frequency table.
type Tally struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ReportStats aggregates a report subset for exports and the transparency page.
type ReportStats struct {
	TotalCount                   int      `json:"total_count"`
	Departments                  []Tally  `json:"departments"`
	IssueCategories              []Tally  `json:"issue_categories"`
	TimelineImpacts              []Tally  `json:"timeline_impacts"`
	ProjectTypes                 []Tally  `json:"project_types"`
	WithFinancialImpact          int      `json:"with_financial_impact"`
	AverageDaysSinceVerification *float64 `json:"average_days_since_verification,omitempty"`
}

// Top returns at most n leading rows of a sorted tally.
func Top(tallies []Tally, n int) []Tally {
	if n < 0 || len(tallies) <= n {
		return tallies
	}
	return tallies[:n]
}

// TransparencyStats is the public projection of ReportStats.
type TransparencyStats struct {
	ApprovedCount   int     `json:"approved_count"`
	VerifiedCount   int     `json:"verified_count"`
	Departments     []Tally `json:"departments"`
	IssueCategories []Tally `json:"issue_categories"`
	TimelineImpacts []Tally `json:"timeline_impacts"`
	ProjectTypes    []Tally `json:"project_types"`
}
