package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/redtape-api/internal/models"
)

// AggregateStats computes the statistics shown on exports and the transparency
// page. Tallies are sorted by count descending; equal counts keep first-seen order.
func AggregateStats(reports []models.Report, now time.Time) models.ReportStats {
	departments := newTally()
	categories := newTally()
	timelines := newTally()
	projectTypes := newTally()

	stats := models.ReportStats{TotalCount: len(reports)}
	var verifiedDays float64
	var verifiedCount int

	for i := range reports {
		r := &reports[i]
		for _, d := range r.Departments {
			departments.add(d)
		}
		for _, c := range r.IssueCategories {
			categories.add(c)
		}
		if strings.TrimSpace(r.TimelineImpact) != "" {
			timelines.add(r.TimelineImpact)
		}
		if strings.TrimSpace(r.ProjectType) != "" {
			projectTypes.add(r.ProjectType)
		}
		if strings.TrimSpace(r.FinancialImpact) != "" {
			stats.WithFinancialImpact++
		}
		if r.VerifiedAt != nil {
			verifiedDays += now.Sub(*r.VerifiedAt).Hours() / 24
			verifiedCount++
		}
	}

	stats.Departments = departments.sorted()
	stats.IssueCategories = categories.sorted()
	stats.TimelineImpacts = timelines.sorted()
	stats.ProjectTypes = projectTypes.sorted()
	if verifiedCount > 0 {
		avg := verifiedDays / float64(verifiedCount)
		stats.AverageDaysSinceVerification = &avg
	}
	return stats
}

// TransparencyView projects stats for public display.
func TransparencyView(stats models.ReportStats, verifiedCount int) models.TransparencyStats {
	return models.TransparencyStats{
		ApprovedCount:   stats.TotalCount,
		VerifiedCount:   verifiedCount,
		Departments:     stats.Departments,
		IssueCategories: stats.IssueCategories,
		TimelineImpacts: stats.TimelineImpacts,
		ProjectTypes:    stats.ProjectTypes,
	}
}

type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(label string) {
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

func (t *tally) sorted() []models.Tally {
	out := make([]models.Tally, 0, len(t.order))
	for _, label := range t.order {
		out = append(out, models.Tally{Label: label, Count: t.counts[label]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
