package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterOrdersColumnsAndNeutralizesFormulas(t *testing.T) {
	data := Dataset{
		Headers: []string{"Location", "Financial Impact"},
		Rows: []map[string]string{
			{"Location": "Echo Park, 90026", "Financial Impact": "=HYPERLINK(\"x\")"},
			{"Location": "Silver Lake"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Location", "Financial Impact"}, records[0])
	assert.Equal(t, "'=HYPERLINK(\"x\")", records[1][1])
	assert.Equal(t, []string{"Silver Lake", ""}, records[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRendersDocument(t *testing.T) {
	doc := Document{
		Title:    "Red Tape Report",
		Subtitle: "September 12, 2025 – November 12, 2025",
		Summary:  "This report documents 1 verified reports.",
		Sections: []Section{
			{Heading: "Top Departments", Lines: []Line{{Label: "Building & Safety", Value: "1"}}},
			{Heading: "Timeline Impact"},
		},
		Entries: []Entry{{Heading: "Report #1", Fields: []Line{{Label: "Location", Value: "Echo Park"}, {Label: "Solution Ideas", Value: ""}}}},
		Footer:  "redtape.la",
	}

	out, err := NewPDFExporter().Render(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	_, err = NewPDFExporter().Render(Document{})
	assert.Error(t, err)
}
