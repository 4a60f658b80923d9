package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Document is the structured content of a PDF export.
type Document struct {
	Title    string
	Subtitle string
	Summary  string
	Sections []Section
	Entries  []Entry
	Footer   string
}

// Section is a titled block of label/value lines, e.g. a top-N table.
type Section struct {
	Heading string
	Lines   []Line
}

// Line is a single label/value pair.
type Line struct {
	Label string
	Value string
}

// Entry renders on its own page.
type Entry struct {
	Heading string
	Fields  []Line
}

// PDFExporter renders Documents with gofpdf core fonts.
type PDFExporter struct {
	pageSize string
}

// NewPDFExporter constructs a PDF exporter producing A4 portrait pages.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{pageSize: "A4"}
}

// Render lays out the cover page (title, summary, sections) followed by one page per entry.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if strings.TrimSpace(doc.Title) == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}
	pdf := gofpdf.New("P", "mm", e.pageSize, "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if doc.Footer != "" {
		pdf.SetFooterFunc(func() {
			pdf.SetY(-12)
			pdf.SetFont("Helvetica", "I", 8)
			pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s  |  page %d", doc.Footer, pdf.PageNo())), "", 0, "C", false, 0, "")
		})
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, tr(doc.Title), "", 1, "C", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	if doc.Summary != "" {
		heading(pdf, tr, "Executive Summary")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(doc.Summary), "", "L", false)
		pdf.Ln(4)
	}

	for _, section := range doc.Sections {
		heading(pdf, tr, section.Heading)
		pdf.SetFont("Helvetica", "", 11)
		if len(section.Lines) == 0 {
			pdf.CellFormat(0, 6, tr("No data for this period."), "", 1, "L", false, 0, "")
		}
		for _, line := range section.Lines {
			pdf.CellFormat(130, 6, tr(line.Label), "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, tr(line.Value), "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	for _, entry := range doc.Entries {
		pdf.AddPage()
		heading(pdf, tr, entry.Heading)
		for _, field := range entry.Fields {
			if strings.TrimSpace(field.Value) == "" {
				continue
			}
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(0, 6, tr(field.Label), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr(field.Value), "", "L", false)
			pdf.Ln(2)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func heading(pdf *gofpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 9, tr(text), "B", 1, "L", false, 0, "")
	pdf.Ln(2)
}
