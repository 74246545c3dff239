// Package export writes crawl results to an Excel workbook.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/use-agent/leadscout/models"
	"github.com/xuri/excelize/v2"
)

// Sheet names and layout constants.
const (
	DataSheet    = "Business Data"
	SummarySheet = "Summary"

	maxColWidth = 50
)

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("export: no records")

// Columns is the fixed header row of the data sheet.
var Columns = []string{
	"Name", "Phone", "Email",
	"Facebook", "Instagram", "Twitter", "LinkedIn", "YouTube", "TikTok",
	"Website", "Address", "Rating", "Reviews", "Category", "Hours", "Map URL",
}

// Row renders a record in column order. Unknown fields become "N/A".
func Row(r models.BusinessRecord) []string {
	return []string{
		r.Name.OrNA(), r.Phone.OrNA(), r.Email.OrNA(),
		r.Social(models.Facebook).OrNA(),
		r.Social(models.Instagram).OrNA(),
		r.Social(models.Twitter).OrNA(),
		r.Social(models.LinkedIn).OrNA(),
		r.Social(models.YouTube).OrNA(),
		r.Social(models.TikTok).OrNA(),
		r.Website.OrNA(), r.Address.OrNA(), r.Rating.OrNA(), r.Reviews.OrNA(),
		r.Category.OrNA(), r.Hours.OrNA(),
		models.Known(r.SourceURL).OrNA(),
	}
}

// Workbook writes business_data_<timestamp>.xlsx files into Dir.
type Workbook struct {
	Dir string
	now func() time.Time
}

// NewWorkbook returns an exporter writing into dir.
func NewWorkbook(dir string) *Workbook {
	return &Workbook{Dir: dir, now: time.Now}
}

// Export writes records to a new workbook and returns its path.
func (w *Workbook) Export(ctx context.Context, records []models.BusinessRecord) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stamp := w.now().Format("20060102_150405")
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}
	path := filepath.Join(w.Dir, "business_data_"+stamp+".xlsx")

	f := excelize.NewFile()
	defer f.Close()

	if err := writeData(f, records); err != nil {
		return "", err
	}
	if err := writeSummary(f, len(records), stamp); err != nil {
		return "", err
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("export: save %s: %w", path, err)
	}
	return path, nil
}

func writeData(f *excelize.File, records []models.BusinessRecord) error {
	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}

	widths := make([]int, len(Columns))
	setRow := func(rowNum int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
			widths[i] = max(widths[i], utf8.RuneCountInString(v))
		}
		return f.SetSheetRow(DataSheet, cell, &row)
	}

	if err := setRow(1, Columns); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	for i, r := range records {
		if err := setRow(i+2, Row(r)); err != nil {
			return fmt.Errorf("export: row %d: %w", i+2, err)
		}
	}

	// ── Bold header ──────────────────────────────────────────────────
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(DataSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	// ── Column widths ────────────────────────────────────────────────
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(DataSheet, col, col, float64(min(w+2, maxColWidth))); err != nil {
			return fmt.Errorf("export: width %s: %w", col, err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, total int, stamp string) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("export: summary sheet: %w", err)
	}
	cells := []struct {
		cell  string
		value any
	}{
		{"A1", "Total Records Scraped"},
		{"B1", total},
		{"A2", "Scrape Date"},
		{"B2", stamp},
	}
	for _, c := range cells {
		if err := f.SetCellValue(SummarySheet, c.cell, c.value); err != nil {
			return fmt.Errorf("export: summary %s: %w", c.cell, err)
		}
	}
	return nil
}
