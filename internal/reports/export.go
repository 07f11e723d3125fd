package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/troopfundraiser/frclient/internal/frconfig"
	"github.com/troopfundraiser/frclient/internal/timecards"
)

const (
	// TableDelimiter separates fields in order table exports.
	TableDelimiter = '|'
	// PlainDelimiter separates fields in time card and allocation exports.
	PlainDelimiter = ','
)

// WriteCSV writes the table's exportable columns, header first, in display order.
func WriteCSV(w io.Writer, t *Table, delimiter rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ParseCSV reads an export written by WriteCSV back into records, header first.
func ParseCSV(r io.Reader, delimiter rune) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

// WriteXLSX writes the table's exportable columns as a single-sheet workbook.
func WriteXLSX(w io.Writer, t *Table, sheet string) error {
	if sheet == "" {
		sheet = "Report"
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	for i, record := range t.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(record))
		for j, v := range record {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if cols := len(t.DataColumns()); cols > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(cols, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return fmt.Errorf("apply header style: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// TimeCardTable lists time cards with the roster name and delivery date label.
func TimeCardTable(entries []timecards.Entry, cfg *frconfig.Config) *Table {
	t := &Table{Title: "Time Cards", Columns: []Column{
		{Key: "deliveryDate", Title: "Delivery Date"},
		{Key: "uid", Title: "User"},
		{Key: "name", Title: "Name"},
		{Key: "timeIn", Title: "Time In"},
		{Key: "timeOut", Title: "Time Out"},
		{Key: "timeTotal", Title: "Total"},
	}}
	sorted := append([]timecards.Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DeliveryID != sorted[j].DeliveryID {
			return sorted[i].DeliveryID < sorted[j].DeliveryID
		}
		return sorted[i].UID < sorted[j].UID
	})
	for _, e := range sorted {
		date, name := e.DeliveryID, e.UID
		if cfg != nil {
			if d, ok := cfg.DeliveryDate(e.DeliveryID); ok && d.Date != "" {
				date = d.Date
			}
			name = cfg.UserName(e.UID)
		}
		total := e.TimeTotal
		if withTotal, err := e.WithTotal(); err == nil {
			total = withTotal.TimeTotal
		}
		t.Rows = append(t.Rows, Row{Key: e.DeliveryID + "/" + e.UID, Values: map[string]string{
			"deliveryDate": date,
			"uid":          e.UID,
			"name":         name,
			"timeIn":       e.TimeIn,
			"timeOut":      e.TimeOut,
			"timeTotal":    total,
		}})
	}
	return t
}
