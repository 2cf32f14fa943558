package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
)

const sheetName = "Stones"

// EncodeXLSX renders the same header and rows as EncodeCSV into a single-sheet
// workbook. Weight is written as a number; every other cell is text.
func EncodeXLSX(stones []domain.Stone, owners []string, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRow(f, 1, toCells(Header(owners))); err != nil {
		return nil, err
	}
	for i, s := range stones {
		cells := toCells(Row(s, owners, loc))
		if s.Weight != nil {
			w, _ := s.Weight.Float64()
			cells[3] = w
		}
		if err := writeRow(f, i+2, cells); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func writeRow(f *excelize.File, rowNo int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", rowNo, err)
	}
	return nil
}
