package commlog

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Communications"

// ReportFilename names a report covering the period ending at t.
func ReportFilename(t time.Time) string {
	return fmt.Sprintf("communications_%s.xlsx", t.Format("2006-01-02"))
}

// ExportExcel renders entries as an .xlsx workbook.
func ExportExcel(entries []Entry, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := []interface{}{"Час", "Відправник", "Chat ID", "Текст"}
	if err := writeRow(f, 1, header); err != nil {
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(sheetName, "A1", endCell, style)
	}

	for i, e := range entries {
		row := []interface{}{
			e.Time.In(loc).Format("2006-01-02 15:04:05"),
			string(e.Sender),
			e.ChatID,
			e.Text,
		}
		if err := writeRow(f, i+2, row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(sheetName, "A", "A", 20)
	_ = f.SetColWidth(sheetName, "D", "D", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []interface{}) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, val); err != nil {
			return err
		}
	}
	return nil
}
