package stamper

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// stampSpreadsheet pushes every sheet down one row and writes the attribution
// into the new A1 cell.
func stampSpreadsheet(path string) (err error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FF0000", Size: 11},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for _, sheet := range f.GetSheetList() {
		if err := f.InsertRows(sheet, 1, 1); err != nil {
			return fmt.Errorf("sheet %q: failed to insert row: %w", sheet, err)
		}
		if err := f.SetCellValue(sheet, "A1", Attribution); err != nil {
			return fmt.Errorf("sheet %q: failed to set attribution: %w", sheet, err)
		}
		if err := f.SetCellStyle(sheet, "A1", "A1", style); err != nil {
			return fmt.Errorf("sheet %q: failed to style attribution: %w", sheet, err)
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
