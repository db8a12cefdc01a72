package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"carbon-market/marketplace/marketplace-backend/internal/ledger"
)

const sheetName = "Transactions"

func writeExcel(w io.Writer, txns []ledger.Transaction) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	timeFormat := "yyyy-mm-dd hh:mm:ss"
	timeStyle, err := file.NewStyle(&excelize.Style{CustomNumFmt: &timeFormat})
	if err != nil {
		return fmt.Errorf("failed to create timestamp style: %w", err)
	}

	for i, label := range labels() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheetName, cell, label); err != nil {
			return err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := file.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for r := range txns {
		for c, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			val := col.value(&txns[r])
			if ts, ok := val.(time.Time); ok {
				val = ts.UTC()
				if err := file.SetCellStyle(sheetName, cell, cell, timeStyle); err != nil {
					return err
				}
			}
			if err := file.SetCellValue(sheetName, cell, val); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := file.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if len(txns) > 0 {
		if err := file.AutoFilter(sheetName, "A1:"+lastHeader, nil); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	if err := file.SetColWidth(sheetName, "A", lastCol, 18); err != nil {
		return err
	}

	return file.Write(w)
}
