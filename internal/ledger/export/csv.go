package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"carbon-market/marketplace/marketplace-backend/internal/ledger"
)

func writeCSV(w io.Writer, txns []ledger.Transaction) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(labels()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(columns))
	for i := range txns {
		for j, col := range columns {
			record[j] = formatValue(col.value(&txns[i]))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
