package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"carbon-market/marketplace/marketplace-backend/internal/ledger"
)

// Format is a supported download format for the transaction history.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
)

const timestampLayout = "2006-01-02 15:04:05"

// ParseFormat accepts csv, xlsx (or excel) and pdf, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatExcel, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// FileName returns base with the format's extension.
func (f Format) FileName(base string) string {
	return base + "." + string(f)
}

type column struct {
	label string
	value func(t *ledger.Transaction) interface{}
}

var columns = []column{
	{"ID", func(t *ledger.Transaction) interface{} { return t.ID }},
	{"Buyer", func(t *ledger.Transaction) interface{} { return t.BuyerID }},
	{"Credit", func(t *ledger.Transaction) interface{} { return t.CreditID }},
	{"Amount", func(t *ledger.Transaction) interface{} { return t.Amount }},
	{"Total Price", func(t *ledger.Transaction) interface{} { return t.TotalPrice }},
	{"Timestamp", func(t *ledger.Transaction) interface{} { return t.Timestamp }},
	{"Tx Hash", func(t *ledger.Transaction) interface{} { return t.TxnHash }},
}

func labels() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.label
	}
	return out
}

// Write renders txns to w in format f. title is used by formats that carry one.
func Write(w io.Writer, f Format, title string, txns []ledger.Transaction) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, txns)
	case FormatExcel:
		return writeExcel(w, txns)
	case FormatPDF:
		return writePDF(w, title, txns)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func formatValue(val interface{}) string {
	switch v := val.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(timestampLayout)
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
