package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"carbon-market/marketplace/marketplace-backend/internal/ledger"
)

var pdfWidths = []float64{15, 22, 22, 25, 30, 45, 108}

const (
	pdfFont       = "Arial"
	pdfRowHeight  = 7.0
	pdfMarginSide = 15.0
)

func writePDF(w io.Writer, title string, txns []ledger.Transaction) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMarginSide, 20, pdfMarginSide)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont(pdfFont, "", 9)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 6, "Generated: "+time.Now().UTC().Format(timestampLayout), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	header := func() {
		pdf.SetFont(pdfFont, "B", 10)
		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		for i, label := range labels() {
			pdf.CellFormat(pdfWidths[i], 8, label, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(pdfFont, "", 8)
		pdf.SetTextColor(0, 0, 0)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for i := range txns {
		if pdf.GetY()+pdfRowHeight > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		if i%2 == 1 {
			pdf.SetFillColor(242, 242, 242)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		for j, col := range columns {
			pdf.CellFormat(pdfWidths[j], pdfRowHeight, formatValue(col.value(&txns[i])), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(txns) == 0 {
		pdf.CellFormat(0, pdfRowHeight, "No transactions recorded.", "1", 1, "C", false, 0, "")
	}

	return pdf.Output(w)
}
