package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"carbon-market/marketplace/marketplace-backend/internal/ledger"
)

func sampleTransactions() []ledger.Transaction {
	return []ledger.Transaction{
		{ID: 2, BuyerID: 31, CreditID: 7, Amount: 40, TotalPrice: 500, Timestamp: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), TxnHash: "0xbeef"},
		{ID: 1, BuyerID: 30, CreditID: 7, Amount: 10, TotalPrice: 125.5, Timestamp: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatCSV, "CSV": FormatCSV, "excel": FormatExcel, "xlsx": FormatExcel, " pdf ": FormatPDF}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("docx")
	assert.Error(t, err)
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "transactions.xlsx", FormatExcel.FileName("transactions"))
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Equal(t, "text/csv", FormatCSV.ContentType())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, "", sampleTransactions()))

	want := "ID,Buyer,Credit,Amount,Total Price,Timestamp,Tx Hash\n" +
		"2,31,7,40,500.00,2024-03-02 10:00:00,0xbeef\n" +
		"1,30,7,10,125.50,2024-03-01 09:30:00,\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatExcel, "", sampleTransactions()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, labels(), rows[0])
	assert.Equal(t, "2", rows[1][0])
	assert.Equal(t, "0xbeef", rows[1][6])
}

func TestWritePDF(t *testing.T) {
	for _, txns := range [][]ledger.Transaction{sampleTransactions(), nil} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatPDF, "Marketplace transactions", txns))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	}
}
