package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aqlanhadi/stmtscan/detector"
	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStatement() common.Statement {
	ending := decimal.RequireFromString("1765.29")
	return common.Statement{
		Source:        "august",
		Year:          2025,
		Strategy:      "line_regex",
		EndingBalance: &ending,
		TotalCredit:   decimal.RequireFromString("20"),
		TotalDebit:    decimal.RequireFromString("-34.92"),
		Transactions: []common.Transaction{
			{Sequence: 1, Date: time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC), Description: "Bank Xfer", Type: common.TypeCredit, Amount: decimal.RequireFromString("20.00"), Strategy: "line_regex"},
			{Sequence: 2, Date: time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC), Description: "Wal-Mart, Store 12", Type: common.TypeDebit, Amount: decimal.RequireFromString("-34.92"), Strategy: "line_regex"},
		},
	}
}

func TestCSVWriter_WriteStatement(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{IncludeHeader: true}
	if err := w.WriteStatement(&buf, sampleStatement()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "# Source,august") {
		t.Error("expected source metadata")
	}
	if !strings.Contains(output, "# Ending Balance,1765.29") {
		t.Error("expected ending balance metadata")
	}
	if !strings.Contains(output, "date,description,amount,direction,strategy") {
		t.Error("expected column headers")
	}
	if !strings.Contains(output, "2025-08-27,\"Wal-Mart, Store 12\",34.92,debit,line_regex") {
		t.Error("expected quoted debit row with unsigned amount")
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	// 6 metadata lines + 1 header + 2 transactions = 9
	if len(lines) != 9 {
		t.Errorf("expected 9 lines, got %d", len(lines))
	}
}

func TestCSVWriter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{}
	require.NoError(t, w.WriteTransactions(&buf, sampleStatement().Transactions))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2025-08-22,Bank Xfer,20.00,credit,line_regex", lines[1])
}

func TestCSVWriter_WriteCandidates(t *testing.T) {
	next := time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)
	candidates := []detector.Candidate{
		{Merchant: "NETFLIX", Amount: decimal.RequireFromString("15.99"), Confidence: detector.ConfidenceHigh, NextDue: &next, Reason: "Periodic"},
		{Merchant: "LA FITNESS", Amount: decimal.RequireFromString("39.99"), Confidence: detector.ConfidenceMedium, Reason: "Keyword: Club Fees"},
	}

	var buf bytes.Buffer
	w := &CSVWriter{}
	require.NoError(t, w.WriteCandidates(&buf, candidates))

	assert.Equal(t,
		"merchant,amount,confidence,next_due,reason\n"+
			"NETFLIX,15.99,High,2024-04-05,Periodic\n"+
			"LA FITNESS,39.99,Medium,,Keyword: Club Fees\n",
		buf.String())
}

func TestJSON_DatesAndDecimals(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleStatement().Transactions[:1]))

	out := buf.String()
	assert.Contains(t, out, `"date": "2025-08-22"`)
	assert.Contains(t, out, `"amount": "20"`)
	assert.Contains(t, out, "\n  {")
}

func TestYAML_DatesAndDecimals(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, YAML(&buf, sampleStatement()))

	out := buf.String()
	assert.Contains(t, out, "source: august")
	assert.Contains(t, out, "date: \"2025-08-22\"")
	assert.Contains(t, out, "ending_balance: \"1765.29\"")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatJSON},
		{"JSON", FormatJSON},
		{"yml", FormatYAML},
		{"csv", FormatCSV},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}
