package table_structure

import (
	"errors"
	"testing"
	"time"

	"github.com/aqlanhadi/stmtscan/config"
	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/aqlanhadi/stmtscan/extractor/source"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestConfig(t *testing.T) *Strategy {
	t.Helper()
	viper.Reset()
	require.NoError(t, config.LoadDefaults())
	s, err := New()
	require.NoError(t, err)
	return s
}

func document(t *testing.T, pages ...source.MemoryPage) *common.Document {
	t.Helper()
	now := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	doc, err := common.NewDocument("statement", &source.Memory{Pages: pages}, now, zerolog.Nop())
	require.NoError(t, err)
	return doc
}

func TestIsTransactionHeader(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want bool
	}{
		{"date amount description", []string{"Date", "Description", "Amount"}, true},
		{"date amount", []string{"Posting Date", "Amount"}, true},
		{"date description balance", []string{"Date", "Description", "Amount", "Balance"}, true},
		{"daily balance", []string{"Date", "Ledger balance"}, false},
		{"daily balance with amount", []string{"Date", "Amount", "Balance"}, false},
		{"no date", []string{"Description", "Amount"}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransactionHeader(tt.row))
		})
	}
}

func TestExtract_SignedByPageText(t *testing.T) {
	s := setupTestConfig(t)

	doc := document(t,
		source.MemoryPage{
			Text: "Deposits and Other Additions",
			Tables: []common.Table{{Rows: [][]string{
				{"Date", "Description", "Amount"},
				{"08/25", "Mobile Deposit", "1,780.21"},
				{"08/22", "Bank Xfer", "20.00"},
				{"", "Total", "1,800.21"},
			}}},
		},
		source.MemoryPage{
			Text: "Banking/Debit Card Withdrawals",
			Tables: []common.Table{{Rows: [][]string{
				{"Date", "Description", "Amount"},
				{"08/27", "Wal-Mart", "34.92"},
			}}},
		},
	)

	statement, err := s.Extract(doc)
	require.NoError(t, err)

	require.Len(t, statement.Transactions, 3)
	assert.Equal(t, "Bank Xfer", statement.Transactions[0].Description)
	assert.Equal(t, "20.00", statement.Transactions[0].Amount.StringFixed(2))
	assert.Equal(t, "1780.21", statement.Transactions[1].Amount.StringFixed(2))
	assert.Equal(t, "-34.92", statement.Transactions[2].Amount.StringFixed(2))
	assert.Equal(t, 2, statement.Transactions[2].Page)
	assert.Empty(t, statement.Diagnostics.Warnings)
}

func TestExtract_DailyBalanceTableRejected(t *testing.T) {
	s := setupTestConfig(t)

	doc := document(t, source.MemoryPage{
		Text: "Daily Balance Detail",
		Tables: []common.Table{{Rows: [][]string{
			{"Date", "Balance"},
			{"08/22", "1,020.00"},
			{"08/25", "2,800.21"},
		}}},
	})

	_, err := s.Extract(doc)
	assert.True(t, errors.Is(err, common.ErrNoTransactionsFound))
}

func TestExtract_AmbiguousSignDefaultsToCredit(t *testing.T) {
	s := setupTestConfig(t)

	doc := document(t, source.MemoryPage{
		Text: "Account activity",
		Tables: []common.Table{{Rows: [][]string{
			{"Date", "Description", "Amount"},
			{"08/01", "Something", "12.00"},
		}}},
	})

	statement, err := s.Extract(doc)
	require.NoError(t, err)

	require.Len(t, statement.Transactions, 1)
	assert.Equal(t, "12.00", statement.Transactions[0].Amount.StringFixed(2))
	assert.Equal(t, 1, statement.Diagnostics.WarningCount())
}

func TestExtract_BadRowsCounted(t *testing.T) {
	s := setupTestConfig(t)

	doc := document(t, source.MemoryPage{
		Text: "Checks paid",
		Tables: []common.Table{{Rows: [][]string{
			{"Date", "Check", "Description", "Amount"},
			{"08/03", "1001", "Landlord", "1,200.00"},
			{"13/45", "1002", "Bad date", "5.00"},
			{"08/04", "1003", "Bad amount", "five"},
			{"08/05", "", "", "7.00"},
		}}},
	})

	statement, err := s.Extract(doc)
	require.NoError(t, err)

	require.Len(t, statement.Transactions, 1)
	assert.Equal(t, "1001 Landlord", statement.Transactions[0].Description)
	assert.Equal(t, "-1200.00", statement.Transactions[0].Amount.StringFixed(2))
	assert.Equal(t, 2, statement.Diagnostics.DroppedRows)
}

func TestExtract_EndingBalanceFromCell(t *testing.T) {
	s := setupTestConfig(t)

	doc := document(t, source.MemoryPage{
		Text: "Deposits",
		Tables: []common.Table{
			{Rows: [][]string{{"Ending balance", "$2,000.00"}}},
			{Rows: [][]string{
				{"Date", "Description", "Amount"},
				{"08/01", "Payroll", "100.00"},
			}},
		},
	})

	statement, err := s.Extract(doc)
	require.NoError(t, err)
	require.NotNil(t, statement.EndingBalance)
	assert.Equal(t, "2000.00", statement.EndingBalance.StringFixed(2))
}
