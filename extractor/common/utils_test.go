package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var markers = []string{"total", "totals", "subtotal", "balance"}

// stubSource is a minimal Source for package-local tests.
type stubSource struct {
	texts  []string
	tables [][]Table
}

func (s stubSource) PageCount() int { return len(s.texts) }

func (s stubSource) PageText(page int) (string, error) {
	if page >= len(s.texts) {
		return "", fmt.Errorf("page %d out of range", page)
	}
	return s.texts[page], nil
}

func (s stubSource) PageTables(page int) ([]Table, error) {
	if page >= len(s.tables) {
		return nil, nil
	}
	return s.tables[page], nil
}

func (s stubSource) CropText(int, Rect) (string, error) { return "", nil }

func testLogger() zerolog.Logger { return zerolog.Nop() }

func TestParseTableRow(t *testing.T) {
	tx, ok, err := ParseTableRow([]string{"08/27", "", "POS Purchase", "Wal-Mart", "34.92"}, markers, SignExpense, 2025, "test")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "2025-08-27", FormatDate(tx.Date))
	assert.Equal(t, "POS Purchase Wal-Mart", tx.Description)
	assert.Equal(t, "-34.92", tx.Amount.StringFixed(2))
	assert.Equal(t, TypeDebit, tx.Type)
}

func TestParseTableRow_Skipped(t *testing.T) {
	rows := [][]string{
		{"08/27"},
		{"08/27", "", "34.92"},
		{"", "Total", "1,234.56"},
		{"08/31", "Balance", "99.00"},
	}
	for _, row := range rows {
		_, ok, err := ParseTableRow(row, markers, SignIncome, 2025, "test")
		assert.False(t, ok, "row %v", row)
		assert.NoError(t, err, "row %v", row)
	}
}

func TestParseTableRow_Dropped(t *testing.T) {
	_, ok, err := ParseTableRow([]string{"Posted", "Coffee", "3.00"}, markers, SignExpense, 2025, "test")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrInvalidDate))

	_, ok, err = ParseTableRow([]string{"08/22", "Weird", "12,34.56.00"}, markers, SignExpense, 2025, "test")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestScrapeEndingBalance_TableCell(t *testing.T) {
	src := stubSource{
		texts: []string{"Ending balance $9.99"},
		tables: [][]Table{{{Rows: [][]string{
			{"Beginning balance", "$100.00"},
			{"Ending balance", "$1,250.75"},
		}}}},
	}

	got := ScrapeEndingBalance(src)
	require.NotNil(t, got)
	assert.Equal(t, "1250.75", got.String())
}

func TestScrapeEndingBalance_Text(t *testing.T) {
	src := stubSource{texts: []string{"Summary", "Ending balance on 09/22/2025 $2,000.10"}}

	got := ScrapeEndingBalance(src)
	require.NotNil(t, got)
	assert.Equal(t, "2000.1", got.String())
}

func TestScrapeEndingBalance_Absent(t *testing.T) {
	assert.Nil(t, ScrapeEndingBalance(stubSource{texts: []string{"nothing here"}}))
}

func TestScrapeBeginningBalance(t *testing.T) {
	table := stubSource{
		texts: []string{"Summary"},
		tables: [][]Table{{{Rows: [][]string{
			{"Beginning balance", "$100.00"},
			{"Ending balance", "$1,250.75"},
		}}}},
	}
	got := ScrapeBeginningBalance(table)
	require.NotNil(t, got)
	assert.Equal(t, "100", got.String())

	text := stubSource{texts: []string{"Opening balance on 08/01/2025 $50.25\nEnding balance $80.00"}}
	got = ScrapeBeginningBalance(text)
	require.NotNil(t, got)
	assert.Equal(t, "50.25", got.String())

	assert.Nil(t, ScrapeBeginningBalance(stubSource{texts: []string{"Ending balance $80.00"}}))
}

func TestStatement_Reconcile(t *testing.T) {
	begin := decimal.RequireFromString("100.00")
	end := decimal.RequireFromString("130.00")
	stmt := Statement{BeginningBalance: &begin, EndingBalance: &end, Nett: decimal.RequireFromString("30")}

	calculated, matches, known := stmt.Reconcile()
	assert.True(t, known)
	assert.True(t, matches)
	assert.Equal(t, "130", calculated.String())

	stmt.Nett = decimal.RequireFromString("-5")
	calculated, matches, known = stmt.Reconcile()
	assert.True(t, known)
	assert.False(t, matches)
	assert.Equal(t, "95", calculated.String())

	stmt.BeginningBalance = nil
	_, _, known = stmt.Reconcile()
	assert.False(t, known)
}

func TestFinalize_StableSortAndTotals(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 8, d, 0, 0, 0, 0, time.UTC) }
	stmt := Statement{}
	stmt.Emit(NewTransaction(day(25), decimal.RequireFromString("1780.21"), SignIncome, "Mobile Deposit", "test"), 0)
	stmt.Emit(NewTransaction(day(22), decimal.RequireFromString("20.00"), SignIncome, "first", "test"), 0)
	stmt.Emit(NewTransaction(day(22), decimal.RequireFromString("5.00"), SignExpense, "second", "test"), 1)

	stmt.Finalize()

	require.Len(t, stmt.Transactions, 3)
	assert.Equal(t, "first", stmt.Transactions[0].Description)
	assert.Equal(t, "second", stmt.Transactions[1].Description)
	assert.Equal(t, "Mobile Deposit", stmt.Transactions[2].Description)
	assert.Equal(t, 2, stmt.Transactions[0].Sequence)
	assert.Equal(t, 2, stmt.Transactions[1].Page)

	assert.Equal(t, "1800.21", stmt.TotalCredit.String())
	assert.Equal(t, "-5", stmt.TotalDebit.String())
	assert.Equal(t, "1795.21", stmt.Nett.String())
	assert.Equal(t, "2025-08-22", stmt.TransactionStartDate)
	assert.Equal(t, "2025-08-25", stmt.TransactionEndDate)
}

func TestTransaction_UnsignedRoundTrip(t *testing.T) {
	tx := NewTransaction(time.Now(), decimal.RequireFromString("34.92"), SignExpense, "x", "test")

	unsigned, direction := tx.Unsigned()
	assert.Equal(t, TypeDebit, direction)

	signed, err := SignedAmount(unsigned, direction)
	require.NoError(t, err)
	assert.True(t, signed.Equal(tx.Amount))

	_, err = SignedAmount(unsigned, "sideways")
	assert.Error(t, err)
}

func TestTransaction_JSONDate(t *testing.T) {
	tx := NewTransaction(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("15.99"), SignExpense, "NETFLIX.COM", "line_regex")

	b, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"date":"2024-01-05"`)

	var back Transaction
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Date.Equal(tx.Date))
	assert.True(t, back.Amount.Equal(tx.Amount))
	assert.Equal(t, "NETFLIX.COM", back.Description)
}

func TestTransaction_UnmarshalDerivesType(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-03-06T00:00:00Z","description":"x","amount":"-3.50"}`), &tx))

	assert.Equal(t, "2024-03-06", FormatDate(tx.Date))
	assert.Equal(t, TypeDebit, tx.Type)
}

func TestNewDocument(t *testing.T) {
	_, err := NewDocument("empty", stubSource{}, time.Now(), testLogger())
	assert.True(t, errors.Is(err, ErrDocumentEmpty))

	doc, err := NewDocument("one", stubSource{texts: []string{"For the period 01/01/2022 to 01/31/2022"}}, time.Now(), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2022, doc.Year)

	var nte *NoTransactionsError
	err = doc.NoTransactions()
	require.True(t, errors.As(err, &nte))
	assert.True(t, errors.Is(err, ErrNoTransactionsFound))
	assert.Contains(t, err.Error(), "For the period")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b c", Excerpt("a\n b\t\tc", 100))
	assert.Equal(t, "abc", Excerpt("abcdef", 3))
}
