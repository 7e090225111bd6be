package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/aqlanhadi/stmtscan/detector"
	"github.com/aqlanhadi/stmtscan/extractor/common"
)

// CSVWriter writes transactions or candidates as CSV.
type CSVWriter struct {
	// IncludeHeader adds "# key,value" rows describing the statement.
	IncludeHeader bool
}

// WriteStatement writes the statement's transactions, preceded by its
// summary when IncludeHeader is set.
func (w *CSVWriter) WriteStatement(out io.Writer, stmt common.Statement) error {
	writer := csv.NewWriter(out)

	if w.IncludeHeader {
		meta := [][]string{
			{"# Source", stmt.Source},
			{"# Strategy", stmt.Strategy},
			{"# Year", strconv.Itoa(stmt.Year)},
			{"# Total Credit", stmt.TotalCredit.StringFixed(2)},
			{"# Total Debit", stmt.TotalDebit.StringFixed(2)},
		}
		if stmt.BeginningBalance != nil {
			meta = append(meta, []string{"# Beginning Balance", stmt.BeginningBalance.StringFixed(2)})
		}
		if stmt.EndingBalance != nil {
			meta = append(meta, []string{"# Ending Balance", stmt.EndingBalance.StringFixed(2)})
		}
		for _, row := range meta {
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	return writeTransactions(writer, stmt.Transactions)
}

// WriteTransactions writes a bare transaction list.
func (w *CSVWriter) WriteTransactions(out io.Writer, txs []common.Transaction) error {
	return writeTransactions(csv.NewWriter(out), txs)
}

func writeTransactions(writer *csv.Writer, txs []common.Transaction) error {
	if err := writer.Write([]string{"date", "description", "amount", "direction", "strategy"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, tx := range txs {
		amount, direction := tx.Unsigned()
		row := []string{
			common.FormatDate(tx.Date),
			tx.Description,
			amount.StringFixed(2),
			direction,
			tx.Strategy,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (w *CSVWriter) WriteCandidates(out io.Writer, candidates []detector.Candidate) error {
	writer := csv.NewWriter(out)

	if err := writer.Write([]string{"merchant", "amount", "confidence", "next_due", "reason"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, c := range candidates {
		nextDue := ""
		if c.NextDue != nil {
			nextDue = common.FormatDate(*c.NextDue)
		}
		row := []string{
			c.Merchant,
			c.Amount.StringFixed(2),
			c.Confidence.String(),
			nextDue,
			c.Reason,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
