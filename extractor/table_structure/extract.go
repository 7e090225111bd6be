// Package table_structure extracts transactions from tables the source has
// already found, signing every table by the text of its page.
package table_structure

import (
	"fmt"
	"strings"

	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/spf13/viper"
)

const Name = "table_structure"

type settings struct {
	RowMarkers []string
}

func loadConfig() settings {
	return settings{
		RowMarkers: viper.GetStringSlice("table_structure.row_markers"),
	}
}

type Strategy struct {
	cfg        settings
	classifier common.Classifier
}

func New() (*Strategy, error) {
	return &Strategy{cfg: loadConfig(), classifier: common.LoadClassifier()}, nil
}

func (s *Strategy) Name() string { return Name }

// IsTransactionHeader accepts a header row with a date column and an amount
// or description column. Daily balance grids (date and balance, no
// description) are rejected.
func IsTransactionHeader(row []string) bool {
	header := strings.ToLower(strings.Join(row, " "))
	hasDate := strings.Contains(header, "date")
	hasDescription := strings.Contains(header, "description")

	if hasDate && strings.Contains(header, "balance") && !hasDescription {
		return false
	}
	return hasDate && (hasDescription || strings.Contains(header, "amount"))
}

func (s *Strategy) Extract(doc *common.Document) (common.Statement, error) {
	log := doc.Log.With().Str("strategy", Name).Logger()

	statement := common.Statement{
		Source:       doc.Name,
		Year:         doc.Year,
		Strategy:     Name,
		Transactions: []common.Transaction{},
	}

	for page := 0; page < doc.Source.PageCount(); page++ {
		tables, err := doc.Source.PageTables(page)
		if err != nil {
			return common.Statement{}, fmt.Errorf("table_structure: page %d: %w", page+1, err)
		}
		if len(tables) == 0 {
			continue
		}

		text, err := doc.Source.PageText(page)
		if err != nil {
			return common.Statement{}, fmt.Errorf("table_structure: page %d: %w", page+1, err)
		}
		sign := s.classifier.Classify(text)

		for n, table := range tables {
			if len(table.Rows) == 0 || !IsTransactionHeader(table.Rows[0]) {
				continue
			}

			tableSign := sign
			if tableSign == common.SignUnknown {
				tableSign = common.SignIncome
				statement.Diagnostics.Warn("page %d table %d: no section found, assuming credits", page+1, n+1)
			}

			for _, row := range table.Rows[1:] {
				tx, ok, err := common.ParseTableRow(row, s.cfg.RowMarkers, tableSign, doc.Year, Name)
				if err != nil {
					statement.Diagnostics.Drop(page+1, strings.Join(row, " | "), err)
					log.Debug().Err(err).Int("page", page+1).Strs("row", row).Msg("dropped row")
					continue
				}
				if ok {
					statement.Emit(tx, page)
				}
			}
		}
	}

	statement.BeginningBalance = common.ScrapeBeginningBalance(doc.Source)
	statement.EndingBalance = common.ScrapeEndingBalance(doc.Source)

	if len(statement.Transactions) == 0 {
		return common.Statement{}, doc.NoTransactions()
	}
	statement.Finalize()

	log.Debug().Int("transactions", len(statement.Transactions)).Int("warnings", statement.Diagnostics.WarningCount()).Msg("extracted")
	return statement, nil
}
