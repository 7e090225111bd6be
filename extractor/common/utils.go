package common

import (
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	endingBalanceRegex    = regexp.MustCompile(`(?i)ending balance.*?\$\s*([\d,]+\.\d{2})`)
	beginningBalanceRegex = regexp.MustCompile(`(?i)(?:beginning|opening) balance.*?\$\s*([\d,]+\.\d{2})`)
)

// NonEmptyCells trims every cell and drops the blank ones.
func NonEmptyCells(row []string) []string {
	cells := make([]string, 0, len(row))
	for _, cell := range row {
		if c := strings.Join(strings.Fields(cell), " "); c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}

// ParseTableRow reads a table row laid out as date, description..., amount.
// ok is false for rows that are not transactions at all (too few cells, a
// blank description or a marker such as "Total"); err is set for rows that
// look like transactions but fail normalization.
func ParseTableRow(row []string, markers []string, sign Sign, year int, strategy string) (tx Transaction, ok bool, err error) {
	cells := NonEmptyCells(row)
	if len(cells) < 2 {
		return Transaction{}, false, nil
	}

	description := strings.Join(cells[1:len(cells)-1], " ")
	if description == "" || IsMarker(description, markers) {
		return Transaction{}, false, nil
	}

	date, err := NormalizeDate(cells[0], year)
	if err != nil {
		return Transaction{}, false, err
	}
	amount, err := NormalizeAmount(cells[len(cells)-1])
	if err != nil {
		return Transaction{}, false, err
	}

	return NewTransaction(date, amount, sign, description, strategy), true, nil
}

// IsMarker reports whether text is exactly one of markers, ignoring case.
func IsMarker(text string, markers []string) bool {
	text = strings.TrimSpace(text)
	for _, m := range markers {
		if strings.EqualFold(text, m) {
			return true
		}
	}
	return false
}

// ScrapeEndingBalance looks for an "ending balance" figure, first in a table
// cell followed by its value, then in the page text. Nothing found is not an
// error.
func ScrapeEndingBalance(src Source) *decimal.Decimal {
	return scrapeBalance(src, endingBalanceRegex, "ending balance")
}

// ScrapeBeginningBalance is ScrapeEndingBalance for the opening figure.
func ScrapeBeginningBalance(src Source) *decimal.Decimal {
	return scrapeBalance(src, beginningBalanceRegex, "beginning balance", "opening balance")
}

func scrapeBalance(src Source, pattern *regexp.Regexp, labels ...string) *decimal.Decimal {
	for page := 0; page < src.PageCount(); page++ {
		tables, err := src.PageTables(page)
		if err != nil {
			continue
		}
		for _, table := range tables {
			for _, row := range table.Rows {
				for i, cell := range row {
					if !containsAny(strings.ToLower(cell), labels) || i+1 >= len(row) {
						continue
					}
					if amount, err := NormalizeAmount(row[i+1]); err == nil {
						return &amount
					}
				}
			}
		}
	}

	for page := 0; page < src.PageCount(); page++ {
		text, err := src.PageText(page)
		if err != nil {
			continue
		}
		if m := pattern.FindStringSubmatch(text); m != nil {
			if amount, err := NormalizeAmount(m[1]); err == nil {
				return &amount
			}
		}
	}
	return nil
}

// Reconcile compares the printed ending balance with the beginning balance
// plus the nett of the extracted transactions. known is false when either
// balance is missing.
func (s Statement) Reconcile() (calculated decimal.Decimal, matches, known bool) {
	if s.BeginningBalance == nil || s.EndingBalance == nil {
		return decimal.Zero, false, false
	}
	calculated = s.BeginningBalance.Add(s.Nett)
	return calculated, calculated.Equal(*s.EndingBalance), true
}

// SortTransactions orders by date, keeping document order for equal dates.
func SortTransactions(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		return a.Date.Compare(b.Date)
	})
}

// Finalize sorts the transactions and fills in the statement totals.
func (s *Statement) Finalize() {
	SortTransactions(s.Transactions)

	s.TotalCredit = decimal.Zero
	s.TotalDebit = decimal.Zero
	for _, tx := range s.Transactions {
		if tx.Amount.IsNegative() {
			s.TotalDebit = s.TotalDebit.Add(tx.Amount)
		} else {
			s.TotalCredit = s.TotalCredit.Add(tx.Amount)
		}
	}
	s.Nett = s.TotalCredit.Add(s.TotalDebit)

	if len(s.Transactions) > 0 {
		s.TransactionStartDate = FormatDate(s.Transactions[0].Date)
		s.TransactionEndDate = FormatDate(s.Transactions[len(s.Transactions)-1].Date)
	}
}

// Emit numbers a transaction in encounter order and appends it.
func (s *Statement) Emit(tx Transaction, page int) {
	tx.Sequence = len(s.Transactions) + 1
	tx.Page = page + 1
	s.Transactions = append(s.Transactions, tx)
}
