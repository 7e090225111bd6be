package common

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DateLayout = "2006-01-02"

	TypeCredit = "credit"
	TypeDebit  = "debit"
)

type Statement struct {
	Source               string           `json:"source" yaml:"source"`
	Year                 int              `json:"year" yaml:"year"`
	Strategy             string           `json:"strategy" yaml:"strategy"`
	BeginningBalance     *decimal.Decimal `json:"beginning_balance,omitempty" yaml:"beginning_balance,omitempty"`
	EndingBalance        *decimal.Decimal `json:"ending_balance,omitempty" yaml:"ending_balance,omitempty"`
	Transactions         []Transaction    `json:"transactions" yaml:"transactions"`
	TotalCredit          decimal.Decimal  `json:"total_credit" yaml:"total_credit"`
	TotalDebit           decimal.Decimal  `json:"total_debit" yaml:"total_debit"`
	Nett                 decimal.Decimal  `json:"nett" yaml:"nett"`
	TransactionStartDate string           `json:"transaction_start_date,omitempty" yaml:"transaction_start_date,omitempty"`
	TransactionEndDate   string           `json:"transaction_end_date,omitempty" yaml:"transaction_end_date,omitempty"`
	Diagnostics          Diagnostics      `json:"diagnostics" yaml:"diagnostics"`
}

// Transaction is immutable once a strategy has emitted it.
type Transaction struct {
	Sequence    int             `json:"sequence" yaml:"sequence"`
	Date        time.Time       `json:"date" yaml:"date"`
	Description string          `json:"description" yaml:"description"`
	Type        string          `json:"type" yaml:"type"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Strategy    string          `json:"strategy" yaml:"strategy"`
	Page        int             `json:"page,omitempty" yaml:"page,omitempty"`
}

// NewTransaction applies the section sign to the magnitude of amount.
func NewTransaction(date time.Time, amount decimal.Decimal, sign Sign, description, strategy string) Transaction {
	signed := sign.Apply(amount)
	return Transaction{
		Date:        date,
		Description: description,
		Type:        typeOf(signed),
		Amount:      signed,
		Strategy:    strategy,
	}
}

// Unsigned returns the magnitude and direction of the transaction.
func (t Transaction) Unsigned() (decimal.Decimal, string) {
	return t.Amount.Abs(), typeOf(t.Amount)
}

// SignedAmount is the inverse of Transaction.Unsigned.
func SignedAmount(unsigned decimal.Decimal, direction string) (decimal.Decimal, error) {
	switch direction {
	case TypeCredit:
		return unsigned.Abs(), nil
	case TypeDebit:
		return unsigned.Abs().Neg(), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown direction %q", direction)
	}
}

func typeOf(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return TypeDebit
	}
	return TypeCredit
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias(t), t.Date.Format(DateLayout)})
}

type transactionYAML struct {
	Sequence    int             `yaml:"sequence"`
	Date        string          `yaml:"date"`
	Description string          `yaml:"description"`
	Type        string          `yaml:"type"`
	Amount      decimal.Decimal `yaml:"amount"`
	Strategy    string          `yaml:"strategy"`
	Page        int             `yaml:"page,omitempty"`
}

func (t Transaction) MarshalYAML() (interface{}, error) {
	return transactionYAML{
		Sequence:    t.Sequence,
		Date:        t.Date.Format(DateLayout),
		Description: t.Description,
		Type:        t.Type,
		Amount:      t.Amount,
		Strategy:    t.Strategy,
		Page:        t.Page,
	}, nil
}

// UnmarshalJSON accepts the dates NormalizeDate understands plus RFC 3339
// timestamps. A missing type is derived from the amount sign.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	type alias Transaction
	aux := struct {
		*alias
		Date string `json:"date"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	date, err := NormalizeDate(aux.Date, time.Now().Year())
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, aux.Date)
		if tsErr != nil {
			return err
		}
		date = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	t.Date = date
	if t.Type == "" {
		t.Type = typeOf(t.Amount)
	}
	return nil
}

type Diagnostics struct {
	Warnings      []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	DroppedRows   int      `json:"dropped_rows" yaml:"dropped_rows"`
	TablesSkipped int      `json:"tables_skipped" yaml:"tables_skipped"`
}

func (d *Diagnostics) Warn(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Drop records a candidate row that failed normalization.
func (d *Diagnostics) Drop(page int, raw string, err error) {
	d.DroppedRows++
	d.Warn("page %d: dropped %q: %v", page, raw, err)
}

func (d Diagnostics) WarningCount() int {
	return len(d.Warnings)
}

// Rect is a page region in page units, origin at the top-left corner.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

func (r Rect) Intersects(o Rect) bool {
	return r.Left < o.Right && o.Left < r.Right && r.Top < o.Bottom && o.Top < r.Bottom
}

// Table is a grid of cell strings. Bounds is nil when the source has no
// geometry for it.
type Table struct {
	Rows   [][]string `json:"rows"`
	Bounds *Rect      `json:"bounds,omitempty"`
}

// Source is the read-only text and table view of one document. Pages are
// zero-based.
type Source interface {
	PageCount() int
	PageText(page int) (string, error)
	PageTables(page int) ([]Table, error)
	CropText(page int, r Rect) (string, error)
}

// Document is the per-call view a strategy extracts from: the source plus
// the year resolved from its first page.
type Document struct {
	Name      string
	Source    Source
	Year      int
	FirstPage string
	Log       zerolog.Logger
}

// NewDocument resolves the year hint once for the whole document.
func NewDocument(name string, src Source, now time.Time, log zerolog.Logger) (*Document, error) {
	if src.PageCount() == 0 {
		return nil, ErrDocumentEmpty
	}
	first, err := src.PageText(0)
	if err != nil {
		return nil, fmt.Errorf("%w: page 1: %v", ErrSourceRead, err)
	}
	return &Document{
		Name:      name,
		Source:    src,
		Year:      ResolveYear(first, now),
		FirstPage: first,
		Log:       log,
	}, nil
}

// NoTransactions builds the error returned when nothing could be extracted.
func (d *Document) NoTransactions() error {
	return &NoTransactionsError{Excerpt: Excerpt(d.FirstPage, ExcerptLength)}
}

// Strategy extracts transactions from a document. Implementations must not
// keep state between calls.
type Strategy interface {
	Name() string
	Extract(doc *Document) (Statement, error)
}
