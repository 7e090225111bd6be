// Package spatial signs each table by the text printed just above it on the
// page, falling back to the table's own header row.
package spatial

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/spf13/viper"
)

const Name = "spatial"

type settings struct {
	Lookback     float64
	HeaderTokens []string
	RowMarkers   []string
}

func loadConfig() settings {
	return settings{
		Lookback:     viper.GetFloat64("spatial.lookback"),
		HeaderTokens: viper.GetStringSlice("spatial.header_tokens"),
		RowMarkers:   viper.GetStringSlice("table_structure.row_markers"),
	}
}

type Strategy struct {
	cfg        settings
	classifier common.Classifier
	header     *regexp.Regexp
}

func New() (*Strategy, error) {
	cfg := loadConfig()
	if cfg.Lookback <= 0 {
		return nil, fmt.Errorf("spatial.lookback must be positive, got %v", cfg.Lookback)
	}
	return &Strategy{cfg: cfg, classifier: common.LoadClassifier(), header: headerPattern(cfg.HeaderTokens)}, nil
}

// headerPattern matches any of tokens as a whole word, ignoring case.
func headerPattern(tokens []string) *regexp.Regexp {
	quoted := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func (s *Strategy) Name() string { return Name }

// isHeader reports whether a table's first row names columns rather than
// holding data. A row starting with a date is always data.
func (s *Strategy) isHeader(row []string, year int) bool {
	cells := common.NonEmptyCells(row)
	if s.header == nil || len(cells) == 0 {
		return false
	}
	if _, err := common.NormalizeDate(cells[0], year); err == nil {
		return false
	}
	return s.header.MatchString(strings.Join(cells, " "))
}

// above is the full-width band of lookback units ending at the table top.
func (s *Strategy) above(bounds common.Rect) common.Rect {
	return common.Rect{
		Left:   0,
		Top:    math.Max(0, bounds.Top-s.cfg.Lookback),
		Right:  math.MaxFloat64,
		Bottom: bounds.Top,
	}
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
			return common.Statement{}, fmt.Errorf("spatial: page %d: %w", page+1, err)
		}

		for n, table := range tables {
			if table.Bounds == nil {
				continue
			}

			cropped, err := doc.Source.CropText(page, s.above(*table.Bounds))
			if err != nil {
				return common.Statement{}, fmt.Errorf("spatial: page %d: %w", page+1, err)
			}
			sign := s.classifier.Classify(cropped)

			var header []string
			data := table.Rows
			if len(data) > 0 && s.isHeader(data[0], doc.Year) {
				header, data = data[0], data[1:]
			}

			if sign == common.SignUnknown && header != nil {
				sign = s.classifier.Classify(strings.Join(header, " "))
			}
			if sign == common.SignUnknown {
				statement.Diagnostics.TablesSkipped++
				log.Debug().Int("page", page+1).Int("table", n+1).Str("above", cropped).Msg("no section for table")
				continue
			}

			for _, row := range data {
				tx, ok, err := common.ParseTableRow(row, s.cfg.RowMarkers, sign, doc.Year, Name)
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

	log.Debug().Int("transactions", len(statement.Transactions)).Int("tables_skipped", statement.Diagnostics.TablesSkipped).Msg("extracted")
	return statement, nil
}
