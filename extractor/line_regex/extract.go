// Package line_regex extracts transactions from plain page text, one
// "MM/DD amount description" line at a time, using section headers to sign
// the amounts.
package line_regex

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/spf13/viper"
)

const Name = "line_regex"

type settings struct {
	Transaction     *regexp.Regexp
	RowShape        *regexp.Regexp
	MaxContinuation int
	Totals          []string
	Prefixes        *regexp.Regexp
}

func loadConfig() (settings, error) {
	transaction, err := regexp.Compile(viper.GetString("line_regex.transaction"))
	if err != nil {
		return settings{}, fmt.Errorf("line_regex.transaction: %w", err)
	}
	rowShape, err := regexp.Compile(viper.GetString("line_regex.row_shape"))
	if err != nil {
		return settings{}, fmt.Errorf("line_regex.row_shape: %w", err)
	}
	if transaction.NumSubexp() < 3 {
		return settings{}, fmt.Errorf("line_regex.transaction needs date, amount and description groups, has %d", transaction.NumSubexp())
	}

	return settings{
		Transaction:     transaction,
		RowShape:        rowShape,
		MaxContinuation: viper.GetInt("line_regex.max_continuation_lines"),
		Totals:          viper.GetStringSlice("line_regex.totals"),
		Prefixes:        prefixPattern(viper.GetStringSlice("line_regex.prefixes")),
	}, nil
}

// prefixPattern builds one case-insensitive alternation, longest phrase
// first so "ACH Web Pmt-" wins over "Web Pmt-".
func prefixPattern(prefixes []string) *regexp.Regexp {
	quoted := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	slices.SortStableFunc(quoted, func(a, b string) int { return len(b) - len(a) })
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

// Strategy holds only configuration. Section state lives in each Extract
// call.
type Strategy struct {
	cfg        settings
	classifier common.Classifier
}

func New() (*Strategy, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return &Strategy{cfg: cfg, classifier: common.LoadClassifier()}, nil
}

func (s *Strategy) Name() string { return Name }

type pending struct {
	tx            common.Transaction
	page          int
	continuations int
}

func (s *Strategy) Extract(doc *common.Document) (common.Statement, error) {
	log := doc.Log.With().Str("strategy", Name).Logger()

	statement := common.Statement{
		Source:       doc.Name,
		Year:         doc.Year,
		Strategy:     Name,
		Transactions: []common.Transaction{},
	}
	section := common.NewSectionContext(s.classifier)

	var current *pending
	flush := func() {
		if current == nil {
			return
		}
		tx := current.tx
		tx.Description = s.clean(tx.Description)
		statement.Emit(tx, current.page)
		current = nil
	}

	for page := 0; page < doc.Source.PageCount(); page++ {
		text, err := doc.Source.PageText(page)
		if err != nil {
			return common.Statement{}, fmt.Errorf("line_regex: page %d: %w", page+1, err)
		}

		for _, raw := range strings.Split(text, "\n") {
			line := strings.TrimSpace(raw)
			if line == "" {
				flush()
				continue
			}

			if match := s.cfg.Transaction.FindStringSubmatch(line); match != nil {
				flush()
				if section.Terminal() || section.Sign() == common.SignUnknown {
					continue
				}

				description := strings.Join(strings.Fields(match[3]), " ")
				if common.IsMarker(description, s.cfg.Totals) {
					continue
				}

				date, err := common.NormalizeDate(match[1], doc.Year)
				if err != nil {
					statement.Diagnostics.Drop(page+1, line, err)
					log.Debug().Err(err).Int("page", page+1).Str("line", line).Msg("dropped row")
					continue
				}
				amount, err := common.NormalizeAmount(match[2])
				if err != nil {
					statement.Diagnostics.Drop(page+1, line, err)
					log.Debug().Err(err).Int("page", page+1).Str("line", line).Msg("dropped row")
					continue
				}

				current = &pending{
					tx:   common.NewTransaction(date, amount, section.Sign(), description, Name),
					page: page,
				}
				continue
			}

			if section.Observe(line) {
				flush()
				log.Debug().Int("page", page+1).Stringer("section", section.State()).Str("header", line).Msg("section")
				continue
			}

			if current != nil && current.continuations < s.cfg.MaxContinuation && !s.cfg.RowShape.MatchString(line) {
				current.tx.Description += " " + strings.Join(strings.Fields(line), " ")
				current.continuations++
				continue
			}
			flush()
		}
		flush()
	}

	statement.BeginningBalance = common.ScrapeBeginningBalance(doc.Source)
	statement.EndingBalance = common.ScrapeEndingBalance(doc.Source)

	if len(statement.Transactions) == 0 {
		return common.Statement{}, doc.NoTransactions()
	}
	statement.Finalize()

	log.Debug().Int("transactions", len(statement.Transactions)).Int("dropped", statement.Diagnostics.DroppedRows).Msg("extracted")
	return statement, nil
}

// clean strips the first boilerplate prefix. A description that is nothing
// but boilerplate is kept as is.
func (s *Strategy) clean(description string) string {
	if s.cfg.Prefixes == nil {
		return description
	}
	loc := s.cfg.Prefixes.FindStringIndex(description)
	if loc == nil {
		return description
	}
	cleaned := strings.Join(strings.Fields(description[:loc[0]]+" "+description[loc[1]:]), " ")
	if cleaned == "" {
		return description
	}
	return cleaned
}
