package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/aqlanhadi/stmtscan/extractor/line_regex"
	"github.com/aqlanhadi/stmtscan/extractor/source"
	"github.com/aqlanhadi/stmtscan/extractor/spatial"
	"github.com/aqlanhadi/stmtscan/extractor/table_structure"
	"github.com/aqlanhadi/stmtscan/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Auto selects every built-in strategy in fallback order.
const Auto = "auto"

// StrategyNames is the fallback order used by Auto.
var StrategyNames = []string{line_regex.Name, table_structure.Name, spatial.Name}

// NewStrategy builds a strategy from the current configuration.
func NewStrategy(name string) (common.Strategy, error) {
	switch name {
	case line_regex.Name:
		return line_regex.New()
	case table_structure.Name:
		return table_structure.New()
	case spatial.Name:
		return spatial.New()
	default:
		return nil, fmt.Errorf("unknown strategy %q (want %s or %s)", name, Auto, strings.Join(StrategyNames, ", "))
	}
}

// Pipeline tries its strategies in order and keeps the first that finds
// transactions.
type Pipeline struct {
	Strategies []common.Strategy
	Now        func() time.Time
	Log        zerolog.Logger
}

// NewPipeline builds the named strategies. No names, or "auto", means all of
// them in the default order.
func NewPipeline(log zerolog.Logger, names ...string) (*Pipeline, error) {
	if len(names) == 0 || (len(names) == 1 && (names[0] == Auto || names[0] == "")) {
		names = StrategyNames
	}

	p := &Pipeline{Now: time.Now, Log: log}
	for _, name := range names {
		s, err := NewStrategy(name)
		if err != nil {
			return nil, err
		}
		p.Strategies = append(p.Strategies, s)
	}
	return p, nil
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Extract runs the fallback over one document. A document without pages or
// one the source cannot read stops the run; a strategy that finds nothing
// hands over to the next one.
func (p *Pipeline) Extract(name string, src common.Source) (common.Statement, error) {
	return p.extract(name, src, p.Log)
}

func (p *Pipeline) extract(name string, src common.Source, log zerolog.Logger) (common.Statement, error) {
	base, err := common.NewDocument(name, src, p.now(), log)
	if err != nil {
		return common.Statement{}, err
	}
	log.Debug().Int("pages", src.PageCount()).Int("year", base.Year).Msg("document opened")

	for _, strategy := range p.Strategies {
		doc := *base
		start := time.Now()
		statement, err := strategy.Extract(&doc)
		attempt := log.With().Str("strategy", strategy.Name()).Dur("elapsed", time.Since(start)).Logger()
		switch {
		case err == nil && len(statement.Transactions) > 0:
			attempt.Info().
				Int("transactions", len(statement.Transactions)).
				Int("dropped_rows", statement.Diagnostics.DroppedRows).
				Msg("extracted")
			logBalance(attempt, statement)
			return statement, nil
		case errors.Is(err, common.ErrSourceRead):
			return common.Statement{}, err
		case err != nil && !errors.Is(err, common.ErrNoTransactionsFound):
			attempt.Warn().Err(err).Msg("strategy failed")
		default:
			attempt.Debug().Msg("no transactions, falling back")
		}
	}

	return common.Statement{}, base.NoTransactions()
}

func logBalance(log zerolog.Logger, statement common.Statement) {
	calculated, matches, known := statement.Reconcile()
	switch {
	case !known:
		log.Debug().Msg("balances not found, skipping ending balance check")
	case matches:
		log.Info().Stringer("ending_balance", statement.EndingBalance).Msg("ending balance matches")
	default:
		log.Warn().
			Stringer("calculated", calculated).
			Stringer("statement", statement.EndingBalance).
			Msg("ending balance mismatch")
	}
}

// ExtractFile opens path with the backend opts selects and extracts it. The
// statement source is the file name without its extension.
func (p *Pipeline) ExtractFile(path string, opts source.Options) (common.Statement, error) {
	return p.extractFile(path, opts, p.Log)
}

func (p *Pipeline) extractFile(path string, opts source.Options, log zerolog.Logger) (common.Statement, error) {
	src, err := source.Open(path, opts)
	if err != nil {
		return common.Statement{}, err
	}
	return p.extract(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), src, log)
}

// FileResult is the outcome for one file of a batch.
type FileResult struct {
	Path      string            `json:"path" yaml:"path"`
	RunID     string            `json:"run_id" yaml:"run_id"`
	Statement *common.Statement `json:"statement,omitempty" yaml:"statement,omitempty"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
	Err       error             `json:"-" yaml:"-"`
}

// ExtractPaths extracts every path with at most workers files in flight.
// Results are in the order of paths and one failing file does not stop the
// others. Cancelling ctx marks files that have not started as failed.
func (p *Pipeline) ExtractPaths(ctx context.Context, paths []string, workers int, opts source.Options) []FileResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]FileResult, len(paths))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			result := FileResult{Path: path, RunID: uuid.NewString()}
			log := logger.WithFields(p.Log, map[string]interface{}{"run_id": result.RunID, "file": path})

			if err := ctx.Err(); err != nil {
				result.Err = err
			} else if statement, err := p.extractFile(path, opts, log); err != nil {
				result.Err = err
			} else {
				result.Statement = &statement
			}

			if result.Err != nil {
				result.Error = result.Err.Error()
				log.Warn().Err(result.Err).Msg("extraction failed")
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// CollectFiles expands a directory into the statement files directly inside
// it, sorted by name. Any other path is returned as is.
func CollectFiles(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".pdf", ".txt":
			files = append(files, filepath.Join(target, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

// CreateFinalOutput shapes a statement for printing: only the transactions,
// only the summary, or everything.
func CreateFinalOutput(stmt common.Statement, transactionOnly, statementOnly bool) interface{} {
	if transactionOnly {
		return stmt.Transactions
	}

	output := map[string]interface{}{
		"source":       stmt.Source,
		"year":         stmt.Year,
		"strategy":     stmt.Strategy,
		"total_credit": stmt.TotalCredit,
		"total_debit":  stmt.TotalDebit,
		"nett":         stmt.Nett,
		"diagnostics":  stmt.Diagnostics,
	}

	if stmt.BeginningBalance != nil {
		output["beginning_balance"] = *stmt.BeginningBalance
	}
	if stmt.EndingBalance != nil {
		output["ending_balance"] = *stmt.EndingBalance
	}
	if stmt.TransactionStartDate != "" {
		output["transaction_start_date"] = stmt.TransactionStartDate
		output["transaction_end_date"] = stmt.TransactionEndDate
	}
	if !statementOnly {
		output["transactions"] = stmt.Transactions
	}

	return output
}
