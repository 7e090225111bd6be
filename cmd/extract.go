package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/aqlanhadi/stmtscan/detector"
	"github.com/aqlanhadi/stmtscan/extractor"
	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/aqlanhadi/stmtscan/extractor/source"
	"github.com/aqlanhadi/stmtscan/output"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type extractFlags struct {
	format          string
	strategy        string
	workers         int
	detect          bool
	transactionOnly bool
	statementOnly   bool
}

var extractOpts extractFlags

var extractCmd = &cobra.Command{
	Use:   "extract [file|dir]",
	Short: "Extracts statement(s)",
	Long: `Extracts a given statement, or every PDF and text statement in a directory.
Each file goes through the line, table and spatial strategies in turn until
one of them finds transactions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("target", args[0])
	}
	target := viper.GetString("target")

	format, err := output.ParseFormat(extractOpts.format)
	if err != nil {
		return err
	}

	files, err := extractor.CollectFiles(target)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", target, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no statements found in %s", target)
	}
	log.Debug().Str("target", target).Int("files", len(files)).Msg("scanning")

	pipeline, err := extractor.NewPipeline(log.Logger, extractOpts.strategy)
	if err != nil {
		return err
	}

	var d *detector.Detector
	if extractOpts.detect {
		if d, err = detector.NewFromConfig(detector.Options{}); err != nil {
			return err
		}
	}

	results := pipeline.ExtractPaths(contextOrBackground(cmd.Context()), files, extractOpts.workers, source.OptionsFromConfig())
	out := cmd.OutOrStdout()

	if len(results) == 1 {
		if results[0].Err != nil {
			return results[0].Err
		}
		return writeStatement(out, format, *results[0].Statement, d)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if err := writeBatch(out, format, results, d); err != nil {
		return err
	}
	if failed == len(results) {
		return fmt.Errorf("all %d files failed", failed)
	}
	return nil
}

// writeStatement prints one statement, and its candidates when d is set.
func writeStatement(out io.Writer, format output.Format, stmt common.Statement, d *detector.Detector) error {
	if format == output.FormatCSV {
		w := &output.CSVWriter{IncludeHeader: !extractOpts.transactionOnly}
		if err := w.WriteStatement(out, stmt); err != nil {
			return err
		}
		if d == nil {
			return nil
		}
		fmt.Fprintln(out)
		return w.WriteCandidates(out, d.Detect(stmt.Transactions))
	}

	result := extractor.CreateFinalOutput(stmt, extractOpts.transactionOnly, extractOpts.statementOnly)
	if d != nil {
		result = map[string]interface{}{
			"statement": result,
			"recurring": d.Detect(stmt.Transactions),
		}
	}
	return output.Write(out, format, result)
}

func writeBatch(out io.Writer, format output.Format, results []extractor.FileResult, d *detector.Detector) error {
	if format == output.FormatCSV {
		for i, r := range results {
			if r.Err != nil {
				continue
			}
			if i > 0 {
				fmt.Fprintln(out)
			}
			if err := writeStatement(out, format, *r.Statement, d); err != nil {
				return err
			}
		}
		return nil
	}

	var all []common.Transaction
	for _, r := range results {
		if r.Statement != nil {
			all = append(all, r.Statement.Transactions...)
		}
	}

	report := map[string]interface{}{"files": results}
	if d != nil {
		report["recurring"] = d.Detect(all)
	}
	return output.Write(out, format, report)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringP("folder", "f", ".", "File or folder in which stmtscan will scan for statements")
	viper.BindPFlag("target", extractCmd.Flags().Lookup("folder"))

	extractCmd.Flags().StringVar(&extractOpts.format, "format", "json", "output format: json, yaml or csv")
	extractCmd.Flags().StringVarP(&extractOpts.strategy, "strategy", "s", extractor.Auto, "auto, line_regex, table_structure or spatial")
	extractCmd.Flags().IntVarP(&extractOpts.workers, "workers", "w", 0, "files extracted in parallel (default: number of CPUs)")
	extractCmd.Flags().BoolVar(&extractOpts.detect, "detect", false, "also report recurring payments")
	extractCmd.Flags().BoolVar(&extractOpts.transactionOnly, "transactions-only", false, "print only the transactions")
	extractCmd.Flags().BoolVar(&extractOpts.statementOnly, "statement-only", false, "print only the statement summary")
}
