package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aqlanhadi/stmtscan/detector"
	"github.com/aqlanhadi/stmtscan/extractor"
	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/aqlanhadi/stmtscan/extractor/source"
	"github.com/aqlanhadi/stmtscan/output"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var detectOpts struct {
	mode         string
	fuzzy        bool
	merchantOnly bool
	format       string
}

var detectCmd = &cobra.Command{
	Use:   "detect <file.json|file.pdf>",
	Short: "Lists recurring payments",
	Long: `Lists the recurring payments in a transaction list. The input is either JSON
(an array of transactions, or the output of "stmtscan extract") or a
statement, which is extracted first.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(detectOpts.format)
	if err != nil {
		return err
	}
	var mode detector.Mode
	if detectOpts.mode != "" {
		if mode, err = detector.ParseMode(detectOpts.mode); err != nil {
			return err
		}
	}

	txs, err := loadTransactions(args[0])
	if err != nil {
		return err
	}

	d, err := detector.NewFromConfig(detector.Options{
		Mode:         mode,
		Fuzzy:        detectOpts.fuzzy,
		MerchantOnly: detectOpts.merchantOnly,
	})
	if err != nil {
		return err
	}

	candidates := d.Detect(txs)
	log.Debug().Int("transactions", len(txs)).Int("candidates", len(candidates)).Msg("detected")

	if format == output.FormatCSV {
		return (&output.CSVWriter{}).WriteCandidates(cmd.OutOrStdout(), candidates)
	}
	return output.Write(cmd.OutOrStdout(), format, candidates)
}

func loadTransactions(path string) ([]common.Transaction, error) {
	if strings.ToLower(filepath.Ext(path)) != ".json" {
		pipeline, err := extractor.NewPipeline(log.Logger)
		if err != nil {
			return nil, err
		}
		stmt, err := pipeline.ExtractFile(path, source.OptionsFromConfig())
		if err != nil {
			return nil, err
		}
		return stmt.Transactions, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readTransactions(f)
}

// readTransactions accepts a bare array or an object with a "transactions"
// field.
func readTransactions(r io.Reader) ([]common.Transaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var txs []common.Transaction
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		if err := json.Unmarshal(data, &txs); err != nil {
			return nil, fmt.Errorf("decoding transactions: %w", err)
		}
		return txs, nil
	}

	var wrapped struct {
		Transactions []common.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding transactions: %w", err)
	}
	return wrapped.Transactions, nil
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().StringVarP(&detectOpts.mode, "mode", "m", "", "interval band: default, strict or lenient (default from config)")
	detectCmd.Flags().BoolVar(&detectOpts.fuzzy, "fuzzy", false, "group merchants by token set similarity")
	detectCmd.Flags().BoolVar(&detectOpts.merchantOnly, "merchant-only", false, "group by merchant regardless of amount")
	detectCmd.Flags().StringVar(&detectOpts.format, "format", "json", "output format: json, yaml or csv")
}
