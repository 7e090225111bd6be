package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/aqlanhadi/stmtscan/extractor/source"
	"github.com/spf13/cobra"
)

var textCmd = &cobra.Command{
	Use:   "text <file>",
	Short: "Dumps the text and tables stmtscan sees in a statement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := source.Open(args[0], source.OptionsFromConfig())
		if err != nil {
			return err
		}
		return dumpSource(cmd.OutOrStdout(), src)
	},
}

func dumpSource(out io.Writer, src common.Source) error {
	for i := 0; i < src.PageCount(); i++ {
		text, err := src.PageText(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "=== page %d ===\n%s\n", i+1, text)

		tables, err := src.PageTables(i)
		if err != nil {
			return err
		}
		for n, table := range tables {
			fmt.Fprintf(out, "--- table %d", n+1)
			if table.Bounds != nil {
				b := table.Bounds
				fmt.Fprintf(out, " [%.0f,%.0f %.0f,%.0f]", b.Left, b.Top, b.Right, b.Bottom)
			}
			fmt.Fprintln(out, " ---")
			for _, row := range table.Rows {
				fmt.Fprintln(out, strings.Join(row, " | "))
			}
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(textCmd)
}
