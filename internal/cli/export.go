package cli

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportFrom       string
	exportTo         string
	exportFinancials bool
	exportOutput     string
	exportDelimiter  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download case exports",
}

var exportCasesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Export cases with their contacts as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if exportFrom != "" {
			q.Set("from", exportFrom)
		}
		if exportTo != "" {
			q.Set("to", exportTo)
		}
		if exportFinancials {
			q.Set("financials", "true")
		}
		if exportDelimiter == "semicolon" {
			q.Set("delimiter", "semicolon")
		}

		out, err := openOutput(exportOutput)
		if err != nil {
			return err
		}
		defer out.Close()

		path := "/api/v1/export/cases"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		return newClient().download(path, out)
	},
}

var templateCmd = &cobra.Command{
	Use:   "template <name>",
	Short: "Download a blank import template (cases, contacts, partner)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := openOutput(exportOutput)
		if err != nil {
			return err
		}
		defer out.Close()
		return newClient().download("/api/v1/templates/"+url.PathEscape(args[0]), out)
	},
}

func openOutput(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

func init() {
	exportCasesCmd.Flags().StringVar(&exportFrom, "from", "", "opened_at lower bound (YYYY-MM-DD)")
	exportCasesCmd.Flags().StringVar(&exportTo, "to", "", "opened_at upper bound (YYYY-MM-DD)")
	exportCasesCmd.Flags().BoolVar(&exportFinancials, "financials", false, "include financial records")
	exportCasesCmd.Flags().StringVar(&exportDelimiter, "delimiter", "comma", "csv delimiter: comma or semicolon")
	exportCasesCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "output file (default stdout)")
	templateCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "output file (default stdout)")

	exportCmd.AddCommand(exportCasesCmd)
	rootCmd.AddCommand(exportCmd, templateCmd)
}
