package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/caseflow-systems/caseflow-import/internal/seeder"
)

var (
	seedFormat    string
	seedCount     int
	seedSeed      int64
	seedEmptyRate float64
	seedOutput    string
	seedDelimiter string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate sample source files",
	Long: `Generate realistic sample CSVs for testing mapping configurations.

Examples:
  # 200 case rows to stdout
  importctl seed --count 200

  # Partner export format with 10% empty optional fields
  importctl seed --format partner --empty-rate 0.1 -o partner.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := openOutput(seedOutput)
		if err != nil {
			return err
		}
		defer out.Close()

		opts := seeder.Options{
			Format:    seedFormat,
			Count:     seedCount,
			Seed:      seedSeed,
			EmptyRate: seedEmptyRate,
		}
		if seedDelimiter == "semicolon" {
			opts.Delimiter = ';'
		}
		return seeder.WriteCSV(out, opts)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFormat, "format", "cases", "sample format: cases or partner")
	seedCmd.Flags().IntVar(&seedCount, "count", 50, "number of rows to generate")
	seedCmd.Flags().Int64Var(&seedSeed, "seed", time.Now().UnixNano(), "random seed for reproducible output")
	seedCmd.Flags().Float64Var(&seedEmptyRate, "empty-rate", 0, "fraction of optional fields left empty (0..1)")
	seedCmd.Flags().StringVar(&seedDelimiter, "delimiter", "comma", "csv delimiter: comma or semicolon")
	seedCmd.Flags().StringVarP(&seedOutput, "output", "o", "-", "output file (default stdout)")

	rootCmd.AddCommand(seedCmd)
}
