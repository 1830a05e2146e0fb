package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/caseflow-systems/caseflow-import/internal/mapping"
)

var (
	importSourceID   string
	importSourceType string
	importMappings   string
	importMaxRows    int
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Detect fields in a source file",
	Long:  "Upload a CSV and print the detected fields, inferred types, and suggested mappings without importing anything.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFileImport(args[0], "/api/v1/imports/detect")
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Preview an import without writing anything",
	Long:  "Run the configured mappings over a sample of rows and print how each row would land, including validation errors. No database write happens.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFileImport(args[0], "/api/v1/imports/preview")
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Run a full import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFileImport(args[0], "/api/v1/imports/process")
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent import runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := newClient().getJSON("/api/v1/imports/history", &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <source-id>",
	Short: "Trigger a pull sync for a configured source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		body := map[string]string{"source_id": args[0]}
		if err := newClient().postJSON("/api/v1/sync/airtable", body, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

func runFileImport(path, endpoint string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	body := map[string]any{
		"source_id":   importSourceID,
		"source_type": importSourceType,
		"csv":         string(data),
	}
	if importMaxRows > 0 {
		body["max_rows"] = importMaxRows
	}
	if importMappings != "" {
		set, err := loadMappingFile(importMappings)
		if err != nil {
			return err
		}
		body["mappings"] = set
	}

	var out json.RawMessage
	if err := newClient().postJSON(endpoint, body, &out); err != nil {
		return err
	}
	var pretty any
	if err := json.Unmarshal(out, &pretty); err != nil {
		return err
	}
	return printJSON(pretty)
}

// loadMappingFile reads a mapping set from YAML or JSON.
func loadMappingFile(path string) (mapping.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var set mapping.Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	return set, nil
}

func init() {
	for _, c := range []*cobra.Command{detectCmd, previewCmd, importCmd} {
		c.Flags().StringVar(&importSourceID, "source-id", "", "source identifier (uses its stored mappings when --mappings is omitted)")
		c.Flags().StringVar(&importSourceType, "type", "csv", "source type: csv or partner")
		c.Flags().StringVar(&importMappings, "mappings", "", "mapping file (YAML or JSON)")
	}
	previewCmd.Flags().IntVar(&importMaxRows, "rows", 0, "number of rows to preview (default 5, max 100)")

	rootCmd.AddCommand(detectCmd, previewCmd, importCmd, historyCmd, syncCmd)
}
