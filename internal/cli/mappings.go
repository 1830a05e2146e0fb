package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Manage field mapping sets",
}

var mappingsValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a mapping file locally",
	Long:  "Check a mapping file against the target schema without contacting the server. Unknown tables or fields are errors; type mismatches are warnings.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadMappingFile(args[0])
		if err != nil {
			return err
		}
		issues, err := set.Validate(schema.Default())
		for _, issue := range issues {
			kind := "error"
			if issue.Warning {
				kind = "warning"
			}
			fmt.Printf("%s: %s: %s\n", kind, issue.SourceField, issue.Message)
		}
		if err != nil {
			return fmt.Errorf("mapping file is invalid")
		}
		fmt.Printf("OK: %d field mappings\n", len(set))
		return nil
	},
}

var mappingsPushCmd = &cobra.Command{
	Use:   "push <source-id> <file>",
	Short: "Upload a mapping file for a source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadMappingFile(args[1])
		if err != nil {
			return err
		}
		var out map[string]any
		if err := newClient().putJSON("/api/v1/mappings/"+args[0], set, &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var mappingsShowCmd = &cobra.Command{
	Use:   "show <source-id>",
	Short: "Show the stored mapping set for a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := newClient().getJSON("/api/v1/mappings/"+args[0], &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	mappingsCmd.AddCommand(mappingsValidateCmd, mappingsPushCmd, mappingsShowCmd)
	rootCmd.AddCommand(mappingsCmd)
}
