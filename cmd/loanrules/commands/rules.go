package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/loanrules/internal/cli"
)

var (
	exportOutput string
	importDryRun bool
	importForce  bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Export and import rule sets",
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the organization's rules to a file",
	Long: `Export all program and document rules to a YAML or JSON file.

Examples:
  loanrules rules export --org acme --output rules.yaml
  loanrules rules export --org acme --format json > rules.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		rs, err := c.RuleSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch rules: %w", err)
		}
		rf := cli.RuleFile{ProgramRules: rs.ProgramRules, DocumentRules: rs.DocumentRules}

		output := os.Stdout
		if exportOutput != "" && exportOutput != "-" {
			output, err = os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer output.Close()
		}

		// tables don't round-trip, so export defaults to YAML
		outFormat := cli.OutputFormat(format)
		if outFormat == cli.FormatTable {
			outFormat = cli.FormatYAML
		}
		if err := cli.PrintRules(output, rf, outFormat); err != nil {
			return fmt.Errorf("failed to encode rules: %w", err)
		}

		if output != os.Stdout && !quiet {
			fmt.Fprintf(os.Stderr, "Successfully exported %d program rule(s) and %d document rule(s) to %s (etag %s)\n",
				len(rf.ProgramRules), len(rf.DocumentRules), exportOutput, rs.ETag)
		}
		return nil
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import rules from a file",
	Long: `Import program and document rules from a YAML or JSON file. Rules with
an existing id are replaced. Every rule is validated before anything is sent.

Examples:
  loanrules rules import rules.yaml --org acme
  loanrules rules import rules.yaml --org acme --dry-run
  loanrules rules import rules.yaml --org acme --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rf, err := cli.LoadRuleFile(args[0])
		if err != nil {
			return err
		}
		total := len(rf.ProgramRules) + len(rf.DocumentRules)
		if total == 0 {
			return fmt.Errorf("no rules found in file")
		}

		if importDryRun {
			fmt.Printf("Dry run mode - %d rule(s) are valid and would be imported:\n", total)
			return cli.PrintRules(os.Stdout, rf, cli.FormatTable)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		successCount, errorCount := 0, 0
		report := func(kind, id string, err error) error {
			if err == nil {
				successCount++
				if verbose {
					fmt.Printf("Imported %s rule: %s\n", kind, id)
				}
				return nil
			}
			errorCount++
			fmt.Fprintf(os.Stderr, "Failed to import %s rule '%s': %v\n", kind, id, err)
			if !importForce {
				return fmt.Errorf("import failed, use --force to continue on errors")
			}
			return nil
		}

		for _, r := range rf.ProgramRules {
			_, err := c.UpsertProgramRule(ctx, r)
			if err := report("program", r.ID, err); err != nil {
				return err
			}
		}
		for _, r := range rf.DocumentRules {
			_, err := c.UpsertDocumentRule(ctx, r)
			if err := report("document", r.ID, err); err != nil {
				return err
			}
		}

		if !quiet {
			fmt.Printf("Import complete: %d succeeded, %d failed\n", successCount, errorCount)
		}
		if errorCount > 0 {
			return fmt.Errorf("import completed with errors")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesExportCmd)
	rulesCmd.AddCommand(rulesImportCmd)

	rulesExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	rulesImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate without importing")
	rulesImportCmd.Flags().BoolVar(&importForce, "force", false, "Continue on errors")
}
