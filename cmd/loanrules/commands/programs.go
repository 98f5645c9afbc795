package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/loanrules/internal/cli"
	"github.com/TimurManjosov/loanrules/internal/rules"
)

var (
	programsInputsFile string
	programsSet        []string
	eligibleExplain    bool
)

var programsCmd = &cobra.Command{
	Use:   "programs",
	Short: "List and check loan programs",
}

var programsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active programs, optionally filtered by deal inputs",
	Long: `List the organization's active programs. With --inputs or --set, programs
excluded by a matching rule are left out.

Examples:
  loanrules programs list --org acme
  loanrules programs list --org acme --set state=NY --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var inputs rules.Inputs
		if programsInputsFile != "" || len(programsSet) > 0 {
			if inputs, err = cli.LoadInputs(programsInputsFile, programsSet); err != nil {
				return err
			}
		}

		programs, err := c.ListPrograms(cmd.Context(), inputs)
		if err != nil {
			return fmt.Errorf("failed to list programs: %w", err)
		}

		if quiet {
			return nil
		}
		if len(programs) == 0 {
			fmt.Println("No programs found")
			return nil
		}
		return cli.PrintPrograms(os.Stdout, programs, cli.OutputFormat(format))
	},
}

var programsEligibleCmd = &cobra.Command{
	Use:   "eligible",
	Short: "Show eligible programs and why the rest were excluded",
	Long: `Evaluate the organization's program rules against deal inputs on the server.

Examples:
  loanrules programs eligible --org acme --inputs deal.yaml
  loanrules programs eligible --org acme --set fico=610 --explain`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		inputs, err := cli.LoadInputs(programsInputsFile, programsSet)
		if err != nil {
			return err
		}

		result, err := c.EligiblePrograms(cmd.Context(), inputs)
		if err != nil {
			return fmt.Errorf("failed to evaluate programs: %w", err)
		}

		if quiet {
			return nil
		}
		if result.FailedOpen {
			fmt.Fprintln(os.Stderr, "Warning: rules were unavailable, showing all active programs")
		}
		if err := cli.PrintPrograms(os.Stdout, result.Programs, cli.OutputFormat(format)); err != nil {
			return err
		}
		if eligibleExplain && len(result.Excluded) > 0 {
			return cli.PrintExclusions(os.Stdout, result.Excluded, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(programsCmd)
	programsCmd.AddCommand(programsListCmd)
	programsCmd.AddCommand(programsEligibleCmd)

	for _, c := range []*cobra.Command{programsListCmd, programsEligibleCmd} {
		c.Flags().StringVar(&programsInputsFile, "inputs", "", "YAML or JSON file with deal inputs")
		c.Flags().StringArrayVar(&programsSet, "set", nil, "Deal input as key=value (repeatable)")
	}
	programsEligibleCmd.Flags().BoolVar(&eligibleExplain, "explain", false, "Also list excluded programs and the rules that excluded them")
}
