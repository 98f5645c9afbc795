package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/loanrules/internal/cli"
	"github.com/TimurManjosov/loanrules/internal/eligibility"
	"github.com/TimurManjosov/loanrules/internal/engine"
	"github.com/TimurManjosov/loanrules/internal/store"
)

var (
	evalRulesFile    string
	evalProgramsFile string
	evalInputsFile   string
	evalSet          []string
	evalDocs         []int
	evalExplain      bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate rule files offline",
	Long: `Evaluate a rule file against deal inputs without a server. Useful for
checking rules before importing them.`,
}

var evalProgramsCmd = &cobra.Command{
	Use:   "programs",
	Short: "Filter a program list with a rule file",
	Long: `Examples:
  loanrules eval programs --rules rules.yaml --programs programs.yaml --set state=NY
  loanrules eval programs --rules rules.yaml --programs programs.yaml --inputs deal.json --explain`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rf, err := cli.LoadRuleFile(evalRulesFile)
		if err != nil {
			return err
		}
		programs, err := cli.LoadPrograms(evalProgramsFile)
		if err != nil {
			return err
		}
		inputs, err := cli.LoadInputs(evalInputsFile, evalSet)
		if err != nil {
			return err
		}

		active := store.ActivePrograms(programs)
		eligible := eligibility.FilterPrograms(active, rf.ProgramRules, inputs)

		if evalExplain {
			for _, r := range rf.ProgramRules {
				matched, results := engine.Explain(r, inputs)
				fmt.Fprintf(os.Stderr, "rule %s (exclude %s): matched=%v\n", r.ID, r.Outcome.ExcludeProgramID, matched)
				for _, res := range results {
					fmt.Fprintf(os.Stderr, "  [%d] %s %s %v -> %v\n",
						res.Index, res.Condition.Field, res.Condition.Operator, res.Condition.Value, res.Matched)
				}
			}
		}

		if quiet {
			return nil
		}
		if len(eligible) == 0 {
			fmt.Println("No eligible programs")
			return nil
		}
		return cli.PrintPrograms(os.Stdout, eligible, cli.OutputFormat(format))
	},
}

var evalDocumentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Compute hidden and required document types from a rule file",
	Long: `Examples:
  loanrules eval documents --rules rules.yaml --set selfEmployed=true
  loanrules eval documents --rules rules.yaml --inputs deal.yaml --doc 5 --doc 7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rf, err := cli.LoadRuleFile(evalRulesFile)
		if err != nil {
			return err
		}
		values, err := cli.LoadInputs(evalInputsFile, evalSet)
		if err != nil {
			return err
		}

		logic := eligibility.EvaluateDocumentRules(rf.DocumentRules, values)
		if quiet {
			return nil
		}
		return cli.PrintDocumentLogic(os.Stdout, logic, evalDocs, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.AddCommand(evalProgramsCmd)
	evalCmd.AddCommand(evalDocumentsCmd)

	for _, c := range []*cobra.Command{evalProgramsCmd, evalDocumentsCmd} {
		c.Flags().StringVar(&evalRulesFile, "rules", "", "YAML or JSON rule file")
		c.Flags().StringVar(&evalInputsFile, "inputs", "", "YAML or JSON file with deal inputs")
		c.Flags().StringArrayVar(&evalSet, "set", nil, "Input as key=value (repeatable)")
		_ = c.MarkFlagRequired("rules")
	}
	evalProgramsCmd.Flags().StringVar(&evalProgramsFile, "programs", "", "YAML or JSON file with a programs list")
	evalProgramsCmd.Flags().BoolVar(&evalExplain, "explain", false, "Print each rule's condition results to stderr")
	_ = evalProgramsCmd.MarkFlagRequired("programs")
	evalDocumentsCmd.Flags().IntSliceVar(&evalDocs, "doc", nil, "Document type id to show a display state for (repeatable)")
}
