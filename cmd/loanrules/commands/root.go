package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/loanrules/internal/cli"
	"github.com/TimurManjosov/loanrules/internal/client"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	orgID   string
	profile string
	format  string
	quiet   bool
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "loanrules",
	Short: "CLI tool for loan program and document eligibility rules",
	Long: `Loanrules manages and evaluates the eligibility rules that exclude loan
programs and hide or require document types.

It talks to a loanrules server for live data, and can also evaluate rule
files offline.

Examples:
  loanrules programs list --org acme
  loanrules programs eligible --org acme --set state=NY --set fico=680
  loanrules rules export --org acme -o rules.yaml
  loanrules rules import rules.yaml --org staging-acme
  loanrules eval documents --rules rules.yaml --set selfEmployed=true --doc 5 --doc 7`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the loanrules API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key (needed for writes)")
	rootCmd.PersistentFlags().StringVar(&orgID, "org", "", "Organization id")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Profile from ~/.loanrules/config.yaml")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}

// newClient resolves connection settings and builds an API client.
func newClient() (*client.Client, error) {
	p, err := cli.ResolveProfile(profile, cli.Profile{BaseURL: baseURL, APIKey: apiKey, OrgID: orgID})
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Using %s (org %s)\n", p.BaseURL, p.OrgID)
	}
	return client.NewClient(p.BaseURL, p.APIKey, p.OrgID), nil
}
