package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/loanrules/internal/eligibility"
	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/TimurManjosov/loanrules/internal/store"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// RuleFile is the on-disk layout used by rules export and import.
type RuleFile struct {
	ProgramRules  []rules.ProgramRule  `json:"programRules" yaml:"programRules"`
	DocumentRules []rules.DocumentRule `json:"documentRules" yaml:"documentRules"`
}

// PrintPrograms outputs programs in the given format.
func PrintPrograms(w io.Writer, programs []store.Program, format OutputFormat) error {
	return render(w, format, map[string][]store.Program{"programs": programs}, func() error {
		table := tablewriter.NewWriter(w)
		table.Header("ID", "Name", "Active", "Description", "Updated At")
		for _, p := range programs {
			if err := table.Append(p.ID, p.Name, strconv.FormatBool(p.Active), truncate(p.Description, 40),
				p.UpdatedAt.Format("2006-01-02 15:04")); err != nil {
				return err
			}
		}
		return table.Render()
	})
}

// PrintExclusions outputs which rules excluded which programs.
func PrintExclusions(w io.Writer, excluded map[string][]string, format OutputFormat) error {
	return render(w, format, map[string]any{"excluded": excluded}, func() error {
		table := tablewriter.NewWriter(w)
		table.Header("Program", "Excluded By")
		for _, id := range sortedKeys(excluded) {
			if err := table.Append(id, strings.Join(excluded[id], ", ")); err != nil {
				return err
			}
		}
		return table.Render()
	})
}

// PrintRules outputs a rule file; the table view has one row per rule.
func PrintRules(w io.Writer, rf RuleFile, format OutputFormat) error {
	return render(w, format, rf, func() error {
		table := tablewriter.NewWriter(w)
		table.Header("Kind", "ID", "Combinator", "Conditions", "Outcome")
		for _, r := range rf.ProgramRules {
			if err := table.Append("program", r.ID, string(rules.NormalizeCombinator(r.Combinator)),
				describeConditions(r.Conditions), "exclude "+r.Outcome.ExcludeProgramID); err != nil {
				return err
			}
		}
		for _, r := range rf.DocumentRules {
			if err := table.Append("document", r.ID, string(rules.NormalizeCombinator(r.Combinator)),
				describeConditions(r.Conditions),
				fmt.Sprintf("%s doc %d", r.Outcome.Action, r.Outcome.TargetDocTypeID)); err != nil {
				return err
			}
		}
		return table.Render()
	})
}

// PrintDocumentLogic outputs the hidden and required sets, plus a display
// state for each of docTypeIDs.
func PrintDocumentLogic(w io.Writer, logic eligibility.DocumentLogic, docTypeIDs []int, format OutputFormat) error {
	display := make(map[int]eligibility.DisplayState, len(docTypeIDs))
	for _, id := range docTypeIDs {
		display[id] = logic.DisplayState(id)
	}
	data := map[string]any{
		"hiddenDocTypes":   logic.HiddenDocTypes.Sorted(),
		"requiredDocTypes": logic.RequiredDocTypes.Sorted(),
	}
	if len(display) > 0 {
		data["display"] = display
	}

	return render(w, format, data, func() error {
		table := tablewriter.NewWriter(w)
		table.Header("Doc Type", "Hidden", "Required", "Display")
		for _, id := range unionIDs(logic, docTypeIDs) {
			if err := table.Append(strconv.Itoa(id), strconv.FormatBool(logic.HiddenDocTypes.Has(id)),
				strconv.FormatBool(logic.RequiredDocTypes.Has(id)), string(logic.DisplayState(id))); err != nil {
				return err
			}
		}
		return table.Render()
	})
}

func render(w io.Writer, format OutputFormat, data any, table func() error) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(data)
	case FormatTable, "":
		return table()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func describeConditions(cs []rules.Condition) string {
	if len(cs) == 0 {
		return "(always)"
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		if rules.IsValueless(rules.NormalizeOperator(c.Operator)) {
			parts[i] = fmt.Sprintf("%s %s", c.Field, c.Operator)
		} else {
			parts[i] = fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
		}
	}
	return truncate(strings.Join(parts, "; "), 60)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unionIDs(logic eligibility.DocumentLogic, extra []int) []int {
	set := eligibility.IDSet{}
	for id := range logic.HiddenDocTypes {
		set[id] = struct{}{}
	}
	for id := range logic.RequiredDocTypes {
		set[id] = struct{}{}
	}
	for _, id := range extra {
		set[id] = struct{}{}
	}
	return set.Sorted()
}
