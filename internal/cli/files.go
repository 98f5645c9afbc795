package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/TimurManjosov/loanrules/internal/store"
)

// LoadRuleFile reads a YAML or JSON rule file and validates every rule in it.
// All validation problems are reported together.
func LoadRuleFile(path string) (RuleFile, error) {
	var rf RuleFile
	if err := readYAML(path, &rf); err != nil {
		return RuleFile{}, err
	}

	var errs []error
	for _, r := range rf.ProgramRules {
		if err := rules.ValidateProgramRule(r); err != nil {
			errs = append(errs, fmt.Errorf("program rule %q: %w", r.ID, err))
		}
	}
	for _, r := range rf.DocumentRules {
		if err := rules.ValidateDocumentRule(r); err != nil {
			errs = append(errs, fmt.Errorf("document rule %q: %w", r.ID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return RuleFile{}, err
	}
	return rf, nil
}

// LoadPrograms reads a YAML or JSON file with a top-level "programs" list.
func LoadPrograms(path string) ([]store.Program, error) {
	var pf struct {
		Programs []store.Program `yaml:"programs"`
	}
	if err := readYAML(path, &pf); err != nil {
		return nil, err
	}
	return pf.Programs, nil
}

// LoadInputs reads an input map from a YAML or JSON file, then applies
// key=value overrides. Override values are parsed as YAML scalars, so
// "fico=700" is a number and "selfEmployed=true" a bool.
func LoadInputs(path string, overrides []string) (rules.Inputs, error) {
	inputs := rules.Inputs{}
	if path != "" {
		if err := readYAML(path, &inputs); err != nil {
			return nil, err
		}
	}

	for _, kv := range overrides {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", kv)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		inputs[strings.TrimSpace(key)] = v
	}
	return inputs, nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
