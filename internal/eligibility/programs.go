// Package eligibility applies rule outcomes to the two call-sites of the
// evaluator: loan program filtering and document hide/require logic.
//
// Failure policy differs on purpose between the layers. A condition that
// cannot be evaluated never matches (engine package), while a rule set that
// cannot be fetched leaves programs unfiltered and documents unconstrained.
package eligibility

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/loanrules/internal/engine"
	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/TimurManjosov/loanrules/internal/store"
	"github.com/TimurManjosov/loanrules/internal/telemetry"
)

// ProgramRuleSource fetches the current program rules for an organization.
type ProgramRuleSource interface {
	ProgramRules(ctx context.Context, orgID string) ([]rules.ProgramRule, error)
}

// ProgramResult is the outcome of filtering one candidate list.
type ProgramResult struct {
	Programs []store.Program `json:"programs"`
	// Excluded maps each excluded program id to the rules that excluded it.
	Excluded     map[string][]string `json:"excluded"`
	RulesApplied int                 `json:"rulesApplied"`
	// FailedOpen is set when the rule fetch failed and Programs is the input list.
	FailedOpen bool `json:"failedOpen,omitempty"`
}

// ResolveExclusions evaluates program rules in order and returns the set of
// excluded program ids, each with the ids of the matching rules. Exclusion is
// monotonic: nothing can re-include a program once a rule excluded it.
func ResolveExclusions(rs []rules.ProgramRule, inputs rules.Inputs) map[string][]string {
	excluded := make(map[string][]string)
	engine.Resolve(rs, inputs, func(r rules.ProgramRule) {
		id := r.Outcome.ExcludeProgramID
		excluded[id] = append(excluded[id], r.ID)
	})
	return excluded
}

// FilterPrograms returns the candidates not excluded by any matching rule,
// preserving order. With no rules the input slice is returned as-is.
func FilterPrograms(programs []store.Program, rs []rules.ProgramRule, inputs rules.Inputs) []store.Program {
	if len(rs) == 0 {
		return programs
	}
	return applyExclusions(programs, ResolveExclusions(rs, inputs))
}

func applyExclusions(programs []store.Program, excluded map[string][]string) []store.Program {
	if len(excluded) == 0 {
		return programs
	}
	eligible := make([]store.Program, 0, len(programs))
	for _, p := range programs {
		if _, ok := excluded[p.ID]; ok {
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}

// ProgramFilter filters candidate programs with rules fetched from a source.
type ProgramFilter struct {
	source ProgramRuleSource
	log    zerolog.Logger
}

// NewProgramFilter creates a filter reading rules from source.
func NewProgramFilter(source ProgramRuleSource, log zerolog.Logger) *ProgramFilter {
	return &ProgramFilter{source: source, log: log.With().Str("component", "program_filter").Logger()}
}

// FilterProgramsByConditions returns the eligible subset of programs for the
// given inputs. The original list is returned unchanged when the organization
// has no program rules or when the rules cannot be fetched.
func (f *ProgramFilter) FilterProgramsByConditions(ctx context.Context, orgID string, programs []store.Program, inputs rules.Inputs) []store.Program {
	return f.Evaluate(ctx, orgID, programs, inputs).Programs
}

// Evaluate is FilterProgramsByConditions with exclusion details.
func (f *ProgramFilter) Evaluate(ctx context.Context, orgID string, programs []store.Program, inputs rules.Inputs) ProgramResult {
	result := ProgramResult{Programs: programs, Excluded: map[string][]string{}}

	rs, err := f.source.ProgramRules(ctx, orgID)
	if err != nil {
		telemetry.RuleFetchFailures.WithLabelValues(telemetry.KindProgram).Inc()
		f.log.Warn().Err(err).Str("org_id", orgID).Int("programs", len(programs)).
			Msg("program rules unavailable, returning unfiltered programs")
		result.FailedOpen = true
		return result
	}

	telemetry.Evaluations.WithLabelValues(telemetry.KindProgram).Inc()
	if len(rs) == 0 {
		return result
	}

	result.Excluded = ResolveExclusions(rs, inputs)
	result.Programs = applyExclusions(programs, result.Excluded)
	result.RulesApplied = len(rs)

	f.log.Debug().Str("org_id", orgID).Int("rules", len(rs)).
		Int("candidates", len(programs)).Int("eligible", len(result.Programs)).
		Msg("programs filtered")
	return result
}
