// Package engine evaluates eligibility rules against an input value bag.
// Everything here is pure: no I/O, no shared state, no errors. Malformed
// conditions degrade to "does not match".
package engine

import (
	"github.com/TimurManjosov/loanrules/internal/rules"
)

// RuleMatches reports whether the rule applies to inputs. A rule without
// conditions always applies. Conditions are checked in declaration order and
// evaluation stops at the first one that decides the result.
func RuleMatches[O any](rule rules.Rule[O], inputs rules.Inputs) bool {
	if len(rule.Conditions) == 0 {
		return true
	}

	switch rules.NormalizeCombinator(rule.Combinator) {
	case rules.CombinatorAnd:
		for _, c := range rule.Conditions {
			if !EvaluateCondition(c, inputs) {
				return false
			}
		}
		return true
	case rules.CombinatorOr:
		for _, c := range rule.Conditions {
			if EvaluateCondition(c, inputs) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Resolve calls apply for every rule that matches inputs, in input order.
// It returns the number of matching rules.
func Resolve[O any](rs []rules.Rule[O], inputs rules.Inputs, apply func(rules.Rule[O])) int {
	matched := 0
	for _, rule := range rs {
		if !RuleMatches(rule, inputs) {
			continue
		}
		matched++
		apply(rule)
	}
	return matched
}

// ConditionResult is the outcome of one condition, for diagnostics.
type ConditionResult struct {
	Index     int             `json:"index"`
	Condition rules.Condition `json:"condition"`
	Matched   bool            `json:"matched"`
}

// Explain evaluates every condition of the rule without short-circuiting and
// reports each result alongside the overall match.
func Explain[O any](rule rules.Rule[O], inputs rules.Inputs) (bool, []ConditionResult) {
	results := make([]ConditionResult, 0, len(rule.Conditions))
	for i, c := range rule.Conditions {
		results = append(results, ConditionResult{
			Index:     i,
			Condition: c,
			Matched:   EvaluateCondition(c, inputs),
		})
	}
	return RuleMatches(rule, inputs), results
}
