package engine

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/TimurManjosov/loanrules/internal/rules"
)

func TestOperatorHandlers(t *testing.T) {
	tests := []struct {
		name       string
		op         rules.Operator
		inputValue any
		ruleValue  any
		want       bool
	}{
		{name: "equals string", op: rules.OpEquals, inputValue: "NY", ruleValue: "NY", want: true},
		{name: "equals is case sensitive", op: rules.OpEquals, inputValue: "ny", ruleValue: "NY", want: false},
		{name: "equals number vs string", op: rules.OpEquals, inputValue: "680", ruleValue: 680, want: true},
		{name: "equals float vs int", op: rules.OpEquals, inputValue: 680.0, ruleValue: 680, want: true},
		{name: "equals json number", op: rules.OpEquals, inputValue: json.Number("30"), ruleValue: "30", want: true},
		{name: "equals bool vs string", op: rules.OpEquals, inputValue: true, ruleValue: "true", want: true},
		{name: "equals nil input", op: rules.OpEquals, inputValue: nil, ruleValue: "", want: false},
		{name: "not_equals differs", op: rules.Operator("!="), inputValue: "CA", ruleValue: "NY", want: true},
		{name: "not_equals nil input", op: rules.OpNotEquals, inputValue: nil, ruleValue: "NY", want: true},
		{name: "not_equals same value", op: rules.OpNotEquals, inputValue: "NY", ruleValue: "NY", want: false},
		{name: "not_equals slice input", op: rules.OpNotEquals, inputValue: []any{"NY"}, ruleValue: "NY", want: false},
		{name: "not_equals object input", op: rules.OpNotEquals, inputValue: map[string]any{"v": "NY"}, ruleValue: "NY", want: false},
		{name: "not_equals slice rule", op: rules.OpNotEquals, inputValue: "CA", ruleValue: []any{"NY"}, want: false},
		{name: "equals int16", op: rules.OpEquals, inputValue: int16(2), ruleValue: "2", want: true},
		{name: "gt int16", op: rules.OpGreaterThan, inputValue: int16(2), ruleValue: 1, want: true},
		{name: "gt int8", op: rules.OpGreaterThan, inputValue: int8(-1), ruleValue: -2, want: true},
		{name: "lt uint8", op: rules.OpLessThan, inputValue: uint8(200), ruleValue: 255, want: true},
		{name: "gte uint16", op: rules.OpGreaterOrEqual, inputValue: uint16(80), ruleValue: json.Number("80"), want: true},
		{name: "lte uint32", op: rules.OpLessOrEqual, inputValue: uint32(4000000000), ruleValue: 4000000000, want: true},
		{name: "gt int float64", op: rules.OpGreaterThan, inputValue: 700, ruleValue: 680.5, want: true},
		{name: "gt numeric string", op: rules.Operator(">"), inputValue: "700", ruleValue: 680, want: true},
		{name: "gt exact decimal", op: rules.OpGreaterThan, inputValue: "0.3", ruleValue: 0.1 + 0.2, want: false},
		{name: "gte equal", op: rules.OpGreaterOrEqual, inputValue: json.Number("680"), ruleValue: 680, want: true},
		{name: "lt", op: rules.Operator("less-than"), inputValue: 79.99, ruleValue: "80", want: true},
		{name: "lte equal", op: rules.OpLessOrEqual, inputValue: int64(80), ruleValue: json.Number("80.0"), want: true},
		{name: "numeric non-numeric input", op: rules.OpGreaterThan, inputValue: "n/a", ruleValue: 680, want: false},
		{name: "numeric empty string input", op: rules.OpLessThan, inputValue: "", ruleValue: 1, want: false},
		{name: "numeric bool input", op: rules.OpGreaterThan, inputValue: true, ruleValue: 0, want: false},
		{name: "numeric NaN input", op: rules.OpLessThan, inputValue: math.NaN(), ruleValue: 1, want: false},
		{name: "numeric Inf input", op: rules.OpGreaterThan, inputValue: math.Inf(1), ruleValue: 1, want: false},
		{name: "numeric non-numeric rule", op: rules.OpGreaterThan, inputValue: 700, ruleValue: "abc", want: false},
		{name: "contains case insensitive", op: rules.OpContains, inputValue: "Fix and Flip", ruleValue: "FLIP", want: true},
		{name: "contains miss", op: rules.OpContains, inputValue: "Bridge", ruleValue: "rental", want: false},
		{name: "contains nil input", op: rules.OpContains, inputValue: nil, ruleValue: "x", want: false},
		{name: "contains numeric input", op: rules.OpContains, inputValue: 123, ruleValue: "1", want: false},
		{name: "is_empty nil", op: rules.OpIsEmpty, inputValue: nil, want: true},
		{name: "is_empty empty string", op: rules.Operator("is-empty"), inputValue: "", want: true},
		{name: "is_empty whitespace", op: rules.OpIsEmpty, inputValue: " ", want: false},
		{name: "is_empty zero", op: rules.OpIsEmpty, inputValue: 0, want: false},
		{name: "is_not_empty value", op: rules.OpIsNotEmpty, inputValue: "x", want: true},
		{name: "is_not_empty false bool", op: rules.OpIsNotEmpty, inputValue: false, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, ok := getOperatorHandler(tt.op)
			if !ok {
				t.Fatalf("handler not found for %q", tt.op)
			}
			if got := handler.Check(tt.inputValue, tt.ruleValue); got != tt.want {
				t.Fatalf("Check(%v, %v) = %v, want %v", tt.inputValue, tt.ruleValue, got, tt.want)
			}
		})
	}
}

func TestEvaluateCondition_AbsentField(t *testing.T) {
	inputs := rules.Inputs{"state": "NY"}

	if !EvaluateCondition(rules.Condition{Field: "fico", Operator: rules.OpIsEmpty}, inputs) {
		t.Fatalf("is_empty on absent field should be true")
	}
	if EvaluateCondition(rules.Condition{Field: "fico", Operator: rules.OpIsNotEmpty}, inputs) {
		t.Fatalf("is_not_empty on absent field should be false")
	}
	if EvaluateCondition(rules.Condition{Field: "fico", Operator: rules.OpIsNotEmpty}, nil) {
		t.Fatalf("is_not_empty with nil inputs should be false")
	}
}

func TestEvaluateCondition_UnknownOperatorFailsClosed(t *testing.T) {
	c := rules.Condition{Field: "state", Operator: "matches", Value: "N.*"}
	if EvaluateCondition(c, rules.Inputs{"state": "NY"}) {
		t.Fatalf("unknown operator must evaluate to false")
	}
}

func TestEvaluateCondition_NumericNonNumericInput(t *testing.T) {
	c := rules.Condition{Field: "fico", Operator: ">", Value: 680}
	if EvaluateCondition(c, rules.Inputs{"fico": "n/a"}) {
		t.Fatalf("non-numeric input must evaluate to false")
	}
}

func TestEvaluateCondition_NotEqualsMalformedInputFailsClosed(t *testing.T) {
	c := rules.Condition{Field: "state", Operator: rules.OpNotEquals, Value: "NY"}
	for _, v := range []any{[]any{"NY"}, map[string]any{"code": "NY"}} {
		if EvaluateCondition(c, rules.Inputs{"state": v}) {
			t.Errorf("not_equals with input %v must evaluate to false", v)
		}
	}
	if !EvaluateCondition(c, rules.Inputs{}) {
		t.Errorf("not_equals on absent field should be true")
	}
}

func TestRuleMatches(t *testing.T) {
	isNY := rules.Condition{Field: "state", Operator: rules.OpEquals, Value: "NY"}
	highFico := rules.Condition{Field: "fico", Operator: rules.OpGreaterOrEqual, Value: 740}
	inputs := rules.Inputs{"state": "NY", "fico": 700}

	tests := []struct {
		name string
		rule rules.ProgramRule
		want bool
	}{
		{name: "no conditions", rule: rules.ProgramRule{}, want: true},
		{name: "no conditions with OR", rule: rules.ProgramRule{Combinator: rules.CombinatorOr}, want: true},
		{name: "no conditions with unknown combinator", rule: rules.ProgramRule{Combinator: "XOR"}, want: true},
		{name: "AND one false", rule: rules.ProgramRule{Combinator: rules.CombinatorAnd, Conditions: []rules.Condition{isNY, highFico}}, want: false},
		{name: "AND all true", rule: rules.ProgramRule{Combinator: rules.CombinatorAnd, Conditions: []rules.Condition{isNY}}, want: true},
		{name: "empty combinator is AND", rule: rules.ProgramRule{Conditions: []rules.Condition{isNY, highFico}}, want: false},
		{name: "OR one true", rule: rules.ProgramRule{Combinator: rules.CombinatorOr, Conditions: []rules.Condition{highFico, isNY}}, want: true},
		{name: "OR none true", rule: rules.ProgramRule{Combinator: "or", Conditions: []rules.Condition{highFico}}, want: false},
		{name: "unknown combinator", rule: rules.ProgramRule{Combinator: "XOR", Conditions: []rules.Condition{isNY}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RuleMatches(tt.rule, inputs); got != tt.want {
				t.Fatalf("RuleMatches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuleMatches_EmptyConditionsIgnoresInputs(t *testing.T) {
	rule := rules.DocumentRule{Outcome: rules.DocumentOutcome{TargetDocTypeID: 5, Action: rules.ActionHide}}
	for _, in := range []rules.Inputs{nil, {}, {"state": "NY"}, {"fico": nil}} {
		if !RuleMatches(rule, in) {
			t.Fatalf("rule without conditions should match %v", in)
		}
	}
}

func TestResolve_OrderAndDeterminism(t *testing.T) {
	rs := []rules.ProgramRule{
		{ID: "r1", Conditions: []rules.Condition{{Field: "state", Operator: rules.OpEquals, Value: "NY"}}, Outcome: rules.ProgramOutcome{ExcludeProgramID: "p1"}},
		{ID: "r2", Conditions: []rules.Condition{{Field: "state", Operator: rules.OpEquals, Value: "CA"}}, Outcome: rules.ProgramOutcome{ExcludeProgramID: "p2"}},
		{ID: "r3", Outcome: rules.ProgramOutcome{ExcludeProgramID: "p3"}},
	}
	inputs := rules.Inputs{"state": "NY"}

	collect := func() []string {
		var ids []string
		Resolve(rs, inputs, func(r rules.ProgramRule) { ids = append(ids, r.ID) })
		return ids
	}

	got1 := collect()
	got2 := collect()
	if !reflect.DeepEqual(got1, []string{"r1", "r3"}) {
		t.Fatalf("matched = %v, want [r1 r3]", got1)
	}
	if !reflect.DeepEqual(got1, got2) {
		t.Fatalf("Resolve should be deterministic, got %v and %v", got1, got2)
	}
}

func TestExplain(t *testing.T) {
	rule := rules.ProgramRule{
		Combinator: rules.CombinatorOr,
		Conditions: []rules.Condition{
			{Field: "fico", Operator: rules.OpLessThan, Value: 620},
			{Field: "state", Operator: rules.OpEquals, Value: "NY"},
		},
	}

	matched, results := Explain(rule, rules.Inputs{"fico": 700, "state": "NY"})
	if !matched {
		t.Fatalf("expected rule to match")
	}
	if len(results) != 2 || results[0].Matched || !results[1].Matched {
		t.Fatalf("unexpected condition results: %+v", results)
	}
}
