package validation

import (
	"strings"
	"testing"

	"github.com/TimurManjosov/loanrules/internal/rules"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"simple", "acme", true},
		{"hyphen and underscore", "org_1-a", true},
		{"uuid", "0b6f7d5e-3a0c-4f51-9d6b-1f1a9b0d7e21", true},
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"too long", strings.Repeat("a", MaxIDLength+1), false},
		{"slash", "a/b", false},
		{"space inside", "a b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateID("id", tt.id)
			if res.Valid != tt.valid {
				t.Errorf("ValidateID(%q).Valid = %v, want %v (errors: %v)", tt.id, res.Valid, tt.valid, res.Errors)
			}
		})
	}
}

func TestValidateProgram(t *testing.T) {
	res := ValidateProgram(ProgramParams{OrgID: "acme", ID: "fha-30", Name: "FHA 30 year"})
	if !res.Valid {
		t.Fatalf("expected valid program, got %v", res.Errors)
	}

	res = ValidateProgram(ProgramParams{OrgID: "", ID: "x y", Name: " ", Description: strings.Repeat("d", MaxDescriptionLength+1)})
	for _, field := range []string{"orgId", "id", "name", "description"} {
		if _, ok := res.Errors[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, res.Errors)
		}
	}
}

func TestValidateProgramRule(t *testing.T) {
	valid := rules.ProgramRule{
		ID:         "r1",
		Combinator: rules.CombinatorAnd,
		Conditions: []rules.Condition{{Field: "fico", Operator: rules.OpLessThan, Value: 620}},
		Outcome:    rules.ProgramOutcome{ExcludeProgramID: "jumbo"},
	}
	if res := ValidateProgramRule(valid); !res.Valid {
		t.Fatalf("expected valid rule, got %v", res.Errors)
	}

	tests := []struct {
		name      string
		mutate    func(r *rules.ProgramRule)
		wantField string
	}{
		{"missing outcome", func(r *rules.ProgramRule) { r.Outcome.ExcludeProgramID = "" }, "outcome"},
		{"bad outcome id", func(r *rules.ProgramRule) { r.Outcome.ExcludeProgramID = "a b" }, "outcome.excludeProgramId"},
		{"bad combinator", func(r *rules.ProgramRule) { r.Combinator = "NAND" }, "combinator"},
		{"bad operator", func(r *rules.ProgramRule) { r.Conditions[0].Operator = "regex" }, "conditions"},
		{"numeric op with text", func(r *rules.ProgramRule) { r.Conditions[0].Value = "high" }, "conditions"},
		{"missing id", func(r *rules.ProgramRule) { r.ID = "" }, "id"},
		{"too many conditions", func(r *rules.ProgramRule) {
			r.Conditions = make([]rules.Condition, MaxConditions+1)
			for i := range r.Conditions {
				r.Conditions[i] = rules.Condition{Field: "f", Operator: rules.OpIsEmpty}
			}
		}, "conditions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			r.Conditions = append([]rules.Condition{}, valid.Conditions...)
			tt.mutate(&r)
			res := ValidateProgramRule(r)
			if res.Valid {
				t.Fatal("expected invalid rule")
			}
			if _, ok := res.Errors[tt.wantField]; !ok {
				t.Errorf("expected error for %s, got %v", tt.wantField, res.Errors)
			}
		})
	}
}

func TestValidateDocumentRule(t *testing.T) {
	r := rules.DocumentRule{ID: "d1", Outcome: rules.DocumentOutcome{TargetDocTypeID: 5, Action: rules.ActionHide}}
	if res := ValidateDocumentRule(r); !res.Valid {
		t.Fatalf("expected valid rule, got %v", res.Errors)
	}

	r.Outcome.Action = "show"
	res := ValidateDocumentRule(r)
	if _, ok := res.Errors["outcome"]; !ok {
		t.Errorf("expected outcome error, got %v", res.Errors)
	}
}

func TestValidateInputs(t *testing.T) {
	if res := ValidateInputs("inputs", rules.Inputs{"state": "NY"}); !res.Valid {
		t.Errorf("expected valid inputs, got %v", res.Errors)
	}
	if res := ValidateInputs("inputs", rules.Inputs{" ": 1}); res.Valid {
		t.Error("expected blank field name to be rejected")
	}

	if res := ValidateInputs("inputs", rules.Inputs{"fico": nil, "units": 2.0, "owner": true}); !res.Valid {
		t.Errorf("expected null and scalar values to be valid, got %v", res.Errors)
	}
	for _, v := range []any{[]any{"NY"}, map[string]any{"code": "NY"}} {
		if res := ValidateInputs("inputs", rules.Inputs{"state": v}); res.Valid {
			t.Errorf("expected non-scalar value %v to be rejected", v)
		}
	}

	big := rules.Inputs{}
	for i := 0; i <= MaxInputFields; i++ {
		big[strings.Repeat("f", i+1)] = i
	}
	if res := ValidateInputs("inputs", big); res.Valid {
		t.Error("expected oversized input bag to be rejected")
	}
}

func TestValidationResult_Merge(t *testing.T) {
	a := NewValidationResult()
	a.Merge(nil)
	if !a.Valid {
		t.Fatal("merging nil must keep result valid")
	}
	b := NewValidationResult()
	b.AddError("x", "bad")
	a.Merge(b)
	if a.Valid || a.Errors["x"] != "bad" {
		t.Errorf("expected merged error, got %+v", a)
	}
}
