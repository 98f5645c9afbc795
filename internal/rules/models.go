package rules

import "time"

// Operator represents a comparison operator used in eligibility conditions.
type Operator string

// Supported condition operators (string values for clean JSON serialization).
const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpGreaterThan    Operator = "greater_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessThan       Operator = "less_than"
	OpLessOrEqual    Operator = "less_or_equal"
	OpContains       Operator = "contains"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
)

// Combinator is the aggregation policy applied uniformly to all conditions of a rule.
type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// Action is what a matching document rule does to its target document type.
type Action string

const (
	ActionHide    Action = "hide"
	ActionRequire Action = "require"
)

// Inputs is the caller-supplied snapshot of deal/loan field values.
// A missing key or a nil value means the field is unknown.
type Inputs map[string]any

// Condition is one atomic comparison between a named input field and a literal value.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Rule is a flat condition set combined with one Combinator plus a
// domain-specific outcome. A rule with no conditions always applies.
type Rule[O any] struct {
	ID         string      `json:"id" yaml:"id"`
	Combinator Combinator  `json:"combinator" yaml:"combinator"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
	Outcome    O           `json:"outcome" yaml:"outcome"`
	UpdatedAt  time.Time   `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// ProgramOutcome excludes a loan program when its rule matches.
type ProgramOutcome struct {
	ExcludeProgramID string `json:"excludeProgramId" yaml:"excludeProgramId"`
}

// DocumentOutcome hides or requires a document type when its rule matches.
type DocumentOutcome struct {
	TargetDocTypeID int    `json:"targetDocTypeId" yaml:"targetDocTypeId"`
	Action          Action `json:"action" yaml:"action"`
}

type (
	ProgramRule  = Rule[ProgramOutcome]
	DocumentRule = Rule[DocumentOutcome]
)
