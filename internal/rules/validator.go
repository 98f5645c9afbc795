package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors returned by the rule validators.
var (
	ErrInvalidRule       = errors.New("invalid rule")
	ErrInvalidOperator   = errors.New("invalid operator")
	ErrInvalidCondition  = errors.New("invalid condition")
	ErrInvalidValueType  = errors.New("invalid value type")
	ErrInvalidCombinator = errors.New("invalid combinator")
	ErrInvalidOutcome    = errors.New("invalid outcome")
)

var validOperators = map[Operator]struct{}{
	OpEquals:         {},
	OpNotEquals:      {},
	OpGreaterThan:    {},
	OpGreaterOrEqual: {},
	OpLessThan:       {},
	OpLessOrEqual:    {},
	OpContains:       {},
	OpIsEmpty:        {},
	OpIsNotEmpty:     {},
}

// ValidateProgramRule performs strict validation of a program rule.
// It never mutates r. Rules with zero conditions are valid (unconditional).
func ValidateProgramRule(r ProgramRule) error {
	if err := validateShape(r.ID, r.Combinator, r.Conditions); err != nil {
		return err
	}
	if r.Outcome.ExcludeProgramID == "" {
		return fmt.Errorf("%w: excludeProgramId must not be empty", ErrInvalidOutcome)
	}
	return nil
}

// ValidateDocumentRule performs strict validation of a document rule.
func ValidateDocumentRule(r DocumentRule) error {
	if err := validateShape(r.ID, r.Combinator, r.Conditions); err != nil {
		return err
	}
	if r.Outcome.TargetDocTypeID <= 0 {
		return fmt.Errorf("%w: targetDocTypeId must be positive, got %d", ErrInvalidOutcome, r.Outcome.TargetDocTypeID)
	}
	switch r.Outcome.Action {
	case ActionHide, ActionRequire:
	default:
		return fmt.Errorf("%w: action %q must be %q or %q", ErrInvalidOutcome, r.Outcome.Action, ActionHide, ActionRequire)
	}
	return nil
}

func validateShape(id string, c Combinator, conditions []Condition) error {
	if id == "" {
		return fmt.Errorf("%w: rule id must not be empty", ErrInvalidRule)
	}
	switch NormalizeCombinator(c) {
	case CombinatorAnd, CombinatorOr:
	default:
		return fmt.Errorf("%w: %q is not AND or OR", ErrInvalidCombinator, c)
	}
	for i, cond := range conditions {
		if err := ValidateCondition(i, cond); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCondition checks one condition; i is its position for error messages.
func ValidateCondition(i int, c Condition) error {
	if c.Field == "" {
		return fmt.Errorf("%w: condition[%d] field must not be empty", ErrInvalidCondition, i)
	}

	op := NormalizeOperator(c.Operator)
	if _, ok := validOperators[op]; !ok {
		return fmt.Errorf("%w: condition[%d] operator %q is not supported", ErrInvalidOperator, i, c.Operator)
	}

	return validateValueType(i, op, c.Value)
}

// validateValueType checks that the literal has a type compatible with the
// operator, using explicit type assertions only.
func validateValueType(i int, op Operator, v any) error {
	switch op {
	case OpIsEmpty, OpIsNotEmpty:
		return nil

	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		if !isNumeric(v) && !isNumericString(v) {
			return fmt.Errorf("%w: condition[%d] operator %q requires a numeric value", ErrInvalidValueType, i, op)
		}

	case OpContains:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: condition[%d] operator %q requires a string value", ErrInvalidValueType, i, op)
		}

	case OpEquals, OpNotEquals:
		if !IsScalar(v) {
			return fmt.Errorf("%w: condition[%d] operator %q requires a scalar value (string, bool, or number)", ErrInvalidValueType, i, op)
		}
	}

	return nil
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}

func isNumericString(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	// same parser the evaluator uses, so NaN, Inf and hex floats are rejected
	_, err := decimal.NewFromString(strings.TrimSpace(s))
	return err == nil
}

// IsScalar reports whether v is a string, bool or number.
func IsScalar(v any) bool {
	if _, ok := v.(string); ok {
		return true
	}
	if _, ok := v.(bool); ok {
		return true
	}
	return isNumeric(v)
}
