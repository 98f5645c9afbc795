// Package validation checks request payloads for the admin and evaluation
// endpoints and reports field-level errors.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/TimurManjosov/loanrules/internal/rules"
)

const (
	// MaxIDLength is the maximum length for org, program and rule ids
	MaxIDLength = 64
	// MaxNameLength is the maximum length for program names
	MaxNameLength = 200
	// MaxDescriptionLength is the maximum length for program descriptions
	MaxDescriptionLength = 500
	// MaxConditions is the maximum number of conditions in one rule
	MaxConditions = 50
	// MaxInputFields is the maximum number of fields in an input bag
	MaxInputFields = 200
)

// idPattern matches alphanumeric characters, underscores, and hyphens
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidationResult holds the result of validation
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string]string),
	}
}

// AddError adds a field error and marks the result as invalid
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge combines another validation result into this one
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// ValidateID validates an org, program or rule id, reporting under field.
func ValidateID(field, id string) *ValidationResult {
	result := NewValidationResult()
	id = strings.TrimSpace(id)

	switch {
	case id == "":
		result.AddError(field, "Id is required")
	case utf8.RuneCountInString(id) > MaxIDLength:
		result.AddError(field, fmt.Sprintf("Id must not exceed %d characters", MaxIDLength))
	case !idPattern.MatchString(id):
		result.AddError(field, "Id must contain only alphanumeric characters, underscores, and hyphens")
	}
	return result
}

// ProgramParams contains the parameters for validating a program
type ProgramParams struct {
	OrgID       string
	ID          string
	Name        string
	Description string
}

// ValidateProgram validates all program fields
func ValidateProgram(p ProgramParams) *ValidationResult {
	result := NewValidationResult()
	result.Merge(ValidateID("orgId", p.OrgID))
	result.Merge(ValidateID("id", p.ID))

	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		result.AddError("name", "Name is required")
	case utf8.RuneCountInString(name) > MaxNameLength:
		result.AddError("name", fmt.Sprintf("Name must not exceed %d characters", MaxNameLength))
	}

	if utf8.RuneCountInString(p.Description) > MaxDescriptionLength {
		result.AddError("description", fmt.Sprintf("Description must not exceed %d characters", MaxDescriptionLength))
	}
	return result
}

// ValidateProgramRule validates a program rule for storage.
func ValidateProgramRule(r rules.ProgramRule) *ValidationResult {
	result := validateRuleCommon(r.ID, len(r.Conditions))
	if err := rules.ValidateProgramRule(r); err != nil {
		result.AddError(fieldFor(err), err.Error())
	}
	if r.Outcome.ExcludeProgramID != "" {
		if res := ValidateID("outcome.excludeProgramId", r.Outcome.ExcludeProgramID); !res.Valid {
			result.Merge(res)
		}
	}
	return result
}

// ValidateDocumentRule validates a document rule for storage.
func ValidateDocumentRule(r rules.DocumentRule) *ValidationResult {
	result := validateRuleCommon(r.ID, len(r.Conditions))
	if err := rules.ValidateDocumentRule(r); err != nil {
		result.AddError(fieldFor(err), err.Error())
	}
	return result
}

func validateRuleCommon(id string, conditions int) *ValidationResult {
	result := ValidateID("id", id)
	if conditions > MaxConditions {
		result.AddError("conditions", fmt.Sprintf("A rule may have at most %d conditions", MaxConditions))
	}
	return result
}

// fieldFor maps a rules sentinel error to the request field it concerns.
func fieldFor(err error) string {
	switch {
	case errors.Is(err, rules.ErrInvalidOutcome):
		return "outcome"
	case errors.Is(err, rules.ErrInvalidCombinator):
		return "combinator"
	case errors.Is(err, rules.ErrInvalidCondition),
		errors.Is(err, rules.ErrInvalidOperator),
		errors.Is(err, rules.ErrInvalidValueType):
		return "conditions"
	default:
		return "rule"
	}
}

// ValidateInputs checks an input value bag: its size, its field names, and
// that every value is null or a scalar.
func ValidateInputs(field string, inputs rules.Inputs) *ValidationResult {
	result := NewValidationResult()
	if len(inputs) > MaxInputFields {
		result.AddError(field, fmt.Sprintf("At most %d fields are allowed", MaxInputFields))
	}
	blank := false
	for k, v := range inputs {
		if strings.TrimSpace(k) == "" {
			blank = true
			continue
		}
		if v != nil && !rules.IsScalar(v) {
			result.AddError(field, fmt.Sprintf("Field %q must be a string, number, boolean or null", k))
		}
	}
	if blank {
		result.AddError(field, "Field names must not be empty")
	}
	return result
}
