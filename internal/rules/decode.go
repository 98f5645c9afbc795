package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeConditions decodes a JSON conditions column. Numeric literals are kept
// as json.Number so that no precision is lost before comparison.
// nil, empty and "null" input decode to an empty, non-nil slice.
func DecodeConditions(raw []byte) ([]Condition, error) {
	conditions := []Condition{}
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return conditions, nil
	}
	if err := decodeNumber(raw, &conditions); err != nil {
		return nil, fmt.Errorf("%w: conditions: %v", ErrInvalidCondition, err)
	}
	if conditions == nil {
		conditions = []Condition{}
	}
	return conditions, nil
}

// DecodeProgramRules decodes a JSON array of program rules. Records that fail
// to decode or validate are skipped; one error is returned per skipped record.
func DecodeProgramRules(raw []byte) ([]ProgramRule, []error) {
	return decodeRules(raw, ValidateProgramRule)
}

// DecodeDocumentRules decodes a JSON array of document rules, skipping
// malformed records the same way DecodeProgramRules does.
func DecodeDocumentRules(raw []byte) ([]DocumentRule, []error) {
	return decodeRules(raw, ValidateDocumentRule)
}

func decodeRules[O any](raw []byte, validate func(Rule[O]) error) ([]Rule[O], []error) {
	out := []Rule[O]{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return out, []error{fmt.Errorf("%w: expected a JSON array: %v", ErrInvalidRule, err)}
	}

	var skipped []error
	for i, rec := range records {
		var r Rule[O]
		if err := decodeNumber(rec, &r); err != nil {
			skipped = append(skipped, fmt.Errorf("record %d: %w: %v", i, ErrInvalidRule, err))
			continue
		}
		if err := validate(r); err != nil {
			skipped = append(skipped, fmt.Errorf("record %d (%s): %w", i, r.ID, err))
			continue
		}
		if r.Conditions == nil {
			r.Conditions = []Condition{}
		}
		out = append(out, r)
	}
	return out, skipped
}

func decodeNumber(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
