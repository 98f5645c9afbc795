package rules

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeConditions(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantLen int
		wantErr bool
	}{
		{name: "nil", raw: nil, wantLen: 0},
		{name: "null", raw: []byte("null"), wantLen: 0},
		{name: "empty array", raw: []byte("[]"), wantLen: 0},
		{name: "one condition", raw: []byte(`[{"field":"fico","operator":">","value":680}]`), wantLen: 1},
		{name: "invalid", raw: []byte("{"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeConditions(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCondition) {
					t.Fatalf("expected ErrInvalidCondition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil {
				t.Fatalf("expected non-nil slice")
			}
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestDecodeConditions_KeepsNumberLiteral(t *testing.T) {
	got, err := DecodeConditions([]byte(`[{"field":"ltv","operator":"<=","value":80.5}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, ok := got[0].Value.(json.Number)
	if !ok {
		t.Fatalf("value type = %T, want json.Number", got[0].Value)
	}
	if n.String() != "80.5" {
		t.Fatalf("value = %s, want 80.5", n)
	}
}

func TestDecodeProgramRules_SkipsMalformedRecords(t *testing.T) {
	raw := []byte(`[
		{"id":"ok","combinator":"AND","conditions":[{"field":"state","operator":"equals","value":"NY"}],"outcome":{"excludeProgramId":"p1"}},
		{"id":"bad-op","conditions":[{"field":"state","operator":"like","value":"N%"}],"outcome":{"excludeProgramId":"p2"}},
		{"id":"no-outcome","conditions":[]},
		"not an object",
		{"id":"always","outcome":{"excludeProgramId":"p3"}}
	]`)

	got, skipped := DecodeProgramRules(raw)
	if len(got) != 2 {
		t.Fatalf("decoded %d rules, want 2", len(got))
	}
	if got[0].ID != "ok" || got[1].ID != "always" {
		t.Fatalf("unexpected rules kept: %+v", got)
	}
	if got[1].Conditions == nil {
		t.Fatalf("expected conditions to be initialized")
	}
	if len(skipped) != 3 {
		t.Fatalf("skipped %d records, want 3: %v", len(skipped), skipped)
	}
}

func TestDecodeDocumentRules_NotAnArray(t *testing.T) {
	got, skipped := DecodeDocumentRules([]byte(`{"id":"x"}`))
	if len(got) != 0 {
		t.Fatalf("expected no rules, got %d", len(got))
	}
	if len(skipped) != 1 || !errors.Is(skipped[0], ErrInvalidRule) {
		t.Fatalf("expected a single ErrInvalidRule, got %v", skipped)
	}
}
