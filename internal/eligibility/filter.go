package eligibility

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/TimurManjosov/loanrules/internal/rules"
)

// ParseFilterParam decodes a caller-supplied filter parameter into an input
// bag. The parameter is a JSON object, optionally base64url encoded. ok is
// false when the parameter is present but unparsable; callers then serve the
// unfiltered result rather than an error.
func ParseFilterParam(raw string) (inputs rules.Inputs, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}

	data := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return nil, false
		}
		data = decoded
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&inputs); err != nil || inputs == nil {
		return nil, false
	}
	// trailing garbage makes the whole payload suspect
	if dec.More() {
		return nil, false
	}
	return inputs, true
}
