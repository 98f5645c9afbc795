// Package snapshot caches each organization's rule set in memory and notifies
// stream subscribers when it changes.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/TimurManjosov/loanrules/internal/rules"
)

// RuleSet is an immutable view of one organization's rules. Callers must treat
// the slices as read-only; they are shared between concurrent evaluations.
type RuleSet struct {
	OrgID         string               `json:"orgId"`
	ETag          string               `json:"etag"`
	ProgramRules  []rules.ProgramRule  `json:"programRules"`
	DocumentRules []rules.DocumentRule `json:"documentRules"`
	LoadedAt      time.Time            `json:"loadedAt"`
}

// Build assembles a RuleSet and computes its ETag from the rule content.
func Build(orgID string, pr []rules.ProgramRule, dr []rules.DocumentRule) *RuleSet {
	if pr == nil {
		pr = []rules.ProgramRule{}
	}
	if dr == nil {
		dr = []rules.DocumentRule{}
	}
	return &RuleSet{
		OrgID:         orgID,
		ETag:          computeETag(pr, dr),
		ProgramRules:  pr,
		DocumentRules: dr,
		LoadedAt:      time.Now().UTC(),
	}
}

func computeETag(pr []rules.ProgramRule, dr []rules.DocumentRule) string {
	// struct field order makes the encoding stable
	blob, _ := json.Marshal(struct {
		P []rules.ProgramRule  `json:"p"`
		D []rules.DocumentRule `json:"d"`
	}{pr, dr})
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(blob))
}
