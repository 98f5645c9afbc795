package eligibility

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/loanrules/internal/engine"
	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/TimurManjosov/loanrules/internal/telemetry"
)

// DocumentRuleSource fetches the current document rules for an organization.
type DocumentRuleSource interface {
	DocumentRules(ctx context.Context, orgID string) ([]rules.DocumentRule, error)
}

// IDSet is a set of document type ids. It marshals as a sorted JSON array.
type IDSet map[int]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = make(IDSet, len(ids))
	for _, id := range ids {
		(*s)[id] = struct{}{}
	}
	return nil
}

// DocumentLogic holds the document types hidden and required by the matching
// rules. The sets are unions and may share ids; see DisplayState.
type DocumentLogic struct {
	HiddenDocTypes   IDSet `json:"hiddenDocTypes"`
	RequiredDocTypes IDSet `json:"requiredDocTypes"`
}

// EvaluateDocumentRules applies every matching document rule to the hidden or
// required set. It is pure; callers re-run it whenever currentValues change.
func EvaluateDocumentRules(rs []rules.DocumentRule, currentValues rules.Inputs) DocumentLogic {
	logic := DocumentLogic{HiddenDocTypes: IDSet{}, RequiredDocTypes: IDSet{}}
	engine.Resolve(rs, currentValues, func(r rules.DocumentRule) {
		switch r.Outcome.Action {
		case rules.ActionHide:
			logic.HiddenDocTypes[r.Outcome.TargetDocTypeID] = struct{}{}
		case rules.ActionRequire:
			logic.RequiredDocTypes[r.Outcome.TargetDocTypeID] = struct{}{}
		}
	})
	return logic
}

// DisplayState is how a UI should present one document type.
type DisplayState string

const (
	DisplayVisible  DisplayState = "visible"
	DisplayRequired DisplayState = "required"
	DisplayHidden   DisplayState = "hidden"
)

// DisplayState resolves the hidden/required overlap for presentation: a
// hidden document cannot also be prompted for, so hidden wins.
func (l DocumentLogic) DisplayState(docTypeID int) DisplayState {
	switch {
	case l.HiddenDocTypes.Has(docTypeID):
		return DisplayHidden
	case l.RequiredDocTypes.Has(docTypeID):
		return DisplayRequired
	default:
		return DisplayVisible
	}
}

// DocumentEvaluator evaluates document rules fetched from a source.
type DocumentEvaluator struct {
	source DocumentRuleSource
	log    zerolog.Logger
}

// NewDocumentEvaluator creates an evaluator reading rules from source.
func NewDocumentEvaluator(source DocumentRuleSource, log zerolog.Logger) *DocumentEvaluator {
	return &DocumentEvaluator{source: source, log: log.With().Str("component", "document_logic").Logger()}
}

// Evaluate fetches the organization's document rules and evaluates them. When
// the fetch fails it behaves as if no rules were loaded: both sets are empty.
func (e *DocumentEvaluator) Evaluate(ctx context.Context, orgID string, currentValues rules.Inputs) DocumentLogic {
	rs, err := e.source.DocumentRules(ctx, orgID)
	if err != nil {
		telemetry.RuleFetchFailures.WithLabelValues(telemetry.KindDocument).Inc()
		e.log.Warn().Err(err).Str("org_id", orgID).Msg("document rules unavailable, treating as no rules")
		rs = nil
	} else {
		telemetry.Evaluations.WithLabelValues(telemetry.KindDocument).Inc()
	}
	return EvaluateDocumentRules(rs, currentValues)
}
