package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/TimurManjosov/loanrules/internal/rules"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Rules are kept in per-organization slices so that evaluation order matches
// creation order. It is suitable for development, tests and single-instance
// deployments.
type MemoryStore struct {
	mu            sync.RWMutex
	programs      map[string]map[string]Program // org -> id -> program
	programRules  map[string][]rules.ProgramRule
	documentRules map[string][]rules.DocumentRule
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		programs:      make(map[string]map[string]Program),
		programRules:  make(map[string][]rules.ProgramRule),
		documentRules: make(map[string][]rules.DocumentRule),
	}
}

func (m *MemoryStore) ListPrograms(ctx context.Context, orgID string) ([]Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := m.programs[orgID]
	result := make([]Program, 0, len(byID))
	for _, p := range byID {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) GetProgram(ctx context.Context, orgID, id string) (*Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.programs[orgID][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) UpsertProgram(ctx context.Context, params UpsertProgramParams) (Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := Program{
		ID:          params.ID,
		OrgID:       params.OrgID,
		Name:        params.Name,
		Description: params.Description,
		Active:      params.Active,
		UpdatedAt:   time.Now().UTC(),
	}
	if m.programs[params.OrgID] == nil {
		m.programs[params.OrgID] = make(map[string]Program)
	}
	m.programs[params.OrgID][params.ID] = p
	return p, nil
}

func (m *MemoryStore) DeleteProgram(ctx context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.programs[orgID], id)
	return nil
}

func (m *MemoryStore) ListProgramRules(ctx context.Context, orgID string) ([]rules.ProgramRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRules(m.programRules[orgID]), nil
}

func (m *MemoryStore) UpsertProgramRule(ctx context.Context, orgID string, rule rules.ProgramRule) (rules.ProgramRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule = prepareRule(rule)
	m.programRules[orgID] = upsertRule(m.programRules[orgID], rule)
	return rule, nil
}

func (m *MemoryStore) DeleteProgramRule(ctx context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := deleteRule(m.programRules[orgID], id)
	if !ok {
		return ErrNotFound
	}
	m.programRules[orgID] = rs
	return nil
}

func (m *MemoryStore) ListDocumentRules(ctx context.Context, orgID string) ([]rules.DocumentRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRules(m.documentRules[orgID]), nil
}

func (m *MemoryStore) UpsertDocumentRule(ctx context.Context, orgID string, rule rules.DocumentRule) (rules.DocumentRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule = prepareRule(rule)
	m.documentRules[orgID] = upsertRule(m.documentRules[orgID], rule)
	return rule, nil
}

func (m *MemoryStore) DeleteDocumentRule(ctx context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := deleteRule(m.documentRules[orgID], id)
	if !ok {
		return ErrNotFound
	}
	m.documentRules[orgID] = rs
	return nil
}

// Ping always succeeds for MemoryStore.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}

// prepareRule normalizes what the store persists: canonical combinator,
// non-nil conditions and a fresh UpdatedAt.
func prepareRule[O any](r rules.Rule[O]) rules.Rule[O] {
	r.Combinator = rules.NormalizeCombinator(r.Combinator)
	r.Conditions = ensureConditionsInitialized(r.Conditions)
	r.UpdatedAt = time.Now().UTC()
	return r
}

func upsertRule[O any](rs []rules.Rule[O], rule rules.Rule[O]) []rules.Rule[O] {
	for i := range rs {
		if rs[i].ID == rule.ID {
			rs[i] = rule
			return rs
		}
	}
	return append(rs, rule)
}

func deleteRule[O any](rs []rules.Rule[O], id string) ([]rules.Rule[O], bool) {
	for i := range rs {
		if rs[i].ID == id {
			return append(rs[:i:i], rs[i+1:]...), true
		}
	}
	return rs, false
}

// cloneRules copies the slice and each rule's conditions so callers cannot
// mutate stored state.
func cloneRules[O any](rs []rules.Rule[O]) []rules.Rule[O] {
	out := make([]rules.Rule[O], len(rs))
	for i, r := range rs {
		r.Conditions = append([]rules.Condition{}, r.Conditions...)
		out[i] = r
	}
	return out
}

func ensureConditionsInitialized(cs []rules.Condition) []rules.Condition {
	if cs == nil {
		return []rules.Condition{}
	}
	return cs
}
