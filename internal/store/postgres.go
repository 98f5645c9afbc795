package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/TimurManjosov/loanrules/internal/telemetry"
)

const emptyJSONArray = "[]"

// PostgresStore is a PostgreSQL implementation of the Store interface.
// Conditions are persisted as JSONB; rows that no longer decode or validate
// are logged and skipped on read so one bad record cannot break evaluation.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		log:  log.With().Str("component", "postgres_store").Logger(),
	}
}

const (
	sqlListPrograms = `
SELECT id, org_id, name, description, active, updated_at
FROM programs WHERE org_id = $1 ORDER BY id`

	sqlGetProgram = `
SELECT id, org_id, name, description, active, updated_at
FROM programs WHERE org_id = $1 AND id = $2`

	sqlUpsertProgram = `
INSERT INTO programs (org_id, id, name, description, active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (org_id, id) DO UPDATE
SET name = EXCLUDED.name, description = EXCLUDED.description,
    active = EXCLUDED.active, updated_at = now()
RETURNING id, org_id, name, description, active, updated_at`

	sqlDeleteProgram = `DELETE FROM programs WHERE org_id = $1 AND id = $2`

	sqlListProgramRules = `
SELECT id, combinator, conditions, exclude_program_id, updated_at
FROM program_rules WHERE org_id = $1 ORDER BY created_at, id`

	sqlUpsertProgramRule = `
INSERT INTO program_rules (org_id, id, combinator, conditions, exclude_program_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (org_id, id) DO UPDATE
SET combinator = EXCLUDED.combinator, conditions = EXCLUDED.conditions,
    exclude_program_id = EXCLUDED.exclude_program_id, updated_at = now()
RETURNING updated_at`

	sqlDeleteProgramRule = `DELETE FROM program_rules WHERE org_id = $1 AND id = $2`

	sqlListDocumentRules = `
SELECT id, combinator, conditions, target_doc_type_id, action, updated_at
FROM document_rules WHERE org_id = $1 ORDER BY created_at, id`

	sqlUpsertDocumentRule = `
INSERT INTO document_rules (org_id, id, combinator, conditions, target_doc_type_id, action)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (org_id, id) DO UPDATE
SET combinator = EXCLUDED.combinator, conditions = EXCLUDED.conditions,
    target_doc_type_id = EXCLUDED.target_doc_type_id, action = EXCLUDED.action,
    updated_at = now()
RETURNING updated_at`

	sqlDeleteDocumentRule = `DELETE FROM document_rules WHERE org_id = $1 AND id = $2`
)

func (p *PostgresStore) ListPrograms(ctx context.Context, orgID string) ([]Program, error) {
	rows, err := p.pool.Query(ctx, sqlListPrograms, orgID)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	programs, err := pgx.CollectRows(rows, scanProgram)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

func (p *PostgresStore) GetProgram(ctx context.Context, orgID, id string) (*Program, error) {
	rows, err := p.pool.Query(ctx, sqlGetProgram, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	prog, err := pgx.CollectExactlyOneRow(rows, scanProgram)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get program: %w", err)
	}
	return &prog, nil
}

func (p *PostgresStore) UpsertProgram(ctx context.Context, params UpsertProgramParams) (Program, error) {
	rows, err := p.pool.Query(ctx, sqlUpsertProgram,
		params.OrgID, params.ID, params.Name, params.Description, params.Active)
	if err != nil {
		return Program{}, fmt.Errorf("upsert program: %w", err)
	}
	prog, err := pgx.CollectExactlyOneRow(rows, scanProgram)
	if err != nil {
		return Program{}, fmt.Errorf("upsert program: %w", err)
	}
	return prog, nil
}

func (p *PostgresStore) DeleteProgram(ctx context.Context, orgID, id string) error {
	if _, err := p.pool.Exec(ctx, sqlDeleteProgram, orgID, id); err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return nil
}

func scanProgram(row pgx.CollectableRow) (Program, error) {
	var prog Program
	err := row.Scan(&prog.ID, &prog.OrgID, &prog.Name, &prog.Description, &prog.Active, &prog.UpdatedAt)
	prog.UpdatedAt = prog.UpdatedAt.UTC()
	return prog, err
}

// programRuleRow mirrors one program_rules row before decoding.
type programRuleRow struct {
	ID               string
	Combinator       string
	Conditions       []byte
	ExcludeProgramID string
	UpdatedAt        time.Time
}

func (r programRuleRow) toRule() (rules.ProgramRule, error) {
	conditions, err := rules.DecodeConditions(r.Conditions)
	if err != nil {
		return rules.ProgramRule{}, err
	}
	rule := rules.ProgramRule{
		ID:         r.ID,
		Combinator: rules.Combinator(r.Combinator),
		Conditions: conditions,
		Outcome:    rules.ProgramOutcome{ExcludeProgramID: r.ExcludeProgramID},
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if err := rules.ValidateProgramRule(rule); err != nil {
		return rules.ProgramRule{}, err
	}
	return rule, nil
}

// documentRuleRow mirrors one document_rules row before decoding.
type documentRuleRow struct {
	ID              string
	Combinator      string
	Conditions      []byte
	TargetDocTypeID int
	Action          string
	UpdatedAt       time.Time
}

func (r documentRuleRow) toRule() (rules.DocumentRule, error) {
	conditions, err := rules.DecodeConditions(r.Conditions)
	if err != nil {
		return rules.DocumentRule{}, err
	}
	rule := rules.DocumentRule{
		ID:         r.ID,
		Combinator: rules.Combinator(r.Combinator),
		Conditions: conditions,
		Outcome: rules.DocumentOutcome{
			TargetDocTypeID: r.TargetDocTypeID,
			Action:          rules.Action(r.Action),
		},
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if err := rules.ValidateDocumentRule(rule); err != nil {
		return rules.DocumentRule{}, err
	}
	return rule, nil
}

func (p *PostgresStore) ListProgramRules(ctx context.Context, orgID string) ([]rules.ProgramRule, error) {
	rows, err := p.pool.Query(ctx, sqlListProgramRules, orgID)
	if err != nil {
		return nil, fmt.Errorf("list program rules: %w", err)
	}
	raw, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (programRuleRow, error) {
		var r programRuleRow
		err := row.Scan(&r.ID, &r.Combinator, &r.Conditions, &r.ExcludeProgramID, &r.UpdatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("list program rules: %w", err)
	}

	out := make([]rules.ProgramRule, 0, len(raw))
	for _, r := range raw {
		rule, err := r.toRule()
		if err != nil {
			p.skipped(telemetry.KindProgram, orgID, r.ID, err)
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (p *PostgresStore) UpsertProgramRule(ctx context.Context, orgID string, rule rules.ProgramRule) (rules.ProgramRule, error) {
	rule.Combinator = rules.NormalizeCombinator(rule.Combinator)
	rule.Conditions = ensureConditionsInitialized(rule.Conditions)
	conditions, err := marshalConditions(rule.Conditions)
	if err != nil {
		return rules.ProgramRule{}, err
	}

	err = p.pool.QueryRow(ctx, sqlUpsertProgramRule,
		orgID, rule.ID, string(rule.Combinator), conditions, rule.Outcome.ExcludeProgramID,
	).Scan(&rule.UpdatedAt)
	if err != nil {
		return rules.ProgramRule{}, fmt.Errorf("upsert program rule: %w", err)
	}
	rule.UpdatedAt = rule.UpdatedAt.UTC()
	return rule, nil
}

func (p *PostgresStore) DeleteProgramRule(ctx context.Context, orgID, id string) error {
	return p.deleteRule(ctx, sqlDeleteProgramRule, orgID, id)
}

func (p *PostgresStore) ListDocumentRules(ctx context.Context, orgID string) ([]rules.DocumentRule, error) {
	rows, err := p.pool.Query(ctx, sqlListDocumentRules, orgID)
	if err != nil {
		return nil, fmt.Errorf("list document rules: %w", err)
	}
	raw, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (documentRuleRow, error) {
		var r documentRuleRow
		err := row.Scan(&r.ID, &r.Combinator, &r.Conditions, &r.TargetDocTypeID, &r.Action, &r.UpdatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("list document rules: %w", err)
	}

	out := make([]rules.DocumentRule, 0, len(raw))
	for _, r := range raw {
		rule, err := r.toRule()
		if err != nil {
			p.skipped(telemetry.KindDocument, orgID, r.ID, err)
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (p *PostgresStore) UpsertDocumentRule(ctx context.Context, orgID string, rule rules.DocumentRule) (rules.DocumentRule, error) {
	rule.Combinator = rules.NormalizeCombinator(rule.Combinator)
	rule.Conditions = ensureConditionsInitialized(rule.Conditions)
	conditions, err := marshalConditions(rule.Conditions)
	if err != nil {
		return rules.DocumentRule{}, err
	}

	err = p.pool.QueryRow(ctx, sqlUpsertDocumentRule,
		orgID, rule.ID, string(rule.Combinator), conditions,
		rule.Outcome.TargetDocTypeID, string(rule.Outcome.Action),
	).Scan(&rule.UpdatedAt)
	if err != nil {
		return rules.DocumentRule{}, fmt.Errorf("upsert document rule: %w", err)
	}
	rule.UpdatedAt = rule.UpdatedAt.UTC()
	return rule, nil
}

func (p *PostgresStore) DeleteDocumentRule(ctx context.Context, orgID, id string) error {
	return p.deleteRule(ctx, sqlDeleteDocumentRule, orgID, id)
}

func (p *PostgresStore) deleteRule(ctx context.Context, query, orgID, id string) error {
	tag, err := p.pool.Exec(ctx, query, orgID, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) skipped(kind, orgID, ruleID string, err error) {
	telemetry.RulesSkipped.WithLabelValues(kind).Inc()
	p.log.Warn().Err(err).Str("org_id", orgID).Str("rule_id", ruleID).Str("kind", kind).
		Msg("skipping malformed rule")
}

// Ping checks the pool can reach the database.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func marshalConditions(cs []rules.Condition) ([]byte, error) {
	if len(cs) == 0 {
		return []byte(emptyJSONArray), nil
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return nil, fmt.Errorf("marshal conditions: %w", err)
	}
	return b, nil
}
