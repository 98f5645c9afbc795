package store

import (
	"context"
	"errors"
	"time"

	"github.com/TimurManjosov/loanrules/internal/rules"
)

// ErrNotFound is returned when a program or rule does not exist for the organization.
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations for programs and eligibility rules.
// Every operation is scoped to an organization. Implementations must be safe
// for concurrent use.
type Store interface {
	// ListPrograms returns the organization's programs ordered by id.
	ListPrograms(ctx context.Context, orgID string) ([]Program, error)

	// GetProgram returns ErrNotFound if the program does not exist.
	GetProgram(ctx context.Context, orgID, id string) (*Program, error)

	// UpsertProgram creates or replaces a program and returns the stored record.
	UpsertProgram(ctx context.Context, params UpsertProgramParams) (Program, error)

	// DeleteProgram is idempotent.
	DeleteProgram(ctx context.Context, orgID, id string) error

	// ListProgramRules returns valid program rules in creation order.
	// Records that fail validation are skipped, never returned.
	ListProgramRules(ctx context.Context, orgID string) ([]rules.ProgramRule, error)

	// UpsertProgramRule creates or replaces a rule, keeping its original position.
	UpsertProgramRule(ctx context.Context, orgID string, rule rules.ProgramRule) (rules.ProgramRule, error)

	// DeleteProgramRule returns ErrNotFound if the rule does not exist.
	DeleteProgramRule(ctx context.Context, orgID, id string) error

	// ListDocumentRules returns valid document rules in creation order.
	ListDocumentRules(ctx context.Context, orgID string) ([]rules.DocumentRule, error)

	// UpsertDocumentRule creates or replaces a rule, keeping its original position.
	UpsertDocumentRule(ctx context.Context, orgID string, rule rules.DocumentRule) (rules.DocumentRule, error)

	// DeleteDocumentRule returns ErrNotFound if the rule does not exist.
	DeleteDocumentRule(ctx context.Context, orgID, id string) error

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Program is a loan program that can be offered on a deal.
type Program struct {
	ID          string    `json:"id" yaml:"id"`
	OrgID       string    `json:"orgId" yaml:"orgId"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Active      bool      `json:"active" yaml:"active"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// UpsertProgramParams contains the parameters for upserting a program.
type UpsertProgramParams struct {
	ID          string `json:"id"`
	OrgID       string `json:"orgId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// ActivePrograms returns the programs with Active set, preserving order.
func ActivePrograms(programs []Program) []Program {
	active := make([]Program, 0, len(programs))
	for _, p := range programs {
		if p.Active {
			active = append(active, p)
		}
	}
	return active
}
