package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/TimurManjosov/loanrules/internal/audit"
	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/TimurManjosov/loanrules/internal/store"
	"github.com/TimurManjosov/loanrules/internal/validation"
)

type upsertProgramRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active,omitempty"` // defaults to true
}

// handleUpsertProgram handles PUT /v1/orgs/{orgID}/programs/{programID}
func (s *Server) handleUpsertProgram(w http.ResponseWriter, r *http.Request) {
	orgID, programID := chi.URLParam(r, "orgID"), chi.URLParam(r, "programID")

	var req upsertProgramRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res := validation.ValidateProgram(validation.ProgramParams{
		OrgID: orgID, ID: programID, Name: req.Name, Description: req.Description,
	})
	if !res.Valid {
		ValidationError(w, r, ErrCodeValidation, "invalid program", res.Errors)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p, err := s.store.UpsertProgram(r.Context(), store.UpsertProgramParams{
		ID:          programID,
		OrgID:       orgID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Active:      active,
	})
	s.recordAudit(audit.NewEventBuilder(r, orgID).ForResource(audit.ResourceProgram, programID).
		WithAction(audit.ActionUpserted).WithAfter(p).Result(err))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("org_id", orgID).Str("program_id", programID).Msg("upsert program failed")
		InternalError(w, r, "failed to save program")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDeleteProgram handles DELETE /v1/orgs/{orgID}/programs/{programID}
func (s *Server) handleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	orgID, programID := chi.URLParam(r, "orgID"), chi.URLParam(r, "programID")
	err := s.store.DeleteProgram(r.Context(), orgID, programID)
	s.recordAudit(audit.NewEventBuilder(r, orgID).ForResource(audit.ResourceProgram, programID).
		WithAction(audit.ActionDeleted).Result(err))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("org_id", orgID).Msg("delete program failed")
		InternalError(w, r, "failed to delete program")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ruleWriteResponse[O any] struct {
	Rule rules.Rule[O] `json:"rule"`
	ETag string        `json:"etag,omitempty"`
}

// handleUpsertProgramRule handles POST /v1/orgs/{orgID}/program-rules
func (s *Server) handleUpsertProgramRule(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var rule rules.ProgramRule
	if !decodeBody(w, r, &rule) {
		return
	}
	assignRuleID(&rule.ID)
	if res := validation.ValidateProgramRule(rule); !res.Valid {
		ValidationError(w, r, ErrCodeInvalidRule, "invalid program rule", res.Errors)
		return
	}

	saved, err := s.store.UpsertProgramRule(r.Context(), orgID, rule)
	s.recordAudit(audit.NewEventBuilder(r, orgID).ForResource(audit.ResourceProgramRule, rule.ID).
		WithAction(audit.ActionUpserted).WithAfter(saved).Result(err))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("org_id", orgID).Str("rule_id", rule.ID).Msg("upsert program rule failed")
		InternalError(w, r, "failed to save rule")
		return
	}
	writeJSON(w, http.StatusCreated, ruleWriteResponse[rules.ProgramOutcome]{Rule: saved, ETag: s.refreshRules(r, orgID)})
}

// handleDeleteProgramRule handles DELETE /v1/orgs/{orgID}/program-rules/{ruleID}
func (s *Server) handleDeleteProgramRule(w http.ResponseWriter, r *http.Request) {
	orgID, ruleID := chi.URLParam(r, "orgID"), chi.URLParam(r, "ruleID")
	s.finishDelete(w, r, orgID, audit.ResourceProgramRule, ruleID, s.store.DeleteProgramRule(r.Context(), orgID, ruleID))
}

// handleUpsertDocumentRule handles POST /v1/orgs/{orgID}/document-rules
func (s *Server) handleUpsertDocumentRule(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var rule rules.DocumentRule
	if !decodeBody(w, r, &rule) {
		return
	}
	assignRuleID(&rule.ID)
	if res := validation.ValidateDocumentRule(rule); !res.Valid {
		ValidationError(w, r, ErrCodeInvalidRule, "invalid document rule", res.Errors)
		return
	}

	saved, err := s.store.UpsertDocumentRule(r.Context(), orgID, rule)
	s.recordAudit(audit.NewEventBuilder(r, orgID).ForResource(audit.ResourceDocumentRule, rule.ID).
		WithAction(audit.ActionUpserted).WithAfter(saved).Result(err))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("org_id", orgID).Str("rule_id", rule.ID).Msg("upsert document rule failed")
		InternalError(w, r, "failed to save rule")
		return
	}
	writeJSON(w, http.StatusCreated, ruleWriteResponse[rules.DocumentOutcome]{Rule: saved, ETag: s.refreshRules(r, orgID)})
}

// handleDeleteDocumentRule handles DELETE /v1/orgs/{orgID}/document-rules/{ruleID}
func (s *Server) handleDeleteDocumentRule(w http.ResponseWriter, r *http.Request) {
	orgID, ruleID := chi.URLParam(r, "orgID"), chi.URLParam(r, "ruleID")
	s.finishDelete(w, r, orgID, audit.ResourceDocumentRule, ruleID, s.store.DeleteDocumentRule(r.Context(), orgID, ruleID))
}

func (s *Server) finishDelete(w http.ResponseWriter, r *http.Request, orgID, resourceType, ruleID string, err error) {
	if !errors.Is(err, store.ErrNotFound) {
		s.recordAudit(audit.NewEventBuilder(r, orgID).ForResource(resourceType, ruleID).
			WithAction(audit.ActionDeleted).Result(err))
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		NotFoundError(w, r, "rule not found")
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Str("org_id", orgID).Msg("delete rule failed")
		InternalError(w, r, "failed to delete rule")
		return
	}
	s.refreshRules(r, orgID)
	w.WriteHeader(http.StatusNoContent)
}

// refreshRules reloads the org's rule set after a write so evaluations and
// stream subscribers see it immediately. The write itself already succeeded,
// so a failed reload only drops the cache entry.
func (s *Server) refreshRules(r *http.Request, orgID string) string {
	rs, err := s.cache.Refresh(r.Context(), orgID)
	if err != nil {
		hlogWarn(r, err, "rule cache refresh failed")
		s.cache.Invalidate(orgID)
		return ""
	}
	return rs.ETag
}

func (s *Server) recordAudit(b *audit.EventBuilder) {
	if s.audit != nil {
		s.audit.Log(b.Build())
	}
}

func assignRuleID(id *string) {
	*id = strings.TrimSpace(*id)
	if *id == "" {
		*id = uuid.NewString()
	}
}
