package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/TimurManjosov/loanrules/internal/eligibility"
	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/TimurManjosov/loanrules/internal/store"
	"github.com/TimurManjosov/loanrules/internal/validation"
)

// filterIgnoredHeader is set when the filter query parameter could not be
// parsed and the unfiltered list was served instead.
const filterIgnoredHeader = "X-Filter-Ignored"

type programsResponse struct {
	Programs []store.Program `json:"programs"`
}

// handleListPrograms handles GET /v1/orgs/{orgID}/programs?filter=
func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	programs, ok := s.activePrograms(w, r, orgID)
	if !ok {
		return
	}

	inputs, parsed := eligibility.ParseFilterParam(r.URL.Query().Get("filter"))
	switch {
	case !parsed:
		hlog.FromRequest(r).Debug().Str("org_id", orgID).Msg("unparsable filter ignored")
		w.Header().Set(filterIgnoredHeader, "true")
	case inputs != nil:
		programs = s.programs.FilterProgramsByConditions(r.Context(), orgID, programs, inputs)
	}

	writeJSON(w, http.StatusOK, programsResponse{Programs: programs})
}

type eligibleRequest struct {
	Inputs rules.Inputs `json:"inputs"`
}

// handleEligiblePrograms handles POST /v1/orgs/{orgID}/programs/eligible
func (s *Server) handleEligiblePrograms(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var req eligibleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if res := validation.ValidateInputs("inputs", req.Inputs); !res.Valid {
		ValidationError(w, r, ErrCodeValidation, "invalid inputs", res.Errors)
		return
	}

	programs, ok := s.activePrograms(w, r, orgID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.programs.Evaluate(r.Context(), orgID, programs, req.Inputs))
}

type documentsRequest struct {
	Values rules.Inputs `json:"values"`
	// DocTypeIDs asks for a per-document display state in the response.
	DocTypeIDs []int `json:"docTypeIds,omitempty"`
}

type documentsResponse struct {
	eligibility.DocumentLogic
	Display map[int]eligibility.DisplayState `json:"display,omitempty"`
}

// handleEvaluateDocuments handles POST /v1/orgs/{orgID}/documents/evaluate
func (s *Server) handleEvaluateDocuments(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var req documentsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if res := validation.ValidateInputs("values", req.Values); !res.Valid {
		ValidationError(w, r, ErrCodeValidation, "invalid values", res.Errors)
		return
	}

	logic := s.documents.Evaluate(r.Context(), orgID, req.Values)
	resp := documentsResponse{DocumentLogic: logic}
	if len(req.DocTypeIDs) > 0 {
		resp.Display = make(map[int]eligibility.DisplayState, len(req.DocTypeIDs))
		for _, id := range req.DocTypeIDs {
			resp.Display[id] = logic.DisplayState(id)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRuleSnapshot handles GET /v1/orgs/{orgID}/rules/snapshot
func (s *Server) handleRuleSnapshot(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	rs, err := s.cache.Get(r.Context(), orgID)
	if err != nil {
		hlogWarn(r, err, "rule snapshot unavailable")
		UnavailableError(w, r, "rules could not be loaded")
		return
	}

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == rs.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", rs.ETag)
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) activePrograms(w http.ResponseWriter, r *http.Request, orgID string) ([]store.Program, bool) {
	programs, err := s.store.ListPrograms(r.Context(), orgID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("org_id", orgID).Msg("list programs failed")
		InternalError(w, r, "failed to load programs")
		return nil, false
	}
	return store.ActivePrograms(programs), true
}

// decodeBody reads a JSON request body with numbers kept as json.Number.
// It writes the error response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(w, r, "request body too large")
			return false
		}
		BadRequestError(w, r, ErrCodeBadRequest, "failed to read request body")
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func hlogWarn(r *http.Request, err error, msg string) {
	hlog.FromRequest(r).Warn().Err(err).Msg(msg)
}
