package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TimurManjosov/loanrules/internal/eligibility"
	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/TimurManjosov/loanrules/internal/snapshot"
	"github.com/TimurManjosov/loanrules/internal/store"
)

// Client is an HTTP client for the loanrules API
type Client struct {
	BaseURL    string
	APIKey     string
	OrgID      string
	HTTPClient *http.Client
}

// NewClient creates a new API client scoped to one organization
func NewClient(baseURL, apiKey, orgID string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		OrgID:   orgID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (status %d)", e.StatusCode)
	}
	msg := fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	for field, problem := range e.Fields {
		msg += fmt.Sprintf("; %s: %s", field, problem)
	}
	return msg
}

// ListPrograms returns the organization's active programs, filtered by inputs
// when inputs is non-nil.
func (c *Client) ListPrograms(ctx context.Context, inputs rules.Inputs) ([]store.Program, error) {
	query := url.Values{}
	if inputs != nil {
		raw, err := json.Marshal(inputs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal filter: %w", err)
		}
		query.Set("filter", string(raw))
	}

	var result struct {
		Programs []store.Program `json:"programs"`
	}
	if err := c.do(ctx, http.MethodGet, "/programs", query, nil, &result); err != nil {
		return nil, err
	}
	return result.Programs, nil
}

// EligiblePrograms returns the eligible programs and why the others were excluded.
func (c *Client) EligiblePrograms(ctx context.Context, inputs rules.Inputs) (*eligibility.ProgramResult, error) {
	var result eligibility.ProgramResult
	body := map[string]any{"inputs": inputs}
	if err := c.do(ctx, http.MethodPost, "/programs/eligible", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DocumentResult is the server's document evaluation.
type DocumentResult struct {
	eligibility.DocumentLogic
	Display map[int]eligibility.DisplayState `json:"display,omitempty"`
}

// EvaluateDocuments returns the hidden and required document types for values.
// docTypeIDs, when given, also asks for a display state per id.
func (c *Client) EvaluateDocuments(ctx context.Context, values rules.Inputs, docTypeIDs []int) (*DocumentResult, error) {
	var result DocumentResult
	body := map[string]any{"values": values, "docTypeIds": docTypeIDs}
	if err := c.do(ctx, http.MethodPost, "/documents/evaluate", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RuleSnapshot fetches the organization's full rule set.
func (c *Client) RuleSnapshot(ctx context.Context) (*snapshot.RuleSet, error) {
	var rs snapshot.RuleSet
	if err := c.do(ctx, http.MethodGet, "/rules/snapshot", nil, nil, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// UpsertProgram creates or updates a program.
func (c *Client) UpsertProgram(ctx context.Context, p store.Program) (*store.Program, error) {
	body := map[string]any{"name": p.Name, "description": p.Description, "active": p.Active}
	var saved store.Program
	if err := c.do(ctx, http.MethodPut, "/programs/"+url.PathEscape(p.ID), nil, body, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// UpsertProgramRule creates or replaces a program rule and returns it as stored.
func (c *Client) UpsertProgramRule(ctx context.Context, rule rules.ProgramRule) (rules.ProgramRule, error) {
	var result struct {
		Rule rules.ProgramRule `json:"rule"`
	}
	err := c.do(ctx, http.MethodPost, "/program-rules", nil, rule, &result)
	return result.Rule, err
}

// UpsertDocumentRule creates or replaces a document rule and returns it as stored.
func (c *Client) UpsertDocumentRule(ctx context.Context, rule rules.DocumentRule) (rules.DocumentRule, error) {
	var result struct {
		Rule rules.DocumentRule `json:"rule"`
	}
	err := c.do(ctx, http.MethodPost, "/document-rules", nil, rule, &result)
	return result.Rule, err
}

// DeleteProgramRule deletes a program rule
func (c *Client) DeleteProgramRule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/program-rules/"+url.PathEscape(id), nil, nil, nil)
}

// DeleteDocumentRule deletes a document rule
func (c *Client) DeleteDocumentRule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/document-rules/"+url.PathEscape(id), nil, nil, nil)
}

// do sends one request under /v1/orgs/{orgID} and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + "/v1/orgs/" + url.PathEscape(c.OrgID) + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		bodyBytes, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(bodyBytes, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(bodyBytes))
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
