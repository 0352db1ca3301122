package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// APIClient issues requests straight into an http.Handler, usually the
// assembled gin engine, with an optional bearer token.
type APIClient struct {
	Handler http.Handler
	Token   string
}

// NewAPIClient creates a client for handler
func NewAPIClient(handler http.Handler, token string) *APIClient {
	return &APIClient{Handler: handler, Token: token}
}

// APIResponse is a recorded response
type APIResponse struct {
	*httptest.ResponseRecorder
	t *testing.T
}

// Do sends body as JSON when it is non-nil. headers are key/value pairs.
func (c *APIClient) Do(t *testing.T, method, path string, body any, headers ...string) *APIResponse {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = ToJSONReader(t, body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	c.Handler.ServeHTTP(w, req)
	return &APIResponse{ResponseRecorder: w, t: t}
}

// Get is Do with GET and no body
func (c *APIClient) Get(t *testing.T, path string) *APIResponse {
	t.Helper()
	return c.Do(t, http.MethodGet, path, nil)
}

// Post is Do with POST
func (c *APIClient) Post(t *testing.T, path string, body any, headers ...string) *APIResponse {
	t.Helper()
	return c.Do(t, http.MethodPost, path, body, headers...)
}

// Delete is Do with DELETE and no body
func (c *APIClient) Delete(t *testing.T, path string) *APIResponse {
	t.Helper()
	return c.Do(t, http.MethodDelete, path, nil)
}

// Envelope decodes the standard response wrapper
func (r *APIResponse) Envelope() dto.Response {
	r.t.Helper()

	var resp dto.Response
	require.NoError(r.t, json.Unmarshal(r.Body.Bytes(), &resp), "Failed to parse response: %s", r.Body.String())
	return resp
}

// DataAs decodes the envelope's data field into T
func DataAs[T any](t *testing.T, r *APIResponse) T {
	t.Helper()

	var resp struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &resp), "Failed to parse response: %s", r.Body.String())
	return resp.Data
}

// RequireStatus stops the test unless the status is expected
func (r *APIResponse) RequireStatus(expected int) *APIResponse {
	r.t.Helper()
	require.Equal(r.t, expected, r.Code, "Unexpected status, body: %s", r.Body.String())
	return r
}

// AssertError checks for a failed envelope carrying code
func (r *APIResponse) AssertError(status int, code string) {
	r.t.Helper()

	assert.Equal(r.t, status, r.Code, "Unexpected status, body: %s", r.Body.String())
	resp := r.Envelope()
	assert.False(r.t, resp.Success)
	if assert.NotNil(r.t, resp.Error, "Expected error object in response") {
		assert.Equal(r.t, code, resp.Error.Code)
	}
}

// ToJSONReader marshals v for use as a request body
func ToJSONReader(t *testing.T, v any) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "Failed to marshal to JSON")
	return bytes.NewReader(data)
}
