package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

var testPrincipal = shared.NewPrincipal(uuid.New(), uuid.New())

// newTestEngine returns an engine whose requests carry testPrincipal and a
// fixed request id
func newTestEngine() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.RequestIDKey, "req-test")
		middleware.SetPrincipal(c, testPrincipal)
		c.Next()
	})
	return r
}

func doJSON(r http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped not found", fmt.Errorf("load document: %w", shared.ErrNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
		{"concurrency", shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"invalid line item", shared.ErrInvalidLineItem, http.StatusBadRequest, dto.ErrCodeInvalidLineItem},
		{"item not found", shared.ErrItemNotFound, http.StatusUnprocessableEntity, dto.ErrCodeItemNotFound},
		{"over allocation", shared.ErrOverAllocation, http.StatusUnprocessableEntity, dto.ErrCodeOverAllocation},
		{"over payment", shared.ErrOverPayment, http.StatusUnprocessableEntity, dto.ErrCodeOverPayment},
		{"document mismatch", shared.ErrDocumentMismatch, http.StatusUnprocessableEntity, dto.ErrCodeDocumentMismatch},
		{"document locked", shared.ErrDocumentLocked, http.StatusConflict, dto.ErrCodeDocumentLocked},
		{"linked payments", shared.ErrHasLinkedPayments, http.StatusConflict, dto.ErrCodeHasLinkedPayments},
		{"aborted", shared.ErrAborted, http.StatusConflict, dto.ErrCodeAborted},
		{"duplicate request", shared.ErrDuplicateRequest, http.StatusConflict, dto.ErrCodeDuplicateRequest},
		{"plain error", assert.AnError, http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			r := newTestEngine()
			r.GET("/", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := doJSON(r, http.MethodGet, "/", nil)
			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "req-test", resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.HandleError(c, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestBaseHandler_PrincipalRequired(t *testing.T) {
	h := &BaseHandler{}
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		if _, ok := h.principal(c); ok {
			c.Status(http.StatusOK)
		}
	})

	w := doJSON(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, decode(t, w).Error.Code)
}

func TestBaseHandler_PathID(t *testing.T) {
	h := &BaseHandler{}
	r := newTestEngine()
	r.GET("/:id", func(c *gin.Context) {
		if id, ok := h.pathID(c, "id"); ok {
			c.String(http.StatusOK, id.String())
		}
	})

	id := uuid.New()
	w := doJSON(r, http.MethodGet, "/"+id.String(), nil)
	assert.Equal(t, id.String(), w.Body.String())

	w = doJSON(r, http.MethodGet, "/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decode(t, w).Error.Code)
}

func TestBaseHandler_SuccessWithMeta(t *testing.T) {
	h := &BaseHandler{}
	r := newTestEngine()
	r.GET("/", func(c *gin.Context) { h.SuccessWithMeta(c, []int{1, 2}, 45, 2, 0) })

	resp := decode(t, doJSON(r, http.MethodGet, "/", nil))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 20, resp.Meta.PageSize)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}
