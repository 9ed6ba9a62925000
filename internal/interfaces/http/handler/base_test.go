package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dplus/backend/internal/domain/order"
	"github.com/dplus/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc, method, path string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, "/test", handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBaseHandlerSuccess(t *testing.T) {
	h := &BaseHandler{}
	w := performRequest(func(c *gin.Context) {
		h.Success(c, gin.H{"value": 42})
	}, http.MethodGet, "/test")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestBaseHandlerHandleError(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", order.NewDomainError(order.ErrCodeNotFound, "no orders"), http.StatusNotFound, dto.ErrCodeNotFound},
		{"invalid input", order.NewDomainError(order.ErrCodeInvalidInput, "bad range"), http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"schema", order.NewDomainError(order.ErrCodeSchemaError, "missing column"), http.StatusUnprocessableEntity, dto.ErrCodeSchema},
		{"data loss", order.NewDomainError(order.ErrCodeDataLossSuspected, "store shrank"), http.StatusConflict, dto.ErrCodeDataLoss},
		{"integrity", order.NewDomainError(order.ErrCodeIntegrityViolation, "count mismatch"), http.StatusConflict, dto.ErrCodeIntegrity},
		{"unknown error hides its message", errors.New("sqlite exploded"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(func(c *gin.Context) {
				h.HandleError(c, tt.err)
			}, http.MethodGet, "/test")

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantCode == dto.ErrCodeInternal {
				assert.NotContains(t, resp.Error.Message, "sqlite")
			}
		})
	}
}

func TestBaseHandlerValidationError(t *testing.T) {
	h := &BaseHandler{}
	w := performRequest(func(c *gin.Context) {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "from", Message: "bad date"}})
	}, http.MethodGet, "/test")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "from", resp.Error.Details[0].Field)
}

func TestGetRequestIDFromContext(t *testing.T) {
	h := &BaseHandler{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(RequestIDKey, "req-ctx-1")
		c.Next()
	})
	r.GET("/test", func(c *gin.Context) {
		h.NotFound(c, "gone")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "req-ctx-1", resp.Error.RequestID)
}
