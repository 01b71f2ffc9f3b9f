package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chimu.app/backend/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestResponseError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  any
	}{
		{"conflict", apperror.Conflict("team is full"), http.StatusConflict, "team is full"},
		{"not found sentinel", apperror.ErrNotFound, http.StatusNotFound, "resource not found"},
		{"internal hides cause", apperror.Internal("failed to load team", errors.New("pq: connection refused")), http.StatusInternalServerError, "failed to load team"},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "operation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext()
			ResponseError(c, tt.err)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantMsg, decode(t, w)["error"])
		})
	}
}

func TestResponseErrorValidation(t *testing.T) {
	c, w := newContext()
	ResponseError(c, apperror.NewValidationError("content", "Agreement content must be at least 10 characters"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields, ok := decode(t, w)["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"Agreement content must be at least 10 characters"}, fields["content"])
}

func TestGetUserID(t *testing.T) {
	id := uuid.New()

	c, _ := newContext()
	c.Set("user_id", id.String())
	got, err := GetUserID(c)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	c, _ = newContext()
	_, err = GetUserID(c)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	c, _ = newContext()
	c.Set("user_id", "not-a-uuid")
	_, err = GetUserID(c)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestParamUUID(t *testing.T) {
	id := uuid.New()

	c, _ := newContext()
	c.Params = gin.Params{{Key: "teamId", Value: id.String()}}
	got, ok := ParamUUID(c, "teamId")
	assert.True(t, ok)
	assert.Equal(t, id, got)

	c, w := newContext()
	c.Params = gin.Params{{Key: "teamId", Value: "abc"}}
	_, ok = ParamUUID(c, "teamId")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid teamId", decode(t, w)["error"])
}
