package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteCreated(w, map[string]string{"id": "123"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "123", response["id"])
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteMessage(w, "Password set successfully."))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Password set successfully."}`, w.Body.String())
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestWriteErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter) error
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{
			name: "bad request with details",
			write: func(w http.ResponseWriter) error {
				return WriteBadRequest(w, "validation_error", "Validation failed", map[string]interface{}{"email": "email is required"})
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_error",
			wantError:  "Validation failed",
		},
		{
			name:       "unauthorized default message",
			write:      func(w http.ResponseWriter) error { return WriteUnauthorized(w, "missing_or_malformed_credential", "") },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "missing_or_malformed_credential",
			wantError:  "Authentication required",
		},
		{
			name:       "forbidden",
			write:      func(w http.ResponseWriter) error { return WriteForbidden(w, "insufficient_role", "insufficient role") },
			wantStatus: http.StatusForbidden,
			wantCode:   "insufficient_role",
			wantError:  "insufficient role",
		},
		{
			name:       "not found",
			write:      func(w http.ResponseWriter) error { return WriteNotFound(w, "") },
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
			wantError:  "Resource not found",
		},
		{
			name:       "too many requests",
			write:      func(w http.ResponseWriter) error { return WriteTooManyRequests(w, "") },
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "rate_limited",
			wantError:  "Too many requests, please try again later",
		},
		{
			name:       "internal error defaults",
			write:      func(w http.ResponseWriter) error { return WriteInternalServerError(w, "", "") },
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
			wantError:  "Internal server error",
		},
		{
			name:       "status text when message empty",
			write:      func(w http.ResponseWriter) error { return WriteError(w, http.StatusConflict, "conflict", "", nil) },
			wantStatus: http.StatusConflict,
			wantCode:   "conflict",
			wantError:  "Conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantStatus, w.Code)
			response := decodeError(t, w)
			assert.Equal(t, tt.wantCode, response.Code)
			assert.Equal(t, tt.wantError, response.Error)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"email":"a@b.co"}`, ""},
		{"empty", ``, "request body is empty"},
		{"malformed", `{"email":`, "invalid JSON body"},
		{"trailing data", `{"email":"a@b.co"} {}`, "single JSON object"},
		{"too large", `{"email":"` + strings.Repeat("x", MaxBodyBytes) + `"}`, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := DecodeJSON(httptest.NewRecorder(), r, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "a@b.co", dst.Email)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
