package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/httputil"
)

func TestRequireAuth(t *testing.T) {
	tokens, err := NewJWTService([]byte("test-secret"))
	require.NoError(t, err)
	mw := NewMiddleware(tokens)

	var gotUserID string
	protected := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid, err := tokens.CreateToken(testUser(), time.Hour)
	require.NoError(t, err)
	expired, err := tokens.CreateToken(testUser(), -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, httputil.CodeMissingAuth},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, httputil.CodeInvalidAuthHeader},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, httputil.CodeInvalidAuthHeader},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized, httputil.CodeInvalidToken},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, httputil.CodeTokenExpired},
		{"valid token", "Bearer " + valid, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, rec).Code)
				assert.Empty(t, gotUserID)
			} else {
				assert.Equal(t, "u-1", gotUserID)
			}
		})
	}
}

func TestClaimsFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ClaimsFromContext(req.Context())
	assert.False(t, ok)
}
