package user

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/auth"
	"github.com/shiurfinder/shiurfinder/internal/httputil"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

// serve routes one request as the fixture's user, skipping token checks.
func (f *fixture) serve(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.TokenClaims{UserID: f.userID}))

	r := chi.NewRouter()
	r.Route("/api/user", NewHandler(f.svc).Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerFavoritesRoutesShareBehavior(t *testing.T) {
	f := newFixture(t)

	rec := f.serve(t, http.MethodPost, "/api/user/favorites", ShiurIDsRequest{ShiurIDs: f.shiurim[:2]})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.shiurim[:2], f.user(t).Favorites)

	rec = f.serve(t, http.MethodPost, "/api/user/favorites/bulk", ShiurIDsRequest{ShiurIDs: f.shiurim[2:3]})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.shiurim[2:3], f.user(t).Favorites)

	rec = f.serve(t, http.MethodDelete, "/api/user/favorites/"+f.shiurim[2], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.user(t).Favorites)
}

func TestHandlerSetInterestsRequiresList(t *testing.T) {
	f := newFixture(t)

	rec := f.serve(t, http.MethodPost, "/api/user/interests", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.serve(t, http.MethodPost, "/api/user/interests", ShiurIDsRequest{ShiurIDs: []string{}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerRejectedShiurID(t *testing.T) {
	f := newFixture(t)
	f.store.setErr = fmt.Errorf("%w: %q", store.ErrInvalidID, "nope")

	rec := f.serve(t, http.MethodPost, "/api/user/favorites", ShiurIDsRequest{ShiurIDs: []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), httputil.CodeValidationError)
}

func TestHandlerProfile(t *testing.T) {
	f := newFixture(t)
	f.serve(t, http.MethodPost, "/api/user/interests", ShiurIDsRequest{ShiurIDs: f.shiurim[:1]})

	rec := f.serve(t, http.MethodGet, "/api/user/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dov", body["username"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "passwordHash")

	interests, ok := body["interests"].([]any)
	require.True(t, ok)
	require.Len(t, interests, 1)
	first := interests[0].(map[string]any)
	assert.Equal(t, f.shiurim[0], first["_id"])
}

func TestHandlerProfileMissingUser(t *testing.T) {
	f := newFixture(t)
	f.userID = "nobody"

	rec := f.serve(t, http.MethodGet, "/api/user/profile", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, httputil.CodeUserNotFound, resp.Code)
}

func TestHandlerNote(t *testing.T) {
	f := newFixture(t)

	rec := f.serve(t, http.MethodPut, "/api/user/shiur-note", NoteRequest{Note: "no shiur"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.serve(t, http.MethodPut, "/api/user/shiur-note", NoteRequest{ShiurID: f.shiurim[0], Note: "keep"})
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.user(t).ShiurNotes, 1)

	rec = f.serve(t, http.MethodPut, "/api/user/shiur-note", NoteRequest{ShiurID: f.shiurim[0], Note: ""})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.user(t).ShiurNotes)
}

func TestHandlerFollow(t *testing.T) {
	f := newFixture(t)

	rec := f.serve(t, http.MethodPost, "/api/user/follow", RabbiRequest{RabbiID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.serve(t, http.MethodPost, "/api/user/follow", RabbiRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.serve(t, http.MethodPost, "/api/user/follow", RabbiRequest{RabbiID: f.rabbis[0]})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.followers(t, f.rabbis[0]))

	rec = f.serve(t, http.MethodPost, "/api/user/unfollow", RabbiRequest{RabbiID: f.rabbis[0]})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.followers(t, f.rabbis[0]))
}

func TestHandlerFavoritesByParasha(t *testing.T) {
	f := newFixture(t)
	f.serve(t, http.MethodPost, "/api/user/favorites", ShiurIDsRequest{ShiurIDs: f.shiurim[:4]})

	rec := f.serve(t, http.MethodGet, "/api/user/favorites-by-parasha", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.serve(t, http.MethodGet, "/api/user/favorites-by-parasha?parasha=Bereishit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestHandlerOnboarding(t *testing.T) {
	f := newFixture(t)

	rec := f.serve(t, http.MethodPost, "/api/user/onboarding", OnboardingRequest{Interests: f.shiurim[:3], Favorites: f.shiurim[:1]})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, httputil.CodeInvalidSelection, resp.Code)

	rec = f.serve(t, http.MethodPost, "/api/user/onboarding", OnboardingRequest{Interests: f.shiurim[:22], Favorites: f.shiurim[5:11]})
	require.Equal(t, http.StatusOK, rec.Code)

	var status OnboardingStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StageComplete, status.Stage)
	assert.Equal(t, 22, status.Interests)
	assert.Equal(t, 6, status.Favorites)

	rec = f.serve(t, http.MethodGet, "/api/user/onboarding", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StageComplete, status.Stage)
}
