package catalog

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
	"github.com/shiurfinder/shiurfinder/internal/store/memory"
)

type fixture struct {
	svc     *Service
	store   *memory.Store
	rabbis  []string
	shiurim []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	f := &fixture{svc: NewService(st), store: st}

	for i := range 2 {
		r := &models.Rabbi{Name: fmt.Sprintf("Rabbi %d", i)}
		require.NoError(t, st.CreateRabbi(ctx, r))
		f.rabbis = append(f.rabbis, r.ID)
	}
	for i := range 6 {
		sh := &models.Shiur{Title: fmt.Sprintf("Shiur %d", i), RabbiID: f.rabbis[i%2], URL: "https://example.com"}
		require.NoError(t, st.CreateShiur(ctx, sh))
		f.shiurim = append(f.shiurim, sh.ID)
	}
	return f
}

func TestListShiurimResolvesRabbis(t *testing.T) {
	f := newFixture(t)

	list, err := f.svc.ListShiurim(context.Background(), store.ShiurFilter{RabbiIDs: []string{f.rabbis[1]}})
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, sh := range list {
		require.NotNil(t, sh.Rabbi)
		assert.Equal(t, "Rabbi 1", sh.Rabbi.Name)
	}
}

func TestListShiurimShufflesOnlyUnfiltered(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.svc.shuffle = func(n int, swap func(i, j int)) {
		calls++
		swap(0, n-1)
	}
	ctx := context.Background()

	sorted, err := f.store.ListShiurim(ctx, store.ShiurFilter{})
	require.NoError(t, err)

	list, err := f.svc.ListShiurim(ctx, store.ShiurFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, sorted[0].ID, list[len(list)-1].ID)

	_, err = f.svc.ListShiurim(ctx, store.ShiurFilter{IDs: f.shiurim[:2]})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetShiur(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sh, err := f.svc.GetShiur(ctx, f.shiurim[0])
	require.NoError(t, err)
	require.NotNil(t, sh.Rabbi)
	assert.Equal(t, f.rabbis[0], sh.Rabbi.ID)

	_, err = f.svc.GetShiur(ctx, "missing")
	assert.ErrorIs(t, err, ErrShiurNotFound)
}

func TestCreateShiur(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sh := &models.Shiur{Title: "New", RabbiID: f.rabbis[0], URL: "https://example.com/new"}
	require.NoError(t, f.svc.CreateShiur(ctx, sh))
	assert.NotEmpty(t, sh.ID)
	assert.Equal(t, models.LevelIntermediate, sh.Level)
	require.NotNil(t, sh.Rabbi)

	err := f.svc.CreateShiur(ctx, &models.Shiur{Title: "Orphan", RabbiID: "missing", URL: "https://example.com"})
	assert.ErrorIs(t, err, ErrRabbiNotFound)

	err = f.svc.CreateShiur(ctx, &models.Shiur{Title: "Bad", RabbiID: f.rabbis[0], URL: "https://example.com", Level: "Expert"})
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestUpdateShiurPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	title := "Renamed"
	level := models.LevelAdvanced
	sh, err := f.svc.UpdateShiur(ctx, f.shiurim[0], ShiurPatch{Title: &title, Level: &level})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", sh.Title)
	assert.Equal(t, models.LevelAdvanced, sh.Level)
	assert.Equal(t, "https://example.com", sh.URL)

	stored, err := f.store.GetShiur(ctx, f.shiurim[0])
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)

	missing := "missing"
	_, err = f.svc.UpdateShiur(ctx, f.shiurim[0], ShiurPatch{RabbiID: &missing})
	assert.ErrorIs(t, err, ErrRabbiNotFound)

	_, err = f.svc.UpdateShiur(ctx, "missing", ShiurPatch{Title: &title})
	assert.ErrorIs(t, err, ErrShiurNotFound)
}

func TestDeleteShiur(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.DeleteShiur(ctx, f.shiurim[0]))
	assert.ErrorIs(t, f.svc.DeleteShiur(ctx, f.shiurim[0]), ErrShiurNotFound)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b", "c"}, splitList("a, b,,c"))
}

func (f *fixture) router() http.Handler {
	h := NewHandler(f.svc)
	r := chi.NewRouter()
	r.Get("/api/shiurim", h.ListShiurim)
	r.Get("/api/shiurim/{id}", h.GetShiur)
	r.Post("/api/shiurim", h.CreateShiur)
	r.Put("/api/shiurim/{id}", h.UpdateShiur)
	r.Delete("/api/shiurim/{id}", h.DeleteShiur)
	r.Get("/api/rabbis", h.ListRabbis)
	r.Post("/api/rabbis", h.CreateRabbi)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestHandlerListWithFilters(t *testing.T) {
	f := newFixture(t)
	h := f.router()

	rec := do(t, h, http.MethodGet, "/api/shiurim?ids="+f.shiurim[0]+","+f.shiurim[1], nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	rabbi, ok := list[0]["rabbi"].(map[string]any)
	require.True(t, ok, "rabbi should be resolved to an object")
	assert.NotEmpty(t, rabbi["name"])
}

func TestHandlerGetShiurNotFound(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.router(), http.MethodGet, "/api/shiurim/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCreateAndDelete(t *testing.T) {
	f := newFixture(t)
	h := f.router()

	rec := do(t, h, http.MethodPost, "/api/shiurim", CreateShiurRequest{Title: "x", Rabbi: f.rabbis[0]})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/shiurim", CreateShiurRequest{Title: "x", Rabbi: f.rabbis[0], URL: "https://example.com/x"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["_id"].(string)

	rec = do(t, h, http.MethodPut, "/api/shiurim/"+id, map[string]string{"parasha": "Vayera"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Vayera", updated["parasha"])
	assert.Equal(t, "x", updated["title"])

	rec = do(t, h, http.MethodDelete, "/api/shiurim/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/shiurim/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRabbis(t *testing.T) {
	f := newFixture(t)
	h := f.router()

	rec := do(t, h, http.MethodPost, "/api/rabbis", CreateRabbiRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/rabbis", CreateRabbiRequest{Name: "Rabbi New"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/rabbis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Rabbi
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 3)
}
