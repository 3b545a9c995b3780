package feed

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store/memory"
)

type fakeResolver struct {
	media map[string]Media
}

func (f *fakeResolver) Resolve(ctx context.Context, pageURL string) (Media, error) {
	m, ok := f.media[pageURL]
	if !ok {
		return Media{}, ErrNoMedia
	}
	return m, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	path  string
	body  []byte
	calls int
}

func (f *fakePublisher) Name() string { return "fake" }

func (f *fakePublisher) Publish(ctx context.Context, path string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.path, f.body = path, body
	return nil
}

var testFeedConfig = config.FeedConfig{
	Path:        "/public_html/feed.xml",
	Title:       "My Favorite Shiurim",
	Link:        "https://shiurfinder.com",
	Description: "Favorites",
}

func newTestService(st *memory.Store, pub Publisher) *Service {
	if st == nil {
		st = memory.New()
	}
	resolver := &fakeResolver{media: map[string]Media{
		"https://pages/1": {URL: "https://cdn/1.mp3", DurationSeconds: 3725},
		"https://pages/2": {URL: "https://cdn/2.mp3"},
	}}
	svc := NewService(st, resolver, pub, testFeedConfig, logging.Discard())
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

type parsedFeed struct {
	Channel struct {
		Title string `xml:"title"`
		Items []struct {
			Title       string `xml:"title"`
			Description string `xml:"description"`
			GUID        string `xml:"guid"`
			PubDate     string `xml:"pubDate"`
			Duration    string `xml:"duration"`
			Enclosure   struct {
				URL  string `xml:"url,attr"`
				Type string `xml:"type,attr"`
			} `xml:"enclosure"`
		} `xml:"item"`
	} `xml:"channel"`
}

func parseFeed(t *testing.T, body []byte) parsedFeed {
	t.Helper()
	var f parsedFeed
	require.NoError(t, xml.Unmarshal(body, &f))
	return f
}

func TestExtractMedia(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		wantURL  string
		wantSecs int
		wantErr  bool
	}{
		{
			name:     "plain json",
			page:     `{"mp3_url":"https://cdn/a.mp3","duration":125,"x":1}`,
			wantURL:  "https://cdn/a.mp3",
			wantSecs: 125,
		},
		{
			name:     "escaped json",
			page:     `var data = "{\"mp3_url\":\"https:\/\/cdn\/b.mp3\",\"duration\":3600,}"`,
			wantURL:  "https://cdn/b.mp3",
			wantSecs: 3600,
		},
		{
			name:    "no duration",
			page:    `"mp3_url":"https://cdn/c.mp3"`,
			wantURL: "https://cdn/c.mp3",
		},
		{
			name:    "missing",
			page:    `<html>nothing here</html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ExtractMedia([]byte(tt.page))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoMedia)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, m.URL)
			assert.Equal(t, tt.wantSecs, m.DurationSeconds)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "", FormatDuration(0))
	assert.Equal(t, "00:00:59", FormatDuration(59))
	assert.Equal(t, "01:02:05", FormatDuration(3725))
	assert.Equal(t, "27:46:40", FormatDuration(100000))
}

func TestBuildDropsUnresolvableItems(t *testing.T) {
	svc := newTestService(nil, nil)

	body, err := svc.Build(context.Background(), []Item{
		{ID: "1", Title: "First", URL: "https://pages/1", RabbiName: "Rabbi A"},
		{ID: "2", Title: "", URL: "https://pages/2"},
		{ID: "3", Title: "Broken", URL: "https://pages/404"},
		{ID: "4", Title: "Second", URL: "https://pages/2"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "<?xml"))
	assert.Contains(t, string(body), "<itunes:duration>01:02:05</itunes:duration>")

	f := parseFeed(t, body)
	assert.Equal(t, "My Favorite Shiurim", f.Channel.Title)
	require.Len(t, f.Channel.Items, 2)

	first := f.Channel.Items[0]
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, "Rabbi: Rabbi A", first.Description)
	assert.Equal(t, "https://cdn/1.mp3", first.Enclosure.URL)
	assert.Equal(t, "audio/mpeg", first.Enclosure.Type)
	assert.Equal(t, "1", first.GUID)
	assert.Equal(t, "Fri, 02 Jan 2026 03:04:05 +0000", first.PubDate)

	second := f.Channel.Items[1]
	assert.Equal(t, "Second", second.Title)
	assert.Empty(t, second.Description)
	assert.Empty(t, second.Duration)
}

func TestExportPublishes(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(nil, pub)

	require.NoError(t, svc.Export(context.Background(), []Item{{ID: "1", Title: "First", URL: "https://pages/1"}}))
	assert.Equal(t, "/public_html/feed.xml", pub.path)
	assert.Len(t, parseFeed(t, pub.body).Channel.Items, 1)
}

func TestExportFailures(t *testing.T) {
	svc := newTestService(nil, nil)
	assert.ErrorIs(t, svc.Export(context.Background(), nil), ErrPublisherNotConfigured)

	boom := errors.New("connection refused")
	svc = newTestService(nil, &fakePublisher{err: boom})
	assert.ErrorIs(t, svc.Export(context.Background(), nil), boom)
}

func TestUserFeed(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rabbi := &models.Rabbi{Name: "Rabbi A"}
	require.NoError(t, st.CreateRabbi(ctx, rabbi))
	sh := &models.Shiur{Title: "First", RabbiID: rabbi.ID, URL: "https://pages/1"}
	require.NoError(t, st.CreateShiur(ctx, sh))
	u := &models.User{Username: "dov", Email: "dov@example.com", PasswordHash: "x"}
	require.NoError(t, st.CreateUser(ctx, u))
	require.NoError(t, st.SetFavorites(ctx, u.ID, []string{sh.ID}))

	svc := newTestService(st, nil)

	body, err := svc.UserFeed(ctx, "dov")
	require.NoError(t, err)
	f := parseFeed(t, body)
	require.Len(t, f.Channel.Items, 1)
	assert.Equal(t, sh.ID, f.Channel.Items[0].GUID)
	assert.Equal(t, "Rabbi: Rabbi A", f.Channel.Items[0].Description)

	_, err = svc.UserFeed(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPageScraper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = io.WriteString(w, `<script>{"mp3_url":"https://cdn/x.mp3","duration":90,}</script>`)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewPageScraper(srv.Client(), 50*time.Millisecond)
	ctx := context.Background()

	m, err := p.Resolve(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.mp3", m.URL)
	assert.Equal(t, 90, m.DurationSeconds)

	_, err = p.Resolve(ctx, srv.URL+"/missing")
	assert.Error(t, err)

	_, err = p.Resolve(ctx, srv.URL+"/slow")
	assert.Error(t, err)
}

func TestFilePublisher(t *testing.T) {
	dir := t.TempDir()
	p := &FilePublisher{Dir: dir}
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, "/public_html/feed.xml", []byte("one")))
	require.NoError(t, p.Publish(ctx, "/public_html/feed.xml", []byte("two")))

	got, err := os.ReadFile(filepath.Join(dir, "public_html", "feed.xml"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	require.NoError(t, p.Publish(ctx, "../../escape.xml", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "escape.xml"))
	assert.NoError(t, err)
}

type fakePutter struct {
	in *s3.PutObjectInput
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	return &s3.PutObjectOutput{}, nil
}

func TestS3Publisher(t *testing.T) {
	putter := &fakePutter{}
	p := &S3Publisher{client: putter, bucket: "feeds"}

	require.NoError(t, p.Publish(context.Background(), "/public_html/feed.xml", []byte("<rss/>")))
	require.NotNil(t, putter.in)
	assert.Equal(t, "feeds", *putter.in.Bucket)
	assert.Equal(t, "public_html/feed.xml", *putter.in.Key)
	assert.Equal(t, contentType, *putter.in.ContentType)
}

func TestNewPublisher(t *testing.T) {
	ctx := context.Background()

	_, err := NewPublisher(ctx, config.FeedConfig{Target: config.PublishFTP})
	assert.ErrorIs(t, err, ErrPublisherNotConfigured)

	_, err = NewPublisher(ctx, config.FeedConfig{Target: config.PublishS3})
	assert.ErrorIs(t, err, ErrPublisherNotConfigured)

	p, err := NewPublisher(ctx, config.FeedConfig{Target: config.PublishFile, LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, config.PublishFile, p.Name())

	p, err = NewPublisher(ctx, config.FeedConfig{Target: config.PublishFTP, FTP: config.FTPConfig{Host: "ftp.example.com"}})
	require.NoError(t, err)
	assert.Equal(t, config.PublishFTP, p.Name())
}

func TestExportFavoritesHandler(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHandler(newTestService(nil, pub))

	body := `{"favorites":[
		{"_id":"1","title":"First","url":"https://pages/1","rabbi":{"_id":"r1","name":"Rabbi A"}},
		{"id":"2","title":"Second","url":"https://pages/2","rabbi":"Rabbi Cohen"}
	]}`
	rec := httptest.NewRecorder()
	h.ExportFavorites(rec, httptest.NewRequest(http.MethodPost, "/api/export-favorites", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	f := parseFeed(t, pub.body)
	require.Len(t, f.Channel.Items, 2)
	assert.Equal(t, "1", f.Channel.Items[0].GUID)
	assert.Equal(t, "Rabbi: Rabbi A", f.Channel.Items[0].Description)
	assert.Equal(t, "Rabbi: Rabbi Cohen", f.Channel.Items[1].Description)
}

func TestRabbiNameDecoding(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want RabbiName
	}{
		{"object", `{"_id":"r1","name":"Rabbi A"}`, "Rabbi A"},
		{"string", `"Rabbi Cohen"`, "Rabbi Cohen"},
		{"padded string", `" Rabbi Cohen "`, "Rabbi Cohen"},
		{"null", `null`, ""},
		{"number", `42`, ""},
		{"array", `["Rabbi A"]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item FavoriteItem
			require.NoError(t, json.Unmarshal([]byte(`{"id":"1","rabbi":`+tt.raw+`}`), &item))
			assert.Equal(t, tt.want, item.Rabbi)
		})
	}
}

func TestExportFavoritesHandlerPublishFailure(t *testing.T) {
	h := NewHandler(newTestService(nil, &fakePublisher{err: errors.New("down")}))

	rec := httptest.NewRecorder()
	h.ExportFavorites(rec, httptest.NewRequest(http.MethodPost, "/api/export-favorites", strings.NewReader(`{"favorites":[]}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["error"])
}

func TestUserRSSHandler(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.CreateUser(ctx, &models.User{Username: "dov", Email: "dov@example.com", PasswordHash: "x"}))

	r := chi.NewRouter()
	r.Get("/api/rss/{username}", NewHandler(newTestService(st, nil)).UserRSS)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rss/dov", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml", rec.Header().Get("Content-Type"))
	assert.Empty(t, parseFeed(t, rec.Body.Bytes()).Channel.Items)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rss/nobody", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
