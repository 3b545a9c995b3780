package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/metrics"
)

// maxPageBytes bounds how much of a source page is scanned.
const maxPageBytes = 5 << 20

var ErrNoMedia = errors.New("no media url on page")

// Media is what a source page says about its audio file.
type Media struct {
	URL             string
	DurationSeconds int
}

// MediaResolver finds the audio file behind a shiur's page.
type MediaResolver interface {
	Resolve(ctx context.Context, pageURL string) (Media, error)
}

var (
	mp3URLPattern   = regexp.MustCompile(`\\?"mp3_url\\?"\s*:\s*\\?"((?:[^"\\]|\\/)+)\\?"`)
	durationPattern = regexp.MustCompile(`\\?"duration\\?"\s*:\s*(\d+)`)
)

// PageScraper resolves media by fetching the page and matching the
// mp3_url and duration fields embedded in it. The page may carry them as
// plain or backslash-escaped JSON.
type PageScraper struct {
	client  *http.Client
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[[]byte]
}

var _ MediaResolver = (*PageScraper)(nil)

func NewPageScraper(client *http.Client, timeout time.Duration) *PageScraper {
	if client == nil {
		client = &http.Client{}
	}
	const name = "media-pages"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.GetLoggerFromContext(context.Background()).Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &PageScraper{client: client, timeout: timeout, cb: cb}
}

func (p *PageScraper) Resolve(ctx context.Context, pageURL string) (Media, error) {
	page, err := p.cb.Execute(func() ([]byte, error) {
		return p.fetch(ctx, pageURL)
	})
	if err != nil {
		return Media{}, err
	}
	return ExtractMedia(page)
}

func (p *PageScraper) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { metrics.FeedFetchDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("failed to fetch %s: status %d", pageURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	return body, nil
}

// ExtractMedia pulls the media url and optional duration out of a page body.
func ExtractMedia(page []byte) (Media, error) {
	m := mp3URLPattern.FindSubmatch(page)
	if m == nil {
		return Media{}, ErrNoMedia
	}
	media := Media{URL: strings.ReplaceAll(string(m[1]), `\/`, "/")}

	if d := durationPattern.FindSubmatch(page); d != nil {
		if secs, err := strconv.Atoi(string(d[1])); err == nil {
			media.DurationSeconds = secs
		}
	}
	return media, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
