// Package feed builds RSS feeds of favorite shiurim and publishes them.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/metrics"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

var ErrUserNotFound = errors.New("user not found")

// Item is a favorite to put in a feed.
type Item struct {
	ID        string
	Title     string
	URL       string
	RabbiName string
}

type Service struct {
	store     store.Store
	resolver  MediaResolver
	publisher Publisher
	cfg       config.FeedConfig
	logger    *logging.Logger
	now       func() time.Time
}

// NewService wires the feed service. publisher may be nil, in which case
// Export fails with ErrPublisherNotConfigured.
func NewService(s store.Store, resolver MediaResolver, publisher Publisher, cfg config.FeedConfig, logger *logging.Logger) *Service {
	return &Service{
		store:     s,
		resolver:  resolver,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Build resolves every item concurrently and renders the feed. Items
// without a title or a resolvable media url are left out.
func (s *Service) Build(ctx context.Context, items []Item) ([]byte, error) {
	resolved := make([]*Entry, len(items))
	pubDate := s.now().UTC().Format(time.RFC1123Z)

	g, gctx := errgroup.WithContext(ctx)
	for i, it := range items {
		if it.Title == "" || it.URL == "" {
			continue
		}
		g.Go(func() error {
			media, err := s.resolver.Resolve(gctx, it.URL)
			if err != nil {
				s.logger.Debug("feed item dropped", "shiur_id", it.ID, "url", it.URL, "error", err)
				return nil
			}
			resolved[i] = &Entry{
				GUID:            it.ID,
				Title:           it.Title,
				RabbiName:       it.RabbiName,
				MediaURL:        media.URL,
				DurationSeconds: media.DurationSeconds,
				PubDate:         pubDate,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(items))
	for _, e := range resolved {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	metrics.FeedItemsTotal.WithLabelValues("included").Add(float64(len(entries)))
	metrics.FeedItemsTotal.WithLabelValues("dropped").Add(float64(len(items) - len(entries)))

	return RenderRSS(Channel{
		Title:       s.cfg.Title,
		Link:        s.cfg.Link,
		Description: s.cfg.Description,
	}, entries)
}

// Export builds the feed and publishes it to the configured path.
func (s *Service) Export(ctx context.Context, items []Item) error {
	if s.publisher == nil {
		return ErrPublisherNotConfigured
	}

	body, err := s.Build(ctx, items)
	if err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, s.cfg.Path, body); err != nil {
		metrics.FeedPublishTotal.WithLabelValues(s.publisher.Name(), "failed").Inc()
		return fmt.Errorf("failed to publish feed: %w", err)
	}
	metrics.FeedPublishTotal.WithLabelValues(s.publisher.Name(), "ok").Inc()

	s.logger.Info("feed published",
		"target", s.publisher.Name(),
		"path", s.cfg.Path,
		"items", len(items),
	)
	return nil
}

// UserFeed renders the feed of a user's favorites.
func (s *Service) UserFeed(ctx context.Context, username string) ([]byte, error) {
	items, err := s.userItems(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.Build(ctx, items)
}

// PublishUserFeed publishes a user's favorites feed.
func (s *Service) PublishUserFeed(ctx context.Context, username string) error {
	items, err := s.userItems(ctx, username)
	if err != nil {
		return err
	}
	return s.Export(ctx, items)
}

func (s *Service) userItems(ctx context.Context, username string) ([]Item, error) {
	u, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if len(u.Favorites) == 0 {
		return nil, nil
	}

	shiurim, err := s.store.ListShiurim(ctx, store.ShiurFilter{IDs: u.Favorites})
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	rabbiIDs := make([]string, 0, len(shiurim))
	for _, sh := range shiurim {
		rabbiIDs = append(rabbiIDs, sh.RabbiID)
	}
	rabbis, err := s.store.GetRabbis(ctx, rabbiIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rabbis: %w", err)
	}
	names := make(map[string]string, len(rabbis))
	for _, r := range rabbis {
		names[r.ID] = r.Name
	}

	items := make([]Item, 0, len(shiurim))
	for _, sh := range shiurim {
		items = append(items, Item{
			ID:        sh.ID,
			Title:     sh.Title,
			URL:       sh.URL,
			RabbiName: names[sh.RabbiID],
		})
	}
	return items, nil
}
