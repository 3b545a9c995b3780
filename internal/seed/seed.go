// Package seed loads demo rabbis and shiurim into an empty store.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

const demoShiurim = 50

var demoRabbis = []models.Rabbi{
	{Name: "Rabbi David Miller", Bio: "Expert in Talmud and Jewish Philosophy", Image: "/api/placeholder/150/150"},
	{Name: "Rabbi Sarah Cohen", Bio: "Specialist in Halacha and Modern Jewish Thought", Image: "/api/placeholder/150/150"},
	{Name: "Rabbi Michael Goldstein", Bio: "Torah scholar and community leader", Image: "/api/placeholder/150/150"},
	{Name: "Rabbi Rachel Green", Bio: "Expert in Jewish history and ethics", Image: "/api/placeholder/150/150"},
	{Name: "Rabbi Jonathan Silver", Bio: "Kabbalah and mysticism teacher", Image: "/api/placeholder/150/150"},
}

var (
	topics   = []string{"Talmud", "Halacha", "Torah", "Jewish Philosophy", "Kabbalah", "Jewish History", "Ethics"}
	levels   = []models.Level{models.LevelBeginner, models.LevelIntermediate, models.LevelAdvanced}
	parashot = []string{"Bereishit", "Noach", "Lech Lecha", "Vayera", "Chayei Sarah"}
)

// Result counts what Demo inserted.
type Result struct {
	Rabbis  int
	Shiurim int
}

// Demo inserts 5 rabbis and 50 shiurim. rng picks topics, levels and rabbis;
// pass a seeded source for repeatable data.
func Demo(ctx context.Context, s store.Store, rng *rand.Rand) (*Result, error) {
	rabbis := make([]models.Rabbi, len(demoRabbis))
	for i, r := range demoRabbis {
		if err := s.CreateRabbi(ctx, &r); err != nil {
			return nil, fmt.Errorf("failed to create rabbi %q: %w", r.Name, err)
		}
		rabbis[i] = r
	}

	shiurim := make([]models.Shiur, 0, demoShiurim)
	for i := range demoShiurim {
		pick := func(n int) int { return rng.IntN(n) }
		shiurim = append(shiurim, models.Shiur{
			Title:       fmt.Sprintf("Shiur %d: %s Insights", i+1, topics[pick(len(topics))]),
			Description: fmt.Sprintf("A comprehensive exploration of %s concepts and their practical applications.", strings.ToLower(topics[pick(len(topics))])),
			RabbiID:     rabbis[pick(len(rabbis))].ID,
			URL:         fmt.Sprintf("https://example.com/shiur-%d", i+1),
			Duration:    fmt.Sprintf("%d minutes", pick(60)+15),
			Topic:       topics[pick(len(topics))],
			Parasha:     parashot[i%len(parashot)],
			Level:       levels[pick(len(levels))],
			Views:       pick(1000),
		})
	}

	n, err := s.InsertShiurim(ctx, shiurim)
	if err != nil {
		return nil, fmt.Errorf("failed to insert shiurim: %w", err)
	}

	return &Result{Rabbis: len(rabbis), Shiurim: n}, nil
}

// IfEmpty seeds the store only when it holds no rabbis yet.
func IfEmpty(ctx context.Context, s store.Store, logger *logging.Logger) error {
	count, err := s.CountRabbis(ctx)
	if err != nil {
		return fmt.Errorf("failed to count rabbis: %w", err)
	}
	if count > 0 {
		return nil
	}

	logger.Info("initializing store with demo data", "store", s.Name())
	res, err := Demo(ctx, s, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	if err != nil {
		return err
	}
	logger.Info("demo data initialized", "rabbis", res.Rabbis, "shiurim", res.Shiurim)
	return nil
}
