// Package importer bulk-loads shiurim for one parasha from a CSV export.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/metrics"
	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

var (
	ErrParashaRequired = errors.New("parasha name required")
	ErrInvalidCSV      = errors.New("invalid CSV")
)

// Summary reports the outcome of one import.
type Summary struct {
	Message       string `json:"message"`
	Imported      int    `json:"imported"`
	Skipped       int    `json:"skipped"`
	RabbisCreated int    `json:"rabbisCreated"`
}

type Service struct {
	store  store.Store
	logger *logging.Logger
}

func NewService(s store.Store, logger *logging.Logger) *Service {
	return &Service{store: s, logger: logger}
}

// Import reads a CSV with a header row and inserts one shiur per complete
// row. The rabbi column may be named author or rabbi; unknown rabbis are
// created by exact name.
func (s *Service) Import(ctx context.Context, r io.Reader, parasha string) (*Summary, error) {
	parasha = strings.TrimSpace(parasha)
	if parasha == "" {
		return nil, ErrParashaRequired
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return s.finish(ctx, parasha, nil, 0, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
	}
	cols := columnIndex(header)

	rabbis := make(map[string]string)
	var (
		records []models.Shiur
		skipped int
		created int
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
		}

		name := cols.value(row, "author")
		if name == "" {
			name = cols.value(row, "rabbi")
		}
		title := cols.value(row, "title")
		link := cols.value(row, "link")
		if name == "" || title == "" || link == "" {
			skipped++
			continue
		}

		rabbiID, ok := rabbis[name]
		if !ok {
			var isNew bool
			rabbiID, isNew, err = s.findOrCreateRabbi(ctx, name)
			if err != nil {
				return nil, err
			}
			if isNew {
				created++
			}
			rabbis[name] = rabbiID
		}

		records = append(records, models.Shiur{
			Title:   title,
			RabbiID: rabbiID,
			URL:     link,
			Parasha: parasha,
		})
	}

	return s.finish(ctx, parasha, records, skipped, created)
}

func (s *Service) finish(ctx context.Context, parasha string, records []models.Shiur, skipped, created int) (*Summary, error) {
	if len(records) > 0 {
		if _, err := s.store.InsertShiurim(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to insert shiurim: %w", err)
		}
	}

	metrics.ImportRowsTotal.WithLabelValues("imported").Add(float64(len(records)))
	metrics.ImportRowsTotal.WithLabelValues("skipped").Add(float64(skipped))
	metrics.ImportRabbisCreatedTotal.Add(float64(created))

	s.logger.Info("shiurim imported",
		"parasha", parasha,
		"imported", len(records),
		"skipped", skipped,
		"rabbis_created", created,
	)

	return &Summary{
		Message:       fmt.Sprintf("Imported %d shiurim for parasha %s", len(records), parasha),
		Imported:      len(records),
		Skipped:       skipped,
		RabbisCreated: created,
	}, nil
}

func (s *Service) findOrCreateRabbi(ctx context.Context, name string) (string, bool, error) {
	r, err := s.store.FindRabbiByName(ctx, name)
	if err == nil {
		return r.ID, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", false, fmt.Errorf("failed to find rabbi %q: %w", name, err)
	}

	r = &models.Rabbi{Name: name}
	if err := s.store.CreateRabbi(ctx, r); err != nil {
		return "", false, fmt.Errorf("failed to create rabbi %q: %w", name, err)
	}
	return r.ID, true, nil
}

type columns map[string]int

func columnIndex(header []string) columns {
	cols := make(columns, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

func (c columns) value(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
