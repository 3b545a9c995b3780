// Package catalog serves shiurim and rabbis and lets admins edit them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

var (
	ErrShiurNotFound = errors.New("shiur not found")
	ErrRabbiNotFound = errors.New("rabbi not found")
	ErrInvalidLevel  = errors.New("level must be Beginner, Intermediate or Advanced")
)

type Service struct {
	store   store.Store
	shuffle func(n int, swap func(i, j int))
}

func NewService(s store.Store) *Service {
	return &Service{
		store:   s,
		shuffle: rand.Shuffle,
	}
}

// ListShiurim returns rabbi-resolved shiurim. Without filters the order is
// randomized on every call.
func (s *Service) ListShiurim(ctx context.Context, filter store.ShiurFilter) ([]models.Shiur, error) {
	shiurim, err := s.store.ListShiurim(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list shiurim: %w", err)
	}

	if err := s.resolveRabbis(ctx, shiurim); err != nil {
		return nil, err
	}

	if filter.Empty() {
		s.shuffle(len(shiurim), func(i, j int) { shiurim[i], shiurim[j] = shiurim[j], shiurim[i] })
	}
	return shiurim, nil
}

func (s *Service) GetShiur(ctx context.Context, id string) (*models.Shiur, error) {
	sh, err := s.store.GetShiur(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrShiurNotFound
		}
		return nil, fmt.Errorf("failed to get shiur: %w", err)
	}

	one := []models.Shiur{*sh}
	if err := s.resolveRabbis(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (s *Service) ListRabbis(ctx context.Context) ([]models.Rabbi, error) {
	rabbis, err := s.store.ListRabbis(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rabbis: %w", err)
	}
	return rabbis, nil
}

func (s *Service) CreateRabbi(ctx context.Context, r *models.Rabbi) error {
	r.Followers = 0
	if err := s.store.CreateRabbi(ctx, r); err != nil {
		return fmt.Errorf("failed to create rabbi: %w", err)
	}
	return nil
}

// CreateShiur stores a new shiur after checking that its rabbi exists.
func (s *Service) CreateShiur(ctx context.Context, sh *models.Shiur) error {
	if sh.Level != "" && !sh.Level.Valid() {
		return ErrInvalidLevel
	}

	rabbi, err := s.rabbi(ctx, sh.RabbiID)
	if err != nil {
		return err
	}

	sh.ID = ""
	sh.CreatedAt = time.Time{}
	if err := s.store.CreateShiur(ctx, sh); err != nil {
		return fmt.Errorf("failed to create shiur: %w", err)
	}
	sh.Rabbi = rabbi
	return nil
}

// ShiurPatch lists the fields an update may change. Nil fields are kept.
type ShiurPatch struct {
	Title       *string
	Description *string
	RabbiID     *string
	URL         *string
	Duration    *string
	Topic       *string
	Parasha     *string
	Level       *models.Level
}

// UpdateShiur applies patch to the stored shiur and returns the result.
func (s *Service) UpdateShiur(ctx context.Context, id string, patch ShiurPatch) (*models.Shiur, error) {
	sh, err := s.store.GetShiur(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrShiurNotFound
		}
		return nil, fmt.Errorf("failed to get shiur: %w", err)
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&sh.Title, patch.Title)
	set(&sh.Description, patch.Description)
	set(&sh.RabbiID, patch.RabbiID)
	set(&sh.URL, patch.URL)
	set(&sh.Duration, patch.Duration)
	set(&sh.Topic, patch.Topic)
	set(&sh.Parasha, patch.Parasha)
	if patch.Level != nil {
		if !patch.Level.Valid() {
			return nil, ErrInvalidLevel
		}
		sh.Level = *patch.Level
	}

	rabbi, err := s.rabbi(ctx, sh.RabbiID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateShiur(ctx, sh); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrShiurNotFound
		}
		return nil, fmt.Errorf("failed to update shiur: %w", err)
	}
	sh.Rabbi = rabbi
	return sh, nil
}

// DeleteShiur removes a shiur. References to it in user documents are left
// in place and skipped when profiles are resolved.
func (s *Service) DeleteShiur(ctx context.Context, id string) error {
	if err := s.store.DeleteShiur(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrShiurNotFound
		}
		return fmt.Errorf("failed to delete shiur: %w", err)
	}
	return nil
}

func (s *Service) rabbi(ctx context.Context, id string) (*models.Rabbi, error) {
	if id == "" {
		return nil, ErrRabbiNotFound
	}
	r, err := s.store.GetRabbi(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRabbiNotFound
		}
		return nil, fmt.Errorf("failed to get rabbi: %w", err)
	}
	return r, nil
}

// resolveRabbis attaches each shiur's rabbi with one batched lookup.
// Shiurim whose rabbi is gone keep the bare id.
func (s *Service) resolveRabbis(ctx context.Context, shiurim []models.Shiur) error {
	if len(shiurim) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, sh := range shiurim {
		if sh.RabbiID != "" && !seen[sh.RabbiID] {
			seen[sh.RabbiID] = true
			ids = append(ids, sh.RabbiID)
		}
	}

	rabbis, err := s.store.GetRabbis(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to resolve rabbis: %w", err)
	}
	byID := make(map[string]*models.Rabbi, len(rabbis))
	for i := range rabbis {
		byID[rabbis[i].ID] = &rabbis[i]
	}

	for i := range shiurim {
		shiurim[i].Rabbi = byID[shiurim[i].RabbiID]
	}
	return nil
}
