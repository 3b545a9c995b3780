package user

import (
	"context"
	"fmt"
	"time"

	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

// Profile is a user with every reference resolved one hop. The password
// and reset state are never part of it.
type Profile struct {
	ID         string         `json:"_id"`
	Username   string         `json:"username"`
	Email      string         `json:"email"`
	Role       models.Role    `json:"role"`
	Interests  []models.Shiur `json:"interests"`
	Favorites  []models.Shiur `json:"favorites"`
	Following  []models.Rabbi `json:"following"`
	ShiurNotes []ProfileNote  `json:"shiurNotes"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ProfileNote is a note with its shiur attached. Shiur is nil when the shiur
// has since been deleted; the note text is kept.
type ProfileNote struct {
	ShiurID   string        `json:"shiurId"`
	Shiur     *models.Shiur `json:"shiur"`
	Note      string        `json:"note"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Profile loads the user and resolves interests, favorites, following and
// note shiurim in stored order. Dangling references are skipped.
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, userErr(err, "failed to get user")
	}

	wanted := make([]string, 0, len(u.Interests)+len(u.Favorites)+len(u.ShiurNotes))
	wanted = append(wanted, u.Interests...)
	wanted = append(wanted, u.Favorites...)
	for _, n := range u.ShiurNotes {
		wanted = append(wanted, n.ShiurID)
	}

	shiurim, err := s.shiurimByID(ctx, uniqueIDs(wanted))
	if err != nil {
		return nil, err
	}

	rabbis, err := s.rabbisByID(ctx, u.Following)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		Interests:  pickShiurim(u.Interests, shiurim),
		Favorites:  pickShiurim(u.Favorites, shiurim),
		Following:  make([]models.Rabbi, 0, len(u.Following)),
		ShiurNotes: make([]ProfileNote, 0, len(u.ShiurNotes)),
		CreatedAt:  u.CreatedAt,
	}
	for _, id := range u.Following {
		if r, ok := rabbis[id]; ok {
			p.Following = append(p.Following, r)
		}
	}
	for _, n := range u.ShiurNotes {
		note := ProfileNote{
			ShiurID:   n.ShiurID,
			Note:      n.Note,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		}
		if sh, ok := shiurim[n.ShiurID]; ok {
			note.Shiur = &sh
		}
		p.ShiurNotes = append(p.ShiurNotes, note)
	}

	return p, nil
}

func (s *Service) shiurimByID(ctx context.Context, ids []string) (map[string]models.Shiur, error) {
	out := make(map[string]models.Shiur, len(ids))
	if len(ids) == 0 {
		// An empty filter would select every shiur.
		return out, nil
	}

	list, err := s.store.ListShiurim(ctx, store.ShiurFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve shiurim: %w", err)
	}
	for _, sh := range list {
		out[sh.ID] = sh
	}
	return out, nil
}

func (s *Service) rabbisByID(ctx context.Context, ids []string) (map[string]models.Rabbi, error) {
	out := make(map[string]models.Rabbi, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	list, err := s.store.GetRabbis(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rabbis: %w", err)
	}
	for _, r := range list {
		out[r.ID] = r
	}
	return out, nil
}

func pickShiurim(ids []string, byID map[string]models.Shiur) []models.Shiur {
	out := make([]models.Shiur, 0, len(ids))
	for _, id := range ids {
		if sh, ok := byID[id]; ok {
			out = append(out, sh)
		}
	}
	return out
}
