// Package memory is the in-memory Store used when the database is unavailable
// and in tests. Every Store value is isolated; there is no package state.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

// Store keeps users, rabbis and shiurim in maps guarded by a single RWMutex.
// Values are copied on the way in and out so callers never share memory
// with the store.
type Store struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	rabbis  map[string]*models.Rabbi
	shiurim map[string]*models.Shiur
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:   make(map[string]*models.User),
		rabbis:  make(map[string]*models.Rabbi),
		shiurim: make(map[string]*models.Shiur),
		now:     time.Now,
	}
}

func (s *Store) Name() string                   { return "memory" }
func (s *Store) Ping(ctx context.Context) error  { return nil }
func (s *Store) Close(ctx context.Context) error { return nil }

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}

	u.ID = uuid.NewString()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.Email == email })
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.Username == username })
}

func (s *Store) FindUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.findUser(func(u *models.User) bool {
		return tokenHash != "" &&
			u.ResetPasswordToken == tokenHash &&
			u.ResetPasswordExpires != nil &&
			u.ResetPasswordExpires.After(now)
	})
}

func (s *Store) findUser(match func(*models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	return s.updateUser(userID, func(u *models.User) {
		u.ResetPasswordToken = tokenHash
		u.ResetPasswordExpires = &expires
	})
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.updateUser(userID, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.ResetPasswordToken = ""
		u.ResetPasswordExpires = nil
	})
}

func (s *Store) SetRole(ctx context.Context, userID string, role models.Role) error {
	return s.updateUser(userID, func(u *models.User) { u.Role = role })
}

func (s *Store) SetInterests(ctx context.Context, userID string, shiurIDs []string) error {
	return s.updateUser(userID, func(u *models.User) { u.Interests = slices.Clone(shiurIDs) })
}

func (s *Store) SetFavorites(ctx context.Context, userID string, shiurIDs []string) error {
	return s.updateUser(userID, func(u *models.User) { u.Favorites = slices.Clone(shiurIDs) })
}

func (s *Store) SetSelections(ctx context.Context, userID string, interests, favorites []string) error {
	return s.updateUser(userID, func(u *models.User) {
		u.Interests = slices.Clone(interests)
		u.Favorites = slices.Clone(favorites)
	})
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, shiurID string) error {
	return s.updateUser(userID, func(u *models.User) {
		u.Favorites = slices.DeleteFunc(u.Favorites, func(id string) bool { return id == shiurID })
	})
}

func (s *Store) SaveNotes(ctx context.Context, userID string, notes []models.ShiurNote) error {
	return s.updateUser(userID, func(u *models.User) { u.ShiurNotes = slices.Clone(notes) })
}

func (s *Store) AddFollowing(ctx context.Context, userID, rabbiID string) (bool, error) {
	var added bool
	err := s.updateUser(userID, func(u *models.User) {
		if !slices.Contains(u.Following, rabbiID) {
			u.Following = append(u.Following, rabbiID)
			added = true
		}
	})
	return added, err
}

func (s *Store) RemoveFollowing(ctx context.Context, userID, rabbiID string) (bool, error) {
	var removed bool
	err := s.updateUser(userID, func(u *models.User) {
		before := len(u.Following)
		u.Following = slices.DeleteFunc(u.Following, func(id string) bool { return id == rabbiID })
		removed = len(u.Following) != before
	})
	return removed, err
}

func (s *Store) updateUser(id string, mutate func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	mutate(u)
	return nil
}

// --- rabbis ---

func (s *Store) CreateRabbi(ctx context.Context, r *models.Rabbi) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = uuid.NewString()
	cp := *r
	s.rabbis[r.ID] = &cp
	return nil
}

func (s *Store) GetRabbi(ctx context.Context, id string) (*models.Rabbi, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rabbis[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) FindRabbiByName(ctx context.Context, name string) (*models.Rabbi, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rabbis {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListRabbis(ctx context.Context) ([]models.Rabbi, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Rabbi, 0, len(s.rabbis))
	for _, r := range s.rabbis {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetRabbis(ctx context.Context, ids []string) ([]models.Rabbi, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Rabbi, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if r, ok := s.rabbis[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *Store) CountRabbis(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rabbis), nil
}

func (s *Store) AdjustFollowers(ctx context.Context, rabbiID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rabbis[rabbiID]
	if !ok {
		return store.ErrNotFound
	}
	r.Followers = max(r.Followers+delta, 0)
	return nil
}

// --- shiurim ---

func (s *Store) CreateShiur(ctx context.Context, sh *models.Shiur) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertShiurLocked(sh)
	return nil
}

func (s *Store) InsertShiurim(ctx context.Context, shiurim []models.Shiur) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range shiurim {
		s.insertShiurLocked(&shiurim[i])
	}
	return len(shiurim), nil
}

func (s *Store) insertShiurLocked(sh *models.Shiur) {
	sh.ID = uuid.NewString()
	sh.ApplyDefaults(s.now())
	cp := *sh
	cp.Rabbi = nil
	s.shiurim[sh.ID] = &cp
}

func (s *Store) GetShiur(ctx context.Context, id string) (*models.Shiur, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shiurim[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sh
	return &cp, nil
}

func (s *Store) ListShiurim(ctx context.Context, filter store.ShiurFilter) ([]models.Shiur, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Shiur, 0, len(s.shiurim))
	for _, sh := range s.shiurim {
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, sh.ID) {
			continue
		}
		if len(filter.RabbiIDs) > 0 && !slices.Contains(filter.RabbiIDs, sh.RabbiID) {
			continue
		}
		if filter.Parasha != "" && sh.Parasha != filter.Parasha {
			continue
		}
		out = append(out, *sh)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateShiur(ctx context.Context, sh *models.Shiur) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.shiurim[sh.ID]
	if !ok {
		return store.ErrNotFound
	}
	cp := *sh
	cp.Rabbi = nil
	cp.CreatedAt = existing.CreatedAt
	s.shiurim[sh.ID] = &cp
	return nil
}

func (s *Store) DeleteShiur(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shiurim[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.shiurim, id)
	return nil
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.Interests = slices.Clone(u.Interests)
	cp.Favorites = slices.Clone(u.Favorites)
	cp.Following = slices.Clone(u.Following)
	cp.ShiurNotes = slices.Clone(u.ShiurNotes)
	if u.ResetPasswordExpires != nil {
		t := *u.ResetPasswordExpires
		cp.ResetPasswordExpires = &t
	}
	return &cp
}
