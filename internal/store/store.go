// Package store defines the persistence contract for users, rabbis and shiurim.
//
// Three implementations exist: the MongoDB document store (store/mongo), a
// PostgreSQL store with the same document shape (store/postgres) and the
// in-memory mock store (store/memory) used as a development fallback and in
// tests. Callers depend on the Store interface only.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shiurfinder/shiurfinder/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
	ErrInvalidID = errors.New("invalid id")
)

// ShiurFilter narrows ListShiurim. Empty fields do not filter.
type ShiurFilter struct {
	IDs      []string
	RabbiIDs []string
	Parasha  string
}

// Empty reports whether the filter selects every shiur.
func (f ShiurFilter) Empty() bool {
	return len(f.IDs) == 0 && len(f.RabbiIDs) == 0 && f.Parasha == ""
}

type UserStore interface {
	// CreateUser assigns the user an id and inserts it. Returns ErrDuplicate
	// when the username or email is taken.
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	// FindUserByResetToken returns the user holding tokenHash whose reset
	// window has not passed at now.
	FindUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error
	// UpdatePassword replaces the hash and clears any reset token.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetRole(ctx context.Context, userID string, role models.Role) error

	// SetInterests, SetFavorites and SetSelections return ErrInvalidID when a
	// shiur id is in a format the backend cannot store, and write nothing.
	SetInterests(ctx context.Context, userID string, shiurIDs []string) error
	SetFavorites(ctx context.Context, userID string, shiurIDs []string) error
	// SetSelections writes interests and favorites in a single update.
	SetSelections(ctx context.Context, userID string, interests, favorites []string) error
	RemoveFavorite(ctx context.Context, userID, shiurID string) error
	SaveNotes(ctx context.Context, userID string, notes []models.ShiurNote) error
	// AddFollowing adds rabbiID unless present and reports whether it did.
	AddFollowing(ctx context.Context, userID, rabbiID string) (bool, error)
	// RemoveFollowing removes rabbiID and reports whether it was present.
	RemoveFollowing(ctx context.Context, userID, rabbiID string) (bool, error)
}

type RabbiStore interface {
	CreateRabbi(ctx context.Context, r *models.Rabbi) error
	GetRabbi(ctx context.Context, id string) (*models.Rabbi, error)
	FindRabbiByName(ctx context.Context, name string) (*models.Rabbi, error)
	ListRabbis(ctx context.Context) ([]models.Rabbi, error)
	// GetRabbis returns the rabbis among ids that exist, in no particular order.
	GetRabbis(ctx context.Context, ids []string) ([]models.Rabbi, error)
	CountRabbis(ctx context.Context) (int, error)
	// AdjustFollowers adds delta to the follower count, never going below zero.
	AdjustFollowers(ctx context.Context, rabbiID string, delta int) error
}

type ShiurStore interface {
	CreateShiur(ctx context.Context, s *models.Shiur) error
	// InsertShiurim bulk inserts and returns the number stored.
	InsertShiurim(ctx context.Context, shiurim []models.Shiur) (int, error)
	GetShiur(ctx context.Context, id string) (*models.Shiur, error)
	// ListShiurim returns matching shiurim, newest first.
	ListShiurim(ctx context.Context, filter ShiurFilter) ([]models.Shiur, error)
	UpdateShiur(ctx context.Context, s *models.Shiur) error
	DeleteShiur(ctx context.Context, id string) error
}

// Store is the full persistence surface.
type Store interface {
	UserStore
	RabbiStore
	ShiurStore

	// Name identifies the backend ("mongo", "postgres", "memory").
	Name() string
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
