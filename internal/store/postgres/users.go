package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	row := &userRow{
		ID:           uuid.NewString(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Interests:    nonNil(u.Interests),
		Favorites:    nonNil(u.Favorites),
		Following:    nonNil(u.Following),
		ShiurNotes:   noteRows(u.ShiurNotes),
		CreatedAt:    u.CreatedAt,
	}

	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	u.ID = row.ID
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id)
	})
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("email = ?", email)
	})
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("username = ?", username)
	})
}

func (s *Store) FindUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	if tokenHash == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("reset_password_token = ?", tokenHash).
			Where("reset_password_expires > ?", now)
	})
}

func (s *Store) findUser(ctx context.Context, apply func(*bun.SelectQuery) *bun.SelectQuery) (*models.User, error) {
	row := new(userRow)
	if err := apply(s.db.NewSelect().Model(row)).Limit(1).Scan(ctx); err != nil {
		return nil, mapFindErr(err)
	}
	return row.model(), nil
}

func (s *Store) SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	return s.updateUser(ctx, userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("reset_password_token = ?", tokenHash).
			Set("reset_password_expires = ?", expires)
	})
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.updateUser(ctx, userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("password_hash = ?", passwordHash).
			Set("reset_password_token = NULL").
			Set("reset_password_expires = NULL")
	})
}

func (s *Store) SetRole(ctx context.Context, userID string, role models.Role) error {
	return s.updateUser(ctx, userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("role = ?", string(role))
	})
}

func (s *Store) SetInterests(ctx context.Context, userID string, shiurIDs []string) error {
	return s.updateUser(ctx, userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("interests = ?", pgdialect.Array(nonNil(shiurIDs)))
	})
}

func (s *Store) SetFavorites(ctx context.Context, userID string, shiurIDs []string) error {
	return s.updateUser(ctx, userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("favorites = ?", pgdialect.Array(nonNil(shiurIDs)))
	})
}

func (s *Store) SetSelections(ctx context.Context, userID string, interests, favorites []string) error {
	return s.updateUser(ctx, userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("interests = ?", pgdialect.Array(nonNil(interests))).
			Set("favorites = ?", pgdialect.Array(nonNil(favorites)))
	})
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, shiurID string) error {
	return s.updateUser(ctx, userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("favorites = array_remove(favorites, ?)", shiurID)
	})
}

func (s *Store) SaveNotes(ctx context.Context, userID string, notes []models.ShiurNote) error {
	raw, err := json.Marshal(noteRows(notes))
	if err != nil {
		return fmt.Errorf("failed to encode notes: %w", err)
	}
	return s.updateUser(ctx, userID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("shiur_notes = ?::jsonb", string(raw))
	})
}

// AddFollowing appends only when the id is absent, so a zero-row update means
// either "already following" or "no such user".
func (s *Store) AddFollowing(ctx context.Context, userID, rabbiID string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("following = array_append(following, ?)", rabbiID).
		Where("id = ?", userID).
		Where("NOT (? = ANY(following))", rabbiID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to add following: %w", err)
	}
	return s.changed(ctx, res, userID)
}

func (s *Store) RemoveFollowing(ctx context.Context, userID, rabbiID string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("following = array_remove(following, ?)", rabbiID).
		Where("id = ?", userID).
		Where("? = ANY(following)", rabbiID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to remove following: %w", err)
	}
	return s.changed(ctx, res, userID)
}

func (s *Store) changed(ctx context.Context, res sql.Result, userID string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	exists, err := s.db.NewSelect().Model((*userRow)(nil)).Where("id = ?", userID).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (s *Store) updateUser(ctx context.Context, userID string, apply func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := s.db.NewUpdate().Model((*userRow)(nil)).Where("id = ?", userID)
	res, err := apply(q).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return checkAffected(res)
}
