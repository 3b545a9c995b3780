package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

func (s *Store) CreateRabbi(ctx context.Context, r *models.Rabbi) error {
	row := &rabbiRow{
		ID:        uuid.NewString(),
		Name:      r.Name,
		Bio:       r.Bio,
		Image:     r.Image,
		Followers: r.Followers,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert rabbi: %w", err)
	}
	r.ID = row.ID
	return nil
}

func (s *Store) GetRabbi(ctx context.Context, id string) (*models.Rabbi, error) {
	return s.findRabbi(ctx, "id = ?", id)
}

func (s *Store) FindRabbiByName(ctx context.Context, name string) (*models.Rabbi, error) {
	return s.findRabbi(ctx, "name = ?", name)
}

func (s *Store) findRabbi(ctx context.Context, where string, arg any) (*models.Rabbi, error) {
	row := new(rabbiRow)
	if err := s.db.NewSelect().Model(row).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		return nil, mapFindErr(err)
	}
	r := row.model()
	return &r, nil
}

func (s *Store) ListRabbis(ctx context.Context) ([]models.Rabbi, error) {
	return s.listRabbis(ctx, nil)
}

func (s *Store) GetRabbis(ctx context.Context, ids []string) ([]models.Rabbi, error) {
	if len(ids) == 0 {
		return []models.Rabbi{}, nil
	}
	return s.listRabbis(ctx, ids)
}

func (s *Store) listRabbis(ctx context.Context, ids []string) ([]models.Rabbi, error) {
	var rows []rabbiRow
	q := s.db.NewSelect().Model(&rows).Order("name ASC")
	if ids != nil {
		q = q.Where("id IN (?)", bun.In(ids))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query rabbis: %w", err)
	}

	out := make([]models.Rabbi, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

func (s *Store) CountRabbis(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*rabbiRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count rabbis: %w", err)
	}
	return n, nil
}

func (s *Store) AdjustFollowers(ctx context.Context, rabbiID string, delta int) error {
	res, err := s.db.NewUpdate().
		Model((*rabbiRow)(nil)).
		Set("followers = GREATEST(followers + ?, 0)", delta).
		Where("id = ?", rabbiID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to adjust followers: %w", err)
	}
	return checkAffected(res)
}

func (s *Store) CreateShiur(ctx context.Context, sh *models.Shiur) error {
	sh.ApplyDefaults(time.Now())
	sh.ID = uuid.NewString()

	if _, err := s.db.NewInsert().Model(newShiurRow(sh)).Exec(ctx); err != nil {
		sh.ID = ""
		return fmt.Errorf("failed to insert shiur: %w", err)
	}
	return nil
}

func (s *Store) InsertShiurim(ctx context.Context, shiurim []models.Shiur) (int, error) {
	if len(shiurim) == 0 {
		return 0, nil
	}

	now := time.Now()
	rows := make([]*shiurRow, 0, len(shiurim))
	for i := range shiurim {
		shiurim[i].ApplyDefaults(now)
		shiurim[i].ID = uuid.NewString()
		rows = append(rows, newShiurRow(&shiurim[i]))
	}

	res, err := s.db.NewInsert().Model(&rows).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to insert shiurim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(rows), nil
	}
	return int(n), nil
}

func (s *Store) GetShiur(ctx context.Context, id string) (*models.Shiur, error) {
	row := new(shiurRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, mapFindErr(err)
	}
	sh := row.model()
	return &sh, nil
}

func (s *Store) ListShiurim(ctx context.Context, filter store.ShiurFilter) ([]models.Shiur, error) {
	var rows []shiurRow
	q := s.db.NewSelect().Model(&rows).Order("created_at DESC", "id DESC")
	if len(filter.IDs) > 0 {
		q = q.Where("id IN (?)", bun.In(filter.IDs))
	}
	if len(filter.RabbiIDs) > 0 {
		q = q.Where("rabbi_id IN (?)", bun.In(filter.RabbiIDs))
	}
	if filter.Parasha != "" {
		q = q.Where("parasha = ?", filter.Parasha)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query shiurim: %w", err)
	}

	out := make([]models.Shiur, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

func (s *Store) UpdateShiur(ctx context.Context, sh *models.Shiur) error {
	res, err := s.db.NewUpdate().
		Model(newShiurRow(sh)).
		Column("title", "description", "rabbi_id", "url", "duration", "topic", "parasha", "level").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update shiur: %w", err)
	}
	return checkAffected(res)
}

func (s *Store) DeleteShiur(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*shiurRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete shiur: %w", err)
	}
	return checkAffected(res)
}
