package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/shiurfinder/shiurfinder/internal/models"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                   string     `bun:"id,pk"`
	Username             string     `bun:"username,notnull"`
	Email                string     `bun:"email,notnull"`
	PasswordHash         string     `bun:"password_hash,notnull"`
	Role                 string     `bun:"role,notnull"`
	Interests            []string   `bun:"interests,array"`
	Favorites            []string   `bun:"favorites,array"`
	Following            []string   `bun:"following,array"`
	ShiurNotes           []noteRow  `bun:"shiur_notes,type:jsonb"`
	ResetPasswordToken   *string    `bun:"reset_password_token"`
	ResetPasswordExpires *time.Time `bun:"reset_password_expires"`
	CreatedAt            time.Time  `bun:"created_at,notnull"`
}

type noteRow struct {
	ShiurID   string    `json:"shiurId"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type rabbiRow struct {
	bun.BaseModel `bun:"table:rabbis,alias:r"`

	ID        string `bun:"id,pk"`
	Name      string `bun:"name,notnull"`
	Bio       string `bun:"bio,notnull"`
	Image     string `bun:"image,notnull"`
	Followers int    `bun:"followers,notnull"`
}

type shiurRow struct {
	bun.BaseModel `bun:"table:shiurim,alias:s"`

	ID          string    `bun:"id,pk"`
	Title       string    `bun:"title,notnull"`
	Description string    `bun:"description,notnull"`
	RabbiID     string    `bun:"rabbi_id,notnull"`
	URL         string    `bun:"url,notnull"`
	Duration    string    `bun:"duration,notnull"`
	Topic       string    `bun:"topic,notnull"`
	Parasha     string    `bun:"parasha,notnull"`
	Level       string    `bun:"level,notnull"`
	Views       int       `bun:"views,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

func (r *userRow) model() *models.User {
	u := &models.User{
		ID:                   r.ID,
		Username:             r.Username,
		Email:                r.Email,
		PasswordHash:         r.PasswordHash,
		Role:                 models.Role(r.Role),
		Interests:            r.Interests,
		Favorites:            r.Favorites,
		Following:            r.Following,
		ShiurNotes:           make([]models.ShiurNote, 0, len(r.ShiurNotes)),
		ResetPasswordExpires: r.ResetPasswordExpires,
		CreatedAt:            r.CreatedAt,
	}
	if r.ResetPasswordToken != nil {
		u.ResetPasswordToken = *r.ResetPasswordToken
	}
	for _, n := range r.ShiurNotes {
		u.ShiurNotes = append(u.ShiurNotes, models.ShiurNote(n))
	}
	return u
}

func noteRows(notes []models.ShiurNote) []noteRow {
	out := make([]noteRow, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteRow(n))
	}
	return out
}

func (r *rabbiRow) model() models.Rabbi {
	return models.Rabbi{ID: r.ID, Name: r.Name, Bio: r.Bio, Image: r.Image, Followers: r.Followers}
}

func (r *shiurRow) model() models.Shiur {
	return models.Shiur{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		RabbiID:     r.RabbiID,
		URL:         r.URL,
		Duration:    r.Duration,
		Topic:       r.Topic,
		Parasha:     r.Parasha,
		Level:       models.Level(r.Level),
		Views:       r.Views,
		CreatedAt:   r.CreatedAt,
	}
}

func newShiurRow(s *models.Shiur) *shiurRow {
	return &shiurRow{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		RabbiID:     s.RabbiID,
		URL:         s.URL,
		Duration:    s.Duration,
		Topic:       s.Topic,
		Parasha:     s.Parasha,
		Level:       string(s.Level),
		Views:       s.Views,
		CreatedAt:   s.CreatedAt,
	}
}
