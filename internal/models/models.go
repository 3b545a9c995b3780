// Package models holds the domain types shared by the stores, services and handlers.
package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Level is the difficulty tag of a shiur.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Role is the authorization role carried by a user and its tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// MaxNoteLength is the maximum length, in characters, of a shiur note.
const MaxNoteLength = 100

type User struct {
	ID                   string      `json:"_id"`
	Username             string      `json:"username"`
	Email                string      `json:"email"`
	PasswordHash         string      `json:"-"` // Never expose password hash in JSON
	Role                 Role        `json:"role"`
	Interests            []string    `json:"interests"`
	Favorites            []string    `json:"favorites"`
	Following            []string    `json:"following"`
	ShiurNotes           []ShiurNote `json:"shiurNotes"`
	ResetPasswordToken   string      `json:"-"`
	ResetPasswordExpires *time.Time  `json:"-"`
	CreatedAt            time.Time   `json:"createdAt"`
}

// ShiurNote is a user's short annotation on one shiur.
type ShiurNote struct {
	ShiurID   string    `json:"shiurId"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Rabbi struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	Image     string `json:"image"`
	Followers int    `json:"followers"`
}

// Shiur is a single recorded lecture. RabbiID always holds the reference;
// Rabbi is only set once the reference has been resolved.
type Shiur struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RabbiID     string    `json:"-"`
	Rabbi       *Rabbi    `json:"-"`
	URL         string    `json:"url"`
	Duration    string    `json:"duration"`
	Topic       string    `json:"topic"`
	Parasha     string    `json:"parasha"`
	Level       Level     `json:"level"`
	Views       int       `json:"views"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MarshalJSON renders the rabbi reference as the full object when resolved
// and as the bare id otherwise.
func (s Shiur) MarshalJSON() ([]byte, error) {
	type shiur Shiur
	var rabbi any = s.RabbiID
	if s.Rabbi != nil {
		rabbi = s.Rabbi
	}
	return json.Marshal(struct {
		shiur
		Rabbi any `json:"rabbi"`
	}{shiur: shiur(s), Rabbi: rabbi})
}

// ApplyDefaults fills schema defaults on a new shiur.
func (s *Shiur) ApplyDefaults(now time.Time) {
	if s.Level == "" {
		s.Level = LevelIntermediate
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
}
