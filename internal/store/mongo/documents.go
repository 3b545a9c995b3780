package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shiurfinder/shiurfinder/internal/models"
)

type userDocument struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty"`
	Username             string               `bson:"username"`
	Email                string               `bson:"email"`
	Password             string               `bson:"password"`
	Role                 string               `bson:"role"`
	Interests            []primitive.ObjectID `bson:"interests"`
	Favorites            []primitive.ObjectID `bson:"favorites"`
	Following            []primitive.ObjectID `bson:"following"`
	ShiurNotes           []noteDocument       `bson:"shiurNotes"`
	ResetPasswordToken   string               `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time           `bson:"resetPasswordExpires,omitempty"`
	CreatedAt            time.Time            `bson:"createdAt"`
}

type noteDocument struct {
	Shiur     primitive.ObjectID `bson:"shiurId"`
	Note      string             `bson:"note"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type rabbiDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Bio       string             `bson:"bio,omitempty"`
	Image     string             `bson:"image,omitempty"`
	Followers int                `bson:"followers"`
}

type shiurDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description,omitempty"`
	Rabbi       primitive.ObjectID `bson:"rabbi"`
	URL         string             `bson:"url"`
	Duration    string             `bson:"duration,omitempty"`
	Topic       string             `bson:"topic,omitempty"`
	Parasha     string             `bson:"parasha,omitempty"`
	Level       string             `bson:"level"`
	Views       int                `bson:"views"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func (d *userDocument) model() *models.User {
	u := &models.User{
		ID:                   d.ID.Hex(),
		Username:             d.Username,
		Email:                d.Email,
		PasswordHash:         d.Password,
		Role:                 models.Role(d.Role),
		Interests:            hexIDs(d.Interests),
		Favorites:            hexIDs(d.Favorites),
		Following:            hexIDs(d.Following),
		ShiurNotes:           make([]models.ShiurNote, 0, len(d.ShiurNotes)),
		ResetPasswordToken:   d.ResetPasswordToken,
		ResetPasswordExpires: d.ResetPasswordExpires,
		CreatedAt:            d.CreatedAt,
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	for _, n := range d.ShiurNotes {
		u.ShiurNotes = append(u.ShiurNotes, models.ShiurNote{
			ShiurID:   n.Shiur.Hex(),
			Note:      n.Note,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		})
	}
	return u
}

func newUserDocument(u *models.User) *userDocument {
	return &userDocument{
		Username:   u.Username,
		Email:      u.Email,
		Password:   u.PasswordHash,
		Role:       string(u.Role),
		Interests:  objectIDs(u.Interests),
		Favorites:  objectIDs(u.Favorites),
		Following:  objectIDs(u.Following),
		ShiurNotes: noteDocuments(u.ShiurNotes),
		CreatedAt:  u.CreatedAt,
	}
}

func noteDocuments(notes []models.ShiurNote) []noteDocument {
	out := make([]noteDocument, 0, len(notes))
	for _, n := range notes {
		oid, err := primitive.ObjectIDFromHex(n.ShiurID)
		if err != nil {
			continue
		}
		out = append(out, noteDocument{Shiur: oid, Note: n.Note, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt})
	}
	return out
}

func (d *rabbiDocument) model() models.Rabbi {
	return models.Rabbi{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Bio:       d.Bio,
		Image:     d.Image,
		Followers: d.Followers,
	}
}

func (d *shiurDocument) model() models.Shiur {
	return models.Shiur{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		RabbiID:     d.Rabbi.Hex(),
		URL:         d.URL,
		Duration:    d.Duration,
		Topic:       d.Topic,
		Parasha:     d.Parasha,
		Level:       models.Level(d.Level),
		Views:       d.Views,
		CreatedAt:   d.CreatedAt,
	}
}

func newShiurDocument(s *models.Shiur) (*shiurDocument, error) {
	rabbi, err := objectID(s.RabbiID)
	if err != nil {
		return nil, err
	}
	return &shiurDocument{
		Title:       s.Title,
		Description: s.Description,
		Rabbi:       rabbi,
		URL:         s.URL,
		Duration:    s.Duration,
		Topic:       s.Topic,
		Parasha:     s.Parasha,
		Level:       string(s.Level),
		Views:       s.Views,
		CreatedAt:   s.CreatedAt,
	}, nil
}
