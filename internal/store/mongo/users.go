package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

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

	res, err := s.users.InsertOne(ctx, newUserDocument(u))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	u.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *Store) FindUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	if tokenHash == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, bson.M{
		"resetPasswordToken":   tokenHash,
		"resetPasswordExpires": bson.M{"$gt": now},
	})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapFindErr(err)
	}
	return doc.model(), nil
}

func (s *Store) SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{
		"resetPasswordToken":   tokenHash,
		"resetPasswordExpires": expires,
	}})
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.updateUser(ctx, userID, bson.M{
		"$set":   bson.M{"password": passwordHash},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpires": ""},
	})
}

func (s *Store) SetRole(ctx context.Context, userID string, role models.Role) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"role": string(role)}})
}

func (s *Store) SetInterests(ctx context.Context, userID string, shiurIDs []string) error {
	oids, err := parseObjectIDs(shiurIDs)
	if err != nil {
		return err
	}
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"interests": oids}})
}

func (s *Store) SetFavorites(ctx context.Context, userID string, shiurIDs []string) error {
	oids, err := parseObjectIDs(shiurIDs)
	if err != nil {
		return err
	}
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"favorites": oids}})
}

// SetSelections relies on single-document atomicity: both arrays change in
// one update.
func (s *Store) SetSelections(ctx context.Context, userID string, interests, favorites []string) error {
	interestIDs, err := parseObjectIDs(interests)
	if err != nil {
		return err
	}
	favoriteIDs, err := parseObjectIDs(favorites)
	if err != nil {
		return err
	}
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{
		"interests": interestIDs,
		"favorites": favoriteIDs,
	}})
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, shiurID string) error {
	oid, err := primitive.ObjectIDFromHex(shiurID)
	if err != nil {
		// Not an ObjectID, so it cannot be in the list. Still confirm the user exists.
		_, err := s.GetUser(ctx, userID)
		return err
	}
	return s.updateUser(ctx, userID, bson.M{"$pull": bson.M{"favorites": oid}})
}

func (s *Store) SaveNotes(ctx context.Context, userID string, notes []models.ShiurNote) error {
	return s.updateUser(ctx, userID, bson.M{"$set": bson.M{"shiurNotes": noteDocuments(notes)}})
}

func (s *Store) AddFollowing(ctx context.Context, userID, rabbiID string) (bool, error) {
	return s.modifyFollowing(ctx, userID, rabbiID, "$addToSet")
}

func (s *Store) RemoveFollowing(ctx context.Context, userID, rabbiID string) (bool, error) {
	return s.modifyFollowing(ctx, userID, rabbiID, "$pull")
}

// modifyFollowing applies $addToSet or $pull and uses ModifiedCount to tell
// whether the set actually changed.
func (s *Store) modifyFollowing(ctx context.Context, userID, rabbiID, op string) (bool, error) {
	uid, err := objectID(userID)
	if err != nil {
		return false, err
	}
	rid, err := primitive.ObjectIDFromHex(rabbiID)
	if err != nil {
		// A malformed rabbi id is never in the set.
		if _, err := s.GetUser(ctx, userID); err != nil {
			return false, err
		}
		if op == "$pull" {
			return false, nil
		}
		return false, store.ErrInvalidID
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{op: bson.M{"following": rid}})
	if err != nil {
		return false, fmt.Errorf("failed to update following: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, store.ErrNotFound
	}
	return res.ModifiedCount > 0, nil
}

func (s *Store) updateUser(ctx context.Context, userID string, update bson.M) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
