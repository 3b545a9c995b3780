package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

func (s *Store) CreateRabbi(ctx context.Context, r *models.Rabbi) error {
	res, err := s.rabbis.InsertOne(ctx, &rabbiDocument{
		Name:      r.Name,
		Bio:       r.Bio,
		Image:     r.Image,
		Followers: r.Followers,
	})
	if err != nil {
		return fmt.Errorf("failed to insert rabbi: %w", err)
	}
	r.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *Store) GetRabbi(ctx context.Context, id string) (*models.Rabbi, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findRabbi(ctx, bson.M{"_id": oid})
}

func (s *Store) FindRabbiByName(ctx context.Context, name string) (*models.Rabbi, error) {
	return s.findRabbi(ctx, bson.M{"name": name})
}

func (s *Store) findRabbi(ctx context.Context, filter bson.M) (*models.Rabbi, error) {
	var doc rabbiDocument
	if err := s.rabbis.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapFindErr(err)
	}
	r := doc.model()
	return &r, nil
}

func (s *Store) ListRabbis(ctx context.Context) ([]models.Rabbi, error) {
	return s.listRabbis(ctx, bson.M{})
}

func (s *Store) GetRabbis(ctx context.Context, ids []string) ([]models.Rabbi, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []models.Rabbi{}, nil
	}
	return s.listRabbis(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (s *Store) listRabbis(ctx context.Context, filter bson.M) ([]models.Rabbi, error) {
	cur, err := s.rabbis.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query rabbis: %w", err)
	}

	var docs []rabbiDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode rabbis: %w", err)
	}

	out := make([]models.Rabbi, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].model())
	}
	return out, nil
}

func (s *Store) CountRabbis(ctx context.Context) (int, error) {
	n, err := s.rabbis.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count rabbis: %w", err)
	}
	return int(n), nil
}

// AdjustFollowers uses a pipeline update so the clamp is applied server side
// in the same write as the increment.
func (s *Store) AdjustFollowers(ctx context.Context, rabbiID string, delta int) error {
	oid, err := objectID(rabbiID)
	if err != nil {
		return err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"followers": bson.M{"$max": bson.A{
				0,
				bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$followers", 0}}, delta}},
			}},
		}}},
	}

	res, err := s.rabbis.UpdateOne(ctx, bson.M{"_id": oid}, pipeline)
	if err != nil {
		return fmt.Errorf("failed to adjust followers: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateShiur(ctx context.Context, sh *models.Shiur) error {
	sh.ApplyDefaults(time.Now())

	doc, err := newShiurDocument(sh)
	if err != nil {
		return err
	}

	res, err := s.shiurim.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert shiur: %w", err)
	}
	sh.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *Store) InsertShiurim(ctx context.Context, shiurim []models.Shiur) (int, error) {
	if len(shiurim) == 0 {
		return 0, nil
	}

	now := time.Now()
	docs := make([]any, 0, len(shiurim))
	for i := range shiurim {
		shiurim[i].ApplyDefaults(now)
		doc, err := newShiurDocument(&shiurim[i])
		if err != nil {
			return 0, fmt.Errorf("shiur %q: %w", shiurim[i].Title, err)
		}
		docs = append(docs, doc)
	}

	res, err := s.shiurim.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to insert shiurim: %w", err)
	}
	for i, id := range res.InsertedIDs {
		shiurim[i].ID = id.(primitive.ObjectID).Hex()
	}
	return len(res.InsertedIDs), nil
}

func (s *Store) GetShiur(ctx context.Context, id string) (*models.Shiur, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc shiurDocument
	if err := s.shiurim.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapFindErr(err)
	}
	sh := doc.model()
	return &sh, nil
}

func (s *Store) ListShiurim(ctx context.Context, filter store.ShiurFilter) ([]models.Shiur, error) {
	query := bson.M{}
	if len(filter.IDs) > 0 {
		query["_id"] = bson.M{"$in": objectIDs(filter.IDs)}
	}
	if len(filter.RabbiIDs) > 0 {
		query["rabbi"] = bson.M{"$in": objectIDs(filter.RabbiIDs)}
	}
	if filter.Parasha != "" {
		query["parasha"] = filter.Parasha
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.shiurim.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query shiurim: %w", err)
	}

	var docs []shiurDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode shiurim: %w", err)
	}

	out := make([]models.Shiur, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].model())
	}
	return out, nil
}

func (s *Store) UpdateShiur(ctx context.Context, sh *models.Shiur) error {
	oid, err := objectID(sh.ID)
	if err != nil {
		return err
	}
	rabbi, err := objectID(sh.RabbiID)
	if err != nil {
		return err
	}

	res, err := s.shiurim.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"title":       sh.Title,
		"description": sh.Description,
		"rabbi":       rabbi,
		"url":         sh.URL,
		"duration":    sh.Duration,
		"topic":       sh.Topic,
		"parasha":     sh.Parasha,
		"level":       string(sh.Level),
	}})
	if err != nil {
		return fmt.Errorf("failed to update shiur: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteShiur(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := s.shiurim.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete shiur: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
