package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
)

// Window bounds a fetch on createdAt. Start/End take precedence over Days;
// a zero window fetches everything.
type Window struct {
	Days  int        `json:"days,omitempty"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Filter renders the window as a createdAt query relative to now.
func (w Window) Filter(now time.Time) bson.M {
	if w.Start != nil || w.End != nil {
		created := bson.M{}
		if w.Start != nil {
			created["$gte"] = w.Start.UTC()
		}
		if w.End != nil {
			created["$lte"] = w.End.UTC()
		}
		return bson.M{"createdAt": created}
	}
	if w.Days > 0 {
		return bson.M{"createdAt": bson.M{"$gte": now.UTC().Add(-time.Duration(w.Days) * 24 * time.Hour)}}
	}
	return bson.M{}
}

// MongoSource reads readings and user profiles. Collection names are
// resolved once from ordered candidate lists since deployments differ in
// pluralisation.
type MongoSource struct {
	data  *mongo.Collection
	users *mongo.Collection
}

func NewMongoSource(ctx context.Context, db *mongo.Database, dataCandidates, userCandidates []string) (*MongoSource, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	dataName := pickCollection(names, dataCandidates)
	userName := pickCollection(names, userCandidates)
	if dataName == "" || userName == "" {
		return nil, fmt.Errorf("telemetry collections not configured")
	}
	logger.Log.WithFields(map[string]interface{}{
		"database":   db.Name(),
		"data":       dataName,
		"users":      userName,
		"discovered": len(names),
	}).Info("resolved telemetry collections")
	return &MongoSource{
		data:  db.Collection(dataName),
		users: db.Collection(userName),
	}, nil
}

// pickCollection returns the first candidate that exists, or the last
// candidate when none does.
func pickCollection(existing, candidates []string) string {
	set := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		set[n] = struct{}{}
	}
	for _, c := range candidates {
		if _, ok := set[c]; ok {
			return c
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[len(candidates)-1]
}

// Fetch returns every reading inside w joined with its owner's profile.
func (s *MongoSource) Fetch(ctx context.Context, w Window) ([]Document, error) {
	cursor, err := s.data.Find(ctx, w.Filter(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("query telemetry: %w", err)
	}
	var readings []Telemetry
	if err := cursor.All(ctx, &readings); err != nil {
		return nil, fmt.Errorf("decode telemetry: %w", err)
	}

	docs, users, err := joinProfiles(ctx, readings, s.Profile)
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(map[string]interface{}{
		"readings": len(docs),
		"users":    users,
	}).Info("fetched telemetry")
	return docs, nil
}

// ProfileLookup loads one user's profile.
type ProfileLookup func(ctx context.Context, userID string) (Profile, error)

// joinProfiles attaches each reading's owner profile, loading every user at
// most once per call. It returns the number of distinct users looked up.
func joinProfiles(ctx context.Context, readings []Telemetry, lookup ProfileLookup) ([]Document, int, error) {
	profiles := map[string]Profile{}
	docs := make([]Document, 0, len(readings))
	for _, t := range readings {
		key := UserKey(t.UserID)
		profile, ok := profiles[key]
		if !ok {
			var err error
			if profile, err = lookup(ctx, key); err != nil {
				return nil, 0, err
			}
			profiles[key] = profile
		}
		docs = append(docs, Document{Telemetry: t, Profile: profile})
	}
	return docs, len(profiles), nil
}

// Profile looks a user up by hex ObjectId or string id. Unknown users yield
// an empty profile.
func (s *MongoSource) Profile(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, nil
	}

	var p Profile
	var key interface{} = userID
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		key = oid
	}
	err := s.users.FindOne(ctx, bson.M{"_id": key}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		p, err = Profile{}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile %s: %w", userID, err)
	}
	return p, nil
}

// UserHistory returns one user's readings since the given time, oldest
// first, capped at limit when positive.
func (s *MongoSource) UserHistory(ctx context.Context, userID string, since time.Time, limit int) ([]Telemetry, error) {
	ids := []interface{}{userID}
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		ids = append(ids, oid)
	}
	filter := bson.M{
		"userId":    bson.M{"$in": ids},
		"createdAt": bson.M{"$gte": since.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.data.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query user history: %w", err)
	}
	var out []Telemetry
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode user history: %w", err)
	}
	return out, nil
}

// Insert stores a new reading for the analysis endpoints.
func (s *MongoSource) Insert(ctx context.Context, t *Telemetry) error {
	if t.CreatedAt == nil {
		now := time.Now().UTC()
		t.CreatedAt = &now
	}
	if oid, err := primitive.ObjectIDFromHex(UserKey(t.UserID)); err == nil {
		t.UserID = oid
	}
	res, err := s.data.InsertOne(ctx, t)
	if err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = oid
	}
	return nil
}
