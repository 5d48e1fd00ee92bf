package services

import (
	"context"
	"fmt"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const applicationsCollection = "service_applications"

// MongoApplicationStore keeps service applications in MongoDB.
type MongoApplicationStore struct {
	col *mongo.Collection
}

func NewMongoApplicationStore(db *mongo.Database) *MongoApplicationStore {
	return &MongoApplicationStore{col: db.Collection(applicationsCollection)}
}

// EnsureIndexes creates the unique application id index and the per-user
// listing index. Called on startup after Mongo has connected.
func (s *MongoApplicationStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "application_id", Value: 1}},
			Options: options.Index().SetName("uniq_application_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_user_created").SetSparse(true),
		},
	})
	return err
}

func (s *MongoApplicationStore) Insert(ctx context.Context, app *models.ServiceApplication) error {
	_, err := s.col.InsertOne(ctx, app)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateApplicationID
	}
	return err
}

func (s *MongoApplicationStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.ServiceApplication, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find applications: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]models.ServiceApplication, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode applications: %w", err)
	}
	return out, nil
}
