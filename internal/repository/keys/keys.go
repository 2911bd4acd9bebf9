package keys

import (
	"context"

	"e2e_xmtp/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	KeyRepo struct {
		collection *mongo.Collection
	}
)

func NewKeyRepo(db *mongo.Database) *KeyRepo {
	return &KeyRepo{
		collection: db.Collection("key_bundles"),
	}
}

func (r *KeyRepo) GetByKey(ctx context.Context, key string) (*model.StoredKeyBundle, error) {
	filter := bson.M{
		"key": key,
	}

	var record model.StoredKeyBundle
	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *KeyRepo) Upsert(ctx context.Context, record *model.StoredKeyBundle) error {
	filter := bson.M{
		"key": record.Key,
	}

	_, err := r.collection.ReplaceOne(ctx, filter, record, options.Replace().SetUpsert(true))
	return err
}
