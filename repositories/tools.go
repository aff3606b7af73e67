package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"toolhub/models"
)

var ErrToolNotFound = errors.New("tool_not_found")

type ToolRepository struct {
	col *mongo.Collection
}

func NewToolRepository(db *mongo.Database) *ToolRepository {
	return &ToolRepository{col: db.Collection("tools")}
}

// toolFilter matches a tool by ObjectID hex or by slug.
func toolFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"slug": id}
}

func (r *ToolRepository) GetByID(ctx context.Context, id string) (*models.Tool, error) {
	var t models.Tool
	if err := r.col.FindOne(ctx, toolFilter(id)).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrToolNotFound
		}
		return nil, fmt.Errorf("find tool %s: %w", id, err)
	}
	return &t, nil
}

// IncrementUsage bumps usage_count by one.
func (r *ToolRepository) IncrementUsage(ctx context.Context, id string) error {
	res, err := r.col.UpdateOne(ctx, toolFilter(id), bson.M{
		"$inc": bson.M{"usage_count": 1},
		"$set": bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("increment usage of %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrToolNotFound
	}
	return nil
}
