package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SubjectTool    = "tool"
	SubjectSponsor = "sponsor"
)

// StatsRepository keeps daily activity counters.
// Collection: activity_stats
type StatsRepository struct {
	col *mongo.Collection
}

func NewStatsRepository(db *mongo.Database) *StatsRepository {
	return &StatsRepository{col: db.Collection("activity_stats")}
}

func dailyStatFilter(subject, id string, at time.Time) bson.M {
	return bson.M{
		"subject": subject,
		"ref_id":  id,
		"day":     at.UTC().Format("2006-01-02"),
	}
}

// IncrementDaily adds one to field on the counter document of (subject, id)
// for the UTC day of at, creating the document on first use.
func (r *StatsRepository) IncrementDaily(ctx context.Context, subject, id, field string, at time.Time) error {
	update := bson.M{
		"$inc": bson.M{field: 1},
		"$set": bson.M{"updated_at": time.Now()},
	}
	_, err := r.col.UpdateOne(ctx, dailyStatFilter(subject, id, at), update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("increment %s %s.%s: %w", subject, id, field, err)
	}
	return nil
}
