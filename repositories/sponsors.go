package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"toolhub/models"
	"toolhub/sponsor"
)

// SponsorRepository is the record-store sponsor inventory.
type SponsorRepository struct {
	col *mongo.Collection
}

func NewSponsorRepository(db *mongo.Database) *SponsorRepository {
	return &SponsorRepository{col: db.Collection("sponsors")}
}

// activeWindowFilter matches active sponsors whose window covers now, bounds included.
func activeWindowFilter(now time.Time) bson.M {
	return bson.M{
		"is_active":  true,
		"start_date": bson.M{"$lte": now},
		"end_date":   bson.M{"$gte": now},
	}
}

// CheckActive returns the most recently started sponsor active at now.
func (r *SponsorRepository) CheckActive(ctx context.Context, now time.Time) (sponsor.Availability, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "start_date", Value: -1}})

	var s models.Sponsor
	if err := r.col.FindOne(ctx, activeWindowFilter(now), opts).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return sponsor.Availability{}, nil
		}
		return sponsor.Availability{}, fmt.Errorf("find active sponsor: %w", err)
	}
	rec := s.Record()
	return sponsor.Availability{Available: true, Ad: &rec}, nil
}
