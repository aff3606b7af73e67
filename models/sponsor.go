package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"toolhub/sponsor"
)

// Sponsor is a sponsored item shown between turns.
// Collection: sponsors
type Sponsor struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	LinkURL     string             `bson:"link_url" json:"link_url"`
	ImageURL    string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	StartDate   time.Time          `bson:"start_date" json:"start_date"`
	EndDate     time.Time          `bson:"end_date" json:"end_date"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
}

func (s Sponsor) Record() sponsor.Record {
	return sponsor.Record{
		ID:          s.ID.Hex(),
		Title:       s.Title,
		Description: s.Description,
		LinkURL:     s.LinkURL,
		ImageURL:    s.ImageURL,
		StartDate:   s.StartDate,
		EndDate:     s.EndDate,
		IsActive:    s.IsActive,
	}
}
