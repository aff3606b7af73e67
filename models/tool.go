package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"toolhub/completion"
)

// Tool is an assistant visitors can chat with.
// Collection: tools
type Tool struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
	Slug               string             `bson:"slug" json:"slug"`
	Name               string             `bson:"name" json:"name"`
	WelcomeMessage     string             `bson:"welcome_message,omitempty" json:"welcome_message,omitempty"`
	Prompt             completion.Prompt  `bson:"prompt" json:"prompt"`
	SuggestionsEnabled bool               `bson:"suggestions_enabled" json:"suggestions_enabled"`
	UsageCount         int64              `bson:"usage_count" json:"usage_count"`
}
