package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTemplateName is used when a template is created without a name.
const DefaultTemplateName = "Untitled Template"

// Template is a stored email template: the editable design document plus the
// HTML rendered from it. The design payload is schema-less; its shape is
// defined entirely by the editor that produced it.
type Template struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Design    bson.M             `bson:"design" json:"design"`
	HTML      string             `bson:"html" json:"html"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

// TemplateSummary is the projection returned by list and search operations.
// Design and HTML are deliberately excluded to keep listings cheap.
type TemplateSummary struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Name      string             `bson:"name" json:"name"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}
