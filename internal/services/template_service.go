package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mailcanvas/backend/internal/db"
	"mailcanvas/backend/internal/models"
)

// ITemplateService is the sole boundary to template persistence. Every method
// either returns data or fails with one of the error kinds in errors.go
// (wrapped store failures excepted).
type ITemplateService interface {
	CreateTemplate(ctx context.Context, input CreateTemplateInput) (*models.Template, error)
	GetAllTemplates(ctx context.Context) ([]models.TemplateSummary, error)
	GetTemplateByID(ctx context.Context, id string) (*models.Template, error)
	GetLatestTemplate(ctx context.Context) (*models.Template, error)
	UpdateTemplate(ctx context.Context, id string, input UpdateTemplateInput) (*models.Template, error)
	DeleteTemplate(ctx context.Context, id string) (string, error)
	SearchTemplates(ctx context.Context, term string) ([]models.TemplateSummary, error)
	GetTemplatesCount(ctx context.Context) (int64, error)
}

// CreateTemplateInput carries the fields accepted on creation. Name is
// optional and defaults to models.DefaultTemplateName.
type CreateTemplateInput struct {
	Name   string
	Design bson.M
	HTML   string
}

// UpdateTemplateInput carries a partial update. Zero-valued fields are left
// unchanged on the stored document: an empty Name/HTML or nil Design means
// "not supplied". Clients therefore cannot set a field to empty via update;
// this matches the long-standing API behavior.
type UpdateTemplateInput struct {
	Name   string
	Design bson.M
	HTML   string
}

const templatesCollection = "templates"

// templateService implements ITemplateService over a MongoDB collection.
type templateService struct {
	db *mongo.Database
}

// NewTemplateService creates a new template service bound to the given database.
func NewTemplateService(database *mongo.Database) ITemplateService {
	return &templateService{db: database}
}

// summaryOpts returns find options selecting the summary projection ordered by
// creation time, newest first.
func summaryOpts() *options.FindOptions {
	return options.Find().
		SetProjection(bson.M{"name": 1, "created_at": 1, "updated_at": 1}).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
}

// CreateTemplate inserts a new template document. Design and HTML are
// required; Name falls back to the default placeholder.
func (s *templateService) CreateTemplate(ctx context.Context, input CreateTemplateInput) (*models.Template, error) {
	if input.Design == nil || input.HTML == "" {
		return nil, ErrDesignHTMLRequired
	}

	name := input.Name
	if name == "" {
		name = models.DefaultTemplateName
	}

	collection := s.db.Collection(templatesCollection)
	now := time.Now().UTC()

	var template *models.Template
	operation := func() error {
		template = &models.Template{
			ID:        primitive.NewObjectID(),
			Name:      name,
			Design:    input.Design,
			HTML:      input.HTML,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, insertErr := collection.InsertOne(ctx, template)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert template after retries: %w", err)
	}

	return template, nil
}

// GetAllTemplates returns summaries of every template, newest first.
func (s *templateService) GetAllTemplates(ctx context.Context) ([]models.TemplateSummary, error) {
	collection := s.db.Collection(templatesCollection)

	cursor, err := collection.Find(ctx, bson.M{}, summaryOpts())
	if err != nil {
		return nil, fmt.Errorf("error listing templates: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := []models.TemplateSummary{}
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("error decoding template summaries: %w", err)
	}
	return summaries, nil
}

// GetTemplateByID returns the full template for a well-formed id.
func (s *templateService) GetTemplateByID(ctx context.Context, id string) (*models.Template, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidTemplateID
	}

	collection := s.db.Collection(templatesCollection)

	var template models.Template
	err = collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("error finding template %s: %w", id, err)
	}
	return &template, nil
}

// GetLatestTemplate returns the most recently created template in full.
func (s *templateService) GetLatestTemplate(ctx context.Context) (*models.Template, error) {
	collection := s.db.Collection(templatesCollection)
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var template models.Template
	err := collection.FindOne(ctx, bson.M{}, opts).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoTemplates
		}
		return nil, fmt.Errorf("error finding latest template: %w", err)
	}
	return &template, nil
}

// UpdateTemplate applies the supplied fields to an existing template and
// returns the post-update document. UpdatedAt is always refreshed, even when
// no other field was supplied.
func (s *templateService) UpdateTemplate(ctx context.Context, id string, input UpdateTemplateInput) (*models.Template, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidTemplateID
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if input.Name != "" {
		set["name"] = input.Name
	}
	if input.Design != nil {
		set["design"] = input.Design
	}
	if input.HTML != "" {
		set["html"] = input.HTML
	}

	collection := s.db.Collection(templatesCollection)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Template
	err = collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to update template %s: %w", id, err)
	}
	return &updated, nil
}

// DeleteTemplate removes a template permanently and returns its id. Deleting
// an already-deleted id fails with ErrTemplateNotFound.
func (s *templateService) DeleteTemplate(ctx context.Context, id string) (string, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", ErrInvalidTemplateID
	}

	collection := s.db.Collection(templatesCollection)

	var deleted models.Template
	err = collection.FindOneAndDelete(ctx, bson.M{"_id": objectID}).Decode(&deleted)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrTemplateNotFound
		}
		return "", fmt.Errorf("failed to delete template %s: %w", id, err)
	}
	return deleted.ID.Hex(), nil
}

// SearchTemplates returns summaries of templates whose name matches the term
// as a case-insensitive pattern, newest first. The term is passed to the
// store's regex operator verbatim; an empty term matches every template.
func (s *templateService) SearchTemplates(ctx context.Context, term string) ([]models.TemplateSummary, error) {
	collection := s.db.Collection(templatesCollection)
	filter := bson.M{"name": primitive.Regex{Pattern: term, Options: "i"}}

	cursor, err := collection.Find(ctx, filter, summaryOpts())
	if err != nil {
		return nil, fmt.Errorf("error searching templates for %q: %w", term, err)
	}
	defer cursor.Close(ctx)

	summaries := []models.TemplateSummary{}
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("error decoding search results: %w", err)
	}
	return summaries, nil
}

// GetTemplatesCount returns the total number of stored templates.
func (s *templateService) GetTemplatesCount(ctx context.Context) (int64, error) {
	collection := s.db.Collection(templatesCollection)
	count, err := collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("error counting templates: %w", err)
	}
	return count, nil
}
