package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"mailcanvas/backend/internal/models"
	"mailcanvas/backend/internal/utils"
)

func setupTemplateService(t *testing.T, dbName string) ITemplateService {
	db := utils.SetupTestDB(t, dbName, "templates")
	return NewTemplateService(db)
}

func mustCreate(t *testing.T, svc ITemplateService, name, html string) *models.Template {
	t.Helper()
	template, err := svc.CreateTemplate(context.Background(), CreateTemplateInput{
		Name:   name,
		Design: bson.M{"blocks": bson.A{}, "theme": "plain"},
		HTML:   html,
	})
	require.NoError(t, err)
	return template
}

func TestTemplateService_CreateAndFetch(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_create")
	ctx := context.Background()

	created, err := svc.CreateTemplate(ctx, CreateTemplateInput{
		Name:   "Welcome Email",
		Design: bson.M{"blocks": bson.A{}, "theme": "plain"},
		HTML:   "<p>hi</p>",
	})
	require.NoError(t, err)
	assert.False(t, created.ID.IsZero())
	assert.Equal(t, "Welcome Email", created.Name)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	fetched, err := svc.GetTemplateByID(ctx, created.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "<p>hi</p>", fetched.HTML)
	assert.Equal(t, "plain", fetched.Design["theme"])
	assert.WithinDuration(t, created.CreatedAt, fetched.CreatedAt, time.Millisecond)
}

func TestTemplateService_CreateDefaultsName(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_default_name")

	created, err := svc.CreateTemplate(context.Background(), CreateTemplateInput{
		Design: bson.M{"blocks": bson.A{}},
		HTML:   "<p>hi</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTemplateName, created.Name)
}

func TestTemplateService_CreateValidation(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_validation")
	ctx := context.Background()

	_, err := svc.CreateTemplate(ctx, CreateTemplateInput{HTML: "<p>hi</p>"})
	assert.ErrorIs(t, err, ErrDesignHTMLRequired)

	_, err = svc.CreateTemplate(ctx, CreateTemplateInput{Design: bson.M{"blocks": bson.A{}}})
	assert.ErrorIs(t, err, ErrDesignHTMLRequired)

	// Nothing may have been persisted by the failed attempts.
	count, err := svc.GetTemplatesCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestTemplateService_GetByID_Errors(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_get_errors")
	ctx := context.Background()

	_, err := svc.GetTemplateByID(ctx, "not-a-hex-id")
	assert.ErrorIs(t, err, ErrInvalidTemplateID)

	_, err = svc.GetTemplateByID(ctx, "ffffffffffffffffffffffff")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateService_UpdatePartial(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_update")
	ctx := context.Background()

	created := mustCreate(t, svc, "Original", "<p>old</p>")
	time.Sleep(20 * time.Millisecond)

	updated, err := svc.UpdateTemplate(ctx, created.ID.Hex(), UpdateTemplateInput{Name: "Greeting"})
	require.NoError(t, err)
	assert.Equal(t, "Greeting", updated.Name)
	assert.Equal(t, "<p>old</p>", updated.HTML)
	assert.Equal(t, "plain", updated.Design["theme"])
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt), "updatedAt must move forward on update")

	// Empty fields mean "unchanged": a zero-valued update still refreshes
	// updatedAt but touches nothing else.
	time.Sleep(20 * time.Millisecond)
	touched, err := svc.UpdateTemplate(ctx, created.ID.Hex(), UpdateTemplateInput{})
	require.NoError(t, err)
	assert.Equal(t, "Greeting", touched.Name)
	assert.Equal(t, "<p>old</p>", touched.HTML)
	assert.True(t, touched.UpdatedAt.After(updated.UpdatedAt))
}

func TestTemplateService_Update_Errors(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_update_errors")
	ctx := context.Background()

	_, err := svc.UpdateTemplate(ctx, "nope", UpdateTemplateInput{Name: "X"})
	assert.ErrorIs(t, err, ErrInvalidTemplateID)

	_, err = svc.UpdateTemplate(ctx, "ffffffffffffffffffffffff", UpdateTemplateInput{Name: "X"})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateService_Delete(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_delete")
	ctx := context.Background()

	created := mustCreate(t, svc, "Doomed", "<p>bye</p>")

	deletedID, err := svc.DeleteTemplate(ctx, created.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, created.ID.Hex(), deletedID)

	_, err = svc.GetTemplateByID(ctx, created.ID.Hex())
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	// Deletion is not idempotent: the second delete fails.
	_, err = svc.DeleteTemplate(ctx, created.ID.Hex())
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateService_GetAllOrdering(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_ordering")
	ctx := context.Background()

	first := mustCreate(t, svc, "First", "<p>1</p>")
	time.Sleep(20 * time.Millisecond)
	second := mustCreate(t, svc, "Second", "<p>2</p>")
	time.Sleep(20 * time.Millisecond)
	third := mustCreate(t, svc, "Third", "<p>3</p>")

	summaries, err := svc.GetAllTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, third.ID, summaries[0].ID)
	assert.Equal(t, second.ID, summaries[1].ID)
	assert.Equal(t, first.ID, summaries[2].ID)
}

func TestTemplateService_Search(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_search")
	ctx := context.Background()

	welcome := mustCreate(t, svc, "Welcome Email", "<p>w</p>")
	mustCreate(t, svc, "Receipt", "<p>r</p>")

	results, err := svc.SearchTemplates(ctx, "wel")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, welcome.ID, results[0].ID)

	// Case-insensitive.
	results, err = svc.SearchTemplates(ctx, "WELCOME")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// An empty term matches every template.
	results, err = svc.SearchTemplates(ctx, "")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = svc.SearchTemplates(ctx, "zzz")
	require.NoError(t, err)
	assert.Len(t, results, 0)
}

func TestTemplateService_GetLatest(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_latest")
	ctx := context.Background()

	_, err := svc.GetLatestTemplate(ctx)
	assert.ErrorIs(t, err, ErrNoTemplates)

	mustCreate(t, svc, "A", "<p>a</p>")
	time.Sleep(20 * time.Millisecond)
	b := mustCreate(t, svc, "B", "<p>b</p>")

	latest, err := svc.GetLatestTemplate(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, latest.ID)
	assert.Equal(t, "<p>b</p>", latest.HTML)
}

func TestTemplateService_Count(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_count")
	ctx := context.Background()

	count, err := svc.GetTemplatesCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	mustCreate(t, svc, "One", "<p>1</p>")
	mustCreate(t, svc, "Two", "<p>2</p>")

	count, err = svc.GetTemplatesCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestTemplateService_FullLifecycle(t *testing.T) {
	svc := setupTemplateService(t, "testdb_template_lifecycle")
	ctx := context.Background()

	created, err := svc.CreateTemplate(ctx, CreateTemplateInput{
		Design: bson.M{"blocks": bson.A{}},
		HTML:   "<p>hi</p>",
	})
	require.NoError(t, err)

	fetched, err := svc.GetTemplateByID(ctx, created.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", fetched.HTML)

	updated, err := svc.UpdateTemplate(ctx, created.ID.Hex(), UpdateTemplateInput{Name: "Greeting"})
	require.NoError(t, err)
	assert.Equal(t, "Greeting", updated.Name)
	assert.Equal(t, "<p>hi</p>", updated.HTML)

	_, err = svc.DeleteTemplate(ctx, created.ID.Hex())
	require.NoError(t, err)

	_, err = svc.GetTemplateByID(ctx, created.ID.Hex())
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}
