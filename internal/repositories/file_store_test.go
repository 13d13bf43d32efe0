package repositories

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"followup-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "database.json"))
}

func seedContact(t *testing.T, store *FileStore, id, phone string) *models.Contact {
	t.Helper()
	c := &models.Contact{
		ID:               id,
		Name:             "Contato " + id,
		Phone:            phone,
		Category:         models.CategoryClient,
		AutoPilotEnabled: true,
	}
	require.NoError(t, store.Create(context.Background(), c))
	return c
}

func TestFileStore_CreateAndLoad(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	created := seedContact(t, store, "c1", "11 98765-4321")
	assert.Equal(t, int64(1), created.Revision)

	err := store.Create(ctx, &models.Contact{ID: "c1"})
	assert.ErrorIs(t, err, models.ErrContactExists)

	loaded, err := store.LoadOne(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Contato c1", loaded.Name)
	assert.NotNil(t, loaded.ChatHistory)

	_, err = store.LoadOne(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrContactNotFound)

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFileStore_LoadAll_MissingFile(t *testing.T) {
	store := newTestFileStore(t)

	contacts, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestFileStore_SaveOne_RevisionConflict(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	seedContact(t, store, "c1", "11987654321")

	first, err := store.LoadOne(ctx, "c1")
	require.NoError(t, err)
	second, err := store.LoadOne(ctx, "c1")
	require.NoError(t, err)

	first.HasUnreadReply = true
	require.NoError(t, store.SaveOne(ctx, first))
	assert.Equal(t, int64(2), first.Revision)

	second.AutomationStage = models.StageWaitingReply1
	err = store.SaveOne(ctx, second)
	assert.ErrorIs(t, err, models.ErrRevisionConflict)

	stored, err := store.LoadOne(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, stored.HasUnreadReply)
	assert.Equal(t, models.StageIdle, stored.AutomationStage)
}

func TestFileStore_SaveAll_PartialConflict(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	seedContact(t, store, "c1", "11911111111")
	seedContact(t, store, "c2", "11922222222")

	batch, err := store.LoadAll(ctx)
	require.NoError(t, err)

	other, err := store.LoadOne(ctx, "c2")
	require.NoError(t, err)
	other.Notes = "editado"
	require.NoError(t, store.SaveOne(ctx, other))

	for _, c := range batch {
		c.AutomationStage = models.StageWaitingReply1
	}
	err = store.SaveAll(ctx, batch)

	var conflict *models.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"c2"}, conflict.IDs)

	c1, err := store.LoadOne(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StageWaitingReply1, c1.AutomationStage)

	c2, err := store.LoadOne(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, models.StageIdle, c2.AutomationStage)
	assert.Equal(t, "editado", c2.Notes)
}

func TestFileStore_FindByPhoneSuffix(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	seedContact(t, store, "c1", "(11) 98765-4321")
	seedContact(t, store, "c2", "11 91234-5678")

	matches, err := store.FindByPhoneSuffix(ctx, "5511987654321")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].ID)

	matches, err = store.FindByPhoneSuffix(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileStore_Delete(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	seedContact(t, store, "c1", "11987654321")

	require.NoError(t, store.Delete(ctx, "c1"))
	assert.ErrorIs(t, store.Delete(ctx, "c1"), models.ErrContactNotFound)
}

func TestFileStore_Settings(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	settings, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), settings)

	settings.AgentName = "Ana"
	settings.ServerAutomationEnabled = true
	require.NoError(t, store.Save(ctx, settings))

	// contacts and settings share the document
	seedContact(t, store, "c1", "11987654321")

	reloaded, err := NewFileStore(store.path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ana", reloaded.AgentName)
	assert.True(t, reloaded.ServerAutomationEnabled)
}
