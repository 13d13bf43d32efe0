package repositories

import (
	"context"
	"errors"
	"testing"

	"followup-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// racingStore saves a concurrent edit right before the first SaveOne.
type racingStore struct {
	*FileStore
	races int
}

func (s *racingStore) SaveOne(ctx context.Context, contact *models.Contact) error {
	if s.races > 0 {
		s.races--
		other, err := s.FileStore.LoadOne(ctx, contact.ID)
		if err != nil {
			return err
		}
		other.Notes = "edição concorrente"
		if err := s.FileStore.SaveOne(ctx, other); err != nil {
			return err
		}
	}
	return s.FileStore.SaveOne(ctx, contact)
}

func TestMutate_ReappliesOnConflict(t *testing.T) {
	base := newTestFileStore(t)
	seedContact(t, base, "c1", "11987654321")
	store := &racingStore{FileStore: base, races: 1}

	calls := 0
	saved, err := Mutate(context.Background(), store, "c1", func(c *models.Contact) (bool, error) {
		calls++
		c.HasUnreadReply = true
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, saved.HasUnreadReply)
	assert.Equal(t, "edição concorrente", saved.Notes)
}

func TestMutate_GivesUp(t *testing.T) {
	base := newTestFileStore(t)
	seedContact(t, base, "c1", "11987654321")
	store := &racingStore{FileStore: base, races: maxMutateAttempts}

	_, err := Mutate(context.Background(), store, "c1", func(c *models.Contact) (bool, error) {
		c.AutomationStage = models.StageWaitingReply1
		return true, nil
	})
	assert.ErrorIs(t, err, models.ErrRevisionConflict)
}

func TestMutate_NoChange(t *testing.T) {
	store := newTestFileStore(t)
	seedContact(t, store, "c1", "11987654321")

	contact, err := Mutate(context.Background(), store, "c1", func(c *models.Contact) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), contact.Revision)
}

func TestMutate_PropagatesErrors(t *testing.T) {
	store := newTestFileStore(t)
	seedContact(t, store, "c1", "11987654321")
	boom := errors.New("boom")

	_, err := Mutate(context.Background(), store, "c1", func(c *models.Contact) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = Mutate(context.Background(), store, "missing", func(c *models.Contact) (bool, error) {
		return true, nil
	})
	assert.ErrorIs(t, err, models.ErrContactNotFound)
}
