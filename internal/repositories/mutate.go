package repositories

import (
	"context"
	"errors"
	"fmt"

	"followup-bot/internal/models"
)

const maxMutateAttempts = 3

// Mutate loads the contact, applies fn and saves it. When another writer saved
// the contact in between, it reloads and applies fn again on the fresh copy.
// fn returning false skips the save; the loaded contact is returned as is.
func Mutate(ctx context.Context, store models.ContactStore, id string, fn func(*models.Contact) (bool, error)) (*models.Contact, error) {
	var lastErr error
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		contact, err := store.LoadOne(ctx, id)
		if err != nil {
			return nil, err
		}

		changed, err := fn(contact)
		if err != nil {
			return nil, err
		}
		if !changed {
			return contact, nil
		}

		err = store.SaveOne(ctx, contact)
		if err == nil {
			return contact, nil
		}
		if !errors.Is(err, models.ErrRevisionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", maxMutateAttempts, lastErr)
}
