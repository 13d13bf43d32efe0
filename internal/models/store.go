package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrContactNotFound  = errors.New("contato não encontrado")
	ErrRevisionConflict = errors.New("contato alterado por outro processo")
	ErrContactExists    = errors.New("contato já existe")
)

// ConflictError lists the contacts a batch save rejected because their stored
// revision moved on. All other contacts in the batch were written.
type ConflictError struct {
	IDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflito de revisão em %d contato(s): %s", len(e.IDs), strings.Join(e.IDs, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrRevisionConflict
}

// ContactStore persists contacts with optimistic per-contact revisions.
// SaveOne and SaveAll only write a contact whose Revision matches the stored
// one, then bump Revision on the passed value.
type ContactStore interface {
	LoadAll(ctx context.Context) ([]*Contact, error)
	LoadOne(ctx context.Context, id string) (*Contact, error)
	FindByPhoneSuffix(ctx context.Context, phone string) ([]*Contact, error)
	Create(ctx context.Context, contact *Contact) error
	SaveOne(ctx context.Context, contact *Contact) error
	SaveAll(ctx context.Context, contacts []*Contact) error
	Delete(ctx context.Context, id string) error
}

type SettingsStore interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, settings Settings) error
}
