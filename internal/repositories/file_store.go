package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"followup-bot/internal/models"
	"followup-bot/internal/utils"
)

type fileData struct {
	Contacts []*models.Contact `json:"contacts"`
	Settings *models.Settings  `json:"settings,omitempty"`
}

// FileStore keeps contacts and settings in a single JSON document. It is used
// when no MySQL DSN is configured. Every operation reads and rewrites the file
// under one mutex, so it only serialises writers inside this process.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) read() (*fileData, error) {
	data := &fileData{}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", s.path, err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", s.path, err)
	}
	for _, c := range data.Contacts {
		if c.ChatHistory == nil {
			c.ChatHistory = []models.ChatMessage{}
		}
		c.MarkPersisted()
	}
	return data, nil
}

// write replaces the file through a temp file and rename so readers never see
// a partial document.
func (s *FileStore) write(data *fileData) error {
	if data.Contacts == nil {
		data.Contacts = []*models.Contact{}
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("error replacing %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) LoadAll(ctx context.Context) ([]*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	return data.Contacts, nil
}

func (s *FileStore) LoadOne(ctx context.Context, id string) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	if i := indexOf(data.Contacts, id); i >= 0 {
		return data.Contacts[i], nil
	}
	return nil, fmt.Errorf("contact %s: %w", id, models.ErrContactNotFound)
}

func (s *FileStore) FindByPhoneSuffix(ctx context.Context, phone string) ([]*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	var matches []*models.Contact
	for _, c := range data.Contacts {
		if utils.SamePhone(c.Phone, phone) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

func (s *FileStore) Create(ctx context.Context, contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	if indexOf(data.Contacts, contact.ID) >= 0 {
		return fmt.Errorf("contact %s: %w", contact.ID, models.ErrContactExists)
	}

	now := s.now().UTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}
	contact.UpdatedAt = now
	contact.Revision = 1
	if contact.ChatHistory == nil {
		contact.ChatHistory = []models.ChatMessage{}
	}

	data.Contacts = append(data.Contacts, contact.Clone())
	if err := s.write(data); err != nil {
		return err
	}
	contact.MarkPersisted()
	return nil
}

func (s *FileStore) SaveOne(ctx context.Context, contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	i := indexOf(data.Contacts, contact.ID)
	if i < 0 {
		return fmt.Errorf("contact %s: %w", contact.ID, models.ErrContactNotFound)
	}
	if stored := data.Contacts[i].Revision; stored != contact.Revision {
		return fmt.Errorf("contact %s at revision %d, stored %d: %w",
			contact.ID, contact.Revision, stored, models.ErrRevisionConflict)
	}

	now := s.now().UTC()
	data.Contacts[i] = savedCopy(contact, now)
	if err := s.write(data); err != nil {
		return err
	}
	markSaved(contact, now)
	return nil
}

// SaveAll writes every contact whose revision still matches in a single file
// replacement and reports the rest through *models.ConflictError.
func (s *FileStore) SaveAll(ctx context.Context, contacts []*models.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	var conflicts []string
	saved := make([]*models.Contact, 0, len(contacts))
	for _, contact := range contacts {
		i := indexOf(data.Contacts, contact.ID)
		if i < 0 || data.Contacts[i].Revision != contact.Revision {
			conflicts = append(conflicts, contact.ID)
			continue
		}
		data.Contacts[i] = savedCopy(contact, now)
		saved = append(saved, contact)
	}

	if len(saved) > 0 {
		if err := s.write(data); err != nil {
			return err
		}
	}
	for _, contact := range saved {
		markSaved(contact, now)
	}
	if len(conflicts) > 0 {
		return &models.ConflictError{IDs: conflicts}
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	i := indexOf(data.Contacts, id)
	if i < 0 {
		return fmt.Errorf("contact %s: %w", id, models.ErrContactNotFound)
	}
	data.Contacts = append(data.Contacts[:i], data.Contacts[i+1:]...)
	return s.write(data)
}

// Load returns the stored settings, or the defaults when none were ever saved.
func (s *FileStore) Load(ctx context.Context) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return models.Settings{}, err
	}
	if data.Settings == nil {
		return models.DefaultSettings(), nil
	}
	return *data.Settings, nil
}

func (s *FileStore) Save(ctx context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data.Settings = &settings
	return s.write(data)
}

func savedCopy(contact *models.Contact, now time.Time) *models.Contact {
	stored := contact.Clone()
	stored.Revision++
	stored.UpdatedAt = now
	return stored
}

func indexOf(contacts []*models.Contact, id string) int {
	for i, c := range contacts {
		if c.ID == id {
			return i
		}
	}
	return -1
}
