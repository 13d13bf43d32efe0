package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"followup-bot/internal/models"

	"github.com/jmoiron/sqlx"
)

// settingsRowID is the single row holding the settings document.
const settingsRowID = 1

type MySQLSettingsRepository struct {
	db *sqlx.DB
}

func NewMySQLSettingsRepository(db *sqlx.DB) *MySQLSettingsRepository {
	return &MySQLSettingsRepository{db: db}
}

// Load returns the stored settings, or the defaults when none were ever saved.
func (r *MySQLSettingsRepository) Load(ctx context.Context) (models.Settings, error) {
	var data []byte
	err := r.db.GetContext(ctx, &data, `SELECT data FROM app_settings WHERE id = ?`, settingsRowID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("error loading settings: %w", err)
	}

	settings := models.DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return models.Settings{}, fmt.Errorf("error decoding settings: %w", err)
	}
	return settings, nil
}

func (r *MySQLSettingsRepository) Save(ctx context.Context, settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error encoding settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO app_settings (id, data, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)`,
		settingsRowID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error saving settings: %w", err)
	}
	return nil
}
