package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		phone VARCHAR(32) NOT NULL,
		phone_suffix VARCHAR(16) NOT NULL,
		category VARCHAR(32) NOT NULL,
		last_contact_date DATETIME(3) NULL,
		follow_up_frequency_days INT NOT NULL DEFAULT 0,
		automation_stage TINYINT NOT NULL DEFAULT 0,
		last_automated_msg_date DATETIME(3) NULL,
		auto_pilot_enabled TINYINT(1) NOT NULL DEFAULT 1,
		has_unread_reply TINYINT(1) NOT NULL DEFAULT 0,
		last_reply_content TEXT NULL,
		last_reply_timestamp DATETIME(3) NULL,
		notes TEXT NULL,
		revision BIGINT NOT NULL DEFAULT 1,
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		INDEX idx_contacts_phone_suffix (phone_suffix)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		contact_id VARCHAR(64) NOT NULL,
		message_id VARCHAR(128) NOT NULL,
		role VARCHAR(16) NOT NULL,
		content TEXT NOT NULL,
		sent_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_chat_messages_contact_message (contact_id, message_id),
		FOREIGN KEY (contact_id) REFERENCES contacts(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS app_settings (
		id TINYINT NOT NULL PRIMARY KEY,
		data JSON NOT NULL,
		updated_at DATETIME(3) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// CreateTables creates the tables if they are missing. Existing tables are
// never altered.
func CreateTables(ctx context.Context, db *sqlx.DB) error {
	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error creating tables: %w", err)
		}
	}
	return nil
}
