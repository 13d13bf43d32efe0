package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"followup-bot/internal/models"
	"followup-bot/internal/utils"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

const contactColumns = `id, name, phone, category, last_contact_date, follow_up_frequency_days,
	automation_stage, last_automated_msg_date, auto_pilot_enabled, has_unread_reply,
	last_reply_content, last_reply_timestamp, notes, revision, created_at, updated_at`

const mysqlDuplicateEntry = 1062

type contactRow struct {
	ID                    string         `db:"id"`
	Name                  string         `db:"name"`
	Phone                 string         `db:"phone"`
	Category              string         `db:"category"`
	LastContactDate       sql.NullTime   `db:"last_contact_date"`
	FollowUpFrequencyDays int            `db:"follow_up_frequency_days"`
	AutomationStage       int            `db:"automation_stage"`
	LastAutomatedMsgDate  sql.NullTime   `db:"last_automated_msg_date"`
	AutoPilotEnabled      bool           `db:"auto_pilot_enabled"`
	HasUnreadReply        bool           `db:"has_unread_reply"`
	LastReplyContent      sql.NullString `db:"last_reply_content"`
	LastReplyTimestamp    sql.NullTime   `db:"last_reply_timestamp"`
	Notes                 sql.NullString `db:"notes"`
	Revision              int64          `db:"revision"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

func (row contactRow) toModel() *models.Contact {
	return &models.Contact{
		ID:                    row.ID,
		Name:                  row.Name,
		Phone:                 row.Phone,
		Category:              models.Category(row.Category),
		LastContactDate:       utils.TimePtr(row.LastContactDate),
		FollowUpFrequencyDays: row.FollowUpFrequencyDays,
		AutomationStage:       models.AutomationStage(row.AutomationStage),
		LastAutomatedMsgDate:  utils.TimePtr(row.LastAutomatedMsgDate),
		AutoPilotEnabled:      row.AutoPilotEnabled,
		HasUnreadReply:        row.HasUnreadReply,
		LastReplyContent:      row.LastReplyContent.String,
		LastReplyTimestamp:    utils.TimePtr(row.LastReplyTimestamp),
		Notes:                 row.Notes.String,
		Revision:              row.Revision,
		CreatedAt:             row.CreatedAt.UTC(),
		UpdatedAt:             row.UpdatedAt.UTC(),
		ChatHistory:           []models.ChatMessage{},
	}
}

type messageRow struct {
	ContactID string    `db:"contact_id"`
	MessageID string    `db:"message_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	SentAt    time.Time `db:"sent_at"`
}

// MySQLContactRepository stores contacts in MySQL. The revision column is the
// optimistic lock: every write is conditional on the revision that was loaded.
type MySQLContactRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewMySQLContactRepository(db *sqlx.DB) *MySQLContactRepository {
	return &MySQLContactRepository{db: db, now: time.Now}
}

func (r *MySQLContactRepository) LoadAll(ctx context.Context) ([]*models.Contact, error) {
	var rows []contactRow
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("error querying contacts: %w", err)
	}
	return r.withHistory(ctx, rows)
}

func (r *MySQLContactRepository) LoadOne(ctx context.Context, id string) (*models.Contact, error) {
	var row contactRow
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = ?`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact %s: %w", id, models.ErrContactNotFound)
		}
		return nil, fmt.Errorf("error getting contact: %w", err)
	}
	contacts, err := r.withHistory(ctx, []contactRow{row})
	if err != nil {
		return nil, err
	}
	return contacts[0], nil
}

// FindByPhoneSuffix returns every contact whose phone shares the trailing
// digits of phone. The caller decides what more than one match means.
func (r *MySQLContactRepository) FindByPhoneSuffix(ctx context.Context, phone string) ([]*models.Contact, error) {
	suffix := utils.PhoneSuffix(phone)
	if suffix == "" {
		return nil, nil
	}

	var rows []contactRow
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE phone_suffix = ? ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &rows, query, suffix); err != nil {
		return nil, fmt.Errorf("error querying contacts by phone: %w", err)
	}
	return r.withHistory(ctx, rows)
}

func (r *MySQLContactRepository) withHistory(ctx context.Context, rows []contactRow) ([]*models.Contact, error) {
	contacts := make([]*models.Contact, 0, len(rows))
	if len(rows) == 0 {
		return contacts, nil
	}

	byID := make(map[string]*models.Contact, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		c := row.toModel()
		contacts = append(contacts, c)
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	query, args, err := sqlx.In(`SELECT contact_id, message_id, role, content, sent_at
		FROM chat_messages WHERE contact_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("error building history query: %w", err)
	}

	var messages []messageRow
	if err := r.db.SelectContext(ctx, &messages, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("error querying chat history: %w", err)
	}

	for _, m := range messages {
		if c, ok := byID[m.ContactID]; ok {
			c.ChatHistory = append(c.ChatHistory, models.ChatMessage{
				ID:        m.MessageID,
				Role:      m.Role,
				Content:   m.Content,
				Timestamp: m.SentAt.UTC(),
			})
		}
	}
	for _, c := range contacts {
		c.MarkPersisted()
	}
	return contacts, nil
}

func (r *MySQLContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	now := r.now().UTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}
	contact.UpdatedAt = now
	contact.Revision = 1

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO contacts (`+contactColumns+`, phone_suffix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contact.ID,
		contact.Name,
		contact.Phone,
		string(contact.Category),
		utils.NullTime(contact.LastContactDate),
		contact.FollowUpFrequencyDays,
		int(contact.AutomationStage),
		utils.NullTime(contact.LastAutomatedMsgDate),
		utils.BoolToInt(contact.AutoPilotEnabled),
		utils.BoolToInt(contact.HasUnreadReply),
		utils.NullString(contact.LastReplyContent),
		utils.NullTime(contact.LastReplyTimestamp),
		utils.NullString(contact.Notes),
		contact.Revision,
		contact.CreatedAt,
		contact.UpdatedAt,
		utils.PhoneSuffix(contact.Phone),
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return fmt.Errorf("contact %s: %w", contact.ID, models.ErrContactExists)
		}
		return fmt.Errorf("error saving contact: %w", err)
	}

	if err := insertMessages(ctx, tx, contact); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing contact: %w", err)
	}

	contact.MarkPersisted()
	return nil
}

func (r *MySQLContactRepository) SaveOne(ctx context.Context, contact *models.Contact) error {
	now := r.now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	updated, err := updateContact(ctx, tx, contact, now)
	if err != nil {
		return err
	}
	if !updated {
		var revision int64
		err := tx.GetContext(ctx, &revision, `SELECT revision FROM contacts WHERE id = ?`, contact.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("contact %s: %w", contact.ID, models.ErrContactNotFound)
		}
		if err != nil {
			return fmt.Errorf("error checking contact revision: %w", err)
		}
		return fmt.Errorf("contact %s at revision %d, stored %d: %w",
			contact.ID, contact.Revision, revision, models.ErrRevisionConflict)
	}

	if err := insertMessages(ctx, tx, contact); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing contact: %w", err)
	}

	markSaved(contact, now)
	return nil
}

// SaveAll writes the batch in one transaction. Contacts whose revision moved
// on are skipped and reported through *models.ConflictError; the others are
// committed. Any other error rolls back the whole batch.
func (r *MySQLContactRepository) SaveAll(ctx context.Context, contacts []*models.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	now := r.now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var conflicts []string
	saved := make([]*models.Contact, 0, len(contacts))
	for _, contact := range contacts {
		updated, err := updateContact(ctx, tx, contact, now)
		if err != nil {
			return err
		}
		if !updated {
			conflicts = append(conflicts, contact.ID)
			continue
		}
		if err := insertMessages(ctx, tx, contact); err != nil {
			return err
		}
		saved = append(saved, contact)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing contacts: %w", err)
	}

	for _, contact := range saved {
		markSaved(contact, now)
	}
	if len(conflicts) > 0 {
		return &models.ConflictError{IDs: conflicts}
	}
	return nil
}

func (r *MySQLContactRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting contact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("contact %s: %w", id, models.ErrContactNotFound)
	}
	return nil
}

func updateContact(ctx context.Context, tx *sqlx.Tx, contact *models.Contact, now time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx, `UPDATE contacts SET
			name = ?, phone = ?, phone_suffix = ?, last_contact_date = ?,
			follow_up_frequency_days = ?, automation_stage = ?, last_automated_msg_date = ?,
			auto_pilot_enabled = ?, has_unread_reply = ?, last_reply_content = ?,
			last_reply_timestamp = ?, notes = ?, revision = revision + 1, updated_at = ?
		WHERE id = ? AND revision = ?`,
		contact.Name,
		contact.Phone,
		utils.PhoneSuffix(contact.Phone),
		utils.NullTime(contact.LastContactDate),
		contact.FollowUpFrequencyDays,
		int(contact.AutomationStage),
		utils.NullTime(contact.LastAutomatedMsgDate),
		utils.BoolToInt(contact.AutoPilotEnabled),
		utils.BoolToInt(contact.HasUnreadReply),
		utils.NullString(contact.LastReplyContent),
		utils.NullTime(contact.LastReplyTimestamp),
		utils.NullString(contact.Notes),
		now,
		contact.ID,
		contact.Revision,
	)
	if err != nil {
		return false, fmt.Errorf("error updating contact %s: %w", contact.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting affected rows: %w", err)
	}
	return affected == 1, nil
}

// insertMessages writes the history entries appended since the contact was
// loaded. Rows already present (same contact and message id) are ignored.
func insertMessages(ctx context.Context, tx *sqlx.Tx, contact *models.Contact) error {
	pending := contact.PendingMessages()
	if len(pending) == 0 {
		return nil
	}

	rows := make([]messageRow, 0, len(pending))
	for _, m := range pending {
		rows = append(rows, messageRow{
			ContactID: contact.ID,
			MessageID: m.ID,
			Role:      m.Role,
			Content:   m.Content,
			SentAt:    m.Timestamp.UTC(),
		})
	}

	_, err := tx.NamedExecContext(ctx, `INSERT IGNORE INTO chat_messages
		(contact_id, message_id, role, content, sent_at)
		VALUES (:contact_id, :message_id, :role, :content, :sent_at)`, rows)
	if err != nil {
		return fmt.Errorf("error saving chat history for %s: %w", contact.ID, err)
	}
	return nil
}

func markSaved(contact *models.Contact, now time.Time) {
	contact.Revision++
	contact.UpdatedAt = now
	contact.MarkPersisted()
}
