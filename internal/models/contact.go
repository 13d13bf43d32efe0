package models

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryOwner   Category = "Proprietário"
	CategoryBuilder Category = "Construtor"
	CategoryClient  Category = "Cliente/Comprador"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryOwner, CategoryBuilder, CategoryClient:
		return true
	}
	return false
}

// AutomationStage is the position of a contact in the follow-up state machine.
type AutomationStage int

const (
	StageIdle AutomationStage = iota
	StageWaitingReply1
	StageWaitingReply2
	StageNoResponseAlert
)

func (s AutomationStage) Valid() bool {
	return s >= StageIdle && s <= StageNoResponseAlert
}

func (s AutomationStage) String() string {
	switch s {
	case StageIdle:
		return "IDLE"
	case StageWaitingReply1:
		return "WAITING_REPLY_1"
	case StageWaitingReply2:
		return "WAITING_REPLY_2"
	case StageNoResponseAlert:
		return "NO_RESPONSE_ALERT"
	default:
		return "UNKNOWN"
	}
}

const (
	RoleAgent   = "agent"
	RoleContact = "contact"
)

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Contact struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Phone                 string          `json:"phone"`
	Category              Category        `json:"category"`
	LastContactDate       *time.Time      `json:"lastContactDate,omitempty"`
	FollowUpFrequencyDays int             `json:"followUpFrequencyDays"`
	AutomationStage       AutomationStage `json:"automationStage"`
	LastAutomatedMsgDate  *time.Time      `json:"lastAutomatedMsgDate,omitempty"`
	AutoPilotEnabled      bool            `json:"autoPilotEnabled"`
	HasUnreadReply        bool            `json:"hasUnreadReply"`
	LastReplyContent      string          `json:"lastReplyContent,omitempty"`
	LastReplyTimestamp    *time.Time      `json:"lastReplyTimestamp,omitempty"`
	ChatHistory           []ChatMessage   `json:"chatHistory"`
	Notes                 string          `json:"notes"`
	Revision              int64           `json:"revision"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`

	// entries of ChatHistory already written to the store
	persisted int
}

// AppendMessage adds m to the end of the chat history. History is never
// reordered. Messages without an id get a generated one.
func (c *Contact) AppendMessage(m ChatMessage) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	c.ChatHistory = append(c.ChatHistory, m)
}

// PendingMessages returns the history entries appended since the contact was
// loaded or last saved.
func (c *Contact) PendingMessages() []ChatMessage {
	if c.persisted >= len(c.ChatHistory) {
		return nil
	}
	return c.ChatHistory[c.persisted:]
}

// MarkPersisted records that the whole chat history is stored.
func (c *Contact) MarkPersisted() {
	c.persisted = len(c.ChatHistory)
}

func (c *Contact) HasMessage(id string) bool {
	if id == "" {
		return false
	}
	for _, m := range c.ChatHistory {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, including the persisted marker.
func (c *Contact) Clone() *Contact {
	out := *c
	out.ChatHistory = append([]ChatMessage(nil), c.ChatHistory...)
	out.LastContactDate = cloneTime(c.LastContactDate)
	out.LastAutomatedMsgDate = cloneTime(c.LastAutomatedMsgDate)
	out.LastReplyTimestamp = cloneTime(c.LastReplyTimestamp)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
