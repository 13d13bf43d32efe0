package models

import "time"

type CreateContactRequest struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name" validate:"required,max=120" example:"Maria Souza"`
	Phone                 string     `json:"phone" validate:"required,min=8,max=32" example:"5511987654321"`
	Category              Category   `json:"category" validate:"required,oneof=Proprietário Construtor Cliente/Comprador"`
	LastContactDate       *time.Time `json:"lastContactDate"`
	FollowUpFrequencyDays *int       `json:"followUpFrequencyDays" validate:"omitempty,min=0,max=3650"`
	AutoPilotEnabled      *bool      `json:"autoPilotEnabled"`
	Notes                 string     `json:"notes" validate:"max=4000"`
}

// UpdateContactRequest carries the editable fields. Nil means unchanged;
// id and category cannot be changed.
type UpdateContactRequest struct {
	Name                  *string          `json:"name" validate:"omitempty,min=1,max=120"`
	Phone                 *string          `json:"phone" validate:"omitempty,min=8,max=32"`
	LastContactDate       *time.Time       `json:"lastContactDate"`
	FollowUpFrequencyDays *int             `json:"followUpFrequencyDays" validate:"omitempty,min=0,max=3650"`
	AutomationStage       *AutomationStage `json:"automationStage" validate:"omitempty,min=0,max=3"`
	AutoPilotEnabled      *bool            `json:"autoPilotEnabled"`
	Notes                 *string          `json:"notes" validate:"omitempty,max=4000"`
}

type MessageRequest struct {
	Message string `json:"message" validate:"required,max=4096" example:"Olá, como vai?"`
}

type AutopilotRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// SettingsRequest replaces the settings. An empty apiKey keeps the stored key
// unless clearApiKey is set.
type SettingsRequest struct {
	AgentName               string      `json:"agentName" validate:"max=80"`
	AgencyName              string      `json:"agencyName" validate:"max=80"`
	MessageTone             MessageTone `json:"messageTone" validate:"omitempty,oneof=Formal Casual Persuasivo Amigável Consultivo Urgente Entusiasta Elegante"`
	APIKey                  string      `json:"apiKey"`
	ClearAPIKey             bool        `json:"clearApiKey"`
	DefaultFrequencyOwner   int         `json:"defaultFrequencyOwner" validate:"min=0,max=3650"`
	DefaultFrequencyBuilder int         `json:"defaultFrequencyBuilder" validate:"min=0,max=3650"`
	DefaultFrequencyClient  int         `json:"defaultFrequencyClient" validate:"min=0,max=3650"`
	ServerAutomationEnabled bool        `json:"serverAutomationEnabled"`
}

// SettingsView is Settings as returned over HTTP, without the credential itself.
type SettingsView struct {
	Settings
	APIKey    string `json:"apiKey,omitempty"`
	HasAPIKey bool   `json:"hasApiKey"`
}

func NewSettingsView(s Settings) SettingsView {
	return SettingsView{Settings: s, HasAPIKey: s.HasAICredential()}
}
