package models

import "strings"

type MessageTone string

const (
	ToneFormal     MessageTone = "Formal"
	ToneCasual     MessageTone = "Casual"
	TonePersuasive MessageTone = "Persuasivo"
	ToneFriendly   MessageTone = "Amigável"
	ToneConsultive MessageTone = "Consultivo"
	ToneUrgent     MessageTone = "Urgente"
	ToneEnthusiast MessageTone = "Entusiasta"
	ToneElegant    MessageTone = "Elegante"
)

const (
	DefaultAgent    = "Seu Corretor"
	DefaultAgency   = "Imobiliária"
	minAPIKeyLength = 10
)

func (t MessageTone) Valid() bool {
	switch t {
	case ToneFormal, ToneCasual, TonePersuasive, ToneFriendly,
		ToneConsultive, ToneUrgent, ToneEnthusiast, ToneElegant:
		return true
	}
	return false
}

type Settings struct {
	AgentName               string      `json:"agentName"`
	AgencyName              string      `json:"agencyName"`
	MessageTone             MessageTone `json:"messageTone"`
	APIKey                  string      `json:"apiKey,omitempty"`
	DefaultFrequencyOwner   int         `json:"defaultFrequencyOwner"`
	DefaultFrequencyBuilder int         `json:"defaultFrequencyBuilder"`
	DefaultFrequencyClient  int         `json:"defaultFrequencyClient"`
	ServerAutomationEnabled bool        `json:"serverAutomationEnabled"`
}

// DefaultSettings is what a fresh install runs with. Automation stays off
// until someone turns it on.
func DefaultSettings() Settings {
	return Settings{
		AgentName:               DefaultAgent,
		AgencyName:              DefaultAgency,
		MessageTone:             ToneCasual,
		DefaultFrequencyOwner:   30,
		DefaultFrequencyBuilder: 30,
		DefaultFrequencyClient:  15,
		ServerAutomationEnabled: false,
	}
}

// WithDefaults fills blank display fields so messages never say "Olá , aqui é  da ".
func (s Settings) WithDefaults() Settings {
	if strings.TrimSpace(s.AgentName) == "" {
		s.AgentName = DefaultAgent
	}
	if strings.TrimSpace(s.AgencyName) == "" {
		s.AgencyName = DefaultAgency
	}
	if !s.MessageTone.Valid() {
		s.MessageTone = ToneCasual
	}
	return s
}

// HasAICredential reports whether the AI generator should be used.
func (s Settings) HasAICredential() bool {
	return len(strings.TrimSpace(s.APIKey)) > minAPIKeyLength
}

func (s Settings) DefaultFrequency(c Category) int {
	switch c {
	case CategoryOwner:
		return s.DefaultFrequencyOwner
	case CategoryBuilder:
		return s.DefaultFrequencyBuilder
	default:
		return s.DefaultFrequencyClient
	}
}
