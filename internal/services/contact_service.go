package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"followup-bot/internal/models"
	"followup-bot/internal/repositories"
	"followup-bot/internal/utils"
	"followup-bot/internal/wsnotify"

	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("dados inválidos")

// ContactService is what the HTTP API and the CLI call into.
type ContactService struct {
	contacts models.ContactStore
	settings models.SettingsStore
	channel  Channel
	notifier Notifier
	now      func() time.Time
}

func NewContactService(contacts models.ContactStore, settings models.SettingsStore, channel Channel, notifier Notifier) *ContactService {
	return &ContactService{
		contacts: contacts,
		settings: settings,
		channel:  channel,
		notifier: notifierOrNop(notifier),
		now:      time.Now,
	}
}

func (s *ContactService) List(ctx context.Context) ([]*models.Contact, error) {
	return s.contacts.LoadAll(ctx)
}

func (s *ContactService) Get(ctx context.Context, id string) (*models.Contact, error) {
	return s.contacts.LoadOne(ctx, id)
}

// Create stores a new IDLE contact. Without an explicit cadence it takes the
// category default from settings.
func (s *ContactService) Create(ctx context.Context, req models.CreateContactRequest) (*models.Contact, error) {
	if !req.Category.Valid() {
		return nil, fmt.Errorf("categoria %q: %w", req.Category, ErrInvalidInput)
	}
	if strings.TrimSpace(req.Name) == "" || utils.DigitsOnly(req.Phone) == "" {
		return nil, fmt.Errorf("nome e telefone são obrigatórios: %w", ErrInvalidInput)
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	contact := &models.Contact{
		ID:                    strings.TrimSpace(req.ID),
		Name:                  strings.TrimSpace(req.Name),
		Phone:                 strings.TrimSpace(req.Phone),
		Category:              req.Category,
		LastContactDate:       req.LastContactDate,
		FollowUpFrequencyDays: settings.DefaultFrequency(req.Category),
		AutomationStage:       models.StageIdle,
		AutoPilotEnabled:      true,
		ChatHistory:           []models.ChatMessage{},
		Notes:                 req.Notes,
	}
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	// The cadence counts from creation unless a last contact date was given.
	if contact.LastContactDate == nil {
		created := s.now().UTC()
		contact.LastContactDate = &created
	} else {
		last := contact.LastContactDate.UTC()
		contact.LastContactDate = &last
	}
	if req.FollowUpFrequencyDays != nil {
		contact.FollowUpFrequencyDays = *req.FollowUpFrequencyDays
	}
	if req.AutoPilotEnabled != nil {
		contact.AutoPilotEnabled = *req.AutoPilotEnabled
	}

	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, err
	}
	utils.LogInfo("Contato criado: %s (%s)", contact.Name, contact.ID)
	return contact, nil
}

// Update changes the editable fields. id and category are immutable.
func (s *ContactService) Update(ctx context.Context, id string, req models.UpdateContactRequest) (*models.Contact, error) {
	if req.AutomationStage != nil && !req.AutomationStage.Valid() {
		return nil, fmt.Errorf("estágio %d: %w", *req.AutomationStage, ErrInvalidInput)
	}

	return repositories.Mutate(ctx, s.contacts, id, func(c *models.Contact) (bool, error) {
		if req.Name != nil {
			c.Name = strings.TrimSpace(*req.Name)
		}
		if req.Phone != nil {
			c.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.LastContactDate != nil {
			t := req.LastContactDate.UTC()
			c.LastContactDate = &t
		}
		if req.FollowUpFrequencyDays != nil {
			c.FollowUpFrequencyDays = *req.FollowUpFrequencyDays
		}
		if req.AutomationStage != nil {
			c.AutomationStage = *req.AutomationStage
		}
		if req.AutoPilotEnabled != nil {
			c.AutoPilotEnabled = *req.AutoPilotEnabled
		}
		if req.Notes != nil {
			c.Notes = *req.Notes
		}
		return true, nil
	})
}

func (s *ContactService) Delete(ctx context.Context, id string) error {
	if err := s.contacts.Delete(ctx, id); err != nil {
		return err
	}
	utils.LogInfo("Contato removido: %s", id)
	return nil
}

// TriggerManualSend sends text right away and records it. The automation
// stage is left alone.
func (s *ContactService) TriggerManualSend(ctx context.Context, id, text string) (*models.Contact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("mensagem vazia: %w", ErrInvalidInput)
	}
	if !s.channel.IsReady() {
		return nil, ErrChannelUnavailable
	}

	contact, err := s.contacts.LoadOne(ctx, id)
	if err != nil {
		return nil, err
	}

	to := s.channel.Resolve(ctx, contact.Phone)
	messageID, err := s.channel.Send(ctx, to, text)
	if err != nil {
		return nil, fmt.Errorf("erro ao enviar mensagem: %w", err)
	}

	now := s.now().UTC()
	saved, err := repositories.Mutate(ctx, s.contacts, id, func(c *models.Contact) (bool, error) {
		if !c.HasMessage(messageID) {
			c.AppendMessage(models.ChatMessage{ID: messageID, Role: models.RoleAgent, Content: text, Timestamp: now})
		}
		c.LastContactDate = &now
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("mensagem enviada mas não registrada: %w", err)
	}

	utils.LogInfo("Mensagem manual enviada para %s", saved.Name)
	s.notifier.Broadcast(wsnotify.NewContactEvent(wsnotify.EventMessage, saved.ID, saved.Name, text, int(saved.AutomationStage), now))
	return saved, nil
}

// AcknowledgeReply clears the unread flag so the contact is eligible for
// automation again. The last reply stays visible.
func (s *ContactService) AcknowledgeReply(ctx context.Context, id string) (*models.Contact, error) {
	return repositories.Mutate(ctx, s.contacts, id, func(c *models.Contact) (bool, error) {
		if !c.HasUnreadReply {
			return false, nil
		}
		c.HasUnreadReply = false
		return true, nil
	})
}

func (s *ContactService) SetAutopilot(ctx context.Context, id string, enabled bool) (*models.Contact, error) {
	return repositories.Mutate(ctx, s.contacts, id, func(c *models.Contact) (bool, error) {
		if c.AutoPilotEnabled == enabled {
			return false, nil
		}
		c.AutoPilotEnabled = enabled
		return true, nil
	})
}

func (s *ContactService) SetGlobalAutomation(ctx context.Context, enabled bool) (models.Settings, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	settings.ServerAutomationEnabled = enabled
	if err := s.settings.Save(ctx, settings); err != nil {
		return models.Settings{}, err
	}
	if enabled {
		utils.LogInfo("Automação global ativada")
	} else {
		utils.LogInfo("Automação global desativada")
	}
	return settings, nil
}

func (s *ContactService) GetSettings(ctx context.Context) (models.Settings, error) {
	return s.settings.Load(ctx)
}

// SaveSettings replaces the settings. An empty apiKey keeps the stored one
// unless ClearAPIKey is set.
func (s *ContactService) SaveSettings(ctx context.Context, req models.SettingsRequest) (models.Settings, error) {
	if req.MessageTone != "" && !req.MessageTone.Valid() {
		return models.Settings{}, fmt.Errorf("tom %q: %w", req.MessageTone, ErrInvalidInput)
	}

	current, err := s.settings.Load(ctx)
	if err != nil {
		return models.Settings{}, err
	}

	next := models.Settings{
		AgentName:               strings.TrimSpace(req.AgentName),
		AgencyName:              strings.TrimSpace(req.AgencyName),
		MessageTone:             req.MessageTone,
		APIKey:                  strings.TrimSpace(req.APIKey),
		DefaultFrequencyOwner:   req.DefaultFrequencyOwner,
		DefaultFrequencyBuilder: req.DefaultFrequencyBuilder,
		DefaultFrequencyClient:  req.DefaultFrequencyClient,
		ServerAutomationEnabled: req.ServerAutomationEnabled,
	}
	if next.APIKey == "" && !req.ClearAPIKey {
		next.APIKey = current.APIKey
	}
	next = next.WithDefaults()

	if err := s.settings.Save(ctx, next); err != nil {
		return models.Settings{}, err
	}
	return next, nil
}
