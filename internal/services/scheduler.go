package services

import (
	"context"
	"errors"
	"time"

	"followup-bot/internal/models"
	"followup-bot/internal/repositories"
	"followup-bot/internal/utils"
	"followup-bot/internal/wsnotify"
)

type SchedulerPolicy struct {
	TickInterval time.Duration
	NudgeAfter   time.Duration
	// NoResponseAfter moves WAITING_REPLY_2 to NO_RESPONSE_ALERT. Zero or
	// negative disables the transition.
	NoResponseAfter time.Duration
}

func DefaultSchedulerPolicy() SchedulerPolicy {
	return SchedulerPolicy{
		TickInterval:    60 * time.Second,
		NudgeAfter:      24 * time.Hour,
		NoResponseAfter: 48 * time.Hour,
	}
}

type Action int

const (
	ActionNone Action = iota
	ActionSendInitial
	ActionSendNudge
	ActionMarkNoResponse
)

func (a Action) String() string {
	switch a {
	case ActionSendInitial:
		return "initial"
	case ActionSendNudge:
		return "nudge"
	case ActionMarkNoResponse:
		return "no_response"
	default:
		return "none"
	}
}

type Decision struct {
	Action Action
	Reason string
}

// Evaluate decides what the scheduler does with contact at now. It has no
// side effects.
func Evaluate(contact *models.Contact, now time.Time, policy SchedulerPolicy) Decision {
	switch {
	case !contact.AutoPilotEnabled:
		return Decision{ActionNone, "piloto automático desligado"}
	case contact.HasUnreadReply:
		return Decision{ActionNone, "resposta não lida"}
	}

	switch contact.AutomationStage {
	case models.StageIdle:
		// No date means the cadence has no starting point yet.
		if contact.LastContactDate == nil {
			return Decision{ActionNone, "sem data de último contato"}
		}
		due := time.Duration(contact.FollowUpFrequencyDays) * 24 * time.Hour
		if now.Sub(*contact.LastContactDate) >= due {
			return Decision{ActionSendInitial, "follow-up vencido"}
		}
		return Decision{ActionNone, "follow-up ainda não vencido"}

	case models.StageWaitingReply1:
		if contact.LastAutomatedMsgDate == nil || now.Sub(*contact.LastAutomatedMsgDate) >= policy.NudgeAfter {
			return Decision{ActionSendNudge, "sem resposta após a primeira mensagem"}
		}
		return Decision{ActionNone, "aguardando resposta"}

	case models.StageWaitingReply2:
		if policy.NoResponseAfter <= 0 {
			return Decision{ActionNone, "alerta de sem resposta desativado"}
		}
		if contact.LastAutomatedMsgDate == nil || now.Sub(*contact.LastAutomatedMsgDate) >= policy.NoResponseAfter {
			return Decision{ActionMarkNoResponse, "sem resposta após a cobrança"}
		}
		return Decision{ActionNone, "aguardando resposta"}

	default:
		return Decision{ActionNone, "estágio final"}
	}
}

type TickReport struct {
	Skipped   string `json:"skipped,omitempty"`
	Evaluated int    `json:"evaluated"`
	Sent      int    `json:"sent"`
	Nudged    int    `json:"nudged"`
	Alerted   int    `json:"alerted"`
	Failed    int    `json:"failed"`
	Conflicts int    `json:"conflicts"`
}

// mutation is what a tick did to one contact, kept so it can be replayed on
// a fresh copy when the batch write loses a revision race.
type mutation struct {
	contactID string
	action    Action
	text      string
	messageID string
	at        time.Time
}

// apply records the mutation on c. The stage only advances while c has no
// unread reply.
func (m mutation) apply(c *models.Contact) bool {
	at := m.at
	switch m.action {
	case ActionSendInitial, ActionSendNudge:
		if !c.HasMessage(m.messageID) {
			c.AppendMessage(models.ChatMessage{ID: m.messageID, Role: models.RoleAgent, Content: m.text, Timestamp: at})
		}
		c.LastAutomatedMsgDate = &at
		if m.action == ActionSendInitial {
			c.LastContactDate = &at
		}
		if !c.HasUnreadReply {
			if m.action == ActionSendInitial {
				c.AutomationStage = models.StageWaitingReply1
			} else {
				c.AutomationStage = models.StageWaitingReply2
			}
		}
		return true
	case ActionMarkNoResponse:
		if c.HasUnreadReply || c.AutomationStage != models.StageWaitingReply2 {
			return false
		}
		c.AutomationStage = models.StageNoResponseAlert
		return true
	}
	return false
}

type Scheduler struct {
	contacts     models.ContactStore
	settings     models.SettingsStore
	channel      Channel
	newGenerator func(apiKey string) TextGenerator
	notifier     Notifier
	policy       SchedulerPolicy
	now          func() time.Time
}

func NewScheduler(contacts models.ContactStore, settings models.SettingsStore, channel Channel,
	newGenerator func(apiKey string) TextGenerator, notifier Notifier, policy SchedulerPolicy) *Scheduler {
	if policy.TickInterval <= 0 {
		policy.TickInterval = DefaultSchedulerPolicy().TickInterval
	}
	if policy.NudgeAfter <= 0 {
		policy.NudgeAfter = DefaultSchedulerPolicy().NudgeAfter
	}
	return &Scheduler{
		contacts:     contacts,
		settings:     settings,
		channel:      channel,
		newGenerator: newGenerator,
		notifier:     notifierOrNop(notifier),
		policy:       policy,
		now:          time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.policy.TickInterval)
	defer ticker.Stop()

	utils.LogInfo("Automação iniciada (intervalo %s)", s.policy.TickInterval)
	for {
		select {
		case <-ctx.Done():
			utils.LogInfo("Automação encerrada")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one automation cycle.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	var report TickReport
	defer utils.TimeTrack(s.now(), "ciclo de automação")

	settings, err := s.settings.Load(ctx)
	if err != nil {
		utils.LogError("Erro ao carregar configurações: %v", err)
		report.Skipped = "settings_error"
		return report
	}
	if !settings.ServerAutomationEnabled {
		report.Skipped = "automation_disabled"
		return report
	}
	if !s.channel.IsReady() {
		utils.LogDebug("WhatsApp não está pronto, ciclo ignorado")
		report.Skipped = "channel_not_ready"
		return report
	}

	contacts, err := s.contacts.LoadAll(ctx)
	if err != nil {
		utils.LogError("Erro ao carregar contatos: %v", err)
		report.Skipped = "store_error"
		return report
	}

	utils.LogDebug("Rodando ciclo de automação para %d contatos", len(contacts))
	composer := ComposerFor(settings, s.newGenerator)

	var mutations []mutation
	var changed []*models.Contact
	for _, c := range contacts {
		if ctx.Err() != nil {
			break
		}
		report.Evaluated++

		now := s.now().UTC()
		decision := Evaluate(c, now, s.policy)
		if decision.Action == ActionNone {
			continue
		}

		m := mutation{contactID: c.ID, action: decision.Action, at: now}
		if decision.Action != ActionMarkNoResponse {
			intent := IntentInitial
			if decision.Action == ActionSendNudge {
				intent = IntentNudge
			}
			m.text = composer.Compose(ctx, c, settings, intent)

			to := s.channel.Resolve(ctx, c.Phone)
			id, err := s.channel.Send(ctx, to, m.text)
			if err != nil {
				utils.LogError("Erro ao enviar para %s (%s): %v", c.Name, c.ID, err)
				report.Failed++
				continue
			}
			m.messageID = id
		}

		if m.apply(c) {
			mutations = append(mutations, m)
			changed = append(changed, c)
		}
	}

	if len(changed) == 0 {
		return report
	}

	applied := s.persist(ctx, changed, mutations, &report)
	for _, m := range applied {
		s.announce(m, &report)
	}

	utils.Logger().Info().
		Int("evaluated", report.Evaluated).
		Int("sent", report.Sent).
		Int("nudged", report.Nudged).
		Int("alerted", report.Alerted).
		Int("failed", report.Failed).
		Int("conflicts", report.Conflicts).
		Msg("Ciclo de automação concluído")
	return report
}

// persist writes the batch and replays conflicting mutations on fresh copies.
// It returns the mutations that ended up stored.
func (s *Scheduler) persist(ctx context.Context, changed []*models.Contact, mutations []mutation, report *TickReport) []mutation {
	err := s.contacts.SaveAll(ctx, changed)
	if err == nil {
		return mutations
	}

	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		utils.LogError("Erro ao salvar contatos, alterações do ciclo descartadas: %v", err)
		report.Failed += len(mutations)
		return nil
	}

	rejected := make(map[string]bool, len(conflict.IDs))
	for _, id := range conflict.IDs {
		rejected[id] = true
	}
	report.Conflicts = len(conflict.IDs)

	applied := make([]mutation, 0, len(mutations))
	for _, m := range mutations {
		if !rejected[m.contactID] {
			applied = append(applied, m)
			continue
		}
		m := m
		stored := false
		_, err := repositories.Mutate(ctx, s.contacts, m.contactID, func(c *models.Contact) (bool, error) {
			stored = m.apply(c)
			return stored, nil
		})
		if err != nil {
			utils.LogError("Erro ao reaplicar automação em %s: %v", m.contactID, err)
			report.Failed++
			continue
		}
		if stored {
			applied = append(applied, m)
		}
	}
	return applied
}

func (s *Scheduler) announce(m mutation, report *TickReport) {
	eventType := wsnotify.EventAutomation
	switch m.action {
	case ActionSendInitial:
		report.Sent++
	case ActionSendNudge:
		report.Nudged++
	case ActionMarkNoResponse:
		report.Alerted++
		eventType = wsnotify.EventNoResponse
	}
	s.notifier.Broadcast(wsnotify.Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"contactId": m.contactID,
			"action":    m.action.String(),
			"content":   m.text,
			"sentAt":    m.at.Format(time.RFC3339Nano),
		},
	})
}
