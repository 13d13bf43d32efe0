package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"followup-bot/internal/models"
	"followup-bot/internal/repositories"
	"followup-bot/internal/utils"
	"followup-bot/internal/wsnotify"
)

type IngestOutcome string

const (
	IngestAppended  IngestOutcome = "appended"
	IngestDuplicate IngestOutcome = "duplicate"
	IngestNoMatch   IngestOutcome = "no_match"
	IngestIgnored   IngestOutcome = "ignored"
)

type IngestResult struct {
	Outcome   IngestOutcome
	ContactID string
}

// Ingestor records channel messages in the matching contact's history. An
// inbound message also flags the contact as replied and stops its automation.
type Ingestor struct {
	store       models.ContactStore
	notifier    Notifier
	dedupWindow time.Duration
	now         func() time.Time
}

func NewIngestor(store models.ContactStore, notifier Notifier, dedupWindow time.Duration) *Ingestor {
	return &Ingestor{
		store:       store,
		notifier:    notifierOrNop(notifier),
		dedupWindow: dedupWindow,
		now:         time.Now,
	}
}

func (i *Ingestor) Ingest(ctx context.Context, evt models.ChannelEvent) (IngestResult, error) {
	body := strings.TrimSpace(evt.Body)
	if body == "" {
		return IngestResult{Outcome: IngestIgnored}, nil
	}

	matches, err := i.store.FindByPhoneSuffix(ctx, evt.Phone)
	if err != nil {
		return IngestResult{}, fmt.Errorf("erro ao buscar contato: %w", err)
	}
	switch len(matches) {
	case 0:
		utils.LogDebug("Mensagem de %s sem contato correspondente, descartada", evt.Phone)
		return IngestResult{Outcome: IngestNoMatch}, nil
	case 1:
	default:
		ids := make([]string, 0, len(matches))
		for _, c := range matches {
			ids = append(ids, c.ID)
		}
		utils.LogWarning("Telefone %s corresponde a %d contatos (%s), mensagem descartada",
			evt.Phone, len(matches), strings.Join(ids, ", "))
		return IngestResult{}, fmt.Errorf("telefone %s: %w", evt.Phone, ErrAmbiguousContact)
	}

	now := i.now().UTC()
	sentAt := evt.Timestamp.UTC()
	if evt.Timestamp.IsZero() {
		sentAt = now
	}
	role := models.RoleContact
	if evt.Direction == models.DirectionOutbound {
		role = models.RoleAgent
	}
	msg := models.ChatMessage{ID: evt.MessageID, Role: role, Content: body, Timestamp: sentAt}

	duplicate := false
	contact, err := repositories.Mutate(ctx, i.store, matches[0].ID, func(c *models.Contact) (bool, error) {
		duplicate = i.isDuplicate(c, msg, now)
		if duplicate {
			return false, nil
		}
		c.AppendMessage(msg)
		if role == models.RoleContact {
			c.HasUnreadReply = true
			c.LastReplyContent = body
			c.LastReplyTimestamp = &now
			c.AutomationStage = models.StageIdle
		}
		return true, nil
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("erro ao gravar mensagem de %s: %w", matches[0].ID, err)
	}
	if duplicate {
		utils.LogDebug("Mensagem duplicada para %s ignorada", contact.ID)
		return IngestResult{Outcome: IngestDuplicate, ContactID: contact.ID}, nil
	}

	if role == models.RoleContact {
		utils.Logger().Info().
			Str("contact_id", contact.ID).
			Str("phone", evt.Phone).
			Msg("Resposta recebida, automação reiniciada")
		i.notifier.Broadcast(wsnotify.NewContactEvent(wsnotify.EventReply, contact.ID, contact.Name, body, int(contact.AutomationStage), now))
	} else {
		i.notifier.Broadcast(wsnotify.NewContactEvent(wsnotify.EventMessage, contact.ID, contact.Name, body, int(contact.AutomationStage), sentAt))
	}
	return IngestResult{Outcome: IngestAppended, ContactID: contact.ID}, nil
}

// isDuplicate reports whether msg is already in the history: same channel id,
// or same role and text stored within the dedup window before now. The window
// counts from arrival, so a late delivery carrying an old timestamp is still
// compared against what was recorded in the last few seconds.
func (i *Ingestor) isDuplicate(c *models.Contact, msg models.ChatMessage, now time.Time) bool {
	if c.HasMessage(msg.ID) {
		return true
	}
	for j := len(c.ChatHistory) - 1; j >= 0; j-- {
		prev := c.ChatHistory[j]
		gap := now.Sub(prev.Timestamp)
		if gap < 0 {
			gap = -gap
		}
		if gap >= i.dedupWindow {
			continue
		}
		if prev.Role == msg.Role && prev.Content == msg.Content {
			return true
		}
	}
	return false
}
