package services

import (
	"context"
	"fmt"
	"strings"

	"followup-bot/internal/models"
	"followup-bot/internal/utils"
)

type Intent string

const (
	IntentInitial Intent = "initial"
	IntentNudge   Intent = "nudge"
)

// Composer writes the outreach text for a contact. It always returns a
// usable message.
type Composer interface {
	Compose(ctx context.Context, contact *models.Contact, settings models.Settings, intent Intent) string
}

// ComposerFor picks the AI composer when settings carry a credential and the
// template composer otherwise.
func ComposerFor(settings models.Settings, newGenerator func(apiKey string) TextGenerator) Composer {
	if newGenerator != nil && settings.HasAICredential() {
		return &GeneratorComposer{Generator: newGenerator(settings.APIKey)}
	}
	return TemplateComposer{}
}

// TemplateComposer fills fixed per-category templates. Contact notes are
// never part of the output.
type TemplateComposer struct{}

func (TemplateComposer) Compose(_ context.Context, contact *models.Contact, settings models.Settings, intent Intent) string {
	s := settings.WithDefaults()

	if intent == IntentNudge {
		return fmt.Sprintf("Oi %s, tudo bem? Sou eu, %s. Chegou a ver minha mensagem anterior?",
			contact.Name, s.AgentName)
	}

	switch contact.Category {
	case models.CategoryOwner:
		return fmt.Sprintf("Olá %s, aqui é %s da %s. Como estão as coisas? Gostaria de saber se o imóvel ainda está disponível para venda ou se houve alguma mudança. Abraço!",
			contact.Name, s.AgentName, s.AgencyName)
	case models.CategoryBuilder:
		return fmt.Sprintf("Olá %s, aqui é %s da %s. Tudo bem? Estou atualizando nossa carteira de áreas e lembrei de você. Ainda está buscando novos terrenos na região?",
			contact.Name, s.AgentName, s.AgencyName)
	default:
		return fmt.Sprintf("Olá %s, aqui é %s da %s. Tudo bem? Passando para saber se continua na busca pelo seu imóvel ou se podemos retomar a pesquisa com novas opções.",
			contact.Name, s.AgentName, s.AgencyName)
	}
}

// GeneratorComposer asks the generator first and falls back to the templates
// on error, empty output, or output that quotes the notes.
type GeneratorComposer struct {
	Generator TextGenerator
	Fallback  TemplateComposer
}

func (c *GeneratorComposer) Compose(ctx context.Context, contact *models.Contact, settings models.Settings, intent Intent) string {
	text, err := c.Generator.Generate(ctx, BuildPrompt(contact, settings, intent))
	switch {
	case err != nil:
		utils.LogWarning("Erro na IA para %s, usando template: %v", contact.ID, err)
	case strings.TrimSpace(text) == "":
		utils.LogWarning("IA retornou mensagem vazia para %s, usando template", contact.ID)
	case leaksNotes(text, contact.Notes):
		utils.LogWarning("IA copiou as notas internas de %s, usando template", contact.ID)
	default:
		return strings.TrimSpace(text)
	}
	return c.Fallback.Compose(ctx, contact, settings, intent)
}

func leaksNotes(text, notes string) bool {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(notes))
}

// BuildPrompt assembles the generator prompt. Notes are passed as confidential
// context the model must interpret, never quote.
func BuildPrompt(contact *models.Contact, settings models.Settings, intent Intent) string {
	s := settings.WithDefaults()

	notes := "Sem notas adicionais."
	if n := strings.TrimSpace(contact.Notes); n != "" {
		notes = fmt.Sprintf("CONTEXTO INTERNO (SIGILOSO - USE APENAS PARA ENTENDER O INTERESSE, NÃO COPIE ESTE TEXTO): %q", n)
	}

	var objective string
	if intent == IntentNudge {
		objective = "OBJETIVO: Cobrança suave de resposta (2ª tentativa).\n" +
			"Contexto: Mandei mensagem ontem e não responderam.\n" +
			"Ação: Perguntar educadamente se viram a mensagem. Curto."
	} else {
		objective = "OBJETIVO: Retomar contato (Follow-up) de forma personalizada.\n" +
			fmt.Sprintf("Perfil do Contato: %s.\n", contact.Category) +
			notes + "\n" +
			"INSTRUÇÃO CRÍTICA: Interprete o contexto interno e pergunte se o contato ainda tem interesse. " +
			"NÃO repita as notas internas literalmente."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Aja como %s, corretor da imobiliária %s.\n", s.AgentName, s.AgencyName)
	fmt.Fprintf(&b, "Escreva uma mensagem de WhatsApp para %s (%s).\n\n", contact.Name, contact.Category)
	b.WriteString(objective)
	fmt.Fprintf(&b, "\n\nTom de Voz: %s.\n", s.MessageTone)
	b.WriteString("Regras: Sem hashtags. Curto e direto. Pareça humano. Use português do Brasil natural. Responda apenas com o texto da mensagem.")
	return b.String()
}
