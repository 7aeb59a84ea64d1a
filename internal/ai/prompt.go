package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

const (
	replyMaxTokens   = 500
	replyTemperature = 0.7

	promptHistorySize = 5
	chatHistorySize   = 3
)

const replySystemMessage = "Tu es un assistant virtuel pour un hôte Airbnb. " +
	"Réponds de manière personnalisée, chaleureuse et professionnelle."

// BuildReplyPrompt renders the property context, recent conversation and
// host instructions into the prompt used for reply suggestions.
func BuildReplyPrompt(property *models.Property, history []models.Message, customInstructions string, isReservation bool) string {
	name := property.Name
	if name == "" {
		name = "cet hébergement"
	}
	language := property.Language
	if language == "" {
		language = "fr"
	}

	recent := history
	if len(recent) > promptHistorySize {
		recent = recent[len(recent)-promptHistorySize:]
	}
	lines := make([]string, 0, len(recent))
	for _, m := range recent {
		label := "HÔTE"
		if m.Direction == models.DirectionInbound {
			label = "INVITÉ"
		}
		lines = append(lines, label+": "+m.Content)
	}

	var lastQuestion string
	if len(history) > 0 {
		lastQuestion = history[len(history)-1].Content
	}

	reservation := "Inactif"
	if isReservation {
		reservation = "Actif"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tu es l'assistant virtuel personnel de %s. Tu représentes l'hôte et dois répondre de manière professionnelle, personnelle et précise.\n\n", name)
	b.WriteString("[PROPRIÉTÉ]\n")
	fmt.Fprintf(&b, "Nom: %s\n", orDefault(property.Name, "Non spécifié"))
	fmt.Fprintf(&b, "Description: %s\n", property.Description)
	fmt.Fprintf(&b, "Langue: %s\n", language)
	b.WriteString(section("COMMODITÉS", property.Amenities, listLine))
	b.WriteString(section("RÈGLES", property.Rules, listLine))
	b.WriteString(section("FAQ", property.FAQ, faqLine))
	b.WriteString("\n[INSTRUCTIONS SPÉCIFIQUES DE L'HÔTE]\n")
	b.WriteString(property.AIInstructions)
	b.WriteString("\n\n[INSTRUCTIONS GÉNÉRALES]\n")
	b.WriteString("1. Sois chaleureux, professionnel et personnalisé dans tes réponses\n")
	b.WriteString("2. Réponds précisément à la question en utilisant les informations de la propriété\n")
	b.WriteString("3. Si l'information n'est pas disponible, suggère poliment à l'invité de contacter directement l'hôte\n")
	b.WriteString("4. Limite ta réponse à un maximum de 3-4 phrases concises\n")
	b.WriteString("\n[CONVERSATION RÉCENTE]\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n[DERNIÈRE QUESTION DE L'INVITÉ]\n")
	b.WriteString(lastQuestion)
	b.WriteString("\n\n[INSTRUCTIONS PERSONNALISÉES]\n")
	b.WriteString(customInstructions)
	b.WriteString("\n\n[MODE RÉSERVATION]\n")
	b.WriteString(reservation)
	b.WriteString("\n")
	return b.String()
}

// ReplyHistory converts stored messages to chat turns. Template placeholders
// are dropped and only the most recent turns are kept.
func ReplyHistory(messages []models.Message) []ChatMessage {
	var turns []ChatMessage
	for _, m := range messages {
		if strings.HasPrefix(m.Content, models.TemplatePreviewPrefix) {
			continue
		}
		role := RoleAssistant
		if m.Direction == models.DirectionInbound {
			role = RoleUser
		}
		turns = append(turns, ChatMessage{Role: role, Content: m.Content})
	}
	if len(turns) > chatHistorySize {
		turns = turns[len(turns)-chatHistorySize:]
	}
	return turns
}

// GenerateReply asks the completer for a suggested host reply.
func GenerateReply(ctx context.Context, c Completer, property *models.Property, history []models.Message, customInstructions string, isReservation bool) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}
	messages := []ChatMessage{
		{Role: RoleSystem, Content: replySystemMessage},
		{Role: RoleUser, Content: BuildReplyPrompt(property, history, customInstructions, isReservation)},
	}
	messages = append(messages, ReplyHistory(history)...)

	reply, err := c.Complete(ctx, ChatRequest{
		Messages:    messages,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// section renders a JSON object or array as a titled block, or "" when empty.
func section(title string, raw json.RawMessage, line func(key string, value any) string) string {
	if len(raw) == 0 {
		return ""
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}

	var lines []string
	switch v := doc.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, line(k, v[k]))
		}
	case []any:
		for _, item := range v {
			lines = append(lines, line("", item))
		}
	case string:
		if v != "" {
			lines = append(lines, "- "+v)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n[" + title + "]\n" + strings.Join(lines, "\n") + "\n"
}

func listLine(key string, value any) string {
	if key == "" {
		return "- " + scalar(value)
	}
	return "- " + key + ": " + scalar(value)
}

func faqLine(key string, value any) string {
	if key != "" {
		return "Q: " + key + "\nR: " + scalar(value)
	}
	if entry, ok := value.(map[string]any); ok {
		return "Q: " + scalar(entry["question"]) + "\nR: " + scalar(entry["answer"])
	}
	return "- " + scalar(value)
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool, float64:
		return fmt.Sprint(t)
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
