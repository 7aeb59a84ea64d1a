package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

const (
	analysisMaxTokens   = 500
	analysisTemperature = 0.3
)

// Analysis is the triage verdict for a guest message.
type Analysis struct {
	CanRespond  bool   `json:"canRespond"`
	IsUrgent    bool   `json:"isUrgent"`
	IsUnhappy   bool   `json:"isUnhappy"`
	Explanation string `json:"explanation"`

	// Err is the provider or parse failure behind a fallback verdict.
	Err error `json:"-"`
}

// errInvalidAnalysis reports a completion that is not the expected JSON.
var errInvalidAnalysis = errors.New("format de réponse invalide")

const analysisSystemPrompt = `Tu es un assistant d'analyse de messages pour une plateforme de location de logements.
Ta tâche est d'analyser le message d'un client et de déterminer les éléments suivants :

1. Si tu es en capacité de répondre au message selon la base de données disponible (canRespond)
2. Si le message indique une urgence qui nécessite une attention immédiate (isUrgent)
3. Si le client semble mécontent ou frustré (isUnhappy)

Réponds UNIQUEMENT avec un objet JSON contenant ces trois évaluations (true/false) et une brève explication.
Format attendu:
{
  "canRespond": boolean,
  "isUrgent": boolean,
  "isUnhappy": boolean,
  "explanation": "Brève explication de ton analyse"
}
`

// Analyze classifies a guest message. Provider and parse failures are folded
// into an all-false verdict whose explanation names the failure; Err keeps
// the cause.
func Analyze(ctx context.Context, c Completer, content string, property *models.Property) Analysis {
	if c == nil {
		return failedAnalysis(ErrNotConfigured)
	}

	raw, err := c.Complete(ctx, ChatRequest{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: analysisSystemPrompt + propertyContext(property)},
			{Role: RoleUser, Content: content},
		},
		MaxTokens:   analysisMaxTokens,
		Temperature: analysisTemperature,
		JSON:        true,
	})
	if err != nil {
		return failedAnalysis(err)
	}

	var parsed struct {
		CanRespond  bool   `json:"canRespond"`
		IsUrgent    bool   `json:"isUrgent"`
		IsUnhappy   bool   `json:"isUnhappy"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return failedAnalysis(errInvalidAnalysis)
	}

	result := Analysis{
		CanRespond:  parsed.CanRespond,
		IsUrgent:    parsed.IsUrgent,
		IsUnhappy:   parsed.IsUnhappy,
		Explanation: parsed.Explanation,
	}
	if result.Explanation == "" {
		result.Explanation = "Aucune explication fournie"
	}
	return result
}

func failedAnalysis(err error) Analysis {
	return Analysis{Explanation: "Erreur d'analyse: " + err.Error(), Err: err}
}

func propertyContext(p *models.Property) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nInformations sur le logement concerné :\n")
	b.WriteString("- Nom: " + p.Name + "\n")
	b.WriteString("- Description: " + orDefault(p.Description, "Non disponible") + "\n")
	b.WriteString("- Équipements: " + orDefault(string(p.Amenities), "Non disponibles") + "\n")
	b.WriteString("- Règles: " + orDefault(string(p.Rules), "Non disponibles") + "\n")
	return b.String()
}

// stripCodeFence removes a ```json fence some models wrap around JSON output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
