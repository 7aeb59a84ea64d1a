// Package emergency flags guest messages that describe an emergency and
// alerts property managers.
package emergency

import (
	"strings"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

// Detection is the result of scanning a message for emergency keywords.
type Detection struct {
	IsEmergency      bool     `json:"isEmergency"`
	Severity         string   `json:"severity,omitempty"`
	Response         string   `json:"response,omitempty"`
	DetectedKeywords []string `json:"detectedKeywords"`
}

var keywords = map[string][]string{
	"en": {
		"emergency", "urgent", "help", "danger", "fire", "flood", "break-in",
		"accident", "injury", "medical", "police", "ambulance", "911",
	},
	"fr": {
		"urgence", "urgent", "aide", "danger", "feu", "inondation", "cambriolage",
		"accident", "blessure", "médical", "police", "ambulance", "pompier",
	},
}

var immediateKeywords = toSet(
	"fire", "flood", "break-in", "accident", "injury", "medical", "police", "ambulance", "911",
	"feu", "inondation", "cambriolage", "blessure", "médical", "pompier",
)

var urgentKeywords = toSet(
	"emergency", "urgent", "help", "danger", "urgence", "aide",
)

var responses = map[string]map[string]string{
	"en": {
		models.SeverityImmediate: "EMERGENCY DETECTED: Please call emergency services immediately at 911. I'll notify the property manager right away.",
		models.SeverityUrgent:    "URGENT: I've notified the property manager. Please provide more details about the situation.",
		models.SeverityStandard:  "I've detected an emergency situation. Please confirm if you need immediate assistance.",
	},
	"fr": {
		models.SeverityImmediate: "URGENCE DÉTECTÉE : Veuillez appeler les services d'urgence au 112. Je vais prévenir le gestionnaire immédiatement.",
		models.SeverityUrgent:    "URGENT : J'ai prévenu le gestionnaire. Veuillez fournir plus de détails sur la situation.",
		models.SeverityStandard:  "J'ai détecté une situation d'urgence. Veuillez confirmer si vous avez besoin d'une assistance immédiate.",
	},
}

// Detect scans message for the keywords of lang, falling back to English
// for unknown languages. Matching is a case-insensitive substring search.
func Detect(message, lang string) Detection {
	lang = strings.ToLower(strings.TrimSpace(lang))
	table, ok := keywords[lang]
	if !ok {
		lang = "en"
		table = keywords[lang]
	}

	lower := strings.ToLower(message)
	found := []string{}
	for _, kw := range table {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	if len(found) == 0 {
		return Detection{DetectedKeywords: found}
	}

	severity := models.SeverityStandard
	switch {
	case containsAny(found, immediateKeywords):
		severity = models.SeverityImmediate
	case containsAny(found, urgentKeywords):
		severity = models.SeverityUrgent
	}

	return Detection{
		IsEmergency:      true,
		Severity:         severity,
		Response:         responses[lang][severity],
		DetectedKeywords: found,
	}
}

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s string) bool {
	switch s {
	case models.SeverityImmediate, models.SeverityUrgent, models.SeverityStandard:
		return true
	}
	return false
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func containsAny(words []string, set map[string]struct{}) bool {
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}
