package emergency

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		lang     string
		severity string
		keywords []string
	}{
		{"fire is immediate", "There is a FIRE in the kitchen, help!", "en", models.SeverityImmediate, []string{"help", "fire"}},
		{"help alone is urgent", "Please help me with the door", "en", models.SeverityUrgent, []string{"help"}},
		{"french flood", "Il y a une inondation dans la salle de bain", "fr", models.SeverityImmediate, []string{"inondation"}},
		{"french urgence", "C'est une urgence", "fr", models.SeverityUrgent, []string{"urgence"}},
		{"unknown language falls back to english", "medical issue", "de", models.SeverityImmediate, []string{"medical"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Detect(tt.message, tt.lang)
			assert.True(t, d.IsEmergency)
			assert.Equal(t, tt.severity, d.Severity)
			assert.Equal(t, tt.keywords, d.DetectedKeywords)
			assert.NotEmpty(t, d.Response)
		})
	}
}

func TestDetectNoEmergency(t *testing.T) {
	d := Detect("What time is check-out?", "en")
	assert.False(t, d.IsEmergency)
	assert.Empty(t, d.Severity)
	assert.Empty(t, d.Response)
	assert.NotNil(t, d.DetectedKeywords)
}

func TestDetectFrenchResponse(t *testing.T) {
	d := Detect("appelez les pompiers", "FR")
	assert.Equal(t, models.SeverityImmediate, d.Severity)
	assert.Contains(t, d.Response, "112")
}

func TestValidSeverity(t *testing.T) {
	assert.True(t, ValidSeverity("urgent"))
	assert.False(t, ValidSeverity("critical"))
}
