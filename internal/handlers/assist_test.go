package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/ai"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/metrics"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/push"
)

type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []ai.ChatRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req ai.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeCompleter) Provider() string { return "fake" }

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func TestGenerateAIResponse(t *testing.T) {
	completer := &fakeCompleter{reply: "  Le check-in se fait à partir de 15h.  "}
	env := newTestEnv(t, func(d *Deps) { d.Completer = completer })
	conv := env.conversation("+33612345678")
	env.message(conv, models.DirectionInbound, "À quelle heure est le check-in ?")

	rec := env.call(env.h.GenerateAIResponse, http.MethodPost, "/generate-ai-response", GenerateResponseRequest{
		ApartmentID:    env.property.ID.String(),
		ConversationID: conv.ID.String(),
	}, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Le check-in se fait à partir de 15h.", decodeBody[GenerateResponseResponse](t, rec).Response)

	require.Equal(t, 1, completer.calls())
	prompt := completer.requests[0].Messages[1].Content
	assert.Contains(t, prompt, "Loft Montmartre")
	assert.Contains(t, prompt, "À quelle heure est le check-in ?")
}

func TestGenerateAIResponseUsesProvidedMessages(t *testing.T) {
	completer := &fakeCompleter{reply: "Oui, le parking est inclus."}
	env := newTestEnv(t, func(d *Deps) { d.Completer = completer })

	rec := env.call(env.h.GenerateAIResponse, http.MethodPost, "/generate-ai-response", GenerateResponseRequest{
		ApartmentID:    env.property.ID.String(),
		ConversationID: uuid.NewString(),
		Messages: []models.Message{
			{Content: "Y a-t-il un parking ?", Direction: models.DirectionInbound, Type: models.MessageTypeText},
		},
		IsReservation: true,
	}, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, completer.requests[0].Messages[1].Content, "Y a-t-il un parking ?")
}

func TestGenerateAIResponseCachesSuggestion(t *testing.T) {
	completer := &fakeCompleter{reply: "Bonjour !"}
	env := newTestEnv(t, withRedis(t), func(d *Deps) { d.Completer = completer })
	conv := env.conversation("+33612345678")
	env.message(conv, models.DirectionInbound, "Bonjour")

	req := GenerateResponseRequest{ApartmentID: env.property.ID.String(), ConversationID: conv.ID.String()}
	rec := env.call(env.h.GenerateAIResponse, http.MethodPost, "/generate-ai-response", req, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[GenerateResponseResponse](t, rec).Cached)

	rec = env.call(env.h.GenerateAIResponse, http.MethodPost, "/generate-ai-response", req, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[GenerateResponseResponse](t, rec)
	assert.True(t, resp.Cached)
	assert.Equal(t, "Bonjour !", resp.Response)
	assert.Equal(t, 1, completer.calls())

	// A new guest message drops the cached suggestion.
	rec = env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.call(env.h.GenerateAIResponse, http.MethodPost, "/generate-ai-response", req, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, completer.calls())
}

func TestGenerateAIResponseErrors(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("quota exceeded")}
	env := newTestEnv(t, func(d *Deps) { d.Completer = completer })
	conv := env.conversation("+33612345678")

	rec := env.call(env.h.GenerateAIResponse, http.MethodPost, "/generate-ai-response", map[string]string{
		"apartmentId": env.property.ID.String(),
	}, env.hostUser())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "apartmentId et conversationId sont requis", errorOf(t, rec))

	rec = env.call(env.h.GenerateAIResponse, http.MethodPost, "/generate-ai-response", GenerateResponseRequest{
		ApartmentID:    uuid.NewString(),
		ConversationID: conv.ID.String(),
	}, env.hostUser())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Appartement non trouvé", errorOf(t, rec))

	rec = env.call(env.h.GenerateAIResponse, http.MethodPost, "/generate-ai-response", GenerateResponseRequest{
		ApartmentID:    env.property.ID.String(),
		ConversationID: conv.ID.String(),
	}, env.hostUser())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "quota exceeded", errorOf(t, rec))
}

func TestGenerateAIResponseWithoutProvider(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation("+33612345678")

	rec := env.call(env.h.GenerateAIResponse, http.MethodPost, "/generate-ai-response", GenerateResponseRequest{
		ApartmentID:    env.property.ID.String(),
		ConversationID: conv.ID.String(),
	}, env.hostUser())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAnalyzeMessageStoresVerdict(t *testing.T) {
	completer := &fakeCompleter{reply: "```json\n{\"canRespond\":true,\"isUrgent\":false,\"isUnhappy\":true,\"explanation\":\"Client mécontent\"}\n```"}
	env := newTestEnv(t, func(d *Deps) { d.Completer = completer })
	conv := env.conversation("+33612345678")
	msg := env.message(conv, models.DirectionInbound, "Le chauffage ne marche pas, c'est inadmissible")

	rec := env.call(env.h.AnalyzeMessage, http.MethodPost, "/analyze-message", AnalyzeMessageRequest{
		MessageID:      msg.ID.String(),
		MessageContent: msg.Content,
		ConversationID: conv.ID.String(),
	}, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	analysis := decodeBody[ai.Analysis](t, rec)
	assert.True(t, analysis.CanRespond)
	assert.True(t, analysis.IsUnhappy)
	assert.Equal(t, "Client mécontent", analysis.Explanation)

	msgs, err := env.db.ListMessages(context.Background(), conv.ID, 10)
	require.NoError(t, err)
	stored, ok := msgs[0].Metadata[models.MetaAnalysis].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, stored["isUnhappy"])
}

func TestAnalyzeMessageCountsFailures(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Completer = &fakeCompleter{reply: "pas du JSON"} })
	failed := metrics.AIGenerations.WithLabelValues("fake", "analysis", "error")
	ok := metrics.AIGenerations.WithLabelValues("fake", "analysis", "ok")
	failedBefore, okBefore := testutil.ToFloat64(failed), testutil.ToFloat64(ok)

	rec := env.call(env.h.AnalyzeMessage, http.MethodPost, "/analyze-message", AnalyzeMessageRequest{
		MessageContent: "Bonjour",
	}, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
	assert.Equal(t, okBefore, testutil.ToFloat64(ok))
}

func TestAnalyzeMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation("+33612345678")
	msg := env.message(conv, models.DirectionInbound, "Bonjour")

	rec := env.call(env.h.AnalyzeMessage, http.MethodPost, "/analyze-message", AnalyzeMessageRequest{}, env.hostUser())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.call(env.h.AnalyzeMessage, http.MethodPost, "/analyze-message", AnalyzeMessageRequest{
		MessageID:      msg.ID.String(),
		MessageContent: "Bonjour",
	}, otherUser())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Without a provider the verdict is all-false, not an error.
	rec = env.call(env.h.AnalyzeMessage, http.MethodPost, "/analyze-message", AnalyzeMessageRequest{
		MessageContent: "Bonjour",
	}, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code)
	analysis := decodeBody[ai.Analysis](t, rec)
	assert.False(t, analysis.CanRespond)
	assert.True(t, strings.HasPrefix(analysis.Explanation, "Erreur d'analyse"))
}

func TestEmergencyNotification(t *testing.T) {
	mailer := &fakeMailer{}
	env := newTestEnv(t, withWebPush, func(d *Deps) { d.Mailer = mailer })
	env.subscribe(env.host, models.PlatformWeb)

	rec := env.call(env.h.EmergencyNotification, http.MethodPost, "/emergency-notification", EmergencyNotificationRequest{
		PropertyID: env.property.ID.String(),
		EmergencyDetails: &models.EmergencyDetails{
			Message:          "Fuite d'eau dans la salle de bain",
			Severity:         models.SeverityUrgent,
			DetectedKeywords: []string{"urgence"},
		},
	}, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[EmergencyNotificationResponse](t, rec)
	assert.Equal(t, "Emergency notification sent successfully", resp.Message)
	assert.NotEqual(t, uuid.Nil, resp.NotificationID)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "manager@example.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].subject, "Loft Montmartre")
	assert.Contains(t, mailer.sent[0].body, "Fuite d'eau")

	notes := env.events.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, resp.NotificationID.String(), notes[0].Data["notification_id"])
}

func TestEmergencyNotificationErrors(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp: connection refused")}
	env := newTestEnv(t, func(d *Deps) { d.Mailer = mailer })
	details := &models.EmergencyDetails{Message: "Incendie", Severity: models.SeverityImmediate}

	tests := []struct {
		name   string
		body   any
		user   bool
		status int
	}{
		{"missing details", map[string]string{"propertyId": env.property.ID.String()}, true, http.StatusBadRequest},
		{"bad severity", EmergencyNotificationRequest{PropertyID: env.property.ID.String(), EmergencyDetails: &models.EmergencyDetails{Severity: "apocalyptic"}}, true, http.StatusBadRequest},
		{"unknown property", EmergencyNotificationRequest{PropertyID: uuid.NewString(), EmergencyDetails: details}, true, http.StatusNotFound},
		{"foreign property", EmergencyNotificationRequest{PropertyID: env.property.ID.String(), EmergencyDetails: details}, false, http.StatusNotFound},
		{"mail failure", EmergencyNotificationRequest{PropertyID: env.property.ID.String(), EmergencyDetails: details}, true, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := otherUser()
			if tt.user {
				user = env.hostUser()
			}
			rec := env.call(env.h.EmergencyNotification, http.MethodPost, "/emergency-notification", tt.body, user)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestDetectEmergency(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation("+33612345678")

	rec := env.call(env.h.DetectEmergency, http.MethodPost, "/detect-emergency", DetectEmergencyRequest{
		Message:        "Au secours, il y a une inondation !",
		ConversationID: conv.ID.String(),
	}, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code)
	det := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, det["isEmergency"])
	assert.Equal(t, models.SeverityImmediate, det["severity"])

	rec = env.call(env.h.DetectEmergency, http.MethodPost, "/detect-emergency", DetectEmergencyRequest{
		Message:  "Thanks for the stay",
		Language: "en",
	}, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody[map[string]any](t, rec)["isEmergency"])

	rec = env.call(env.h.DetectEmergency, http.MethodPost, "/detect-emergency", DetectEmergencyRequest{}, env.hostUser())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterPushSubscription(t *testing.T) {
	env := newTestEnv(t)

	rec := env.call(env.h.RegisterPushSubscription, http.MethodPost, "/push-subscriptions", RegisterPushRequest{Token: "fcm-token", Platform: "android"}, env.hostUser())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decodeBody[models.PushSubscription](t, rec)
	assert.Equal(t, env.host, sub.UserID)
	assert.Equal(t, models.PlatformAndroid, sub.Platform)

	rec = env.call(env.h.RegisterPushSubscription, http.MethodPost, "/push-subscriptions", RegisterPushRequest{Token: "x", Platform: "windows"}, env.hostUser())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.call(env.h.RegisterPushSubscription, http.MethodPost, "/push-subscriptions", RegisterPushRequest{Token: "x"}, serviceUser())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFCMProxy(t *testing.T) {
	var gotPath, gotAuth string
	fcm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"projects/airhost/messages/0:1234"}`))
	}))
	t.Cleanup(fcm.Close)

	notifier := push.NewFCMNotifierWithTokenSource("airhost", fcm.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ya29.test"}))
	env := newTestEnv(t, func(d *Deps) {
		d.Push = push.NewDispatcher(d.Store, zerolog.Nop(), notifier)
	})
	sub := env.subscribe(env.host, models.PlatformAndroid)

	body := map[string]any{
		"to":           sub.Token,
		"notification": map[string]string{"title": "Nouveau message", "body": "Bonjour"},
		"data":         map[string]string{"conversation_id": "c1"},
	}
	rec := env.call(env.h.FCMProxy, http.MethodPost, "/fcm-proxy", body, env.hostUser())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[FCMProxyResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "projects/airhost/messages/0:1234", resp.Name)
	assert.Equal(t, "/v1/projects/airhost/messages:send", gotPath)
	assert.Equal(t, "Bearer ya29.test", gotAuth)

	rec = env.call(env.h.FCMProxy, http.MethodPost, "/fcm-proxy", body, otherUser())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFCMProxyWithoutNotifier(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Push = push.NewDispatcher(d.Store, zerolog.Nop())
	})
	sub := env.subscribe(env.host, models.PlatformIOS)

	rec := env.call(env.h.FCMProxy, http.MethodPost, "/fcm-proxy", map[string]any{
		"to":           sub.Token,
		"notification": map[string]string{"title": "Test"},
	}, env.hostUser())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
