package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/crypto"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/emergency"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/realtime"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/store"
)

const inboundPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PNID"},
        "contacts": [{"wa_id": "33612345678", "profile": {"name": "Marie"}}],
        "messages": [
          {"from": "33612345678", "id": "wamid.in1", "timestamp": "1700000000", "type": "text", "text": {"body": "Bonjour, à quelle heure le check-in ?"}}
        ]
      }
    }]
  }]
}`

const statusPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"phone_number_id": "PNID"},
        "statuses": [{"id": "wamid.out1", "status": "delivered", "timestamp": "1700000002", "recipient_id": "33612345678"}]
      }
    }]
  }]
}`

func withRedis(t *testing.T) func(*Deps) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return func(d *Deps) { d.Redis = store.NewRedisStoreFromClient(client) }
}

func TestVerifyWebhook(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"wrong mode", "?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=42", http.StatusForbidden},
		{"wrong token", "?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", http.StatusForbidden},
		{"ok", "?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.call(env.h.VerifyWebhook, http.MethodGet, "/whatsapp-webhook"+tt.query, nil, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := env.call(env.h.VerifyWebhook, http.MethodGet, "/whatsapp-webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", nil, nil)
	assert.Equal(t, "1158201444", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestVerifyWebhookWithoutToken(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.VerifyToken = "" })
	rec := env.call(env.h.VerifyWebhook, http.MethodGet, "/whatsapp-webhook?hub.mode=subscribe&hub.verify_token=x", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReceiveWebhookCreatesConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[WebhookResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Processed)

	conv, err := env.db.FindConversationByPhone(ctx, "+33612345678")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, env.property.ID, conv.PropertyID)
	assert.Equal(t, "Marie", conv.GuestName)
	assert.Equal(t, 1, conv.UnreadCount)

	msgs, err := env.db.ListMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.DirectionInbound, msgs[0].Direction)
	assert.Equal(t, models.StatusReceived, msgs[0].Status)
	assert.Equal(t, models.MessageTypeText, msgs[0].Type)
	assert.Equal(t, "wamid.in1", msgs[0].Metadata[models.MetaWhatsAppMessageID])
	assert.Equal(t, "Marie", msgs[0].Metadata["contact_name"])

	assert.Equal(t, []string{realtime.EventMessageCreated, realtime.EventConversationUpdated}, env.events.types())
}

func TestReceiveWebhookIncrementsUnread(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation("+33612345678")

	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.db.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadCount)
	assert.Equal(t, "Bonjour, à quelle heure le check-in ?", got.LastMessage)
}

func TestReceiveWebhookDeduplicates(t *testing.T) {
	env := newTestEnv(t, withRedis(t))

	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[WebhookResponse](t, rec).Processed)

	rec = env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody[WebhookResponse](t, rec).Processed)

	conv, err := env.db.FindConversationByPhone(context.Background(), "+33612345678")
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadCount)
}

func TestReceiveWebhookDetectsEmergency(t *testing.T) {
	env := newTestEnv(t, withWebPush)
	env.subscribe(env.host, models.PlatformWeb)
	payload := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{
		"metadata":{"phone_number_id":"PNID"},
		"messages":[{"from":"33611111111","id":"wamid.fire","type":"text","text":{"body":"Il y a un feu dans la cuisine"}}]}}]}]}`

	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	conv, err := env.db.FindConversationByPhone(context.Background(), "+33611111111")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "+33611111111", conv.GuestName)

	titles := []string{}
	for _, n := range env.events.notifications() {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{
		emergency.AlertTitle(models.SeverityImmediate),
		"Nouveau message de +33611111111",
	}, titles)
}

func TestReceiveWebhookInvalidDefaultProperty(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.DefaultPropertyID = "not-a-uuid" })
	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReceiveWebhookRetriesAfterFailure(t *testing.T) {
	env := newTestEnv(t, withRedis(t), func(d *Deps) { d.DefaultPropertyID = "not-a-uuid" })

	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	env.h.defaultPropertyID = ""
	rec = env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[WebhookResponse](t, rec).Processed)

	conv, err := env.db.FindConversationByPhone(context.Background(), "+33612345678")
	require.NoError(t, err)
	require.NotNil(t, conv)
	msgs, err := env.db.ListMessages(context.Background(), conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "wamid.in1", msgs[0].Metadata[models.MetaWhatsAppMessageID])

	// Once stored, the same delivery is a duplicate again.
	rec = env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody[WebhookResponse](t, rec).Processed)
}

func TestReceiveWebhookUsesDefaultProperty(t *testing.T) {
	env := newTestEnv(t)
	target := &models.Property{HostID: env.host, Name: "Default"}
	require.NoError(t, env.db.CreateProperty(context.Background(), target))
	env.h.defaultPropertyID = target.ID.String()

	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	conv, err := env.db.FindConversationByPhone(context.Background(), "+33612345678")
	require.NoError(t, err)
	assert.Equal(t, target.ID, conv.PropertyID)
}

func TestReceiveWebhookRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", "{", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", `{"object":"page","entry":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid webhook event", errorOf(t, rec))
}

func TestReceiveWebhookSignature(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.AppSecret = "app-secret" })

	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", inboundPayload, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", strings.NewReader(inboundPayload))
	req.Header.Set("X-Hub-Signature-256", crypto.SignBody("app-secret", []byte(inboundPayload)))
	rec = httptest.NewRecorder()
	env.h.ReceiveWebhook(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestReceiveWebhookStatuses(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation("+33612345678")
	id := conv.ID
	out := &models.Message{
		ConversationID: &id,
		Content:        "Bienvenue",
		Direction:      models.DirectionOutbound,
		Type:           models.MessageTypeText,
		Status:         models.StatusSent,
		Metadata:       map[string]any{models.MetaWhatsAppMessageID: "wamid.out1"},
	}
	require.NoError(t, env.db.CreateMessage(context.Background(), out))

	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", statusPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	msgs, err := env.db.ListMessages(context.Background(), conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusDelivered, msgs[0].Status)
	assert.Equal(t, []string{realtime.EventMessageStatus}, env.events.types())

	ev := env.events.events[0]
	assert.Equal(t, env.host, ev.UserID)
	assert.NotEqual(t, uuid.Nil, ev.UserID)
	assert.Equal(t, map[string]string{
		models.MetaWhatsAppMessageID: "wamid.out1",
		"conversation_id":            conv.ID.String(),
		"status":                     models.StatusDelivered,
	}, ev.Data)
}

func TestReceiveWebhookStatusesNeverRegress(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation("+33612345678")
	id := conv.ID
	out := &models.Message{
		ConversationID: &id,
		Content:        "Bienvenue",
		Direction:      models.DirectionOutbound,
		Type:           models.MessageTypeText,
		Status:         models.StatusRead,
		Metadata:       map[string]any{models.MetaWhatsAppMessageID: "wamid.out1"},
	}
	require.NoError(t, env.db.CreateMessage(context.Background(), out))

	// A late "delivered" callback arrives after the read receipt.
	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", statusPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.db.GetMessage(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, got.Status)
	assert.Empty(t, env.events.types())
}

func TestReceiveWebhookStatusWithoutConversation(t *testing.T) {
	env := newTestEnv(t)
	out := &models.Message{
		Content:   "Bienvenue",
		Direction: models.DirectionOutbound,
		Type:      models.MessageTypeText,
		Status:    models.StatusSent,
		Metadata:  map[string]any{models.MetaWhatsAppMessageID: "wamid.out1"},
	}
	require.NoError(t, env.db.CreateMessage(context.Background(), out))

	rec := env.call(env.h.ReceiveWebhook, http.MethodPost, "/whatsapp-webhook", statusPayload, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.db.GetMessage(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)
	// Nobody owns it, so nothing is broadcast.
	assert.Empty(t, env.events.types())
}
