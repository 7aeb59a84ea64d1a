package whatsapp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA_ID",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PNID"},
        "contacts": [{"wa_id": "33612345678", "profile": {"name": "Marie"}}],
        "messages": [
          {"from": "33612345678", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "Bonjour"}},
          {"from": "33612345678", "id": "wamid.2", "timestamp": "1700000001", "type": "interactive",
           "interactive": {"type": "button_reply", "button_reply": {"id": "yes", "title": "Oui"}}}
        ],
        "statuses": [{"id": "wamid.out", "status": "delivered", "timestamp": "1700000002", "recipient_id": "33612345678"}]
      }
    }]
  }]
}`

func TestPayloadFlattening(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &p))
	assert.Equal(t, ObjectBusinessAccount, p.Object)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Marie", msgs[0].ContactName)
	assert.Equal(t, "PNID", msgs[0].PhoneNumberID)

	text, isText := TextOf(msgs[0].Message)
	assert.Equal(t, "Bonjour", text)
	assert.True(t, isText)

	text, isText = TextOf(msgs[1].Message)
	assert.Equal(t, "Oui", text)
	assert.False(t, isText)

	statuses := p.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "delivered", statuses[0].Status)
}

func TestTextOfUnsupportedType(t *testing.T) {
	text, isText := TextOf(Message{Type: "image"})
	assert.Equal(t, "[image]", text)
	assert.False(t, isText)
}
