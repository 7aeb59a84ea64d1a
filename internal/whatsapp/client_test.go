package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTextPostsGraphPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v22.0/PNID/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.OUT"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "v22.0", srv.Client())
	res, err := c.SendText(context.Background(), Credentials{PhoneNumberID: "PNID", Token: "tok"}, "+33 612 345 678", "Hello")
	require.NoError(t, err)

	assert.True(t, res.OK())
	assert.Equal(t, "wamid.OUT", res.MessageID)
	assert.Nil(t, res.Error)
	assert.Equal(t, "33612345678", got["to"])
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, "Hello", got["text"].(map[string]any)["body"])
}

func TestSendTemplateBuildsBodyComponent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.T"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client())
	res, err := c.SendTemplate(context.Background(), Credentials{PhoneNumberID: "PNID", Token: "tok"}, TemplateMessage{
		To: "+33612345678", Name: "welcome", Language: "fr", Params: []string{"Marie", "Loft"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.T", res.MessageID)

	tpl := got["template"].(map[string]any)
	assert.Equal(t, "welcome", tpl["name"])
	components := tpl["components"].([]any)
	require.Len(t, components, 1)
	params := components[0].(map[string]any)["parameters"].([]any)
	assert.Len(t, params, 2)
}

func TestSendReportsGraphErrorsWithoutGoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190,"fbtrace_id":"TRACE"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "v22.0", srv.Client())
	res, err := c.SendText(context.Background(), Credentials{PhoneNumberID: "PNID", Token: "bad"}, "1", "x")
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.NotNil(t, res.Error)
	assert.Equal(t, 190, res.Error.Code)
	assert.Equal(t, "TRACE", res.Error.FBTraceID)
}

func TestSendWithoutCredentials(t *testing.T) {
	c := NewClient("", "", nil)
	_, err := c.SendText(context.Background(), Credentials{PhoneNumberID: "PNID"}, "1", "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPhoneNumberInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v22.0/PNID", r.URL.Path)
		_, _ = w.Write([]byte(`{"display_phone_number":"+1 555","verified_name":"Airhost","id":"PNID"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "v22.0", srv.Client())
	res, err := c.PhoneNumberInfo(context.Background(), Credentials{PhoneNumberID: "PNID", Token: "tok"})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Contains(t, string(res.Body), "verified_name")
}
