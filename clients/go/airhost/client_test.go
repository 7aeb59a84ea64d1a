package airhost

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var got SendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send-whatsapp-message", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":{"id":"m1","content":"Bonjour","direction":"outbound","status":"sent"},"database_saved":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	resp, err := c.SendMessage(context.Background(), SendMessageRequest{To: "+33612345678", Content: "Bonjour"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, resp.DatabaseSaved)
	assert.Equal(t, "outbound", resp.Message.Direction)
	assert.Equal(t, "+33612345678", got.To)
}

func TestErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid OAuth access token","request_id":"TRACE123"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").SendMessage(context.Background(), SendMessageRequest{To: "+1", Content: "x"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid OAuth access token", apiErr.Message)
	assert.Equal(t, "TRACE123", apiErr.RequestID)
}

func TestErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "tok").MarkRead(context.Background(), "c1")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestListConversationsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "20", r.URL.Query().Get("offset"))
		w.Write([]byte(`{"conversations":[{"id":"c1","guest_name":"Marie","check_in_date":null,"unread_count":2}],"total":1}`))
	}))
	defer srv.Close()

	list, err := NewClient(srv.URL, "tok").ListConversations(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "Marie", list.Conversations[0].GuestName)
	assert.Equal(t, 2, list.Conversations[0].UnreadCount)
}

func TestSearchEscapesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "check-in & wifi", r.URL.Query().Get("q"))
		w.Write([]byte(`{"query":"check-in & wifi","results":[],"total":0}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "tok").Search(context.Background(), "check-in & wifi", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Total)
}

func TestHealthDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL, "").Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", status)
}
