// Package airhost provides a client for the Airhost messaging admin API.
package airhost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Client is an Airhost API client. Token is a Supabase access token (or a
// service role key) sent as a bearer token.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Error is returned for any non-2xx response.
type Error struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("airhost error %d: %s (request %s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("airhost error %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a new client. An empty baseURL falls back to
// AIRHOST_URL and then to a local server.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("AIRHOST_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do performs a request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		json.Unmarshal(respBody, &errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{StatusCode: resp.StatusCode, Message: errResp.Error, RequestID: errResp.RequestID}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Message is a stored WhatsApp message.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Content        string         `json:"content"`
	Direction      string         `json:"direction"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Conversation is a guest thread attached to a property.
type Conversation struct {
	ID            string     `json:"id"`
	PropertyID    string     `json:"property_id"`
	GuestName     string     `json:"guest_name"`
	GuestPhone    string     `json:"guest_phone"`
	CheckInDate   string     `json:"check_in_date,omitempty"`
	CheckOutDate  string     `json:"check_out_date,omitempty"`
	Status        string     `json:"status"`
	LastMessage   string     `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
}

// Property is a rental listing.
type Property struct {
	ID             string `json:"id"`
	HostID         string `json:"host_id"`
	Name           string `json:"name"`
	Address        string `json:"address,omitempty"`
	Description    string `json:"description,omitempty"`
	AIInstructions string `json:"ai_instructions,omitempty"`
	Language       string `json:"language,omitempty"`
	ManagerEmail   string `json:"manager_email,omitempty"`
	ManagerPhone   string `json:"manager_phone,omitempty"`
}

// SendMessageRequest is the body of POST /send-whatsapp-message.
type SendMessageRequest struct {
	To             string         `json:"to"`
	Content        string         `json:"content"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// SendTemplateRequest is the body of POST /send-whatsapp-template.
type SendTemplateRequest struct {
	To             string   `json:"to"`
	TemplateName   string   `json:"template_name"`
	Language       string   `json:"language,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	TemplateParams []string `json:"template_params,omitempty"`
}

// SendResponse is returned by both send endpoints.
type SendResponse struct {
	Success           bool            `json:"success"`
	Message           *Message        `json:"message"`
	WhatsAppAPIResult json.RawMessage `json:"whatsapp_api_result"`
	DatabaseSaved     bool            `json:"database_saved"`
}

// SendMessage sends a free-form text message.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*SendResponse, error) {
	var resp SendResponse
	if err := c.do(ctx, http.MethodPost, "/send-whatsapp-message", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendTemplate sends an approved template.
func (c *Client) SendTemplate(ctx context.Context, req SendTemplateRequest) (*SendResponse, error) {
	var resp SendResponse
	if err := c.do(ctx, http.MethodPost, "/send-whatsapp-template", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateConversationRequest is the body of POST /create-conversation.
type CreateConversationRequest struct {
	HostID       string `json:"host_id"`
	PropertyID   string `json:"property_id"`
	GuestName    string `json:"guest_name"`
	GuestPhone   string `json:"guest_phone"`
	CheckInDate  string `json:"check_in_date"`
	CheckOutDate string `json:"check_out_date"`
}

// ConversationResponse is returned by conversation mutations.
type ConversationResponse struct {
	Message      string        `json:"message,omitempty"`
	Success      bool          `json:"success,omitempty"`
	Conversation *Conversation `json:"conversation"`
}

// CreateConversation opens a conversation, or returns the similar one that
// already exists.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*ConversationResponse, error) {
	var resp ConversationResponse
	if err := c.do(ctx, http.MethodPost, "/create-conversation", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConversationList is the response of GET /conversations.
type ConversationList struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}

// ListConversations lists the caller's conversations, most recent first.
func (c *Client) ListConversations(ctx context.Context, limit, offset int) (*ConversationList, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/conversations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ConversationList
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MessageList is the response of GET /conversations/{id}/messages.
type MessageList struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

// GetMessages returns the history of a conversation.
func (c *Client) GetMessages(ctx context.Context, conversationID string, limit int) (*MessageList, error) {
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp MessageList
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkRead clears the unread counter of a conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/read", nil, nil)
}

// ListProperties lists the caller's properties.
func (c *Client) ListProperties(ctx context.Context) ([]Property, error) {
	var resp struct {
		Properties []Property `json:"properties"`
	}
	if err := c.do(ctx, http.MethodGet, "/properties", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Properties, nil
}

// GenerateReplyRequest is the body of POST /generate-ai-response.
type GenerateReplyRequest struct {
	ApartmentID        string `json:"apartmentId"`
	ConversationID     string `json:"conversationId"`
	CustomInstructions string `json:"customInstructions,omitempty"`
	IsReservation      bool   `json:"isReservation,omitempty"`
}

// GenerateReply asks the server for a suggested host reply.
func (c *Client) GenerateReply(ctx context.Context, req GenerateReplyRequest) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/generate-ai-response", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// SearchResponse is the response of GET /messages/search.
type SearchResponse struct {
	Query   string    `json:"query"`
	Results []Message `json:"results"`
	Total   int       `json:"total"`
}

// Search finds messages containing query.
func (c *Client) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	path := "/messages/search?q=" + url.QueryEscape(query)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}

	var resp SearchResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health reports the server status ("healthy" or "degraded").
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	if apiErr, ok := err.(*Error); ok && apiErr.StatusCode == http.StatusServiceUnavailable {
		return "degraded", nil
	}
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}
