package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no usable phone number ID and token are stored.
var ErrNotConfigured = errors.New("whatsapp: configuration missing")

const (
	defaultGraphURL   = "https://graph.facebook.com"
	defaultAPIVersion = "v22.0"
)

// Credentials identify the business phone number used for a call.
type Credentials struct {
	PhoneNumberID string
	Token         string
}

// APIError is the error object the Graph API returns on failure.
type APIError struct {
	Message      string          `json:"message"`
	Type         string          `json:"type"`
	Code         int             `json:"code"`
	ErrorSubcode int             `json:"error_subcode,omitempty"`
	ErrorData    json.RawMessage `json:"error_data,omitempty"`
	FBTraceID    string          `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api: %s (code %d)", e.Message, e.Code)
}

// SendResult carries the raw Graph response. A non-2xx status is reported
// through StatusCode and Error, not as a Go error.
type SendResult struct {
	StatusCode int
	Body       json.RawMessage
	MessageID  string
	Error      *APIError
}

// OK reports whether the Graph API accepted the request.
func (r *SendResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// graphResponse covers the fields read from send and lookup responses.
type graphResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *APIError `json:"error"`
}

// Client talks to the WhatsApp Cloud API.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
}

// NewClient creates a Graph API client. Empty arguments fall back to the
// public endpoint and the default API version.
func NewClient(baseURL, version string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultGraphURL
	}
	if version == "" {
		version = defaultAPIVersion
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		version:    version,
		httpClient: httpClient,
	}
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

// SendText sends a free-form text message.
func (c *Client) SendText(ctx context.Context, creds Credentials, to, body string) (*SendResult, error) {
	payload := textPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               DigitsOnly(to),
		Type:             "text",
	}
	payload.Text.Body = body
	return c.post(ctx, creds, payload)
}

// TemplateMessage describes a template send. Params fill the body
// placeholders in order.
type TemplateMessage struct {
	To       string
	Name     string
	Language string
	Params   []string
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templatePayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Template         struct {
		Name     string `json:"name"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
		Components []templateComponent `json:"components,omitempty"`
	} `json:"template"`
}

// SendTemplate sends a pre-approved template message.
func (c *Client) SendTemplate(ctx context.Context, creds Credentials, msg TemplateMessage) (*SendResult, error) {
	payload := templatePayload{
		MessagingProduct: "whatsapp",
		To:               DigitsOnly(msg.To),
		Type:             "template",
	}
	payload.Template.Name = msg.Name
	payload.Template.Language.Code = msg.Language
	if len(msg.Params) > 0 {
		params := make([]templateParameter, len(msg.Params))
		for i, p := range msg.Params {
			params[i] = templateParameter{Type: "text", Text: p}
		}
		payload.Template.Components = []templateComponent{{Type: "body", Parameters: params}}
	}
	return c.post(ctx, creds, payload)
}

// PhoneNumberInfo fetches the business phone number record, which doubles
// as a credentials check.
func (c *Client) PhoneNumberInfo(ctx context.Context, creds Credentials) (*SendResult, error) {
	if creds.PhoneNumberID == "" || creds.Token == "" {
		return nil, ErrNotConfigured
	}
	url := fmt.Sprintf("%s/%s/%s?fields=display_phone_number,verified_name,quality_rating",
		c.baseURL, c.version, creds.PhoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	return c.do(req)
}

func (c *Client) post(ctx context.Context, creds Credentials, payload any) (*SendResult, error) {
	if creds.PhoneNumberID == "" || creds.Token == "" {
		return nil, ErrNotConfigured
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, creds.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*SendResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	result := &SendResult{StatusCode: resp.StatusCode, Body: body}

	var parsed graphResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Non-JSON bodies (proxies, HTML error pages) are kept raw.
		result.Body, _ = json.Marshal(string(body))
		if !result.OK() {
			result.Error = &APIError{Message: http.StatusText(resp.StatusCode), Code: resp.StatusCode}
		}
		return result, nil
	}

	if len(parsed.Messages) > 0 {
		result.MessageID = parsed.Messages[0].ID
	}
	result.Error = parsed.Error
	if !result.OK() && result.Error == nil {
		result.Error = &APIError{Message: http.StatusText(resp.StatusCode), Code: resp.StatusCode}
	}
	return result, nil
}
