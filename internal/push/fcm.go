package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

const (
	// FCMEndpoint is the production HTTP v1 base URL.
	FCMEndpoint = "https://fcm.googleapis.com"
	fcmScope    = "https://www.googleapis.com/auth/firebase.messaging"
)

// FCMError is the error body returned by the HTTP v1 API.
type FCMError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Status     string `json:"status"`
}

func (e *FCMError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("fcm: %s (%d): %s", e.Status, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fcm: http %d: %s", e.StatusCode, e.Message)
}

// FCMNotifier sends to Android and iOS devices with Firebase Cloud Messaging.
type FCMNotifier struct {
	projectID  string
	baseURL    string
	httpClient *http.Client
}

// NewFCMNotifier authenticates with a service account key file.
func NewFCMNotifier(ctx context.Context, projectID, credentialsFile string) (*FCMNotifier, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read fcm credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("parse fcm credentials: %w", err)
	}
	return NewFCMNotifierWithTokenSource(projectID, FCMEndpoint, creds.TokenSource), nil
}

// NewFCMNotifierWithTokenSource builds a notifier against any base URL.
func NewFCMNotifierWithTokenSource(projectID, baseURL string, ts oauth2.TokenSource) *FCMNotifier {
	client := oauth2.NewClient(context.Background(), ts)
	client.Timeout = 10 * time.Second
	return &FCMNotifier{
		projectID:  projectID,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

// Supports implements Notifier.
func (f *FCMNotifier) Supports(platform string) bool {
	return platform == models.PlatformAndroid || platform == models.PlatformIOS
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send implements Notifier and returns the FCM message name.
func (f *FCMNotifier) Send(ctx context.Context, sub models.PushSubscription, n Notification) (string, error) {
	body, err := json.Marshal(fcmRequest{Message: fcmMessage{
		Token:        sub.Token,
		Notification: fcmNotification{Title: n.Title, Body: n.Body},
		Data:         n.Data,
	}})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", f.baseURL, f.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fcm request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read fcm response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &FCMError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *FCMError `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			apiErr = envelope.Error
			apiErr.StatusCode = resp.StatusCode
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return "", apiErr
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decode fcm response: %w", err)
	}
	return result.Name, nil
}
