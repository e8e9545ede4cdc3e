package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const gmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

// GmailService sends mail through the Gmail API on behalf of a user.
type GmailService struct {
	clients ClientProvider
	baseURL string
}

func NewGmailService(clients ClientProvider) *GmailService {
	return &GmailService{clients: clients, baseURL: gmailBaseURL}
}

// NewGmailServiceWithBaseURL is for tests pointing at a fake server.
func NewGmailServiceWithBaseURL(clients ClientProvider, baseURL string) *GmailService {
	return &GmailService{clients: clients, baseURL: baseURL}
}

// SendInput is the payload prepared by the confirmation gate.
type SendInput struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send delivers a plain-text message from the user's account and returns
// the Gmail message id.
func (s *GmailService) Send(ctx context.Context, userID string, input SendInput) (string, error) {
	client, err := s.clients.AuthorizedClient(ctx, userID)
	if err != nil {
		return "", err
	}
	if input.To == "" {
		return "", fmt.Errorf("recipient is required")
	}

	raw := encodeMessage(input)
	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	endpoint := s.baseURL + "/users/me/messages/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build gmail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gmail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError("gmail", resp)
	}

	var sent struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return "", fmt.Errorf("failed to decode gmail response: %w", err)
	}
	return sent.ID, nil
}

// encodeMessage builds the RFC 2822 message and base64url-encodes it the
// way the Gmail API expects.
func encodeMessage(input SendInput) string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "To: %s\r\n", input.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", input.Subject)
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(input.Body)
	return base64.URLEncoding.EncodeToString([]byte(msg.String()))
}
