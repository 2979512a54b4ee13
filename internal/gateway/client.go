// Package gateway talks to the session gateway: the external collaborator
// owning the live WhatsApp connections.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client sends outbound messages through the gateway bridge.
type Client struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
}

// Send delivers content to a contact through the given session. Returns the
// provider message id assigned by the gateway.
func (c *Client) Send(ctx context.Context, sessionID int64, to, content string) (string, error) {
	url := fmt.Sprintf("%s/sessions/%d/messages", c.baseURL, sessionID)

	body, err := json.Marshal(&sendRequest{To: to, Body: content})
	if err != nil {
		return "", fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", Sign(body, c.secret))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return "", fmt.Errorf("gateway error (status %d): %v", resp.StatusCode, errBody)
	}

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if sr.MessageID == "" {
		return "", fmt.Errorf("no message id returned from gateway")
	}
	return sr.MessageID, nil
}

// Sign computes the sha256= HMAC header value for a request body.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an incoming webhook signature in the
// sha256=<hex> format. Constant-time comparison.
func VerifySignature(signature string, payload []byte, secret string) error {
	const prefix = "sha256="
	if len(signature) <= len(prefix) || signature[:len(prefix)] != prefix {
		return fmt.Errorf("invalid signature format: missing sha256= prefix")
	}

	expectedSig := signature[len(prefix):]

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	computedSig := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expectedSig), []byte(computedSig)) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}
