package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultExpoURL is Expo's push send endpoint.
	DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

	// ExpoChunkSize is the most messages Expo accepts per request.
	ExpoChunkSize = 100
)

// ExpoClient sends push notifications via Expo's Push API.
//
// Expo Push works with React Native + Expo apps without any APNs/FCM setup:
//  1. The app gets an Expo push token (looks like "ExponentPushToken[xxx]")
//  2. The app registers this token with the backend
//  3. The backend POSTs batches of messages to Expo
//  4. Expo handles delivery to both iOS and Android
type ExpoClient struct {
	httpClient *http.Client
	url        string
}

// expoMessage is one entry of the batch body.
type expoMessage struct {
	To    string                 `json:"to"`
	Sound string                 `json:"sound,omitempty"`
	Title string                 `json:"title,omitempty"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

type expoTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"` // "DeviceNotRegistered", "MessageTooBig", etc.
	} `json:"details,omitempty"`
}

// NewExpoClient creates an Expo client posting to url (DefaultExpoURL when
// empty). Expo push needs no credentials.
func NewExpoClient(url string, timeout time.Duration) *ExpoClient {
	if url == "" {
		url = DefaultExpoURL
	}
	return &ExpoClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

// Accepts keeps only Expo-format tokens.
func (c *ExpoClient) Accepts(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken") || strings.HasPrefix(token, "ExpoPushToken")
}

// Send posts tokens in chunks of ExpoChunkSize. A failing chunk is logged and
// does not stop the remaining chunks; all failures are returned joined.
func (c *ExpoClient) Send(ctx context.Context, tokens []string, msg Message) error {
	if len(tokens) == 0 {
		return nil
	}

	var errs []error
	for _, batch := range chunk(tokens, ExpoChunkSize) {
		if err := c.sendChunk(ctx, batch, msg); err != nil {
			log.Printf("[ExpoPush] chunk of %d FAILED: %v", len(batch), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *ExpoClient) sendChunk(ctx context.Context, tokens []string, msg Message) error {
	messages := make([]expoMessage, len(tokens))
	for i, to := range tokens {
		messages[i] = expoMessage{
			To:    to,
			Sound: "default",
			Title: msg.Title,
			Body:  msg.Body,
			Data:  msg.Data,
		}
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("expo api error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var pushResp expoResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		log.Printf("[ExpoPush] Failed to parse response: %v", err)
		return nil // accepted; tickets are informational
	}

	failCount := 0
	for i, ticket := range pushResp.Data {
		if ticket.Status != "ok" {
			failCount++
			log.Printf("[ExpoPush] Token %d failed: %s (error: %s)", i, ticket.Message, ticket.Details.Error)
		}
	}
	log.Printf("[ExpoPush] Sent to %d tokens: %d success, %d failed",
		len(tokens), len(tokens)-failCount, failCount)
	return nil
}
