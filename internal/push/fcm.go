package push

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// fcmChunkSize is the multicast token limit per request.
const fcmChunkSize = 500

// FCMClient sends notifications through Firebase Cloud Messaging. Use it when
// the apps register native FCM tokens instead of Expo tokens.
type FCMClient struct {
	client *messaging.Client
}

// NewFCMClient initializes a Firebase app from a service-account credentials
// file. An empty path falls back to Application Default Credentials.
func NewFCMClient(ctx context.Context, credentialsFile string) (*FCMClient, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log.Println("[FCM] Client initialized successfully")
	return &FCMClient{client: client}, nil
}

// Accepts rejects Expo tokens, which FCM cannot deliver to.
func (c *FCMClient) Accepts(token string) bool {
	return token != "" && !strings.HasPrefix(token, "ExponentPushToken") && !strings.HasPrefix(token, "ExpoPushToken")
}

// Send multicasts msg in chunks of 500 tokens.
func (c *FCMClient) Send(ctx context.Context, tokens []string, msg Message) error {
	if len(tokens) == 0 {
		return nil
	}

	var errs []error
	for _, batch := range chunk(tokens, fcmChunkSize) {
		message := &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: stringData(msg.Data),
			Android: &messaging.AndroidConfig{
				Priority: "high",
				Notification: &messaging.AndroidNotification{
					Sound: "default",
				},
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{Sound: "default"},
				},
			},
		}

		response, err := c.client.SendEachForMulticast(ctx, message)
		if err != nil {
			errs = append(errs, fmt.Errorf("send multicast: %w", err))
			continue
		}

		log.Printf("[FCM] Sent to %d tokens: %d success, %d failure",
			len(batch), response.SuccessCount, response.FailureCount)
		for i, resp := range response.Responses {
			if !resp.Success {
				log.Printf("[FCM] Token %d failed: %v", i, resp.Error)
			}
		}
	}
	return errors.Join(errs...)
}

// stringData flattens a data payload; FCM data values must be strings.
func stringData(data map[string]interface{}) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = fmt.Sprint(v)
	}
	return out
}
