// Package push delivers notifications to device push tokens through a
// provider gateway (Expo or Firebase Cloud Messaging), or just logs them.
package push

import (
	"context"
	"log"
)

// Message is one notification, sent identically to every token.
type Message struct {
	Title string
	Body  string
	Data  map[string]interface{}
}

// Sender is a push gateway.
type Sender interface {
	// Accepts reports whether token has a format this gateway can deliver to.
	Accepts(token string) bool
	// Send delivers msg to tokens. An error means at least one batch was
	// rejected by the gateway; other batches may still have gone out.
	Send(ctx context.Context, tokens []string, msg Message) error
}

// chunk splits tokens into slices of at most size.
func chunk(tokens []string, size int) [][]string {
	var out [][]string
	for size < len(tokens) {
		tokens, out = tokens[size:], append(out, tokens[:size])
	}
	if len(tokens) > 0 {
		out = append(out, tokens)
	}
	return out
}

// LogSender writes notifications to the log instead of delivering them. It is
// the default when no gateway is configured.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Accepts(token string) bool {
	return token != ""
}

func (s *LogSender) Send(ctx context.Context, tokens []string, msg Message) error {
	log.Printf("[PUSH] %d tokens: %q %q data=%v", len(tokens), msg.Title, msg.Body, msg.Data)
	return nil
}
