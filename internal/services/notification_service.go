package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"crowdradar/internal/domain/entities"
	"crowdradar/internal/push"
)

// NotificationService turns domain events into push messages.
type NotificationService struct {
	sender   push.Sender
	radiusFt float64
}

// NewNotificationService builds a notifier that quotes radiusFt in crowd
// alert text.
func NewNotificationService(sender push.Sender, radiusFt float64) *NotificationService {
	return &NotificationService{
		sender:   sender,
		radiusFt: radiusFt,
	}
}

// PushTokens returns the distinct tokens of devices the gateway can deliver
// to, in device order.
func (s *NotificationService) PushTokens(devices []*entities.DeviceRegistration) []string {
	seen := make(map[string]struct{}, len(devices))
	var tokens []string
	for _, d := range devices {
		if d == nil || !d.Enabled {
			continue
		}
		token := strings.TrimSpace(d.PushToken)
		if token == "" || !s.sender.Accepts(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

// CrowdMessage is the "crowd nearby" notification for crowdCount people.
func (s *NotificationService) CrowdMessage(crowdCount int) push.Message {
	return push.Message{
		Title: "Crowd nearby",
		Body:  fmt.Sprintf("There are %d people within %g ft of you.", crowdCount, s.radiusFt),
		Data: map[string]interface{}{
			"type":       "crowd",
			"crowdCount": crowdCount,
		},
	}
}

// NotifyCrowdNearby sends the crowd alert to one user's devices.
func (s *NotificationService) NotifyCrowdNearby(ctx context.Context, userID string, tokens []string, crowdCount int) error {
	if len(tokens) == 0 {
		return nil
	}
	log.Printf("[NOTIFICATION] User %s: crowd of %d nearby, sending to %d device(s)", userID, crowdCount, len(tokens))
	if err := s.sender.Send(ctx, tokens, s.CrowdMessage(crowdCount)); err != nil {
		return fmt.Errorf("push crowd alert to %s: %w", userID, err)
	}
	return nil
}
