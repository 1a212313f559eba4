package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"crowdradar/internal/config"
	"crowdradar/internal/repository"
)

// AlertService decides whether a user should hear about the crowd around
// them and records the decision.
//
// Go Learning Note — Optimistic Concurrency:
// Two pings from the same neighborhood can evaluate the same subject at the
// same moment. Instead of a lock, each evaluation reads the cooldown state
// with its version and writes back with CompareAndSwap. Only one writer can
// move version n to n+1; the loser skips, so one crowd produces one push.
type AlertService struct {
	cfg       *config.Config
	devices   repository.DeviceRepository
	cooldowns repository.CooldownRepository
	notifier  *NotificationService
	now       func() time.Time
}

func NewAlertService(
	cfg *config.Config,
	devices repository.DeviceRepository,
	cooldowns repository.CooldownRepository,
	notifier *NotificationService,
) *AlertService {
	return &AlertService{
		cfg:       cfg,
		devices:   devices,
		cooldowns: cooldowns,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Fingerprint identifies a neighbor set independent of order: the subject
// plus the first sample ids in sorted order.
func Fingerprint(subjectID string, neighborIDs []string, sample int) string {
	ids := append([]string(nil), neighborIDs...)
	sort.Strings(ids)
	if sample > 0 && len(ids) > sample {
		ids = ids[:sample]
	}
	return "crowd:" + subjectID + ":" + strings.Join(ids, "|")
}

// MaybeSendCrowdAlert pushes a crowd alert to subjectID if neighborIDs is a
// big enough crowd, the subject has a deliverable device, and neither the
// cooldown nor the fingerprint gate suppresses it. It reports whether the
// alert was recorded. Delivery failures are logged, not returned.
func (s *AlertService) MaybeSendCrowdAlert(ctx context.Context, subjectID string, neighborIDs []string) (bool, error) {
	crowdCount := len(neighborIDs)
	if crowdCount < s.cfg.Alerts.MinCrowdSize {
		return false, nil
	}

	devices, err := s.devices.ListEnabled(ctx, subjectID)
	if err != nil {
		return false, fmt.Errorf("list devices: %w", err)
	}
	tokens := s.notifier.PushTokens(devices)
	if len(tokens) == 0 {
		return false, nil
	}

	now := s.now()
	fingerprint := Fingerprint(subjectID, neighborIDs, s.cfg.Alerts.FingerprintSample)

	state, err := s.cooldowns.Get(ctx, subjectID)
	if err != nil {
		return false, fmt.Errorf("load cooldown: %w", err)
	}
	window := s.cfg.Alerts.Cooldown
	if state.InCooldown(now, window) || state.RecentlyFired(fingerprint, now, window) {
		return false, nil
	}

	next := *state
	next.UserID = subjectID
	next.LastCrowdAlertAt = now
	next.LastAnyAlertAt = now
	next.LastFingerprint = fingerprint
	won, err := s.cooldowns.CompareAndSwap(ctx, &next)
	if err != nil {
		return false, fmt.Errorf("record cooldown: %w", err)
	}
	if !won {
		log.Printf("[ALERT] User %s: cooldown changed concurrently, skipping", subjectID)
		return false, nil
	}

	if err := s.notifier.NotifyCrowdNearby(ctx, subjectID, tokens, crowdCount); err != nil {
		log.Printf("[ALERT] User %s: delivery failed: %v", subjectID, err)
	}
	return true, nil
}
