package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"crowdradar/internal/auth"
	"crowdradar/internal/config"
	"crowdradar/internal/domain/entities"
	"crowdradar/internal/geo"
	"crowdradar/internal/repository"
)

// PingService ingests position reports.
//
// Each ping walks a fixed sequence and stops at the first reject:
//
//	validate → load user → sharing check → throttle → commit → sharing re-check → alert fanout
//
// Rejects (invalid, paused, throttled) are returned as a PingResult, never
// as an error. Errors are reserved for missing identity, a missing user
// document, and storage failures.
type PingService struct {
	cfg      *config.Config
	users    repository.UserRepository
	presence repository.PresenceRepository
	nearby   *NearbyService
	alerts   *AlertService
	now      func() time.Time
}

func NewPingService(
	cfg *config.Config,
	users repository.UserRepository,
	presence repository.PresenceRepository,
	nearby *NearbyService,
	alerts *AlertService,
) *PingService {
	return &PingService{
		cfg:      cfg,
		users:    users,
		presence: presence,
		nearby:   nearby,
		alerts:   alerts,
		now:      time.Now,
	}
}

// UpsertPing validates, throttles and commits one ping from the caller, then
// re-evaluates crowd alerts around them. Fanout failures are logged and do
// not affect the result.
func (s *PingService) UpsertPing(ctx context.Context, caller auth.Caller, in entities.PingInput) (*entities.PingResult, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	ping, ok := ValidatePing(in)
	if !ok {
		return entities.RejectedPing(entities.RejectInvalid), nil
	}

	user, err := s.users.Get(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user profile is missing", entities.ErrFailedPrecondition)
	}
	if !user.Control.SharingEnabled {
		return entities.RejectedPing(entities.RejectPaused), nil
	}

	previous, err := s.presence.Get(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("load presence: %w", err)
	}
	now := s.now().UTC()
	if wait, throttled := s.throttleWait(previous, ping, now); throttled {
		return entities.ThrottledPing(wait), nil
	}

	record := entities.NewPresenceRecord(
		caller.UserID,
		ping.Lat, ping.Lng,
		ping.AccuracyMeters,
		ping.Source,
		geo.Encode(ping.Lat, ping.Lng, geo.DefaultPrecision),
		now,
		s.cfg.Presence.FreshnessWindow,
	)
	if err := s.presence.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("save presence: %w", err)
	}

	// A disable that landed after the sharing check must not leave our record
	// behind. SetSharing writes the flag before deleting presence, so one that
	// lands after this read still deletes what we wrote.
	latest, err := s.users.Get(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	if latest == nil || !latest.Control.SharingEnabled {
		if err := s.presence.Delete(ctx, caller.UserID); err != nil {
			return nil, fmt.Errorf("clear presence: %w", err)
		}
		log.Printf("[PING] User %s: sharing disabled during ping, presence cleared", caller.UserID)
		return entities.RejectedPing(entities.RejectPaused), nil
	}

	sharing := true
	permission := entities.NormalizePermissionStatus(latest.Control.PermissionStatus)
	accuracy := ping.AccuracyMeters
	source := ping.Source
	patch := entities.ControlPatch{
		SharingEnabled:     &sharing,
		PermissionStatus:   &permission,
		LastLocationAt:     &now,
		LastAccuracyMeters: &accuracy,
		LastSource:         &source,
		UpdatedAt:          now,
	}
	if err := s.users.UpdateControl(ctx, caller.UserID, patch); err != nil {
		return nil, fmt.Errorf("save location status: %w", err)
	}

	s.fanoutAlerts(ctx, caller.UserID, geo.Point{Lat: ping.Lat, Lng: ping.Lng})

	return entities.AcceptedPing(), nil
}

// throttleWait reports whether ping arrives too soon after, and too close
// to, the previous accepted ping. The wait is in whole seconds, rounded up.
func (s *PingService) throttleWait(previous *entities.PresenceRecord, ping entities.Ping, now time.Time) (int, bool) {
	if previous == nil || previous.UpdatedAt.IsZero() {
		return 0, false
	}
	window := s.cfg.Presence.ThrottleWindow
	elapsed := now.Sub(previous.UpdatedAt)
	if elapsed >= window {
		return 0, false
	}
	moved := geo.DistanceMeters(
		geo.Point{Lat: previous.Lat, Lng: previous.Lng},
		geo.Point{Lat: ping.Lat, Lng: ping.Lng},
	)
	if moved >= s.cfg.Presence.ThrottleDistanceMeters {
		return 0, false
	}
	remaining := window - elapsed
	return int(math.Ceil(float64(remaining) / float64(time.Second))), true
}

type impactedUser struct {
	id    string
	point geo.Point
}

// fanoutAlerts evaluates crowd alerts for the sender and the closest users
// around them. Every subject's neighbors come from the one snapshot taken
// around the sender, and each subject is evaluated on its own: a failure
// for one does not stop the others.
func (s *PingService) fanoutAlerts(ctx context.Context, senderID string, center geo.Point) {
	radiusMeters := geo.FeetToMeters(s.cfg.Nearby.DefaultRadiusFt)

	around, err := s.nearby.FindNearby(ctx, center, radiusMeters)
	if err != nil {
		log.Printf("[PING] User %s: alert fanout skipped: %v", senderID, err)
		return
	}

	impacted := []impactedUser{{id: senderID, point: center}}
	for _, n := range around {
		if n.UserID() == senderID {
			continue
		}
		if len(impacted) > s.cfg.Alerts.ImpactedLimit {
			break
		}
		impacted = append(impacted, impactedUser{id: n.UserID(), point: n.Point()})
	}

	limit := s.cfg.Alerts.Concurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, subject := range impacted {
		neighbors := neighborsOf(subject, impacted, radiusMeters)
		g.Go(func() error {
			if _, err := s.alerts.MaybeSendCrowdAlert(ctx, subject.id, neighbors); err != nil {
				log.Printf("[PING] User %s: crowd alert for %s failed: %v", senderID, subject.id, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// neighborsOf returns the ids in pool, other than subject, within
// radiusMeters of subject.
func neighborsOf(subject impactedUser, pool []impactedUser, radiusMeters float64) []string {
	var ids []string
	for _, p := range pool {
		if p.id == subject.id {
			continue
		}
		if geo.DistanceMeters(subject.point, p.point) <= radiusMeters {
			ids = append(ids, p.id)
		}
	}
	return ids
}
