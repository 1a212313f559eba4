package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"crowdradar/internal/auth"
	"crowdradar/internal/config"
	"crowdradar/internal/domain/entities"
	"crowdradar/internal/geo"
	"crowdradar/internal/repository"
)

// Neighbor is a fresh presence record inside a search radius.
type Neighbor struct {
	Presence       *entities.PresenceRecord
	DistanceMeters float64
}

// UserID returns the id of the neighbor's owner.
func (n Neighbor) UserID() string {
	return n.Presence.UserID
}

// Point returns the neighbor's position.
func (n Neighbor) Point() geo.Point {
	return geo.Point{Lat: n.Presence.Lat, Lng: n.Presence.Lng}
}

// NearbyService answers radius queries over presence records.
type NearbyService struct {
	cfg      *config.Config
	presence repository.PresenceRepository
	users    repository.UserRepository
	now      func() time.Time
}

func NewNearbyService(
	cfg *config.Config,
	presence repository.PresenceRepository,
	users repository.UserRepository,
) *NearbyService {
	return &NearbyService{
		cfg:      cfg,
		presence: presence,
		users:    users,
		now:      time.Now,
	}
}

// GetNearby lists the users within radiusFt of the caller's own fresh
// position, closest first. A caller without a fresh position gets an empty
// response; that is not an error.
func (s *NearbyService) GetNearby(ctx context.Context, caller auth.Caller, radiusFt *float64) (*entities.NearbyResponse, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	radiusMeters := geo.FeetToMeters(ParseRadiusFt(radiusFt, s.cfg.Nearby))
	now := s.now()

	self, err := s.presence.Get(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("load caller presence: %w", err)
	}
	if !self.IsFresh(now) {
		return entities.EmptyNearbyResponse(now), nil
	}

	center := geo.Point{Lat: self.Lat, Lng: self.Lng}
	candidates, err := s.findNearby(ctx, center, radiusMeters, now)
	if err != nil {
		return nil, err
	}

	others := candidates[:0]
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.UserID() == caller.UserID {
			continue
		}
		others = append(others, c)
		ids = append(ids, c.UserID())
	}

	profiles, err := s.fetchUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	users := make([]entities.NearbyUser, 0, len(others))
	for _, n := range others {
		u, ok := profiles[n.UserID()]
		if !ok {
			continue
		}
		users = append(users, entities.NewNearbyUser(n.UserID(), u.Profile, geo.RoundFeet(n.DistanceMeters)))
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].DistanceFt < users[j].DistanceFt
	})

	return &entities.NearbyResponse{
		Users:      users,
		CrowdCount: len(users),
		AsOf:       now.UTC(),
	}, nil
}

// FindNearby returns every fresh presence record within radiusMeters of
// center, closest first. The center's own owner is not excluded.
func (s *NearbyService) FindNearby(ctx context.Context, center geo.Point, radiusMeters float64) ([]Neighbor, error) {
	return s.findNearby(ctx, center, radiusMeters, s.now())
}

func (s *NearbyService) findNearby(ctx context.Context, center geo.Point, radiusMeters float64, now time.Time) ([]Neighbor, error) {
	ranges := geo.QueryBounds(center, radiusMeters)
	records, err := s.presence.QueryByGeohashRanges(ctx, ranges, s.cfg.Nearby.LimitPerRange)
	if err != nil {
		return nil, fmt.Errorf("query presence: %w", err)
	}

	var out []Neighbor
	for _, rec := range records {
		if !rec.IsFresh(now) {
			continue
		}
		d := geo.DistanceMeters(center, geo.Point{Lat: rec.Lat, Lng: rec.Lng})
		if d > radiusMeters {
			continue
		}
		out = append(out, Neighbor{Presence: rec, DistanceMeters: d})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out, nil
}

// fetchUsers loads user documents in chunks the store accepts, reading the
// chunks concurrently. Ids without a document are absent from the result.
func (s *NearbyService) fetchUsers(ctx context.Context, ids []string) (map[string]*entities.User, error) {
	size := s.cfg.Nearby.ProfileBatchSize
	if size <= 0 || size > repository.BatchGetLimit {
		size = repository.BatchGetLimit
	}

	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}

	results := make([]map[string]*entities.User, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		g.Go(func() error {
			users, err := s.users.GetMany(gctx, c)
			if err != nil {
				return fmt.Errorf("load profiles: %w", err)
			}
			results[i] = users
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]*entities.User, len(ids))
	for _, r := range results {
		for id, u := range r {
			merged[id] = u
		}
	}
	return merged, nil
}
