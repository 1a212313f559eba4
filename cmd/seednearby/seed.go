package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"crowdradar/internal/domain/entities"
	"crowdradar/internal/geo"
	"crowdradar/internal/repository"
)

type seedOptions struct {
	Center   geo.Point
	Count    int
	TTL      time.Duration
	SpreadFt float64
	Prefix   string
}

var (
	fieldsOfStudy = []string{
		"computer science", "business", "nursing", "psychology",
		"engineering", "marketing", "biology", "finance",
	}
	hobbies = []string{
		"coffee, music, gym",
		"hiking, gaming, photography",
		"basketball, movies, food",
		"reading, travel, cooking",
		"running, music, coding",
		"fashion, art, volleyball",
		"anime, lifting, tacos",
		"soccer, podcasts, boba",
	}
	breakerOne = []string{
		"what is your go-to comfort food",
		"what song are you replaying this week",
		"what is your favorite off-campus spot",
		"what hobby did you pick up recently",
	}
	breakerTwo = []string{
		"what is your ideal friday night",
		"what show can you rewatch forever",
		"what is your dream travel destination",
		"what is your favorite local restaurant",
	}
	breakerThree = []string{
		"what is one skill you want to learn",
		"what is your favorite way to relax",
		"what is your best study tip",
		"what is your favorite thing about campus",
	}
)

// seedUserID is prefix_NN, 1-based.
func seedUserID(prefix string, i int) string {
	return fmt.Sprintf("%s_%02d", prefix, i+1)
}

// seedPoint places fake i of count on a ring around the center. Ring radii
// alternate between 60%, 80% and 100% of spreadFt so the fakes do not all sit
// at one distance. A zero spread stacks everyone on the center.
func seedPoint(opts seedOptions, i int) geo.Point {
	if opts.SpreadFt <= 0 {
		return opts.Center
	}
	meters := geo.FeetToMeters(opts.SpreadFt) * (0.6 + float64(i%3)*0.2)
	bearing := 360 * float64(i) / float64(opts.Count)
	return geo.Offset(opts.Center, meters, bearing)
}

// seed writes count fake users, each with a profile, sharing enabled and a
// presence record that stays fresh for opts.TTL.
func seed(ctx context.Context, users repository.UserRepository, presence repository.PresenceRepository, opts seedOptions, now time.Time) ([]string, error) {
	if math.Abs(opts.Center.Lat) > 90 || math.Abs(opts.Center.Lng) > 180 {
		return nil, fmt.Errorf("center %v is out of range", opts.Center)
	}

	ids := make([]string, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		id := seedUserID(opts.Prefix, i)
		user := entities.NewUser(id, entities.Profile{
			DisplayName:     fmt.Sprintf("test%d", i+1),
			FieldOfStudy:    fieldsOfStudy[i%len(fieldsOfStudy)],
			Hobbies:         hobbies[i%len(hobbies)],
			IceBreakerOne:   breakerOne[i%len(breakerOne)],
			IceBreakerTwo:   breakerTwo[i%len(breakerTwo)],
			IceBreakerThree: breakerThree[i%len(breakerThree)],
		})
		user.Control.UpdatedAt = now
		if err := users.Put(ctx, user); err != nil {
			return ids, fmt.Errorf("write user %s: %w", id, err)
		}

		p := seedPoint(opts, i)
		record := entities.NewPresenceRecord(id, p.Lat, p.Lng, 8, entities.SourceForeground,
			geo.Encode(p.Lat, p.Lng, geo.DefaultPrecision), now, opts.TTL)
		if err := presence.Upsert(ctx, record); err != nil {
			return ids, fmt.Errorf("write presence %s: %w", id, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
