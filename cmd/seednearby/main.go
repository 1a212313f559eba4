// Command seednearby fills the configured store with fake users standing
// around a point, so a real device there sees a crowd.
//
//	go run ./cmd/seednearby -lat 43.0721 -lng -87.8851 -count 8 -spreadFt 20
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"crowdradar/internal/app"
	"crowdradar/internal/config"
	"crowdradar/internal/geo"
)

func main() {
	lat := flag.Float64("lat", math.NaN(), "center latitude (required)")
	lng := flag.Float64("lng", math.NaN(), "center longitude (required)")
	count := flag.Int("count", 8, "number of fake users")
	ttlMinutes := flag.Int("ttlMinutes", 60, "how long the fake presence stays fresh")
	spreadFt := flag.Float64("spreadFt", 0, "ring radius around the center, in feet")
	prefix := flag.String("prefix", "fake", "user id prefix")
	flag.Parse()

	if math.IsNaN(*lat) || math.IsNaN(*lng) {
		fmt.Fprintln(os.Stderr, "error: -lat and -lng are required")
		flag.Usage()
		os.Exit(2)
	}

	opts := seedOptions{
		Center:   geo.Point{Lat: *lat, Lng: *lng},
		Count:    max(1, *count),
		TTL:      time.Duration(max(1, *ttlMinutes)) * time.Minute,
		SpreadFt: math.Max(0, *spreadFt),
		Prefix:   strings.TrimSpace(*prefix),
	}
	if opts.Prefix == "" {
		opts.Prefix = "fake"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Store.Backend == config.StoreMemory {
		log.Fatalf("STORE_BACKEND=memory lives inside the server process; point the seeder at Redis")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer stores.Close()

	ids, err := seed(ctx, stores.Users, stores.Presence, opts, time.Now().UTC())
	if err != nil {
		log.Fatalf("Seed failed after %d users: %v", len(ids), err)
	}

	fmt.Printf("seeded %d fake users\n", len(ids))
	fmt.Printf("uids: %s\n", strings.Join(ids, ", "))
	fmt.Printf("base point: %v, %v\n", *lat, *lng)
}
