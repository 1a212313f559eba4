package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"crowdradar/internal/auth"
	"crowdradar/internal/config"
	"crowdradar/internal/domain/entities"
)

// MaxAccuracyMeters is the worst device accuracy a ping may report.
const MaxAccuracyMeters = 500

// maxRecordedAtMs is 9999-12-31T23:59:59.999Z. Device timestamps outside
// [0, maxRecordedAtMs] are rejected before the int64 conversion.
const maxRecordedAtMs = 253402300799999

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// ValidatePing checks the shape of a ping and converts it. The second return
// is false when the ping must be rejected as invalid.
func ValidatePing(in entities.PingInput) (entities.Ping, bool) {
	if !finite(in.Lat) || !finite(in.Lng) {
		return entities.Ping{}, false
	}
	lat, lng := *in.Lat, *in.Lng
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return entities.Ping{}, false
	}
	if !finite(in.AccuracyMeters) || *in.AccuracyMeters < 0 || *in.AccuracyMeters > MaxAccuracyMeters {
		return entities.Ping{}, false
	}
	if !in.Source.IsValid() {
		return entities.Ping{}, false
	}
	if !finite(in.RecordedAtMs) || *in.RecordedAtMs < 0 || *in.RecordedAtMs > maxRecordedAtMs {
		return entities.Ping{}, false
	}

	return entities.Ping{
		Lat:            lat,
		Lng:            lng,
		AccuracyMeters: *in.AccuracyMeters,
		Source:         in.Source,
		RecordedAt:     time.UnixMilli(int64(*in.RecordedAtMs)).UTC(),
	}, true
}

// ParseRadiusFt picks the query radius: the default when raw is missing or not
// a finite number, otherwise raw clamped to [MinRadiusFt, MaxRadiusFt].
func ParseRadiusFt(raw *float64, cfg config.NearbyConfig) float64 {
	if !finite(raw) {
		return cfg.DefaultRadiusFt
	}
	return math.Max(cfg.MinRadiusFt, math.Min(cfg.MaxRadiusFt, *raw))
}

// requireCaller rejects an empty identity.
func requireCaller(caller auth.Caller) error {
	if strings.TrimSpace(caller.UserID) == "" {
		return fmt.Errorf("%w: sign in first", entities.ErrUnauthenticated)
	}
	return nil
}
