package memory

import (
	"log"
	"time"
)

// Janitor periodically evicts long-expired presence records from a
// PresenceRepository.
//
// Go Learning Note — Channels for Signaling:
// The `stop` field is a `chan struct{}` — an empty struct channel used purely
// for signaling. `struct{}` occupies zero bytes, making it the most efficient
// signal type. close(stop) wakes every goroutine receiving from it, so Stop
// never blocks.
type Janitor struct {
	repo      *PresenceRepository
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stop      chan struct{}
	done      chan struct{}
}

// NewJanitor starts a background goroutine that sweeps repo every interval.
// Records are removed once they have been expired for longer than retention.
// A non-positive interval disables sweeping; Stop is still safe to call.
//
// Go Learning Note — Background Goroutines:
// Always provide a way to stop background goroutines to prevent goroutine
// leaks in tests. Stop closes the signal channel and waits on done, so after
// it returns no sweep is running.
func NewJanitor(repo *PresenceRepository, interval, retention time.Duration) *Janitor {
	j := &Janitor{
		repo:      repo,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if interval <= 0 {
		log.Printf("[PRESENCE] sweep disabled (interval %v)", interval)
		close(j.done)
		return j
	}
	go j.run()
	return j
}

// run is the sweep loop.
//
// Go Learning Note — time.NewTicker:
// time.NewTicker creates a channel that receives a value at regular intervals.
// Unlike time.After (one-shot), a ticker repeats forever until stopped. Always
// call ticker.Stop() when done (via defer) to release the underlying timer
// resources.
//
// Go Learning Note — select Statement:
// select blocks until one of its cases can proceed. Here it waits for either
// the ticker (do cleanup) or the stop signal (exit).
func (j *Janitor) run() {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.repo.EvictExpired(j.now(), j.retention); n > 0 {
				log.Printf("[PRESENCE] evicted %d expired records", n)
			}
		case <-j.stop:
			return
		}
	}
}

// Stop signals the sweep goroutine to exit and waits for it.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}
