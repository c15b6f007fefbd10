package ingest

import (
	"context"
	"log"
	"time"

	"github.com/lox/greencity/internal/models"
	"github.com/lox/greencity/internal/store"
)

// Scheduler runs the daily update once per calendar day. It checks hourly
// and runs whenever today's index is missing, so a missed or failed run is
// retried on the next tick.
type Scheduler struct {
	store            *store.Store
	collector        *Collector
	loc              *time.Location
	interval         time.Duration
	payloadRetention int
	now              func() time.Time
}

func NewScheduler(st *store.Store, collector *Collector, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		store:            st,
		collector:        collector,
		loc:              loc,
		interval:         1 * time.Hour,
		payloadRetention: 90,
		now:              time.Now,
	}
}

// SetPayloadRetention sets how many days of raw API payloads to keep; zero
// keeps them forever.
func (s *Scheduler) SetPayloadRetention(days int) {
	s.payloadRetention = days
}

func (s *Scheduler) Run(ctx context.Context) {
	s.runIfNeeded(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			s.runIfNeeded(ctx)
		}
	}
}

// runIfNeeded reports whether an update was attempted.
func (s *Scheduler) runIfNeeded(ctx context.Context) bool {
	local := s.now().In(s.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	day := today.Format(models.DateLayout)

	done, err := s.store.HasIndex(day)
	if err != nil {
		log.Printf("scheduler: check index for %s: %v", day, err)
		return false
	}
	if done {
		return false
	}

	log.Printf("scheduler: running daily update for %s", day)
	if _, err := s.collector.Run(ctx, today); err != nil {
		log.Printf("scheduler: daily update failed: %v", err)
	}

	if s.payloadRetention > 0 {
		n, err := s.store.CleanupOldPayloads(s.payloadRetention)
		if err != nil {
			log.Printf("scheduler: cleanup payloads: %v", err)
		} else if n > 0 {
			log.Printf("scheduler: removed %d payloads older than %d days", n, s.payloadRetention)
		}
	}
	return true
}
