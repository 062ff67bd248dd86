package releases

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule refreshes the cache a little before the TTL runs out
const DefaultSchedule = "@every 55m"

// Refresher keeps the release cache warm so page loads rarely hit GitHub
type Refresher struct {
	cron    *cron.Cron
	service *Service
	logger  zerolog.Logger
}

// NewRefresher schedules service.Refresh on a cron expression
// (standard five fields or descriptors like "@every 1h")
func NewRefresher(service *Service, schedule string, logger zerolog.Logger) (*Refresher, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	r := &Refresher{cron: c, service: service, logger: logger}
	if _, err := c.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	release, err := r.service.Refresh(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Scheduled release refresh failed")
		return
	}
	r.logger.Debug().Str("version", release.Version).Msg("Release cache refreshed")
}

// Start runs an immediate refresh in the background and starts the schedule
func (r *Refresher) Start() {
	go r.run()
	r.cron.Start()
}

// Stop stops the schedule and waits for a running refresh to finish
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}
