// Package releases proxies the GitHub releases API for the download pages.
// Upstream failures never reach callers: they get a fixed placeholder release.
package releases

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL matches how long the download pages may serve a stale release
const DefaultTTL = time.Hour

// Upstream is where releases come from
type Upstream interface {
	Latest(ctx context.Context) (*GitHubRelease, error)
}

// Service serves the latest release from cache or upstream
type Service struct {
	upstream Upstream
	cache    Cache
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a release service. A nil cache disables caching.
func NewService(upstream Upstream, cache Cache, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Latest returns the latest release. It never fails: on upstream error the
// fallback release (Error=true) is returned and nothing is cached.
func (s *Service) Latest(ctx context.Context) *Release {
	if s.cache != nil {
		r, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Release cache read failed")
		} else if ok {
			return r
		}
	}

	r, err := s.Refresh(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching GitHub release")
		return Fallback(s.now())
	}
	return r
}

// Refresh fetches from upstream and replaces the cached release
func (s *Service) Refresh(ctx context.Context) (*Release, error) {
	gh, err := s.upstream.Latest(ctx)
	if err != nil {
		return nil, err
	}

	r := FromGitHub(gh)
	if s.cache != nil {
		if err := s.cache.Set(ctx, r, s.ttl); err != nil {
			s.logger.Warn().Err(err).Msg("Release cache write failed")
		}
	}
	return r, nil
}
