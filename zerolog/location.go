// Package zerolog provides logging decorators for the service interfaces.
package zerolog

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
)

// Ensure LoggingLocationService implements flagup.LocationService.
var _ flagup.LocationService = (*LoggingLocationService)(nil)

// LoggingLocationService wraps a LocationService with per-lookup logging.
type LoggingLocationService struct {
	next flagup.LocationService
	log  zerolog.Logger
}

// NewLoggingLocationService creates a new LoggingLocationService.
func NewLoggingLocationService(next flagup.LocationService, log zerolog.Logger) *LoggingLocationService {
	return &LoggingLocationService{next: next, log: log}
}

// Lookup logs the handle, outcome, and duration, and delegates to the
// wrapped service.
func (s *LoggingLocationService) Lookup(ctx context.Context, handle string) (loc flagup.Location, err error) {
	defer func(begin time.Time) {
		s.log.Info().
			Str("handle", handle).
			Str("location", loc.Text).
			Bool("found", loc.Found).
			Dur("duration", time.Since(begin)).
			Err(err).
			Msg("lookup")
	}(time.Now())
	return s.next.Lookup(ctx, handle)
}
