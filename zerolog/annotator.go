package zerolog

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
)

// Ensure LoggingAnnotator implements flagup.Annotator.
var _ flagup.Annotator = (*LoggingAnnotator)(nil)

// LoggingAnnotator wraps an Annotator with per-pass logging.
type LoggingAnnotator struct {
	next flagup.Annotator
	log  zerolog.Logger
}

// NewLoggingAnnotator creates a new LoggingAnnotator.
func NewLoggingAnnotator(next flagup.Annotator, log zerolog.Logger) *LoggingAnnotator {
	return &LoggingAnnotator{next: next, log: log}
}

// Annotate logs the pass summary and delegates to the wrapped annotator.
func (a *LoggingAnnotator) Annotate(ctx context.Context, html string) (out string, report *flagup.ScanReport, err error) {
	defer func(begin time.Time) {
		ev := a.log.Info().
			Dur("duration", time.Since(begin)).
			Err(err)
		if report != nil {
			ev = ev.
				Int("containers", report.Containers).
				Int("annotated", report.Annotated).
				Int("skipped", report.Skipped).
				Int("failed", report.Failed)
		}
		ev.Msg("annotate")
	}(time.Now())
	return a.next.Annotate(ctx, html)
}
