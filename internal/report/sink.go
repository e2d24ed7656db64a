package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/txconflict/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Sink delivers a finished report somewhere.
type Sink interface {
	Name() string
	Publish(ctx context.Context, report Report) error
}

// JSONFileSink writes the report to the local filesystem.
type JSONFileSink struct {
	Path string
}

func (s JSONFileSink) Name() string {
	return "file"
}

func (s JSONFileSink) Publish(ctx context.Context, report Report) error {
	path := s.Path
	if path == "" {
		path = DEFAULT_REPORT_PATH
	}
	if err := WriteFile(path, report); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("Report written")
	return nil
}

// Publish runs every sink concurrently. A failing sink does not stop the others and all failures are
// returned, in sink order.
func Publish(ctx context.Context, report Report, sinks ...Sink) error {
	errs := make([]error, len(sinks))

	g := new(errgroup.Group)
	for i, sink := range sinks {
		g.Go(func() error {
			start := time.Now()
			err := sink.Publish(ctx, report)
			metrics.ReportPublishDuration.WithLabelValues(sink.Name()).Observe(time.Since(start).Seconds())
			if err != nil {
				log.Error().Err(err).Str("sink", sink.Name()).Msg("Failed to publish report")
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
			}
			return errs[i]
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Join(errs...)
	}
	return nil
}
