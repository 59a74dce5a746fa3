package media

import (
	"context"
	"errors"
	"io"
	"time"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
)

// SampleReader yields encoded media samples with their durations.
type SampleReader interface {
	NextSample() (pionmedia.Sample, error)
	Close() error
}

// pump reads samples and writes them to the track at their natural pace.
// Muted tracks keep consuming samples so timing stays continuous.
func pump(ctx context.Context, t *Track, r SampleReader, logger *zerolog.Logger) {
	defer func() {
		if err := r.Close(); err != nil {
			logger.Warn().Err(err).Msg("sample reader close")
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("pump ctx done")
			return
		default:
		}
		sample, err := r.NextSample()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info().Msg("source exhausted")
			} else {
				logger.Error().Err(err).Msg("read sample, stopping")
			}
			return
		}

		switch t.GetState() {
		case TrackStateStopped:
			return
		case TrackStateMuted:
		case TrackStateOk:
			if err := t.local.WriteSample(sample); err != nil {
				logger.Warn().Err(err).Msg("write sample")
			}
		}

		next = next.Add(sample.Duration)
		timer.Reset(time.Until(next))
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
