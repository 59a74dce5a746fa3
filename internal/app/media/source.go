// Package media feeds local tracks from capture sources and drains remote
// tracks into sinks.
package media

import (
	"context"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Config selects the capture sources. An empty AudioFile falls back to
// generated silence when Silence is set.
type Config struct {
	AudioFile string `mapstructure:"audio_file"`
	VideoFile string `mapstructure:"video_file"`
	Silence   bool   `mapstructure:"silence"`
}

// Source owns the local tracks of one call and the pumps feeding them.
type Source struct {
	tracks []*Track
	wg     sync.WaitGroup
	once   sync.Once
}

func (s *Source) Tracks() []core.LocalTrack {
	out := make([]core.LocalTrack, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

// Stop ends every track and waits for the pumps. Safe to call twice.
func (s *Source) Stop() {
	s.once.Do(func() {
		for _, t := range s.tracks {
			t.Stop()
		}
		s.wg.Wait()
		log.Info().Str("module", "media").Int("tracks", len(s.tracks)).Msg("local media stopped")
	})
}

func (s *Source) start(r SampleReader, capability webrtc.RTPCodecCapability, kind, streamID string) error {
	local, err := webrtc.NewTrackLocalStaticSample(capability, kind, streamID)
	if err != nil {
		return err
	}
	t := NewTrack(local)
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	s.tracks = append(s.tracks, t)

	logger := log.With().
		Str("module", "media").
		Str("track", t.ID()).
		Str("mime", capability.MimeType).
		Logger()
	logger.Info().Msg("starting pump")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pump(ctx, t, r, &logger)
	}()
	return nil
}

// FileProvider acquires media from files or generated silence.
type FileProvider struct {
	cfg Config
}

func NewFileProvider(cfg Config) *FileProvider {
	return &FileProvider{cfg: cfg}
}

type pendingTrack struct {
	reader     SampleReader
	capability webrtc.RTPCodecCapability
	kind       string
}

func (p *FileProvider) Acquire(ctx context.Context) (core.MediaSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.MediaAcquisitionError{Err: err}
	}

	var pending []pendingTrack
	closeAll := func() {
		for _, pt := range pending {
			_ = pt.reader.Close()
		}
	}

	switch {
	case p.cfg.AudioFile != "":
		r, err := openOgg(p.cfg.AudioFile)
		if err != nil {
			return nil, &domain.MediaAcquisitionError{Err: err}
		}
		pending = append(pending, pendingTrack{r, webrtc.RTPCodecCapability{
			MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2,
		}, "audio"})
	case p.cfg.Silence:
		pending = append(pending, pendingTrack{silenceReader{}, webrtc.RTPCodecCapability{
			MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2,
		}, "audio"})
	}

	if p.cfg.VideoFile != "" {
		r, err := openIVF(p.cfg.VideoFile)
		if err != nil {
			closeAll()
			return nil, &domain.MediaAcquisitionError{Err: err}
		}
		pending = append(pending, pendingTrack{r, webrtc.RTPCodecCapability{
			MimeType: r.mimeType, ClockRate: 90000,
		}, "video"})
	}

	if len(pending) == 0 {
		return nil, &domain.MediaAcquisitionError{Err: domain.ErrNoCaptureSource}
	}

	streamID := "meet-" + uuid.NewString()
	src := &Source{}
	for i, pt := range pending {
		if err := src.start(pt.reader, pt.capability, pt.kind, streamID); err != nil {
			for _, rest := range pending[i:] {
				_ = rest.reader.Close()
			}
			src.Stop()
			return nil, &domain.MediaAcquisitionError{Err: err}
		}
	}
	return src, nil
}
