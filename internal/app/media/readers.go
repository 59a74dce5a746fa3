package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const (
	opusFrameDuration = 20 * time.Millisecond
	opusClockRate     = 48000
)

// opusSilence is a single 20ms Opus frame of digital silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// silenceReader produces Opus silence forever.
type silenceReader struct{}

func (silenceReader) NextSample() (pionmedia.Sample, error) {
	return pionmedia.Sample{Data: opusSilence, Duration: opusFrameDuration}, nil
}

func (silenceReader) Close() error { return nil }

// oggReader plays an Ogg/Opus file, restarting at the end.
type oggReader struct {
	path        string
	file        *os.File
	ogg         *oggreader.OggReader
	lastGranule uint64
}

func openOgg(path string) (*oggReader, error) {
	r := &oggReader{path: path}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *oggReader) open() error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("parse ogg %s: %w", r.path, err)
	}
	r.file, r.ogg, r.lastGranule = f, ogg, 0
	return nil
}

func (r *oggReader) NextSample() (pionmedia.Sample, error) {
	page, header, err := r.ogg.ParseNextPage()
	if errors.Is(err, io.EOF) {
		_ = r.file.Close()
		if err := r.open(); err != nil {
			return pionmedia.Sample{}, err
		}
		page, header, err = r.ogg.ParseNextPage()
	}
	if err != nil {
		return pionmedia.Sample{}, err
	}
	var samples uint64
	if header.GranulePosition > r.lastGranule {
		samples = header.GranulePosition - r.lastGranule
	}
	r.lastGranule = header.GranulePosition
	d := time.Duration(samples) * time.Second / opusClockRate
	return pionmedia.Sample{Data: page, Duration: d}, nil
}

func (r *oggReader) Close() error { return r.file.Close() }

// ivfReader plays an IVF file, restarting at the end.
type ivfReader struct {
	path     string
	file     *os.File
	ivf      *ivfreader.IVFReader
	mimeType string
	frame    time.Duration
}

func openIVF(path string) (*ivfReader, error) {
	r := &ivfReader{path: path}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ivfReader) open() error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	ivf, header, err := ivfreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("parse ivf %s: %w", r.path, err)
	}
	mime, err := mimeForFourCC(header.FourCC)
	if err != nil {
		_ = f.Close()
		return err
	}
	if header.TimebaseDenominator == 0 {
		_ = f.Close()
		return fmt.Errorf("ivf %s: zero timebase", r.path)
	}
	r.file, r.ivf, r.mimeType = f, ivf, mime
	r.frame = time.Duration(header.TimebaseNumerator) * time.Second / time.Duration(header.TimebaseDenominator)
	return nil
}

func (r *ivfReader) NextSample() (pionmedia.Sample, error) {
	frame, _, err := r.ivf.ParseNextFrame()
	if errors.Is(err, io.EOF) {
		_ = r.file.Close()
		if err := r.open(); err != nil {
			return pionmedia.Sample{}, err
		}
		frame, _, err = r.ivf.ParseNextFrame()
	}
	if err != nil {
		return pionmedia.Sample{}, err
	}
	return pionmedia.Sample{Data: frame, Duration: r.frame}, nil
}

func (r *ivfReader) Close() error { return r.file.Close() }

func mimeForFourCC(fourCC string) (string, error) {
	switch fourCC {
	case "VP80":
		return webrtc.MimeTypeVP8, nil
	case "VP90":
		return webrtc.MimeTypeVP9, nil
	case "AV01":
		return webrtc.MimeTypeAV1, nil
	}
	return "", fmt.Errorf("unsupported ivf codec %q", fourCC)
}
