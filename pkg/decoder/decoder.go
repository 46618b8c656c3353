// Package decoder turns a video container into a sequence of timestamped,
// padding-free 4:2:0 frames.
//
// A Decoder is pull driven: each RequestDecode produces exactly one outbound
// event (Decoded, Finished or Failed) on the bound ports.DecodeEvents. Seeks
// are queued in a single-slot register and applied lazily at the top of the
// next RequestDecode; a newer seek overwrites an unconsumed older one.
package decoder

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/ports"
)

// Decoder wraps a ports.MediaSource bound to the first video stream of a file.
type Decoder struct {
	mu     sync.Mutex // serializes decode against close
	source ports.MediaSource
	closed atomic.Bool

	pendingSeek atomic.Pointer[int64]

	events   ports.DecodeEvents
	duration int64
	timeBase media.Rational
	info     ports.StreamInfo
	logger   ports.Logger
}

// Open opens the container at path through opener, requesting frame-level
// decode parallelism. Open failures are reported as media.ErrIOFailure.
func Open(opener ports.SourceOpener, path string, logger ports.Logger) (*Decoder, error) {
	log := logger.WithComponent("decoder")

	src, err := opener.Open(path, ports.SourceOptions{FrameThreads: true})
	if err != nil {
		if errors.Is(err, media.ErrIOFailure) {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return nil, fmt.Errorf("open %s: %w: %v", path, media.ErrIOFailure, err)
	}

	info := src.Info()
	d := &Decoder{
		source:   src,
		info:     info,
		duration: StreamDuration(info),
		timeBase: info.TimeBase,
		logger:   log,
	}

	log.Debug("Opened %s: duration %d, time base %s", path, d.duration, d.timeBase)
	return d, nil
}

// StreamDuration returns the stream duration in time-base units. When the
// stream reports none it is derived from the container duration, rounded to
// the nearest integer.
func StreamDuration(info ports.StreamInfo) int64 {
	if info.Duration > 0 {
		return info.Duration
	}
	if info.ContainerDuration <= 0 || info.ContainerTimeBase <= 0 || info.TimeBase.IsZero() {
		return 0
	}
	seconds := float64(info.ContainerDuration) / float64(info.ContainerTimeBase)
	return int64(seconds/info.TimeBase.Float64() + 0.5)
}

// Bind registers the receiver of decode events. It must be called before
// the first RequestDecode.
func (d *Decoder) Bind(events ports.DecodeEvents) {
	d.events = events
}

// Duration returns the stream duration in time-base units.
func (d *Decoder) Duration() int64 {
	return d.duration
}

// TimeBase returns the stream time base.
func (d *Decoder) TimeBase() media.Rational {
	return d.timeBase
}

// Info returns the stream metadata reported by the source.
func (d *Decoder) Info() ports.StreamInfo {
	return d.info
}

// Seek queues a seek to ts, in time-base units. It does not decode; the seek
// is applied by the next RequestDecode. A newer Seek replaces a pending one.
func (d *Decoder) Seek(ts int64) {
	if d.closed.Load() {
		return
	}
	d.pendingSeek.Store(&ts)
}

// RequestDecode decodes the next frame and emits exactly one event.
// It is a no-op once the decoder is closed.
func (d *Decoder) RequestDecode() {
	frame, seeked, err := d.decodeNext()
	switch {
	case errors.Is(err, errClosed):
		return
	case errors.Is(err, io.EOF):
		d.logger.Debug("End of stream")
		d.Close()
		d.emitFinished()
	case err != nil:
		d.logger.Error("Decode failed: %s", err)
		d.emitFailed(err)
	default:
		d.emitDecoded(frame, seeked)
	}
}

var errClosed = errors.New("decoder: closed")

func (d *Decoder) decodeNext() (media.Frame, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.source == nil {
		return media.Frame{}, false, errClosed
	}

	seeked := false
	if ts := d.pendingSeek.Swap(nil); ts != nil {
		d.logger.Debug("Seeking to %d", *ts)
		if err := d.source.Seek(*ts); err != nil {
			return media.Frame{}, false, fmt.Errorf("seek to %d: %w: %v", *ts, media.ErrIOFailure, err)
		}
		seeked = true
	}

	raw, err := d.source.NextFrame()
	if errors.Is(err, io.EOF) {
		return media.Frame{}, false, io.EOF
	}
	if err != nil {
		return media.Frame{}, false, fmt.Errorf("read frame: %w: %v", media.ErrIOFailure, err)
	}

	frame, err := convert(raw)
	if err != nil {
		return media.Frame{}, false, err
	}
	return frame, seeked, nil
}

// convert validates the pixel layout and strips plane padding.
func convert(raw *ports.RawFrame) (media.Frame, error) {
	if !media.IsSupportedPixelFormat(raw.PixelFormat) {
		return media.Frame{}, fmt.Errorf("%w: %q (only %s and %s are supported)",
			media.ErrUnsupportedFormat, raw.PixelFormat, media.PixelFormatYUV420P, media.PixelFormatYUVJ420P)
	}
	if len(raw.Planes) != 3 {
		return media.Frame{}, fmt.Errorf("%w: expected 3 planes, got %d", media.ErrUnsupportedFormat, len(raw.Planes))
	}

	return media.Frame{
		PTS: raw.PTS,
		Planes: media.Planes{
			Y:  StripPadding(raw.Planes[0]),
			Cb: StripPadding(raw.Planes[1]),
			Cr: StripPadding(raw.Planes[2]),
		},
	}, nil
}

// Close releases the source. It is idempotent and safe to call while a
// decode is in flight; the decode completes first.
func (d *Decoder) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.pendingSeek.Store(nil)

	d.mu.Lock()
	defer d.mu.Unlock()
	src := d.source
	d.source = nil
	if src == nil {
		return nil
	}
	return src.Close()
}

// IsClosed reports whether the decoder has released its resources.
func (d *Decoder) IsClosed() bool {
	return d.closed.Load()
}

func (d *Decoder) emitDecoded(frame media.Frame, seeked bool) {
	if d.events != nil {
		d.events.Decoded(frame, seeked)
	}
}

func (d *Decoder) emitFinished() {
	if d.events != nil {
		d.events.Finished()
	}
}

func (d *Decoder) emitFailed(err error) {
	if d.events != nil {
		d.events.Failed(err)
	}
}

var _ ports.DecodeRequester = (*Decoder)(nil)
