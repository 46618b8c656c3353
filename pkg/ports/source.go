// Package ports defines the interfaces between the playback core and its
// collaborators: decode libraries, renderers, clocks, logging and storage.
package ports

import (
	"github.com/user/framepace/pkg/media"
)

// RawPlane is one component buffer as handed out by a decode library.
// Rows are Stride bytes apart; only the first Width bytes of each row are
// picture data.
type RawPlane struct {
	Data   []byte
	Stride int // bytes between the starts of consecutive rows
	Width  int // logical row width in pixels
	Height int
}

// RawFrame is a decoded picture before padding removal.
type RawFrame struct {
	PixelFormat string  // library pixel format name, e.g. "yuv420p"
	PTS         float64 // presentation time in seconds
	Planes      []RawPlane
}

// StreamInfo describes the selected video stream.
type StreamInfo struct {
	// Duration in TimeBase units; 0 when the stream does not report one.
	Duration int64
	TimeBase media.Rational
	// ContainerDuration is the overall container duration in
	// ContainerTimeBase units (microseconds for libav); 0 when unknown.
	ContainerDuration int64
	ContainerTimeBase int64
	Width             int
	Height            int
	Codec             string
}

// SourceOptions tunes how a MediaSource decodes.
type SourceOptions struct {
	// FrameThreads asks the library to decode independent frames on
	// separate threads instead of slicing a single frame.
	FrameThreads bool
}

// MediaSource abstracts a demux/decode library bound to the first video
// stream of an open container. It is used from one goroutine at a time.
type MediaSource interface {
	// Info returns metadata of the selected video stream.
	Info() StreamInfo

	// NextFrame decodes and returns the next picture.
	// It returns io.EOF when the stream is exhausted.
	// The returned buffers are owned by the caller.
	NextFrame() (*RawFrame, error)

	// Seek positions the stream at the nearest keyframe at or before ts,
	// expressed in the stream's time base. Out-of-range targets are clamped
	// by the library.
	Seek(ts int64) error

	// Close releases the container and decoder.
	Close() error
}

// SourceOpener opens containers by path.
type SourceOpener interface {
	Open(path string, opts SourceOptions) (MediaSource, error)
}

// SourceOpenerFunc is a function adapter for SourceOpener.
type SourceOpenerFunc func(path string, opts SourceOptions) (MediaSource, error)

// Open implements SourceOpener.
func (f SourceOpenerFunc) Open(path string, opts SourceOptions) (MediaSource, error) {
	return f(path, opts)
}
