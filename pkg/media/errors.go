package media

import "errors"

var (
	// ErrIOFailure is returned when a container cannot be opened or read.
	// It is fatal for the playback session.
	ErrIOFailure = errors.New("media: i/o failure")

	// ErrUnsupportedFormat is returned when a decoded frame is not 8-bit
	// 4:2:0 planar. It aborts the decode cycle and is never retried.
	ErrUnsupportedFormat = errors.New("media: unsupported pixel format")

	// ErrUnsupportedCodec is returned when a container's video stream uses a
	// codec the selected backend cannot handle.
	ErrUnsupportedCodec = errors.New("media: unsupported codec")

	// ErrNoVideoStream is returned when a container has no video stream.
	ErrNoVideoStream = errors.New("media: no video stream")
)

// Accepted pixel format names. yuvj420p is yuv420p with full-range levels;
// both are equivalent for plane extraction.
const (
	PixelFormatYUV420P  = "yuv420p"
	PixelFormatYUVJ420P = "yuvj420p"
)

// IsSupportedPixelFormat reports whether name is an accepted 8-bit 4:2:0
// planar layout.
func IsSupportedPixelFormat(name string) bool {
	return name == PixelFormatYUV420P || name == PixelFormatYUVJ420P
}
