package mocks

import (
	"io"
	"sync"

	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/ports"
)

// MediaSource is a mock implementation of ports.MediaSource that serves a
// fixed list of frames.
type MediaSource struct {
	mu  sync.Mutex
	pos int

	InfoValue ports.StreamInfo
	Frames    []*ports.RawFrame

	NextFrameFunc func() (*ports.RawFrame, error)
	SeekFunc      func(ts int64) error
	CloseFunc     func() error

	// Recorded calls for verification
	NextFrameCalls int
	SeekCalls      []int64
	CloseCalls     int
}

func (m *MediaSource) Info() ports.StreamInfo {
	return m.InfoValue
}

func (m *MediaSource) NextFrame() (*ports.RawFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.NextFrameCalls++
	if m.NextFrameFunc != nil {
		return m.NextFrameFunc()
	}
	if m.pos >= len(m.Frames) {
		return nil, io.EOF
	}
	f := m.Frames[m.pos]
	m.pos++
	return f, nil
}

// Seek repositions to the last frame whose timestamp is at or before ts,
// imitating a backward keyframe seek where every frame is a keyframe.
func (m *MediaSource) Seek(ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SeekCalls = append(m.SeekCalls, ts)
	if m.SeekFunc != nil {
		return m.SeekFunc(ts)
	}

	// Tolerate float error from the time base conversion.
	target := media.FromTimeBase(ts, m.InfoValue.TimeBase) + 1e-9
	m.pos = 0
	for i, f := range m.Frames {
		if f.PTS <= target {
			m.pos = i
		}
	}
	return nil
}

func (m *MediaSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ ports.MediaSource = (*MediaSource)(nil)

// SourceOpener is a mock implementation of ports.SourceOpener.
type SourceOpener struct {
	Source   ports.MediaSource
	Err      error
	OpenFunc func(path string, opts ports.SourceOptions) (ports.MediaSource, error)

	OpenCalls []OpenCall
}

// OpenCall records a call to Open.
type OpenCall struct {
	Path string
	Opts ports.SourceOptions
}

func (m *SourceOpener) Open(path string, opts ports.SourceOptions) (ports.MediaSource, error) {
	m.OpenCalls = append(m.OpenCalls, OpenCall{Path: path, Opts: opts})
	if m.OpenFunc != nil {
		return m.OpenFunc(path, opts)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Source, nil
}

var _ ports.SourceOpener = (*SourceOpener)(nil)

// NewRawFrame builds a yuv420p frame of width x height whose plane rows are
// stride-aligned. Luma bytes hold (x+y)%256, chroma planes hold 128, and
// padding bytes hold 0xEE so that leaks are easy to spot.
func NewRawFrame(pts float64, width, height, align int) *ports.RawFrame {
	return &ports.RawFrame{
		PixelFormat: media.PixelFormatYUV420P,
		PTS:         pts,
		Planes: []ports.RawPlane{
			newRawPlane(width, height, align, func(x, y int) byte { return byte((x + y) % 256) }),
			newRawPlane((width+1)/2, (height+1)/2, align, func(x, y int) byte { return 128 }),
			newRawPlane((width+1)/2, (height+1)/2, align, func(x, y int) byte { return 128 }),
		},
	}
}

func newRawPlane(width, height, align int, value func(x, y int) byte) ports.RawPlane {
	stride := width
	if align > 1 {
		stride = (width + align - 1) / align * align
	}
	data := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		for x := 0; x < stride; x++ {
			if x < width {
				data[y*stride+x] = value(x, y)
			} else {
				data[y*stride+x] = 0xEE
			}
		}
	}
	return ports.RawPlane{Data: data, Stride: stride, Width: width, Height: height}
}
