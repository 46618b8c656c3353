// Package astiavsource implements ports.MediaSource on top of libav through
// go-astiav. It demuxes the first video stream of a container and decodes it
// in software.
package astiavsource

import (
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"

	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/ports"
)

// microseconds, AV_TIME_BASE
const containerTimeBase = 1000000

// Opener opens containers with libav.
type Opener struct {
	threads int
	logger  ports.Logger
}

// NewOpener creates an Opener. threads is the decoder thread count; 0 lets
// libav decide.
func NewOpener(threads int, logger ports.Logger) *Opener {
	return &Opener{threads: threads, logger: logger.WithComponent("libav")}
}

// SetLogLevel silences or enables libav's own stderr logging.
func SetLogLevel(level ports.LogLevel) {
	switch level {
	case ports.LevelDebug:
		astiav.SetLogLevel(astiav.LogLevelVerbose)
	case ports.LevelInfo, ports.LevelWarn:
		astiav.SetLogLevel(astiav.LogLevelWarning)
	case ports.LevelError:
		astiav.SetLogLevel(astiav.LogLevelError)
	default:
		astiav.SetLogLevel(astiav.LogLevelQuiet)
	}
}

// Open implements ports.SourceOpener.
func (o *Opener) Open(path string, opts ports.SourceOptions) (ports.MediaSource, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, fmt.Errorf("%w: alloc format context", media.ErrIOFailure)
	}
	s := &Source{fc: fc, logger: o.logger}

	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("%w: open input: %v", media.ErrIOFailure, err)
	}
	s.inputOpen = true

	if err := fc.FindStreamInfo(nil); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: find stream info: %v", media.ErrIOFailure, err)
	}

	for _, st := range fc.Streams() {
		if st.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			s.stream = st
			break
		}
	}
	if s.stream == nil {
		s.Close()
		return nil, media.ErrNoVideoStream
	}

	par := s.stream.CodecParameters()
	codec := astiav.FindDecoder(par.CodecID())
	if codec == nil {
		s.Close()
		return nil, fmt.Errorf("%w: %s", media.ErrUnsupportedCodec, par.CodecID().Name())
	}
	s.cc = astiav.AllocCodecContext(codec)
	if s.cc == nil {
		s.Close()
		return nil, fmt.Errorf("alloc codec context for %s", codec.Name())
	}
	if err := par.ToCodecContext(s.cc); err != nil {
		s.Close()
		return nil, fmt.Errorf("codec parameters: %w", err)
	}
	if o.threads > 0 {
		s.cc.SetThreadCount(o.threads)
	}
	if opts.FrameThreads {
		s.cc.SetThreadType(astiav.ThreadTypeFrame)
	}
	if err := s.cc.Open(codec, nil); err != nil {
		s.Close()
		return nil, fmt.Errorf("open codec %s: %w", codec.Name(), err)
	}

	s.pkt = astiav.AllocPacket()
	s.frame = astiav.AllocFrame()

	tb := s.stream.TimeBase()
	s.info = ports.StreamInfo{
		Duration:          s.stream.Duration(),
		TimeBase:          media.NewRational(tb.Num(), tb.Den()),
		ContainerDuration: fc.Duration(),
		ContainerTimeBase: containerTimeBase,
		Width:             par.Width(),
		Height:            par.Height(),
		Codec:             codec.Name(),
	}
	if s.info.Duration < 0 {
		s.info.Duration = 0
	}
	if s.info.ContainerDuration < 0 {
		s.info.ContainerDuration = 0
	}

	o.logger.Debug("Opened %s: %dx%d %s", path, s.info.Width, s.info.Height, s.info.Codec)
	return s, nil
}

// Source is a libav-backed ports.MediaSource.
type Source struct {
	fc        *astiav.FormatContext
	inputOpen bool
	stream    *astiav.Stream
	cc        *astiav.CodecContext
	pkt       *astiav.Packet
	frame     *astiav.Frame
	info      ports.StreamInfo
	draining  bool
	lastPTS   float64
	logger    ports.Logger
}

// Info implements ports.MediaSource.
func (s *Source) Info() ports.StreamInfo {
	return s.info
}

// NextFrame implements ports.MediaSource.
func (s *Source) NextFrame() (*ports.RawFrame, error) {
	for {
		err := s.cc.ReceiveFrame(s.frame)
		if err == nil {
			raw, err := s.copyFrame()
			s.frame.Unref()
			return raw, err
		}
		if errors.Is(err, astiav.ErrEof) {
			return nil, io.EOF
		}
		if !errors.Is(err, astiav.ErrEagain) {
			return nil, fmt.Errorf("%w: receive frame: %v", media.ErrIOFailure, err)
		}
		if s.draining {
			return nil, io.EOF
		}
		if err := s.feed(); err != nil {
			return nil, err
		}
	}
}

// feed sends the next packet of the video stream to the decoder, or enters
// draining mode at end of input.
func (s *Source) feed() error {
	for {
		if err := s.fc.ReadFrame(s.pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				s.draining = true
				if err := s.cc.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
					return fmt.Errorf("%w: flush decoder: %v", media.ErrIOFailure, err)
				}
				return nil
			}
			return fmt.Errorf("%w: read packet: %v", media.ErrIOFailure, err)
		}

		if s.pkt.StreamIndex() != s.stream.Index() {
			s.pkt.Unref()
			continue
		}
		err := s.cc.SendPacket(s.pkt)
		s.pkt.Unref()
		if err != nil && !errors.Is(err, astiav.ErrEagain) {
			return fmt.Errorf("%w: send packet: %v", media.ErrIOFailure, err)
		}
		return nil
	}
}

func (s *Source) copyFrame() (*ports.RawFrame, error) {
	pixFmt := s.frame.PixelFormat().String()
	raw := &ports.RawFrame{PixelFormat: pixFmt, PTS: s.framePTS()}
	if !media.IsSupportedPixelFormat(pixFmt) {
		// The decoder rejects the format; planes are not needed.
		return raw, nil
	}

	layout, size := layout420(s.frame.Width(), s.frame.Height(), copyAlign)
	buf := make([]byte, size)
	if _, err := s.frame.ImageCopyToBuffer(buf, copyAlign); err != nil {
		return nil, fmt.Errorf("%w: copy picture: %v", media.ErrIOFailure, err)
	}
	planes, err := splitPlanes(buf, layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrIOFailure, err)
	}
	raw.Planes = planes
	return raw, nil
}

// framePTS returns the frame timestamp in seconds. Frames without one reuse
// the previous timestamp.
func (s *Source) framePTS() float64 {
	pts := s.frame.Pts()
	if pts == astiav.NoPtsValue {
		return s.lastPTS
	}
	s.lastPTS = media.FromTimeBase(pts, s.info.TimeBase)
	return s.lastPTS
}

// Seek implements ports.MediaSource.
func (s *Source) Seek(ts int64) error {
	if err := s.fc.SeekFrame(s.stream.Index(), ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("%w: seek to %d: %v", media.ErrIOFailure, ts, err)
	}
	s.cc.FlushBuffers()
	s.draining = false
	return nil
}

// Close implements ports.MediaSource.
func (s *Source) Close() error {
	if s.frame != nil {
		s.frame.Free()
		s.frame = nil
	}
	if s.pkt != nil {
		s.pkt.Free()
		s.pkt = nil
	}
	if s.cc != nil {
		s.cc.Free()
		s.cc = nil
	}
	if s.fc != nil {
		if s.inputOpen {
			s.fc.CloseInput()
		}
		s.fc.Free()
		s.fc = nil
	}
	return nil
}

var (
	_ ports.SourceOpener = (*Opener)(nil)
	_ ports.MediaSource  = (*Source)(nil)
)
