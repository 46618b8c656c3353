// Package ffmpegsource implements ports.MediaSource by running ffmpeg as an
// external process and reading raw 4:2:0 pictures from its stdout.
//
// Timestamps and keyframes come from an MP4 index, so only MP4/MOV
// containers are supported. Seeks restart ffmpeg at the keyframe at or
// before the target.
package ffmpegsource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"

	"github.com/user/framepace/pkg/adapters/mp4index"
	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/ports"
)

// Opener starts ffmpeg-backed sources.
type Opener struct {
	ffmpegPath  string
	ffprobePath string
	logger      ports.Logger
}

// NewOpener resolves the ffmpeg and ffprobe executables. Empty paths are
// searched for.
func NewOpener(ffmpegPath, ffprobePath string, logger ports.Logger) (*Opener, error) {
	ffmpeg, err := FindTool("ffmpeg", ffmpegPath)
	if err != nil {
		return nil, err
	}
	ffprobe, err := FindTool("ffprobe", ffprobePath)
	if err != nil {
		return nil, err
	}
	return &Opener{ffmpegPath: ffmpeg, ffprobePath: ffprobe, logger: logger.WithComponent("ffmpeg")}, nil
}

// Open implements ports.SourceOpener.
func (o *Opener) Open(path string, opts ports.SourceOptions) (ports.MediaSource, error) {
	ix, err := mp4index.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: index %s: %v", media.ErrIOFailure, path, err)
	}
	if len(ix.Samples) == 0 {
		return nil, media.ErrNoVideoStream
	}
	pr, err := probe(o.ffprobePath, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrIOFailure, err)
	}

	s := &Source{
		ffmpegPath:   o.ffmpegPath,
		path:         path,
		index:        ix,
		pts:          ix.PresentationTimes(),
		probe:        pr,
		frameThreads: opts.FrameThreads,
		logger:       o.logger,
	}
	s.origin = media.FromTimeBase(s.pts[0], ix.TimeBase())
	if pr.HasStartTime {
		s.origin = pr.StartTime
	}

	o.logger.Debug("Opened %s: %dx%d %s", path, pr.Width, pr.Height, pr.PixelFormat)
	return s, nil
}

// Source reads frames from an ffmpeg child process.
type Source struct {
	ffmpegPath   string
	path         string
	index        *mp4index.Index
	pts          []int64 // display order
	probe        probeResult
	frameThreads bool

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	reader *frameReader

	origin   float64 // container start time, the zero of ffmpeg's -ss
	start    int     // index into pts of the first frame ffmpeg emits
	startSec float64 // -ss argument for the next launch
	next     int     // frames read since launch

	logger ports.Logger
}

// Info implements ports.MediaSource.
func (s *Source) Info() ports.StreamInfo {
	return ports.StreamInfo{
		Duration: s.index.Duration,
		TimeBase: s.index.TimeBase(),
		Width:    s.probe.Width,
		Height:   s.probe.Height,
		Codec:    string(s.index.Codec),
	}
}

// NextFrame implements ports.MediaSource.
func (s *Source) NextFrame() (*ports.RawFrame, error) {
	pts := s.timestampAt(s.next)
	if !media.IsSupportedPixelFormat(s.probe.PixelFormat) {
		s.next++
		return &ports.RawFrame{PixelFormat: s.probe.PixelFormat, PTS: pts}, nil
	}

	if s.cmd == nil {
		if err := s.launch(); err != nil {
			return nil, err
		}
	}

	raw, err := s.reader.readFrame(pts)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return nil, werr
		}
		return nil, io.EOF
	}
	if err != nil {
		s.stop()
		return nil, fmt.Errorf("%w: %v\nstderr: %s", media.ErrIOFailure, err, s.stderr.String())
	}
	s.next++
	return raw, nil
}

func (s *Source) launch() error {
	s.stderr.Reset()
	cmd := exec.Command(s.ffmpegPath, decodeArgs(s.path, s.startSec, s.probe.PixelFormat, s.frameThreads)...)
	cmd.Stderr = &s.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", media.ErrIOFailure, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %v", media.ErrIOFailure, err)
	}
	s.logger.Debug("Started ffmpeg at %.3fs", s.startSec)

	s.cmd = cmd
	s.stdout = stdout
	s.reader = newFrameReader(stdout, s.probe.PixelFormat, s.probe.Width, s.probe.Height)
	s.next = 0
	return nil
}

// wait reaps a process that reached end of output.
func (s *Source) wait() error {
	if s.cmd == nil {
		return nil
	}
	err := s.cmd.Wait()
	s.cmd, s.stdout, s.reader = nil, nil, nil
	if err != nil {
		return fmt.Errorf("%w: ffmpeg exited: %v\nstderr: %s", media.ErrIOFailure, err, s.stderr.String())
	}
	return nil
}

// stop kills a running process.
func (s *Source) stop() {
	if s.cmd == nil {
		return
	}
	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
	s.cmd, s.stdout, s.reader = nil, nil, nil
}

// Seek implements ports.MediaSource. The next NextFrame restarts ffmpeg
// at the keyframe at or before ts.
func (s *Source) Seek(ts int64) error {
	s.stop()
	kf := s.index.KeyframeAtOrBefore(ts)
	s.start = startIndex(s.pts, kf)
	s.startSec = media.FromTimeBase(kf, s.index.TimeBase()) - s.origin
	if s.start == 0 || s.startSec < 0 {
		s.startSec = 0
	}
	s.next = 0
	return nil
}

// Close implements ports.MediaSource.
func (s *Source) Close() error {
	s.stop()
	return nil
}

// timestampAt returns the presentation time in seconds of the i-th frame
// after the current start. Frames beyond the index are extrapolated.
func (s *Source) timestampAt(i int) float64 {
	tb := s.index.TimeBase()
	n := s.start + i
	if n < len(s.pts) {
		return media.FromTimeBase(s.pts[n], tb)
	}
	last := len(s.pts) - 1
	step := int64(0)
	if last > 0 {
		step = (s.pts[last] - s.pts[0]) / int64(last)
	}
	return media.FromTimeBase(s.pts[last]+int64(n-last)*step, tb)
}

// startIndex returns the position of the first timestamp >= ts.
func startIndex(pts []int64, ts int64) int {
	i := sort.Search(len(pts), func(i int) bool { return pts[i] >= ts })
	if i == len(pts) && i > 0 {
		i--
	}
	return i
}

func decodeArgs(path string, startSec float64, pixFmt string, frameThreads bool) []string {
	args := []string{"-v", "error", "-nostdin"}
	if frameThreads {
		args = append(args, "-threads", "0")
	} else {
		args = append(args, "-threads", "1")
	}
	if startSec > 0 {
		args = append(args, "-ss", strconv.FormatFloat(startSec, 'f', 6, 64))
	}
	return append(args,
		"-i", path,
		"-map", "0:v:0",
		"-vsync", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", pixFmt,
		"pipe:1",
	)
}

var (
	_ ports.SourceOpener = (*Opener)(nil)
	_ ports.MediaSource  = (*Source)(nil)
)
