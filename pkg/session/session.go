// Package session wires one playback session: a decoder, a pacer and a
// renderer running on a single event loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/framepace/pkg/decoder"
	"github.com/user/framepace/pkg/eventloop"
	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/pacer"
	"github.com/user/framepace/pkg/ports"
)

// Config contains the per-session playback settings.
type Config struct {
	Path string

	// StartAt seeks to this presentation time, in seconds, before playing.
	StartAt float64

	// StartPaused opens the session paused. Combined with StartAt the
	// seeked frame is still rendered once.
	StartPaused bool

	// Lookahead is the seek re-basing budget. Zero means pacer.DefaultLookahead.
	Lookahead time.Duration
}

// Result summarizes a finished session.
type Result struct {
	Stats    pacer.Stats
	Duration int64 // stream duration in time-base units
	TimeBase media.Rational
	Elapsed  time.Duration
	Ended    bool // reached end of stream
}

// Session is a single playback of one file. It is not reusable: re-opening
// a file means creating a new Session.
type Session struct {
	config   Config
	renderer ports.Renderer
	observer ports.PlaybackObserver
	clock    ports.Clock
	logger   ports.Logger

	decoder *decoder.Decoder
	worker  *decodeWorker
	loop    *eventloop.Loop
	pacer   *pacer.Pacer

	ended   bool
	runOnce sync.Once
}

// Option customizes a Session.
type Option func(*options)

type options struct {
	clock    ports.Clock
	sched    ports.Scheduler
	observer ports.PlaybackObserver
}

// WithClock replaces the monotonic clock and timer source.
func WithClock(clock ports.Clock, sched ports.Scheduler) Option {
	return func(o *options) {
		o.clock = clock
		o.sched = sched
	}
}

// WithObserver registers a presentation observer. Its callbacks run on the
// session's event loop and must not block.
func WithObserver(observer ports.PlaybackObserver) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// Open opens the file named by config.Path and binds the session
// collaborators. Open errors wrap media.ErrIOFailure.
func Open(config Config, opener ports.SourceOpener, renderer ports.Renderer, logger ports.Logger, opts ...Option) (*Session, error) {
	o := options{clock: ports.SystemClock{}, sched: ports.SystemScheduler{}}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.WithComponent("session")
	log.Info("Opening %s", config.Path)

	dec, err := decoder.Open(opener, config.Path, logger)
	if err != nil {
		log.Error("Failed to open %s: %s", config.Path, err)
		return nil, err
	}

	s := &Session{
		config:   config,
		renderer: renderer,
		observer: o.observer,
		clock:    o.clock,
		logger:   log,
		decoder:  dec,
		loop:     eventloop.New(),
	}
	s.worker = newDecodeWorker(dec)
	s.pacer = pacer.New(pacer.Options{
		Clock:     o.clock,
		Scheduler: s.loop.Scheduler(o.sched),
		Lookahead: config.Lookahead,
		TimeBase:  dec.TimeBase(),
		Observer:  s,
		Logger:    logger,
	})
	s.pacer.BindDecoder(s.worker)
	s.pacer.BindRenderer(renderer)

	dec.Bind(&loopEvents{loop: s.loop, target: s.pacer})
	renderer.Bind(&loopAcks{loop: s.loop, target: s.pacer})

	return s, nil
}

// Info returns the stream metadata.
func (s *Session) Info() ports.StreamInfo {
	return s.decoder.Info()
}

// Run plays the file until end of stream, a fatal decode error, or ctx
// cancellation. It returns nil at end of stream and on cancellation.
func (s *Session) Run(ctx context.Context) (Result, error) {
	var (
		result Result
		err    error
	)
	ran := false
	s.runOnce.Do(func() {
		ran = true
		result, err = s.run(ctx)
	})
	if !ran {
		return Result{}, errors.New("session: already run")
	}
	return result, err
}

func (s *Session) run(ctx context.Context) (Result, error) {
	started := s.clock.Now()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		s.worker.run(s.loop.Done())
	}()

	s.loop.Post(func() {
		if s.config.StartPaused {
			s.pacer.Pause()
		}
		if s.config.StartAt > 0 {
			s.pacer.Seek(media.ToTimeBase(s.config.StartAt, s.decoder.TimeBase()))
		}
		s.pacer.Start()
	})

	err := s.loop.Run(ctx)

	// The loop no longer runs, so the pacer may be touched from here.
	s.pacer.Stop()
	<-workerDone
	if cerr := s.decoder.Close(); cerr != nil {
		s.logger.Warn("Failed to close decoder: %s", cerr)
	}

	result := Result{
		Stats:    s.pacer.Stats(),
		Duration: s.decoder.Duration(),
		TimeBase: s.decoder.TimeBase(),
		Elapsed:  s.clock.Now().Sub(started),
		Ended:    s.ended,
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Info("Playback interrupted")
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("playback: %w", err)
	}

	s.logger.Info("Playback finished: %d presented, %d skipped, %d late",
		result.Stats.Presented, result.Stats.Skipped, result.Stats.Late)
	return result, nil
}

// Pause pauses playback. It is safe to call from any goroutine and reports
// false once the session has ended.
func (s *Session) Pause() bool {
	return s.loop.Post(s.pacer.Pause)
}

// Resume resumes playback.
func (s *Session) Resume() bool {
	return s.loop.Post(s.pacer.Resume)
}

// Seek moves playback to sec seconds.
func (s *Session) Seek(sec float64) bool {
	ts := media.ToTimeBase(sec, s.decoder.TimeBase())
	return s.loop.Post(func() { s.pacer.Seek(ts) })
}

// Presented implements ports.PlaybackObserver.
func (s *Session) Presented(pts float64, position int64) {
	if s.observer != nil {
		s.observer.Presented(pts, position)
	}
}

// Finished implements ports.PlaybackObserver; it ends the event loop.
func (s *Session) Finished(err error) {
	s.ended = err == nil
	if s.observer != nil {
		s.observer.Finished(err)
	}
	s.loop.Stop(err)
}

// decodeWorker runs decode requests off the event loop so that the loop
// keeps serving timers and control input while a frame decodes.
type decodeWorker struct {
	decoder  *decoder.Decoder
	requests chan struct{}
}

func newDecodeWorker(dec *decoder.Decoder) *decodeWorker {
	return &decodeWorker{
		decoder: dec,
		// The pacer has at most one request outstanding.
		requests: make(chan struct{}, 1),
	}
}

func (w *decodeWorker) RequestDecode() {
	select {
	case w.requests <- struct{}{}:
	default:
	}
}

func (w *decodeWorker) Seek(ts int64) {
	w.decoder.Seek(ts)
}

func (w *decodeWorker) run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-w.requests:
			w.decoder.RequestDecode()
		}
	}
}

// loopEvents forwards decoder events onto the loop.
type loopEvents struct {
	loop   *eventloop.Loop
	target ports.DecodeEvents
}

func (e *loopEvents) Decoded(frame media.Frame, seeked bool) {
	e.loop.Post(func() { e.target.Decoded(frame, seeked) })
}

func (e *loopEvents) Finished() {
	e.loop.Post(e.target.Finished)
}

func (e *loopEvents) Failed(err error) {
	e.loop.Post(func() { e.target.Failed(err) })
}

// loopAcks forwards renderer acknowledgements onto the loop.
type loopAcks struct {
	loop   *eventloop.Loop
	target ports.RenderAcks
}

func (a *loopAcks) Prepared() {
	a.loop.Post(a.target.Prepared)
}

func (a *loopAcks) Rendered() {
	a.loop.Post(a.target.Rendered)
}

var (
	_ ports.PlaybackObserver = (*Session)(nil)
	_ ports.DecodeRequester  = (*decodeWorker)(nil)
)
