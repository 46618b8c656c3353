// Package pacer presents decoded frames as close as possible to their
// presentation timestamps.
//
// The Pacer is a single-threaded state machine. It issues one request at a
// time (decode, prepare or render) and only issues the next after the
// acknowledgement of the previous one arrives. Every method, including the
// ports.DecodeEvents and ports.RenderAcks callbacks it implements, must be
// called from the same goroutine; pkg/session funnels them through an
// eventloop.Loop.
package pacer

import (
	"time"

	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/ports"
)

// DefaultLookahead is the time granted to prepare and render the first frame
// after a seek.
const DefaultLookahead = 30 * time.Millisecond

// Options configures a Pacer.
type Options struct {
	Clock     ports.Clock     // defaults to ports.SystemClock
	Scheduler ports.Scheduler // defaults to ports.SystemScheduler

	// Lookahead is the seek re-basing budget. Zero means DefaultLookahead.
	Lookahead time.Duration

	// TimeBase converts presentation times to seek-bar positions.
	TimeBase media.Rational

	Observer ports.PlaybackObserver // optional
	Logger   ports.Logger
}

// Pacer drives a decoder and a renderer in real time.
type Pacer struct {
	decoder  ports.DecodeRequester
	renderer ports.Renderer
	sched    ports.Scheduler
	clock    *playClock
	observer ports.PlaybackObserver
	log      ports.Logger

	timeBase    media.Rational
	lookaheadMs int64

	phase    Phase
	inFlight bool // the request for phase was issued and is unacknowledged
	paused   bool
	done     bool

	// seekPending is set from Seek until the seeked frame arrives. Decode
	// results produced before the seek was applied are discarded.
	seekPending bool
	// scrubbing renders the seeked frame once while paused.
	scrubbing bool

	frame           *media.Frame // frame being prepared or awaiting its deadline
	targetMs        int64
	lastPresentedMs int64

	timer      ports.Timer
	generation int

	stats Stats
}

// New creates an idle Pacer. Bind a decoder and a renderer before Start.
func New(opts Options) *Pacer {
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = ports.SystemScheduler{}
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}

	return &Pacer{
		sched:           opts.Scheduler,
		clock:           newPlayClock(opts.Clock),
		observer:        opts.Observer,
		log:             opts.Logger.WithComponent("pacer"),
		timeBase:        opts.TimeBase,
		lookaheadMs:     opts.Lookahead.Milliseconds(),
		lastPresentedMs: -1,
	}
}

// BindDecoder sets the decoder the pacer pulls frames from. The caller
// routes the decoder's events to the pacer.
func (p *Pacer) BindDecoder(d ports.DecodeRequester) {
	p.decoder = d
}

// BindRenderer sets the renderer frames are presented on. The caller routes
// the renderer's acknowledgements to the pacer.
func (p *Pacer) BindRenderer(r ports.Renderer) {
	p.renderer = r
}

// Start issues the first decode request. If the pacer is paused the request
// is deferred until Resume.
func (p *Pacer) Start() {
	if p.done || p.phase != PhaseIdle {
		return
	}
	p.log.Debug("Starting playback")
	p.phase = PhaseAwaitingDecode
	p.issue()
}

// Pause suspends the cycle. An armed render deadline is canceled; an
// outstanding decode or prepare completes but its successor is held back.
func (p *Pacer) Pause() {
	if p.done || p.paused {
		return
	}
	p.paused = true
	p.clock.pause()
	if p.phase == PhaseArmedForRender && p.inFlight {
		p.cancelDeadline()
	}
	p.log.Debug("Paused in %s", p.phase)
}

// Resume continues the cycle where Pause left it. Resuming an idle pacer
// starts it.
func (p *Pacer) Resume() {
	if p.done || !p.paused {
		return
	}
	p.paused = false
	p.scrubbing = false
	p.clock.resume()
	p.log.Debug("Resumed in %s", p.phase)

	if p.phase == PhaseIdle {
		p.Start()
		return
	}
	p.issue()
}

// Seek moves playback to ts, in stream time-base units.
//
// While playing, an armed deadline is canceled and the prepared frame is
// dropped. While paused, the seeked frame is decoded, prepared and rendered
// once, and the pacer stays paused.
func (p *Pacer) Seek(ts int64) {
	if p.done {
		return
	}
	p.log.Debug("Seek requested to %d", ts)
	p.decoder.Seek(ts)
	p.seekPending = true
	if p.paused {
		p.scrubbing = true
	}

	switch p.phase {
	case PhaseIdle:
		if !p.paused {
			// Applied by the first decode after Start.
			return
		}
		p.phase = PhaseAwaitingDecode
	case PhaseAwaitingPrepare, PhaseAwaitingRender:
		if !p.inFlight {
			p.dropFrame()
		}
	case PhaseArmedForRender:
		if p.inFlight {
			p.cancelDeadline()
		}
		p.dropFrame()
	}
	p.issue()
}

// Stop ends the session without notifying the observer. Acknowledgements
// that arrive afterwards are ignored.
func (p *Pacer) Stop() {
	if p.done {
		return
	}
	p.halt()
}

// Decoded handles a decoded frame.
func (p *Pacer) Decoded(frame media.Frame, seeked bool) {
	if !p.acknowledge(PhaseAwaitingDecode) {
		return
	}

	if p.seekPending && !seeked {
		p.stats.Stale++
		p.log.Debug("Discarding frame at %.3fs decoded before seek", frame.PTS)
		p.issue()
		return
	}

	ptsMs := frame.PTSMillis()
	if !p.clock.started {
		p.clock.start()
	}

	if seeked {
		p.seekPending = false
		p.stats.Seeks++
		p.clock.rebase(ptsMs - p.lookaheadMs)
		p.lastPresentedMs = -1
		p.log.Debug("Re-based clock to %d ms after seek", ptsMs-p.lookaheadMs)
	} else if ptsMs <= p.lastPresentedMs {
		p.stats.Skipped++
		p.log.Debug("Skipping frame at %d ms, last presented at %d ms", ptsMs, p.lastPresentedMs)
		p.issue()
		return
	}

	p.targetMs = ptsMs
	p.frame = &frame
	p.phase = PhaseAwaitingPrepare
	p.issue()
}

// Finished handles end of stream.
func (p *Pacer) Finished() {
	if !p.acknowledge(PhaseAwaitingDecode) {
		return
	}
	p.log.Debug("End of stream after %d frames", p.stats.Presented)
	p.halt()
	if p.observer != nil {
		p.observer.Finished(nil)
	}
}

// Failed handles a fatal decode error.
func (p *Pacer) Failed(err error) {
	if !p.acknowledge(PhaseAwaitingDecode) {
		return
	}
	p.log.Error("Playback stopped: %s", err)
	p.halt()
	if p.observer != nil {
		p.observer.Finished(err)
	}
}

// Prepared handles the renderer's prepare acknowledgement.
func (p *Pacer) Prepared() {
	if !p.acknowledge(PhaseAwaitingPrepare) {
		return
	}
	if p.seekPending {
		p.dropFrame()
		p.issue()
		return
	}
	p.phase = PhaseArmedForRender
	p.issue()
}

// Rendered handles the renderer's render acknowledgement.
func (p *Pacer) Rendered() {
	if !p.acknowledge(PhaseAwaitingRender) {
		return
	}
	if p.scrubbing && !p.seekPending {
		p.scrubbing = false
	}
	p.phase = PhaseAwaitingDecode
	p.issue()
}

// acknowledge clears the outstanding request if it belongs to phase.
// Acknowledgements that do not match are stale and ignored.
func (p *Pacer) acknowledge(phase Phase) bool {
	if p.done {
		return false
	}
	if p.phase != phase || !p.inFlight {
		p.log.Warn("Ignoring unexpected acknowledgement in %s", p.phase)
		return false
	}
	p.inFlight = false
	return true
}

// issue sends the request that the current phase is waiting on, unless one
// is already outstanding or the pacer is paused.
func (p *Pacer) issue() {
	if p.done || p.inFlight || (p.paused && !p.scrubbing) {
		return
	}

	switch p.phase {
	case PhaseAwaitingDecode:
		p.inFlight = true
		p.decoder.RequestDecode()
	case PhaseAwaitingPrepare:
		p.inFlight = true
		p.renderer.Prepare(*p.frame)
	case PhaseArmedForRender:
		p.arm()
	case PhaseAwaitingRender:
		p.inFlight = true
		p.renderer.Render()
	}
}

// arm schedules the render deadline for the prepared frame, or runs it now
// when the deadline has already passed.
func (p *Pacer) arm() {
	if p.scrubbing {
		p.deadline()
		return
	}

	remaining := p.targetMs - p.clock.elapsedMs()
	if remaining <= 0 {
		if remaining < 0 {
			p.stats.Late++
		}
		p.deadline()
		return
	}

	p.inFlight = true
	p.generation++
	gen := p.generation
	p.timer = p.sched.AfterFunc(time.Duration(remaining)*time.Millisecond, func() {
		p.onDeadline(gen)
	})
}

func (p *Pacer) onDeadline(gen int) {
	if p.done || gen != p.generation || p.phase != PhaseArmedForRender || !p.inFlight {
		return
	}
	p.inFlight = false
	p.timer = nil
	p.deadline()
}

// deadline records the presentation time and issues the render request.
func (p *Pacer) deadline() {
	p.lastPresentedMs = p.clock.elapsedMs()
	frame := p.frame
	p.frame = nil
	p.stats.Presented++

	if p.observer != nil && frame != nil {
		p.observer.Presented(frame.PTS, media.ToTimeBase(frame.PTS, p.timeBase))
	}

	p.phase = PhaseAwaitingRender
	p.issue()
}

func (p *Pacer) cancelDeadline() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.generation++
	p.inFlight = false
}

func (p *Pacer) dropFrame() {
	p.frame = nil
	p.phase = PhaseAwaitingDecode
}

func (p *Pacer) halt() {
	if p.phase == PhaseArmedForRender && p.inFlight {
		p.cancelDeadline()
	}
	p.done = true
	p.frame = nil
	p.phase = PhaseIdle
	p.inFlight = false
}

// Phase returns the current phase.
func (p *Pacer) Phase() Phase { return p.phase }

// Paused reports whether the pacer is paused.
func (p *Pacer) Paused() bool { return p.paused }

// Done reports whether the session ended.
func (p *Pacer) Done() bool { return p.done }

// LastPresentedMs returns the clock reading of the last render request, or
// -1 if nothing was presented since start or the last seek.
func (p *Pacer) LastPresentedMs() int64 { return p.lastPresentedMs }

// TargetMs returns the presentation time of the current frame.
func (p *Pacer) TargetMs() int64 { return p.targetMs }

// ElapsedMs returns the pacing clock reading.
func (p *Pacer) ElapsedMs() int64 { return p.clock.elapsedMs() }

// Stats returns counters for the session so far.
func (p *Pacer) Stats() Stats { return p.stats }

var (
	_ ports.DecodeEvents = (*Pacer)(nil)
	_ ports.RenderAcks   = (*Pacer)(nil)
)
