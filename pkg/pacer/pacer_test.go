package pacer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framepace/pkg/adapters/logger"
	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/mocks"
)

// harness drives a Pacer by hand. Work done by the decoder and renderer is
// simulated by advancing the manual clock between requests and acks.
type harness struct {
	clock    *mocks.ManualClock
	decoder  *mocks.DecodeRequester
	renderer *mocks.Renderer
	observer *mocks.PlaybackObserver
	pacer    *Pacer

	events    []string
	presented []int64 // LastPresentedMs at each render request
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    mocks.NewManualClock(time.Unix(1_000_000, 0)),
		observer: &mocks.PlaybackObserver{},
	}
	h.decoder = &mocks.DecodeRequester{
		RequestDecodeFunc: func() { h.events = append(h.events, "decode-request") },
	}
	h.renderer = &mocks.Renderer{
		PrepareFunc: func(media.Frame) { h.events = append(h.events, "prepare-request") },
		RenderFunc: func() {
			h.events = append(h.events, "render-request")
			h.presented = append(h.presented, h.pacer.LastPresentedMs())
		},
	}
	h.pacer = New(Options{
		Clock:     h.clock,
		Scheduler: h.clock,
		TimeBase:  media.NewRational(1, 1000),
		Observer:  h.observer,
		Logger:    logger.NewNoop(),
	})
	h.pacer.BindDecoder(h.decoder)
	h.pacer.BindRenderer(h.renderer)
	h.renderer.Bind(h.pacer)
	return h
}

func testFrame(pts float64) media.Frame {
	plane := func(w, h int) media.Plane {
		return media.Plane{Data: make([]byte, w*h), Width: w, Height: h, Visible: w}
	}
	return media.Frame{
		PTS:    pts,
		Planes: media.Planes{Y: plane(16, 4), Cb: plane(8, 2), Cr: plane(8, 2)},
	}
}

func (h *harness) advance(ms int) {
	h.clock.Advance(time.Duration(ms) * time.Millisecond)
}

func (h *harness) decoded(pts float64, seeked bool) {
	h.events = append(h.events, "decoded")
	h.pacer.Decoded(testFrame(pts), seeked)
}

func (h *harness) prepared() {
	h.events = append(h.events, "prepared")
	h.pacer.Prepared()
}

func (h *harness) rendered() {
	h.events = append(h.events, "rendered")
	h.pacer.Rendered()
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestPacer_SingleFrameCycleOrdering(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.advance(100) // decode
	h.decoded(1.0, false)
	h.advance(100) // prepare
	h.prepared()

	assert.Equal(t, []time.Duration{ms(900)}, h.clock.Pending())
	assert.Equal(t, PhaseArmedForRender, h.pacer.Phase())

	h.advance(900)
	assert.Equal(t, int64(1000), h.pacer.LastPresentedMs())
	h.advance(100) // render
	h.rendered()
	h.advance(100)
	h.pacer.Finished()

	assert.Equal(t, []string{
		"decode-request", "decoded",
		"prepare-request", "prepared",
		"render-request", "rendered",
		"decode-request",
	}, h.events)

	require.Len(t, h.renderer.PrepareCalls, 1)
	planes := h.renderer.PrepareCalls[0].Planes.All()
	assert.Len(t, planes, 3)
	for _, p := range planes {
		assert.NotEmpty(t, p.Data)
	}
	assert.Equal(t, 1, h.renderer.RenderCalls)
	assert.Equal(t, []error{nil}, h.observer.FinishedCalls)
	assert.Equal(t, []mocks.PresentedCall{{PTS: 1.0, Position: 1000}}, h.observer.PresentedCalls)
	assert.True(t, h.pacer.Done())
	assert.Equal(t, PhaseIdle, h.pacer.Phase())
}

func TestPacer_ClockStartsOnFirstDecode(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.advance(5000)
	assert.Zero(t, h.pacer.ElapsedMs())

	h.decoded(0, false)
	h.advance(40)
	assert.Equal(t, int64(40), h.pacer.ElapsedMs())
}

func TestPacer_LateSecondFrameIsSkipped(t *testing.T) {
	h := newHarness(t)

	// Playback of the first frame runs 100 ms against a 50 ms frame gap.
	h.pacer.Start()
	h.decoded(1.0, true) // clock now reads 970
	h.advance(100)
	h.prepared() // 1070: deadline passed, rendered at once
	assert.Equal(t, int64(1070), h.pacer.LastPresentedMs())
	h.rendered()

	h.decoded(1.05, false)

	assert.Len(t, h.renderer.PrepareCalls, 1, "late frame must not be prepared")
	assert.Equal(t, 1, h.renderer.RenderCalls)
	assert.Equal(t, 3, h.decoder.RequestDecodeCalls)
	assert.Equal(t, 1, h.pacer.Stats().Skipped)
	assert.Equal(t, 1, h.pacer.Stats().Late)
	assert.Equal(t, PhaseAwaitingDecode, h.pacer.Phase())
}

func TestPacer_EqualTimestampIsLate(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.decoded(0.1, false)
	h.advance(200)
	h.prepared()
	require.Equal(t, int64(200), h.pacer.LastPresentedMs())
	h.rendered()

	h.decoded(0.2, false)
	assert.Len(t, h.renderer.PrepareCalls, 1)

	h.decoded(0.25, false)
	assert.Len(t, h.renderer.PrepareCalls, 2)
	assert.Equal(t, int64(250), h.pacer.TargetMs())
}

func TestPacer_NonMonotonicTimestampIsSkipped(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.decoded(0.5, false)
	h.prepared()
	h.advance(500)
	h.rendered()

	h.decoded(0.3, false)

	assert.Len(t, h.renderer.PrepareCalls, 1)
	assert.Equal(t, 1, h.pacer.Stats().Skipped)
	assert.False(t, h.pacer.Done())
}

func TestPacer_PresentationIsMonotonic(t *testing.T) {
	h := newHarness(t)
	pts := []float64{0, 0.04, 0.08, 0.12, 0.16, 0.20, 0.24, 0.28}

	h.pacer.Start()
	for i, p := range pts {
		decodeCost := 10
		if i == 3 {
			decodeCost = 90 // a slow frame makes the next one late
		}
		h.advance(decodeCost)
		h.decoded(p, false)
		if h.pacer.Phase() != PhaseAwaitingPrepare {
			continue
		}
		h.advance(5)
		h.prepared()
		if pending := h.clock.Pending(); len(pending) > 0 {
			h.advance(int(pending[0] / time.Millisecond))
		}
		h.advance(5)
		h.rendered()
	}

	require.NotEmpty(t, h.presented)
	for i := 1; i < len(h.presented); i++ {
		assert.Greater(t, h.presented[i], h.presented[i-1], "render %d", i)
	}
	assert.Positive(t, h.pacer.Stats().Skipped)
	assert.Equal(t, len(pts), h.pacer.Stats().Presented+h.pacer.Stats().Skipped)
}

func TestPacer_SeekRebasesClock(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.decoded(3.0, false)
	h.prepared()
	h.advance(3000)
	h.rendered()
	require.Equal(t, int64(3000), h.pacer.LastPresentedMs())

	// Backwards seek: 1000 ms is far below the last presentation.
	h.pacer.Seek(1000)
	h.decoded(1.0, true)

	assert.Equal(t, int64(-1), h.pacer.LastPresentedMs())
	assert.Equal(t, int64(970), h.pacer.ElapsedMs())
	require.Len(t, h.renderer.PrepareCalls, 2)

	h.prepared()
	assert.Equal(t, []time.Duration{ms(30)}, h.clock.Pending())
	assert.Equal(t, 1, h.pacer.Stats().Seeks)
}

func TestPacer_CustomLookahead(t *testing.T) {
	clock := mocks.NewManualClock(time.Unix(0, 0))
	p := New(Options{Clock: clock, Scheduler: clock, Lookahead: 100 * time.Millisecond, Logger: logger.NewNoop()})
	p.BindDecoder(&mocks.DecodeRequester{})
	r := &mocks.Renderer{}
	p.BindRenderer(r)

	p.Start()
	p.Decoded(testFrame(2.0), true)
	p.Prepared()

	assert.Equal(t, []time.Duration{ms(100)}, clock.Pending())
}

func TestPacer_SeekWhilePlayingDiscardsStaleDecode(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.pacer.Seek(4000)
	assert.Equal(t, []int64{4000}, h.decoder.SeekCalls)
	assert.Equal(t, 1, h.decoder.RequestDecodeCalls, "decode already outstanding")

	// Result of the decode issued before the seek was applied.
	h.decoded(0, false)
	assert.Empty(t, h.renderer.PrepareCalls)
	assert.Equal(t, 2, h.decoder.RequestDecodeCalls)

	h.decoded(4.0, true)
	assert.Equal(t, []float64{4.0}, h.renderer.PreparedPTS())
	assert.Equal(t, 1, h.pacer.Stats().Stale)
}

func TestPacer_SeekWhileArmedCancelsDeadline(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.decoded(1.0, false)
	h.prepared()
	require.Len(t, h.clock.Pending(), 1)

	h.pacer.Seek(3000)

	assert.Empty(t, h.clock.Pending())
	assert.Equal(t, 2, h.decoder.RequestDecodeCalls)
	assert.Equal(t, PhaseAwaitingDecode, h.pacer.Phase())

	h.advance(2000)
	assert.Zero(t, h.renderer.RenderCalls, "dropped frame must never render")

	h.decoded(3.0, true)
	h.prepared()
	h.advance(30)
	assert.Equal(t, 1, h.renderer.RenderCalls)
	assert.Equal(t, []mocks.PresentedCall{{PTS: 3.0, Position: 3000}}, h.observer.PresentedCalls)
}

func TestPacer_SeekWhilePreparingDropsFrame(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.decoded(1.0, false)
	h.pacer.Seek(2000)
	assert.Equal(t, 1, h.decoder.RequestDecodeCalls, "prepare still outstanding")

	h.prepared()

	assert.Empty(t, h.clock.Pending())
	assert.Equal(t, 2, h.decoder.RequestDecodeCalls)
	assert.Zero(t, h.renderer.RenderCalls)
}

func TestPacer_PauseWhileArmedKeepsFrame(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.decoded(1.0, false)
	h.prepared()
	h.advance(400)

	h.pacer.Pause()
	assert.Empty(t, h.clock.Pending())
	h.advance(5000)
	assert.Zero(t, h.renderer.RenderCalls)
	assert.Equal(t, int64(400), h.pacer.ElapsedMs(), "clock is frozen while paused")

	h.pacer.Resume()
	assert.Equal(t, []time.Duration{ms(600)}, h.clock.Pending())
	h.advance(600)

	assert.Equal(t, 1, h.renderer.RenderCalls)
	assert.Equal(t, int64(1000), h.pacer.LastPresentedMs())
	assert.Len(t, h.renderer.PrepareCalls, 1)
}

func TestPacer_PauseHoldsNextRequest(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.pacer.Pause()
	h.decoded(0.5, false)
	assert.Empty(t, h.renderer.PrepareCalls)
	assert.Equal(t, PhaseAwaitingPrepare, h.pacer.Phase())

	h.pacer.Resume()
	assert.Len(t, h.renderer.PrepareCalls, 1)

	h.pacer.Pause()
	h.prepared()
	assert.Empty(t, h.clock.Pending())

	h.pacer.Resume()
	assert.Len(t, h.clock.Pending(), 1)
}

func TestPacer_PauseDuringRender(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.decoded(0, false)
	h.prepared()
	require.Equal(t, 1, h.renderer.RenderCalls)

	h.pacer.Pause()
	h.rendered()
	assert.Equal(t, 1, h.decoder.RequestDecodeCalls)

	h.pacer.Resume()
	assert.Equal(t, 2, h.decoder.RequestDecodeCalls)
}

func TestPacer_ResumeWhenIdleStarts(t *testing.T) {
	h := newHarness(t)

	h.pacer.Pause()
	h.pacer.Start()
	assert.Zero(t, h.decoder.RequestDecodeCalls)

	h.pacer.Resume()
	assert.Equal(t, 1, h.decoder.RequestDecodeCalls)
	assert.Equal(t, PhaseAwaitingDecode, h.pacer.Phase())
}

func TestPacer_PauseResumeDoesNotDuplicateRequests(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.pacer.Pause()
	h.pacer.Resume()
	h.pacer.Pause()
	h.pacer.Resume()

	assert.Equal(t, 1, h.decoder.RequestDecodeCalls)
}

func TestPacer_SeekWhilePausedRendersOnce(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.decoded(1.0, false)
	h.prepared()
	h.pacer.Pause()

	h.pacer.Seek(4000)
	assert.Equal(t, 2, h.decoder.RequestDecodeCalls)

	h.decoded(4.0, true)
	h.prepared()
	assert.Empty(t, h.clock.Pending(), "scrub frame renders without a deadline")
	assert.Equal(t, 1, h.renderer.RenderCalls)
	h.rendered()

	assert.True(t, h.pacer.Paused())
	assert.Equal(t, 2, h.decoder.RequestDecodeCalls, "stays paused after the preview")
	assert.Equal(t, []float64{4.0}, []float64{h.observer.PresentedCalls[0].PTS})

	h.pacer.Resume()
	assert.Equal(t, 3, h.decoder.RequestDecodeCalls)

	h.decoded(4.04, false)
	h.prepared()
	assert.Equal(t, []time.Duration{ms(70)}, h.clock.Pending())
}

func TestPacer_SeekBeforeStartWhilePausedPreviews(t *testing.T) {
	h := newHarness(t)

	h.pacer.Pause()
	h.pacer.Seek(2000)
	assert.Equal(t, 1, h.decoder.RequestDecodeCalls)

	h.decoded(2.0, true)
	h.prepared()
	h.rendered()

	assert.Equal(t, 1, h.renderer.RenderCalls)
	assert.Equal(t, 1, h.decoder.RequestDecodeCalls)
}

func TestPacer_SeekBeforeStartWaitsForStart(t *testing.T) {
	h := newHarness(t)

	h.pacer.Seek(2000)
	assert.Zero(t, h.decoder.RequestDecodeCalls)

	h.pacer.Start()
	assert.Equal(t, 1, h.decoder.RequestDecodeCalls)
}

func TestPacer_FailedStopsPlayback(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")

	h.pacer.Start()
	h.pacer.Failed(boom)

	assert.True(t, h.pacer.Done())
	assert.Equal(t, []error{boom}, h.observer.FinishedCalls)

	h.pacer.Resume()
	h.pacer.Seek(10)
	h.pacer.Start()
	assert.Equal(t, 1, h.decoder.RequestDecodeCalls)
	assert.Empty(t, h.decoder.SeekCalls)
}

func TestPacer_IgnoresEventsAfterFinished(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.pacer.Finished()
	h.decoded(1.0, false)
	h.pacer.Prepared()
	h.pacer.Rendered()
	h.pacer.Finished()

	assert.Empty(t, h.renderer.PrepareCalls)
	assert.Len(t, h.observer.FinishedCalls, 1)
}

func TestPacer_StopCancelsDeadline(t *testing.T) {
	h := newHarness(t)

	h.pacer.Start()
	h.decoded(1.0, false)
	h.prepared()
	h.pacer.Stop()

	assert.Empty(t, h.clock.Pending())
	h.advance(2000)
	assert.Zero(t, h.renderer.RenderCalls)
	assert.Empty(t, h.observer.FinishedCalls)
}

func TestPacer_SynchronousRenderer(t *testing.T) {
	h := newHarness(t)
	h.renderer.AutoAck = true
	frames := []float64{0, 0.04, 0.08}
	next := 0
	h.decoder.RequestDecodeFunc = func() {
		if next == len(frames) {
			h.pacer.Finished()
			return
		}
		pts := frames[next]
		next++
		h.pacer.Decoded(testFrame(pts), false)
	}

	h.pacer.Start()
	for len(h.clock.Pending()) > 0 {
		h.advance(int(h.clock.Pending()[0] / time.Millisecond))
	}

	assert.Equal(t, 3, h.renderer.RenderCalls)
	assert.Equal(t, 3, h.pacer.Stats().Presented)
	assert.Equal(t, []error{nil}, h.observer.FinishedCalls)
}
