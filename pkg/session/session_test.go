package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framepace/pkg/adapters/logger"
	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/mocks"
	"github.com/user/framepace/pkg/ports"
)

func newSource(pts ...float64) *mocks.MediaSource {
	src := &mocks.MediaSource{
		InfoValue: ports.StreamInfo{
			Duration: 1000,
			TimeBase: media.NewRational(1, 1000),
			Width:    32,
			Height:   8,
		},
	}
	for _, p := range pts {
		src.Frames = append(src.Frames, mocks.NewRawFrame(p, 32, 8, 16))
	}
	return src
}

// syncObserver is safe to read after Run returns.
type syncObserver struct {
	mu        sync.Mutex
	presented []float64
	finished  []error
}

func (o *syncObserver) Presented(pts float64, position int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.presented = append(o.presented, pts)
}

func (o *syncObserver) Finished(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, err)
}

func TestSession_PlaysToEnd(t *testing.T) {
	src := newSource(0, 0.01, 0.02, 0.03)
	renderer := &mocks.Renderer{AutoAck: true}
	observer := &syncObserver{}

	s, err := Open(Config{Path: "clip.mp4"}, &mocks.SourceOpener{Source: src}, renderer, logger.NewNoop(),
		WithObserver(observer))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := s.Run(ctx)

	require.NoError(t, err)
	assert.True(t, result.Ended)
	assert.Equal(t, 4, result.Stats.Presented+result.Stats.Skipped)
	assert.Equal(t, result.Stats.Presented, renderer.RenderCalls)
	assert.Equal(t, []error{nil}, observer.finished)
	assert.Equal(t, 1, src.CloseCalls)
	assert.Equal(t, int64(1000), result.Duration)
	for i := 1; i < len(observer.presented); i++ {
		assert.Greater(t, observer.presented[i], observer.presented[i-1])
	}
}

func TestSession_OpenFailure(t *testing.T) {
	opener := &mocks.SourceOpener{Err: errors.New("permission denied")}

	_, err := Open(Config{Path: "clip.mp4"}, opener, &mocks.Renderer{}, logger.NewNoop())

	assert.ErrorIs(t, err, media.ErrIOFailure)
}

func TestSession_UnsupportedFormatStopsPlayback(t *testing.T) {
	src := newSource(0, 0.01)
	src.Frames[1].PixelFormat = "nv12"
	renderer := &mocks.Renderer{AutoAck: true}

	s, err := Open(Config{Path: "clip.mp4"}, &mocks.SourceOpener{Source: src}, renderer, logger.NewNoop())
	require.NoError(t, err)

	result, err := s.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrUnsupportedFormat)
	assert.False(t, result.Ended)
	assert.Equal(t, 1, result.Stats.Presented)
	assert.Equal(t, 1, src.CloseCalls)
}

func TestSession_CancelStopsWaitingDeadline(t *testing.T) {
	// The second frame is due an hour in.
	src := newSource(0, 3600)
	renderer := &mocks.Renderer{AutoAck: true}

	s, err := Open(Config{Path: "clip.mp4"}, &mocks.SourceOpener{Source: src}, renderer, logger.NewNoop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	done := make(chan struct{})
	var result Result
	go func() {
		defer close(done)
		result, err = s.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.NoError(t, err)
	assert.False(t, result.Ended)
	assert.Equal(t, 1, renderer.RenderCalls)
	assert.False(t, s.Pause(), "controls are rejected once the session ended")
}

func TestSession_StartAtSeeksBeforePlaying(t *testing.T) {
	src := newSource(0, 0.5, 1.0, 1.1)
	renderer := &mocks.Renderer{AutoAck: true}

	s, err := Open(Config{Path: "clip.mp4", StartAt: 1.0}, &mocks.SourceOpener{Source: src}, renderer, logger.NewNoop())
	require.NoError(t, err)

	result, err := s.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{1000}, src.SeekCalls)
	assert.Equal(t, []float64{1.0, 1.1}, renderer.PreparedPTS())
	assert.Equal(t, 1, result.Stats.Seeks)
}

func TestSession_RunTwice(t *testing.T) {
	src := newSource()
	s, err := Open(Config{Path: "clip.mp4"}, &mocks.SourceOpener{Source: src}, &mocks.Renderer{AutoAck: true}, logger.NewNoop())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	assert.Error(t, err)
}

func TestSession_PauseAndResume(t *testing.T) {
	src := newSource(0, 0.05, 0.1)
	renderer := &mocks.Renderer{AutoAck: true}
	observer := &syncObserver{}

	s, err := Open(Config{Path: "clip.mp4", StartPaused: true}, &mocks.SourceOpener{Source: src}, renderer, logger.NewNoop(),
		WithObserver(observer))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background())
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	observer.mu.Lock()
	assert.Empty(t, observer.presented, "nothing plays while paused")
	observer.mu.Unlock()

	require.True(t, s.Resume())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not finish after resume")
	}
	assert.Len(t, observer.presented, 3)
}
