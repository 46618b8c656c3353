package mocks

import (
	"sync"

	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
//
// By default it records requests and leaves acknowledging to the test. With
// AutoAck set it acknowledges synchronously from within each request.
type Renderer struct {
	mu   sync.Mutex
	acks ports.RenderAcks

	AutoAck     bool
	PrepareFunc func(frame media.Frame)
	RenderFunc  func()

	PrepareCalls []media.Frame
	RenderCalls  int
}

func (m *Renderer) Bind(acks ports.RenderAcks) {
	m.mu.Lock()
	m.acks = acks
	m.mu.Unlock()
}

func (m *Renderer) Prepare(frame media.Frame) {
	m.mu.Lock()
	m.PrepareCalls = append(m.PrepareCalls, frame)
	acks := m.acks
	m.mu.Unlock()

	if m.PrepareFunc != nil {
		m.PrepareFunc(frame)
	}
	if m.AutoAck && acks != nil {
		acks.Prepared()
	}
}

func (m *Renderer) Render() {
	m.mu.Lock()
	m.RenderCalls++
	acks := m.acks
	m.mu.Unlock()

	if m.RenderFunc != nil {
		m.RenderFunc()
	}
	if m.AutoAck && acks != nil {
		acks.Rendered()
	}
}

// PreparedPTS returns the timestamps of all prepared frames.
func (m *Renderer) PreparedPTS() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.PrepareCalls))
	for i, f := range m.PrepareCalls {
		out[i] = f.PTS
	}
	return out
}

var _ ports.Renderer = (*Renderer)(nil)

// DecodeRequester is a mock implementation of ports.DecodeRequester.
type DecodeRequester struct {
	mu sync.Mutex

	RequestDecodeFunc func()
	SeekFunc          func(ts int64)

	RequestDecodeCalls int
	SeekCalls          []int64
}

func (m *DecodeRequester) RequestDecode() {
	m.mu.Lock()
	m.RequestDecodeCalls++
	m.mu.Unlock()
	if m.RequestDecodeFunc != nil {
		m.RequestDecodeFunc()
	}
}

func (m *DecodeRequester) Seek(ts int64) {
	m.mu.Lock()
	m.SeekCalls = append(m.SeekCalls, ts)
	m.mu.Unlock()
	if m.SeekFunc != nil {
		m.SeekFunc(ts)
	}
}

var _ ports.DecodeRequester = (*DecodeRequester)(nil)

// PlaybackObserver is a mock implementation of ports.PlaybackObserver.
type PlaybackObserver struct {
	mu sync.Mutex

	PresentedCalls []PresentedCall
	FinishedCalls  []error
}

// PresentedCall records a call to Presented.
type PresentedCall struct {
	PTS      float64
	Position int64
}

func (m *PlaybackObserver) Presented(pts float64, position int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PresentedCalls = append(m.PresentedCalls, PresentedCall{PTS: pts, Position: position})
}

func (m *PlaybackObserver) Finished(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FinishedCalls = append(m.FinishedCalls, err)
}

var _ ports.PlaybackObserver = (*PlaybackObserver)(nil)
