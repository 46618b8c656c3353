package mocks

import (
	"sync"

	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/ports"
)

// DecodeEvents is a mock implementation of ports.DecodeEvents that records
// everything it receives.
type DecodeEvents struct {
	mu sync.Mutex

	DecodedFunc  func(frame media.Frame, seeked bool)
	FinishedFunc func()
	FailedFunc   func(err error)

	DecodedCalls  []DecodedCall
	FinishedCalls int
	FailedCalls   []error
}

// DecodedCall records a call to Decoded.
type DecodedCall struct {
	Frame  media.Frame
	Seeked bool
}

func (m *DecodeEvents) Decoded(frame media.Frame, seeked bool) {
	m.mu.Lock()
	m.DecodedCalls = append(m.DecodedCalls, DecodedCall{Frame: frame, Seeked: seeked})
	m.mu.Unlock()
	if m.DecodedFunc != nil {
		m.DecodedFunc(frame, seeked)
	}
}

func (m *DecodeEvents) Finished() {
	m.mu.Lock()
	m.FinishedCalls++
	m.mu.Unlock()
	if m.FinishedFunc != nil {
		m.FinishedFunc()
	}
}

func (m *DecodeEvents) Failed(err error) {
	m.mu.Lock()
	m.FailedCalls = append(m.FailedCalls, err)
	m.mu.Unlock()
	if m.FailedFunc != nil {
		m.FailedFunc(err)
	}
}

var _ ports.DecodeEvents = (*DecodeEvents)(nil)
