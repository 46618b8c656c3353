package pacer

// Phase is the stage of the decode, prepare, render cycle the pacer is in.
type Phase int

const (
	// PhaseIdle: not started, or stopped after end of stream or failure.
	PhaseIdle Phase = iota
	// PhaseAwaitingDecode: a decode request is due or outstanding.
	PhaseAwaitingDecode
	// PhaseAwaitingPrepare: a prepare request is due or outstanding.
	PhaseAwaitingPrepare
	// PhaseArmedForRender: the frame is prepared and the render deadline is
	// armed, or will be armed on resume.
	PhaseArmedForRender
	// PhaseAwaitingRender: a render request is outstanding.
	PhaseAwaitingRender
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingDecode:
		return "awaiting-decode"
	case PhaseAwaitingPrepare:
		return "awaiting-prepare"
	case PhaseArmedForRender:
		return "armed-for-render"
	case PhaseAwaitingRender:
		return "awaiting-render"
	default:
		return "unknown"
	}
}

// Stats counts what happened during a session.
type Stats struct {
	Presented int // frames sent to render
	Skipped   int // frames dropped as late or out of order
	Seeks     int // seeked frames received
	Late      int // frames whose deadline had passed when prepared
	Stale     int // decode results discarded because a seek superseded them
}
