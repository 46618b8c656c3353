package ports

import (
	"github.com/user/framepace/pkg/media"
)

// RenderAcks receives a renderer's acknowledgements.
type RenderAcks interface {
	// Prepared reports that the last Prepare request has completed.
	Prepared()
	// Rendered reports that the last Render request has completed.
	Rendered()
}

// Renderer is a display surface driven by the pacer.
//
// Every Prepare must eventually be followed by exactly one Prepared
// acknowledgement and every Render by exactly one Rendered acknowledgement.
// Acknowledgements may be delivered synchronously from within the request.
type Renderer interface {
	// Bind registers the receiver of acknowledgements.
	Bind(acks RenderAcks)

	// Prepare uploads a frame so it can be shown with minimal latency.
	Prepare(frame media.Frame)

	// Render shows the most recently prepared frame.
	Render()
}

// DecodeEvents receives a decoder's outbound events.
type DecodeEvents interface {
	// Decoded delivers the next frame. seeked is true for the first frame
	// produced after a seek was applied.
	Decoded(frame media.Frame, seeked bool)

	// Finished reports end of stream. The decoder has released its
	// resources and must not be used afterwards.
	Finished()

	// Failed reports a fatal decode error.
	Failed(err error)
}

// DecodeRequester is the inbound side of a decoder as seen by the pacer.
type DecodeRequester interface {
	// RequestDecode asks for exactly one DecodeEvents callback.
	RequestDecode()

	// Seek queues a seek to ts, in stream time-base units. The next
	// RequestDecode applies it.
	Seek(ts int64)
}

// PlaybackObserver is notified about presentation progress.
// Implementations must not block.
type PlaybackObserver interface {
	// Presented is called after a frame was sent to render.
	// position is pts expressed in the stream time base, for seek bars.
	Presented(pts float64, position int64)

	// Finished is called once when playback stops: err is nil at end of
	// stream and the fatal decode error otherwise.
	Finished(err error)
}
