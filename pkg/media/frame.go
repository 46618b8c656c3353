// Package media defines the data types shared by the decoder, the pacer and
// renderers.
package media

import (
	"fmt"
	"math"
)

// Plane is a dense row-major 8-bit component buffer.
// Len(Data) == Width*Height; rows carry no trailing padding.
type Plane struct {
	Data   []byte
	Width  int // row width in bytes
	Height int
	// Visible is the logical picture width in pixels. It is smaller than
	// Width when rows keep the decode library's alignment.
	Visible int
}

// Row returns row y of the plane.
func (p Plane) Row(y int) []byte {
	return p.Data[y*p.Width : (y+1)*p.Width]
}

// Planes holds the three planes of a 4:2:0 frame: luma, then the two chroma planes.
type Planes struct {
	Y  Plane
	Cb Plane
	Cr Plane
}

// All returns the planes in Y, Cb, Cr order.
func (p Planes) All() [3]Plane {
	return [3]Plane{p.Y, p.Cb, p.Cr}
}

// Frame is a decoded picture with its presentation timestamp.
// A Frame is owned by whoever receives it; producers never touch it again.
type Frame struct {
	PTS    float64 // presentation time in seconds
	Planes Planes
}

// PTSMillis returns the presentation time truncated to whole milliseconds.
func (f Frame) PTSMillis() int64 {
	return SecondsToMillis(f.PTS)
}

// SecondsToMillis truncates a timestamp in seconds to whole milliseconds.
// Values within a microsecond below a millisecond boundary round up, so that
// 0.57 s maps to 570 rather than 569.
func SecondsToMillis(sec float64) int64 {
	return int64(math.Floor(sec*1000 + 1e-3))
}

// Rational is a fraction used for stream time bases.
type Rational struct {
	Num int
	Den int
}

// NewRational creates a Rational.
func NewRational(num, den int) Rational {
	return Rational{Num: num, Den: den}
}

// Float64 returns the value of r. A zero denominator yields 0.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// IsZero reports whether r carries no usable value.
func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

// String returns r as "num/den".
func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ToTimeBase converts seconds into units of time base r, truncating.
// Used to express a presentation time as a seek-bar position.
func ToTimeBase(sec float64, r Rational) int64 {
	if r.IsZero() {
		return 0
	}
	return int64(math.Floor(sec*float64(r.Den)/float64(r.Num) + 1e-6))
}

// FromTimeBase converts a timestamp in units of time base r to seconds.
func FromTimeBase(ts int64, r Rational) float64 {
	return float64(ts) * r.Float64()
}
