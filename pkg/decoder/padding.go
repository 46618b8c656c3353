package decoder

import (
	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/ports"
)

const (
	// rowAlignment is the row alignment decode libraries use for their
	// internal plane buffers.
	rowAlignment = 16

	// bytesPerPixel of an 8-bit planar component.
	bytesPerPixel = 1
)

// alignUp rounds n up to the next multiple of align.
func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// StripPadding returns a dense copy of a plane without un-addressed row
// padding.
//
// If the stride already equals the logical row width the buffer is used as
// is. Otherwise rows are cut to the logical width rounded up to the
// library's 16-byte alignment, never wider than the stride.
func StripPadding(p ports.RawPlane) media.Plane {
	rowBytes := p.Width * bytesPerPixel
	rows := p.Height
	if rows <= 0 && p.Stride > 0 {
		rows = len(p.Data) / p.Stride
	}

	if p.Stride == rowBytes {
		n := rowBytes * rows
		if n > len(p.Data) {
			n = len(p.Data)
		}
		return media.Plane{Data: p.Data[:n], Width: rowBytes, Height: rows, Visible: p.Width}
	}

	width := alignUp(rowBytes, rowAlignment)
	if width > p.Stride {
		width = p.Stride
	}

	out := make([]byte, width*rows)
	for y := 0; y < rows; y++ {
		start := y * p.Stride
		if start >= len(p.Data) {
			break
		}
		end := start + width
		if end > len(p.Data) {
			// Libraries may omit the padding after the final row.
			end = len(p.Data)
		}
		copy(out[y*width:], p.Data[start:end])
	}

	return media.Plane{Data: out, Width: width, Height: rows, Visible: p.Width}
}
