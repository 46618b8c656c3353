package ffmpegsource

import (
	"errors"
	"fmt"
	"io"

	"github.com/user/framepace/pkg/ports"
)

// frameReader splits a rawvideo 4:2:0 byte stream into pictures.
// ffmpeg writes rows without padding, so every stride equals the row width.
type frameReader struct {
	r      io.Reader
	pixFmt string
	dims   [3][2]int
	size   int
}

func newFrameReader(r io.Reader, pixFmt string, width, height int) *frameReader {
	cw, ch := (width+1)/2, (height+1)/2
	fr := &frameReader{
		r:      r,
		pixFmt: pixFmt,
		dims:   [3][2]int{{width, height}, {cw, ch}, {cw, ch}},
	}
	for _, d := range fr.dims {
		fr.size += d[0] * d[1]
	}
	return fr
}

// readFrame reads one picture. It returns io.EOF at a clean end of stream.
func (fr *frameReader) readFrame(pts float64) (*ports.RawFrame, error) {
	buf := make([]byte, fr.size)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated picture: %w", err)
		}
		return nil, err
	}

	raw := &ports.RawFrame{PixelFormat: fr.pixFmt, PTS: pts, Planes: make([]ports.RawPlane, 0, 3)}
	offset := 0
	for _, d := range fr.dims {
		n := d[0] * d[1]
		raw.Planes = append(raw.Planes, ports.RawPlane{
			Data:   buf[offset : offset+n],
			Stride: d[0],
			Width:  d[0],
			Height: d[1],
		})
		offset += n
	}
	return raw, nil
}
