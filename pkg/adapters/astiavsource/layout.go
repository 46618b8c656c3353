package astiavsource

import (
	"fmt"

	"github.com/user/framepace/pkg/ports"
)

// copyAlign is the row alignment requested when copying a decoded picture
// out of libav. Rows keep this alignment and padding is stripped later.
const copyAlign = 16

// planeLayout describes one plane inside a buffer filled by
// av_image_copy_to_buffer for a 4:2:0 picture.
type planeLayout struct {
	Offset int
	Stride int
	Width  int
	Height int
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// layout420 returns the three plane layouts of a w×h 4:2:0 picture whose
// rows are padded to align bytes, and the total buffer size.
func layout420(w, h, align int) ([3]planeLayout, int) {
	cw, ch := (w+1)/2, (h+1)/2
	var planes [3]planeLayout
	offset := 0
	for i, dim := range [3][2]int{{w, h}, {cw, ch}, {cw, ch}} {
		stride := alignUp(dim[0], align)
		planes[i] = planeLayout{Offset: offset, Stride: stride, Width: dim[0], Height: dim[1]}
		offset += stride * dim[1]
	}
	return planes, offset
}

// splitPlanes slices buf into RawPlanes following layout. The planes alias
// buf, which must not be reused by the caller.
func splitPlanes(buf []byte, layout [3]planeLayout) ([]ports.RawPlane, error) {
	planes := make([]ports.RawPlane, 0, len(layout))
	for i, l := range layout {
		end := l.Offset + l.Stride*l.Height
		if end > len(buf) {
			return nil, fmt.Errorf("plane %d needs %d bytes, buffer has %d", i, end, len(buf))
		}
		planes = append(planes, ports.RawPlane{
			Data:   buf[l.Offset:end],
			Stride: l.Stride,
			Width:  l.Width,
			Height: l.Height,
		})
	}
	return planes, nil
}
