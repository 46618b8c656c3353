package decoder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framepace/pkg/ports"
)

func stridedPlane(width, height, stride int) ports.RawPlane {
	data := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		for x := 0; x < stride; x++ {
			if x < width {
				data[y*stride+x] = byte(y*7 + x)
			} else {
				data[y*stride+x] = 0xEE
			}
		}
	}
	return ports.RawPlane{Data: data, Stride: stride, Width: width, Height: height}
}

func TestStripPadding_StrideEqualsWidthIsNoop(t *testing.T) {
	p := stridedPlane(64, 8, 64)
	original := append([]byte(nil), p.Data...)

	out := StripPadding(p)

	assert.Equal(t, 64, out.Width)
	assert.Equal(t, 8, out.Height)
	assert.Equal(t, 64, out.Visible)
	assert.True(t, bytes.Equal(original, out.Data), "plane contents must round-trip unchanged")
}

func TestStripPadding_AlignedWidthDropsAllPadding(t *testing.T) {
	// line size 144 with a 128 byte picture row: 128 is already 16-aligned.
	p := stridedPlane(128, 4, 144)

	out := StripPadding(p)

	require.Equal(t, 128, out.Width)
	require.Len(t, out.Data, 128*4)
	for y := 0; y < out.Height; y++ {
		row := out.Row(y)
		assert.Equal(t, byte(y*7), row[0])
		assert.Equal(t, byte(y*7+127), row[127])
		assert.NotContains(t, row, byte(0xEE))
	}
}

func TestStripPadding_UnalignedWidthKeepsLibraryAlignment(t *testing.T) {
	p := stridedPlane(130, 3, 160)

	out := StripPadding(p)

	assert.Equal(t, 144, out.Width)
	assert.Equal(t, 130, out.Visible)
	require.Len(t, out.Data, 144*3)
	for y := 0; y < out.Height; y++ {
		row := out.Row(y)
		assert.Equal(t, byte(y*7+129), row[129])
		assert.Equal(t, byte(0xEE), row[130])
	}
}

func TestStripPadding_WidthNeverExceedsStride(t *testing.T) {
	p := stridedPlane(130, 2, 136)

	out := StripPadding(p)

	assert.Equal(t, 136, out.Width)
	assert.Len(t, out.Data, 136*2)
}

func TestStripPadding_ShortFinalRow(t *testing.T) {
	p := stridedPlane(20, 3, 32)
	// Drop the padding after the last row.
	p.Data = p.Data[:32*2+20]

	out := StripPadding(p)

	require.Equal(t, 32, out.Width)
	require.Len(t, out.Data, 32*3)
	assert.Equal(t, byte(2*7+19), out.Row(2)[19])
}

func TestStripPadding_DoesNotAliasSource(t *testing.T) {
	p := stridedPlane(20, 2, 32)

	out := StripPadding(p)
	p.Data[0] = 0xFF

	assert.Equal(t, byte(0), out.Data[0])
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want int
	}{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{128, 16, 128},
		{130, 16, 144},
		{65, 16, 80},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, alignUp(tt.n, tt.align), "alignUp(%d, %d)", tt.n, tt.align)
	}
}
