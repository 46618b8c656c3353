// Package snapshotrenderer provides a ports.Renderer that writes presented
// frames to image files. It is useful for checking pacing and seek accuracy
// without a display.
package snapshotrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/ports"
)

// Format is an output image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Options configures a Renderer.
type Options struct {
	Dir     string
	Format  Format
	Quality int // JPEG quality
	// Width scales frames to this width keeping the aspect ratio; 0 keeps
	// the decoded width.
	Width        int
	Overlay      bool // draw the presentation time in the top-left corner
	OverlayColor color.Color
	// Every writes only every Nth rendered frame; values below 1 mean 1.
	Every int
}

// Renderer converts prepared frames to RGBA and writes rendered ones through
// a ports.FileSystem. Acknowledgements are delivered synchronously.
type Renderer struct {
	opts   Options
	fs     ports.FileSystem
	acks   ports.RenderAcks
	logger ports.Logger

	prepared    *image.RGBA
	preparedPTS float64
	rendered    int
	written     []string
}

// New creates a Renderer.
func New(opts Options, fs ports.FileSystem, logger ports.Logger) *Renderer {
	if opts.Every < 1 {
		opts.Every = 1
	}
	if opts.Format == "jpg" {
		opts.Format = FormatJPEG
	}
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	if opts.OverlayColor == nil {
		opts.OverlayColor = color.White
	}
	return &Renderer{opts: opts, fs: fs, logger: logger.WithComponent("snapshot")}
}

// Bind implements ports.Renderer.
func (r *Renderer) Bind(acks ports.RenderAcks) {
	r.acks = acks
}

// Prepare converts frame to an RGBA picture ready to be written.
func (r *Renderer) Prepare(frame media.Frame) {
	img := toRGBA(frame.Planes, r.opts.Width)
	if r.opts.Overlay {
		drawTimestamp(img, frame.PTS, r.opts.OverlayColor)
	}
	r.prepared = img
	r.preparedPTS = frame.PTS
	r.acks.Prepared()
}

// Render writes the prepared picture when it falls on the configured
// interval. Write failures are logged and do not stop playback.
func (r *Renderer) Render() {
	r.rendered++
	if r.prepared != nil && (r.rendered-1)%r.opts.Every == 0 {
		if err := r.write(); err != nil {
			r.logger.Warn("Failed to write snapshot: %s", err.Error())
		}
	}
	r.acks.Rendered()
}

func (r *Renderer) write() error {
	data, err := encode(r.prepared, r.opts.Format, r.opts.Quality)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("frame-%06d-%08dms.%s", r.rendered, media.SecondsToMillis(r.preparedPTS), extension(r.opts.Format))
	path := filepath.Join(r.opts.Dir, name)
	if err := r.fs.WriteFile(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	r.written = append(r.written, path)
	r.logger.Debug("Wrote %s", path)
	return nil
}

// Written returns the paths written so far.
func (r *Renderer) Written() []string {
	return append([]string(nil), r.written...)
}

// Rendered returns the number of Render calls.
func (r *Renderer) Rendered() int {
	return r.rendered
}

// toRGBA wraps the planes in an image.YCbCr without copying and converts it,
// scaling to width when width is positive.
func toRGBA(p media.Planes, width int) *image.RGBA {
	src := &image.YCbCr{
		Y:              p.Y.Data,
		Cb:             p.Cb.Data,
		Cr:             p.Cr.Data,
		YStride:        p.Y.Width,
		CStride:        p.Cb.Width,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, p.Y.Visible, p.Y.Height),
	}

	w, h := p.Y.Visible, p.Y.Height
	if width <= 0 || width == w || w == 0 {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Src)
		return dst
	}

	sh := h * width / w
	if sh < 1 {
		sh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, sh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func drawTimestamp(img *image.RGBA, pts float64, col color.Color) {
	dc := gg.NewContextForRGBA(img)
	label := fmt.Sprintf("%.3f", pts)

	tw, th := dc.MeasureString(label)
	dc.SetColor(color.RGBA{0, 0, 0, 160})
	dc.DrawRectangle(2, 2, tw+8, th+8)
	dc.Fill()

	dc.SetColor(col)
	dc.DrawStringAnchored(label, 6, 6, 0, 1)
}

func encode(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return buf.Bytes(), nil
}

func extension(f Format) string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

var _ ports.Renderer = (*Renderer)(nil)
