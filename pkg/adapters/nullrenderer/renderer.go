// Package nullrenderer provides a renderer that discards every frame.
package nullrenderer

import (
	"github.com/user/framepace/pkg/media"
	"github.com/user/framepace/pkg/ports"
)

// Renderer is a no-op implementation of ports.Renderer.
// It acknowledges every request immediately.
type Renderer struct {
	acks     ports.RenderAcks
	prepared int
	rendered int
}

// New creates a new null Renderer.
func New() *Renderer {
	return &Renderer{}
}

// Bind implements ports.Renderer.
func (r *Renderer) Bind(acks ports.RenderAcks) {
	r.acks = acks
}

// Prepare drops the frame.
func (r *Renderer) Prepare(media.Frame) {
	r.prepared++
	r.acks.Prepared()
}

// Render does nothing.
func (r *Renderer) Render() {
	r.rendered++
	r.acks.Rendered()
}

// Counts returns the number of Prepare and Render calls.
func (r *Renderer) Counts() (prepared, rendered int) {
	return r.prepared, r.rendered
}

// Ensure Renderer implements ports.Renderer
var _ ports.Renderer = (*Renderer)(nil)
