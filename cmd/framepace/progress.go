package main

import (
	"fmt"
	"io"
)

// progress prints the current position on a single terminal line.
type progress struct {
	w io.Writer
}

func newProgress(w io.Writer) *progress {
	return &progress{w: w}
}

func (p *progress) Presented(pts float64, position int64) {
	fmt.Fprintf(p.w, "\r%10.3fs  [%d]", pts, position)
}

func (p *progress) Finished(err error) {
	fmt.Fprint(p.w, "\r")
}
