package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/user/framepace/pkg/ports"
)

// player is the part of a session the control reader drives.
type player interface {
	Pause() bool
	Resume() bool
	Seek(sec float64) bool
}

type controlKind int

const (
	controlPause controlKind = iota
	controlResume
	controlToggle
	controlSeek
	controlQuit
)

type control struct {
	kind controlKind
	sec  float64
}

// parseControl parses one stdin command line:
// "p"/"pause", "r"/"resume", "space"/"", "s <sec>"/"seek <sec>", "q"/"quit".
func parseControl(line string) (control, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return control{kind: controlToggle}, nil
	}
	switch fields[0] {
	case "p", "pause":
		return control{kind: controlPause}, nil
	case "r", "resume", "play":
		return control{kind: controlResume}, nil
	case "t", "toggle", "space":
		return control{kind: controlToggle}, nil
	case "q", "quit", "exit":
		return control{kind: controlQuit}, nil
	case "s", "seek":
		if len(fields) != 2 {
			return control{}, fmt.Errorf("seek needs a position in seconds")
		}
		sec, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || sec < 0 {
			return control{}, fmt.Errorf("invalid seek position %q", fields[1])
		}
		return control{kind: controlSeek, sec: sec}, nil
	default:
		return control{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

// readControls applies commands read from r until EOF, quit, or ctx ends.
// paused is the playback state when reading starts; toggles flip it.
func readControls(ctx context.Context, r io.Reader, p player, paused bool, quit func(), log ports.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		c, err := parseControl(sc.Text())
		if err != nil {
			log.Warn("Ignoring command: %s", err)
			continue
		}
		switch c.kind {
		case controlPause:
			paused = true
			p.Pause()
		case controlResume:
			paused = false
			p.Resume()
		case controlToggle:
			if paused {
				p.Resume()
			} else {
				p.Pause()
			}
			paused = !paused
		case controlSeek:
			p.Seek(c.sec)
		case controlQuit:
			quit()
			return
		}
	}
}
