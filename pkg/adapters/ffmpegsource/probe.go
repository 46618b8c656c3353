package ffmpegsource

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// probeResult is what ffprobe reports about the first video stream and
// the container.
type probeResult struct {
	PixelFormat string
	Width       int
	Height      int
	// StartTime is the container start in seconds. ffmpeg's input -ss is
	// relative to it.
	StartTime    float64
	HasStartTime bool
}

func probeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=pix_fmt,width,height:format=start_time",
		"-of", "default=noprint_wrappers=1",
		path,
	}
}

func probe(ffprobePath, path string) (probeResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(ffprobePath, probeArgs(path)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return probeResult{}, fmt.Errorf("ffprobe failed: %w\nstderr: %s", err, stderr.String())
	}
	return parseProbe(stdout.Bytes())
}

// parseProbe reads ffprobe's key=value output.
func parseProbe(out []byte) (probeResult, error) {
	var res probeResult
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pix_fmt":
			res.PixelFormat = value
		case "width":
			res.Width, _ = strconv.Atoi(value)
		case "height":
			res.Height, _ = strconv.Atoi(value)
		case "start_time":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				res.StartTime, res.HasStartTime = v, true
			}
		}
	}
	if res.PixelFormat == "" || res.Width <= 0 || res.Height <= 0 {
		return res, fmt.Errorf("no video stream in ffprobe output")
	}
	return res, nil
}
