package ffmpegsource

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ErrToolNotFound is returned when ffmpeg or ffprobe cannot be located.
var ErrToolNotFound = errors.New("ffmpegsource: tool not found")

// FindTool locates an ffmpeg suite executable such as "ffmpeg" or "ffprobe".
// Priority: 1) custom path, 2) <NAME>_PATH env, 3) PATH, 4) common locations.
func FindTool(name, custom string) (string, error) {
	if custom != "" {
		if _, err := os.Stat(custom); err == nil {
			return custom, nil
		}
		return "", fmt.Errorf("%w: custom path %s for %s", ErrToolNotFound, custom, name)
	}

	envName := strings.ToUpper(name) + "_PATH"
	if envPath := os.Getenv(envName); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("%w: %s %s", ErrToolNotFound, envName, envPath)
	}

	execName := name
	if runtime.GOOS == "windows" {
		execName += ".exe"
	}
	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	for _, dir := range commonDirs() {
		p := dir + string(os.PathSeparator) + execName
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
}

func commonDirs() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\ffmpeg\bin`,
			`C:\Program Files\ffmpeg\bin`,
			`C:\Program Files (x86)\ffmpeg\bin`,
		}
	case "darwin":
		return []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"}
	default:
		return []string{"/usr/bin", "/usr/local/bin", "/opt/homebrew/bin", "/snap/bin"}
	}
}
