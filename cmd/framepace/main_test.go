package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framepace/pkg/config"
)

func intPtr(v int) *int { return &v }

func TestBuildConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framepace.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: ffmpeg\nseek_lookahead_ms: 80\nsnapshot:\n  every: 3\n"), 0o644))

	cmd := &PlayCmd{
		Config:    path,
		Renderer:  config.RendererNull,
		Lookahead: intPtr(10),
		LogLevel:  "debug",
	}
	cfg, err := cmd.buildConfig()

	require.NoError(t, err)
	assert.Equal(t, config.BackendFFmpeg, cfg.Backend)
	assert.Equal(t, config.RendererNull, cfg.Renderer)
	assert.Equal(t, 10, cfg.SeekLookaheadMs)
	assert.Equal(t, 3, cfg.Snapshot.Every)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestBuildConfig_Invalid(t *testing.T) {
	tests := map[string]*PlayCmd{
		"backend":        {Backend: "vlc"},
		"negative start": {Start: -1},
		"format":         {Format: "bmp"},
	}
	for name, cmd := range tests {
		_, err := cmd.buildConfig()
		assert.ErrorIs(t, err, config.ErrInvalid, name)
	}
}

func TestBuildConfig_MissingFile(t *testing.T) {
	_, err := (&PlayCmd{Config: "/does/not/exist.yaml"}).buildConfig()
	assert.Error(t, err)
}
