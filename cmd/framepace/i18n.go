// Package main provides localization for the framepace CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Frame-accurate video playback with seek and pause": "シークと一時停止に対応したフレーム精度の動画再生",

		// Runtime messages
		"Interrupted, shutting down...": "中断されました。シャットダウン中...",
		"Presented %d frames (%d skipped, %d late, %d seeks) in %s": "%d フレームを表示しました (スキップ %d, 遅延 %d, シーク %d) 所要時間 %s",
		"Snapshots written: %d to %s": "スナップショットを %d 枚 %s に書き込みました",
		"Ignoring command: %s":        "コマンドを無視します: %s",

		// Probe output
		"Codec: %s":                "コーデック: %s",
		"Size: %dx%d":              "サイズ: %dx%d",
		"Time base: %s":            "タイムベース: %s",
		"Duration: %.3fs":          "再生時間: %.3f秒",
		"Frames: %d (%d keyframes)": "フレーム数: %d (キーフレーム %d)",
		"Frame rate: %.3f fps":     "フレームレート: %.3f fps",

		// Version command
		"framepace version %s": "framepace バージョン %s",
	})
}
