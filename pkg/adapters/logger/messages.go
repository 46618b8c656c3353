package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Session level messages (info)
		"Opening %s":        "%s を開いています",
		"Starting playback": "再生を開始します",
		"Playback finished: %d presented, %d skipped, %d late": "再生が完了しました: 表示 %d, スキップ %d, 遅延 %d",
		"Playback interrupted":                                 "再生が中断されました",

		// Decoder
		"Opened %s: duration %d, time base %s": "%s を開きました: 長さ %d, タイムベース %s",
		"Opened %s: %dx%d %s":                  "%s を開きました: %dx%d %s",
		"Seeking to %d":                        "%d へシーク中",
		"End of stream":                        "ストリームの終端です",
		"Started ffmpeg at %.3fs":              "ffmpeg を %.3f 秒から起動しました",

		// Pacer
		"Seek requested to %d":                             "%d へのシークを要求しました",
		"Re-based clock to %d ms after seek":               "シーク後にクロックを %d ms に再設定しました",
		"Skipping frame at %d ms, last presented at %d ms": "%d ms のフレームをスキップします (最終表示 %d ms)",
		"Discarding frame at %.3fs decoded before seek":    "シーク前にデコードされた %.3f 秒のフレームを破棄します",
		"End of stream after %d frames":                    "%d フレームでストリームが終了しました",
		"Paused in %s":                                     "%s で一時停止しました",
		"Resumed in %s":                                    "%s で再開しました",

		// Snapshot renderer
		"Wrote %s": "%s を書き込みました",

		// Warnings
		"Ignoring unexpected acknowledgement in %s": "%s で予期しない応答を無視します",
		"Failed to close decoder: %s":               "デコーダーのクローズに失敗しました: %s",
		"Failed to write snapshot: %s":              "スナップショットの書き込みに失敗しました: %s",

		// Errors
		"Failed to open %s: %s": "%s を開けませんでした: %s",
		"Decode failed: %s":     "デコードに失敗しました: %s",
		"Playback stopped: %s":  "再生が停止しました: %s",
	})
}
