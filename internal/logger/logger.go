// Package logger は構造化ログ出力を設定する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// 出力形式
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Setup は指定形式のslog.Loggerを生成して返す。
// formatが"text"の場合はtintによる人間向け出力、それ以外はJSON構造化ログを使う。
// 端末以外への出力では色付けしない。
func Setup(w io.Writer, format, level string) *slog.Logger {
	lvl := ParseLevel(level)

	if strings.EqualFold(format, FormatText) {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(w),
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == "error" && a.Value.Kind() == slog.KindAny {
					if err, ok := a.Value.Any().(error); ok {
						return tint.Err(err)
					}
				}
				return a
			},
		}))
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	}))
}

// SetupDefault はSetupで生成したロガーをグローバルロガーとして設定する。
// wがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, format, level string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	l := Setup(w, format, level)
	slog.SetDefault(l)
	return l
}

// ParseLevel はログレベル名をslog.Levelに変換する。未知の値はInfo。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
