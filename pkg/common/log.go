package common

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a console logger writing to w, which is usually os.Stdout or the log view of the
// terminal client
func NewLogger(w io.Writer, debug bool) *zap.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	config := zap.NewDevelopmentEncoderConfig()
	config.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core)
}
