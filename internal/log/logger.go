// Package log provides structured logging with run context for ouro.
//
// Every update cycle gets a fresh run ID; all entries carry it so a process
// lineage can be reconstructed from interleaved stderr streams after several
// handoffs.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger carrying run identity fields.
type Logger struct {
	zap *zap.Logger
}

// New creates a logger for one update run. Output goes to os.Stderr.
func New(runID string) *Logger {
	return NewWithWriter(runID, os.Stderr)
}

// NewWithWriter creates a logger writing JSON entries to w.
func NewWithWriter(runID string, w io.Writer) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return &Logger{zap: zap.New(core).With(zap.String("run_id", runID))}
}

// Nop returns a logger that discards everything. For tests.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// With returns a child logger with additional context fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

func (l *Logger) Debug(message string, fields ...zap.Field) { l.zap.Debug(message, fields...) }
func (l *Logger) Info(message string, fields ...zap.Field)  { l.zap.Info(message, fields...) }
func (l *Logger) Warn(message string, fields ...zap.Field)  { l.zap.Warn(message, fields...) }
func (l *Logger) Error(message string, fields ...zap.Field) { l.zap.Error(message, fields...) }

// Sugar returns a printf-style logger for CLI surfaces.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.zap.Sugar()
}
