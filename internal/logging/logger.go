package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging for patch runs.
type Logger struct {
	zap *zap.Logger
}

// New creates a new Logger instance that writes to a file.
// If logPath is empty, logging is disabled.
// If development is true, uses development config with readable output.
// Otherwise uses production config with JSON output.
func New(logPath string, development bool) (*Logger, error) {
	if logPath == "" {
		// No logging
		return &Logger{zap: zap.NewNop()}, nil
	}

	// Open log file
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	// Create encoder config
	var encoderConfig zapcore.EncoderConfig
	if development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}

	// Create core that writes to file
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(logFile),
		zapcore.InfoLevel,
	)

	logger := zap.New(core)

	return &Logger{zap: logger}, nil
}

// Close syncs the logger (should be called on shutdown).
func (l *Logger) Close() error {
	return l.zap.Sync()
}

// RunStarted logs the beginning of a patch run.
func (l *Logger) RunStarted(fileCount, blockCount int) {
	l.zap.Info("run started",
		zap.Int("files", fileCount),
		zap.Int("blocks", blockCount),
	)
}

// FileApplied logs a successfully patched file.
func (l *Logger) FileApplied(path string, blockCount int, duration time.Duration) {
	l.zap.Info("file applied",
		zap.String("path", path),
		zap.Int("blocks", blockCount),
		zap.Duration("duration", duration),
	)
}

// FileFailed logs a file whose patch did not apply.
func (l *Logger) FileFailed(path string, blockIndex int, err error) {
	l.zap.Info("file failed",
		zap.String("path", path),
		zap.Int("block", blockIndex),
		zap.Error(err),
	)
}

// FileSkipped logs a file the user declined or that needed no change.
func (l *Logger) FileSkipped(path string, reason string) {
	l.zap.Info("file skipped",
		zap.String("path", path),
		zap.String("reason", reason),
	)
}

// RunFinished logs the outcome of a patch run.
func (l *Logger) RunFinished(runID string, applied, failed, skipped int, duration time.Duration) {
	l.zap.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("applied", applied),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Duration("duration", duration),
	)
}

// LLMCall logs an LLM API call.
func (l *Logger) LLMCall(model string, promptTokens, completionTokens int, duration time.Duration) {
	l.zap.Info("llm call",
		zap.String("model", model),
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens),
		zap.Int("total_tokens", promptTokens+completionTokens),
		zap.Duration("duration", duration),
	)
}

// Error logs an error.
func (l *Logger) Error(msg string, err error) {
	l.zap.Error(msg, zap.Error(err))
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}
