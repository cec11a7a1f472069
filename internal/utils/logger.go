// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"scope-service/internal/config"
)

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	encoderConfig := getEncoderConfig(cfg)

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writeSyncer, err := getWriteSyncer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	level, err := getLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)

	logger := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	return logger, nil
}

// getEncoderConfig returns encoder configuration based on format
func getEncoderConfig(cfg *config.LoggingConfig) zapcore.EncoderConfig {
	encConfig := zap.NewProductionEncoderConfig()

	encConfig.TimeKey = "timestamp"
	encConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	encConfig.LevelKey = "level"
	encConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	encConfig.CallerKey = "caller"
	encConfig.EncodeCaller = zapcore.ShortCallerEncoder
	encConfig.MessageKey = "message"
	encConfig.StacktraceKey = "stacktrace"

	if cfg.Format == "console" {
		encConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	return encConfig
}

// getWriteSyncer returns write syncer based on output configuration
func getWriteSyncer(cfg *config.LoggingConfig) (zapcore.WriteSyncer, error) {
	switch cfg.Output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr", "":
		return zapcore.AddSync(os.Stderr), nil
	default:
		// File output with rotation
		logDir := filepath.Dir(cfg.Output)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		lumber := &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}

		return zapcore.AddSync(lumber), nil
	}
}

// getLogLevel parses and returns log level
func getLogLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// InstrumentLogger wraps zap.Logger with instrument-session context
type InstrumentLogger struct {
	*zap.Logger
}

// NewInstrumentLogger creates a logger tagged with the instrument identity
func NewInstrumentLogger(baseLogger *zap.Logger, transportKind string) *InstrumentLogger {
	return &InstrumentLogger{
		Logger: baseLogger.With(
			zap.String("component", "instrument"),
			zap.String("transport", transportKind),
		),
	}
}

// LogCycle logs the outcome of an acquisition cycle
func (il *InstrumentLogger) LogCycle(cycleID string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("cycle_id", cycleID),
		zap.Duration("duration", duration),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		il.Error("Acquisition cycle failed", fields...)
	} else {
		il.Info("Acquisition cycle completed", fields...)
	}
}

// CloseLogger flushes any buffered log entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}
