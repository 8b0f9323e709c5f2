// Package logger provides structured logging for the wallet and its command line tool.
// Loggers are production zap loggers with JSON encoding and ISO8601 timestamps.
package logger

import (
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// truncatedBytes is how many leading bytes Truncated keeps.
const truncatedBytes = 8

// LoggerConfig holds the configuration for logger creation.
type LoggerConfig struct {
	// Debug enables debug-level logging when true, otherwise uses info level
	Debug bool
}

// NewLogger creates a new structured logger with the specified configuration.
// Debug mode can be enabled through the configuration to include digests and
// other debug-level logs.
//
// Parameters:
//   - cfg: The logger configuration
//   - options: Additional zap options to apply to the logger
//
// Returns:
//   - *zap.Logger: A configured zap logger instance
//   - error: An error if the logger cannot be created
func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	mergedOptions := append([]zap.Option{zap.WithCaller(true)}, options...)

	c := zap.NewProductionConfig()
	c.EncoderConfig = zap.NewProductionEncoderConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg != nil && cfg.Debug {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return c.Build(mergedOptions...)
}

// Truncated logs only the first bytes of b, followed by its total length.
// Use it for signatures and other values that must not appear in full.
func Truncated(key string, b []byte) zap.Field {
	if len(b) <= truncatedBytes {
		return zap.String(key, "0x"+hex.EncodeToString(b))
	}
	return zap.String(key, fmt.Sprintf("0x%s...(%d bytes)", hex.EncodeToString(b[:truncatedBytes]), len(b)))
}
