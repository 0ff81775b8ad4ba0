// Package logger builds the process-wide zap logger.  Handlers rely on
// echo's own request logging; zap covers startup, the expiry worker and the
// queue publisher, where there is no request context.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a zap logger from LOG_LEVEL and LOG_FORMAT.  LOG_FORMAT
// "console" yields a colored development encoder; anything else uses the
// production JSON config.  LOG_LEVEL accepts the usual zap level names and
// defaults to info.
func New() (*zap.Logger, error) {
	var cfg zap.Config
	if os.Getenv("LOG_FORMAT") == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", lvl, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	return cfg.Build()
}
