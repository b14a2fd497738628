package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string
	Environment string
	ServiceName string
}

var log = zap.NewNop()

// InitLogger builds the global logger. Production uses JSON with ISO8601
// timestamps, anything else the colored console encoder.
func InitLogger(config *LogConfig) (*zap.Logger, error) {
	level := parseLevel(config.Level)
	fields := zap.Fields(
		zap.String("service", config.ServiceName),
		zap.String("environment", config.Environment),
	)

	var cfg zap.Config
	if config.Environment == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	built, err := cfg.Build(fields)
	if err != nil {
		return nil, err
	}
	log = built
	zap.ReplaceGlobals(log)
	return log, nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLogger returns the global logger instance. It is a no-op logger until
// InitLogger runs.
func GetLogger() *zap.Logger {
	return log
}
