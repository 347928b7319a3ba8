// Package util provides helper functions for logging events.
package util

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base     *zap.SugaredLogger
	baseOnce sync.Once
)

// NewLogger returns a named sugared logger backed by a shared zap core.
// Every rover component logs through one of these.
func NewLogger(name string) *zap.SugaredLogger {
	baseOnce.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			logger = zap.NewNop()
		}
		base = logger.Sugar()
	})
	return base.Named(name)
}
