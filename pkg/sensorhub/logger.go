package sensorhub

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger from cfg. Development mode switches to the
// console encoder with stack traces on warnings.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zcfg.Level = lvl
	}
	return zcfg.Build()
}
