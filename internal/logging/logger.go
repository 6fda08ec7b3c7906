package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New создает логгер: development для env == "dev", production иначе.
// Если задан file, логи дублируются в него.
func New(env, file string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, file)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("ошибка настройки логгера: %w", err)
	}
	return logger, nil
}
