package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger at the given verbosity ("debug", "info",
// "warn", ...). Sampling is disabled: a flapping vendor library emits the
// same warning over and over and every occurrence matters for diagnosis.
func New(verbosity string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(verbosity)
	if err != nil {
		return nil, err
	}
	config.Level = level
	config.Sampling = nil
	return config.Build()
}
