package logging

import "go.uber.org/zap"

// New returns a production JSON logger when production is true and a
// human-readable development logger otherwise.
func New(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Must is New that panics on failure. Used by the CLI entrypoints.
func Must(production bool) *zap.Logger {
	logger, err := New(production)
	if err != nil {
		panic("cannot initialize zap")
	}
	return logger
}
