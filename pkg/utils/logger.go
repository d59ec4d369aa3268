package utils

import "go.uber.org/zap"

// NewLogger returns a development logger when debug is true, otherwise a
// production logger.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
