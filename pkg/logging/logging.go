package logging

import (
	"os"

	"go.uber.org/zap"
)

// New builds the application logger. Development mode gives colored console
// output; everything else gets production JSON.
func New() *zap.Logger {
	var logger *zap.Logger
	var err error
	if os.Getenv("APP_ENV") == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		// Logging must never take the process down
		return zap.NewNop()
	}
	return logger
}
