// Package logger provides logging functionality for the application.
package logger

// Config represents the logger configuration.
type Config struct {
	// Level is the minimum logging level (debug, info, warn, error).
	Level string `yaml:"level"`
	// Development enables development mode (colored console output).
	Development bool `yaml:"development"`
	// Encoding sets the logger's encoding (console, json).
	Encoding string `yaml:"encoding"`
}
