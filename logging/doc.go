// Package logging builds the structured loggers used across kenx.
// Loggers are plain log/slog loggers writing JSON by default and text in development mode.
package logging
