package cfg

import (
	"github.com/rs/zerolog"
)

// Level returns the configured log level, falling back to info for an
// unknown name.
func (s Settings) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil || s.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return level
}

// Persistent reports whether a bbolt database is configured.
func (s Settings) Persistent() bool {
	return s.DataPath != ""
}

// Polling reports whether forecasts are pulled from the remote engine.
func (s Settings) Polling() bool {
	return s.EngineURL != "" && s.PollInterval > 0
}
