// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w at the given level. Format "json"
// emits one JSON object per line; anything else uses the console writer.
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	if strings.EqualFold(format, "json") {
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
	}

	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger(), nil
}

// ParseLevel maps a config level name to a zerolog level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zerolog.InfoLevel, nil
	case "debug", "info", "warn", "error":
		lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return zerolog.InfoLevel, fmt.Errorf("parsing log level %q: %w", level, err)
		}
		return lvl, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
}
