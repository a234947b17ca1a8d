package config

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
)

// ParseLevel maps a level name to the fiber logger level.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "", "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	}
	return log.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ApplyLogging sets the process-wide log level.
func (c *Config) ApplyLogging() {
	lvl, _ := ParseLevel(c.LogLevel)
	log.SetLevel(lvl)
}
