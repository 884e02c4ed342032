package config

import (
	"os"
	"strings"
)

// ModeKey is the environment variable selecting the run mode.
const ModeKey = "GO_ENV_MODE"

type Mode string

const (
	DevMode  Mode = "development"
	ProMode  Mode = "production"
	TestMode Mode = "test"
)

func ParseMode(env string) Mode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// CurrentMode reads the run mode from GO_ENV_MODE.
func CurrentMode() Mode {
	return ParseMode(os.Getenv(ModeKey))
}

// fileSuffixes lists the mode-specific config file suffixes, in load order.
func (m Mode) fileSuffixes() []string {
	switch m {
	case ProMode:
		return []string{"pro", "prod", "production"}
	case TestMode:
		return []string{"test"}
	default:
		return []string{"dev", "development"}
	}
}
