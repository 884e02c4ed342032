package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Config represents the logger configuration.
type Config struct {
	// Dir is the directory where per-level log files are written.
	Dir string `mapstructure:"dir" json:"dir" yaml:"dir" default:"logs"`

	// Level is the minimum log level (debug, info, warn, error, dpanic, panic, fatal).
	// It can be changed at runtime through Logger.SetLevel.
	Level string `mapstructure:"level" json:"level" yaml:"level" default:"info"`

	// Format is json or console.
	Format string `mapstructure:"format" json:"format" yaml:"format" default:"json"`

	// TimeFormat is a Go time layout; empty means ISO8601.
	TimeFormat string `mapstructure:"time_format" json:"time_format" yaml:"time_format"`

	LogInTerminal bool `mapstructure:"log_in_terminal" json:"log_in_terminal" yaml:"log_in_terminal" default:"true"`
	LogToFile     bool `mapstructure:"log_to_file" json:"log_to_file" yaml:"log_to_file"`

	// Rotation settings, passed to lumberjack.
	MaxAge     int  `mapstructure:"max_age" json:"max_age" yaml:"max_age" default:"7"`
	MaxSize    int  `mapstructure:"max_size" json:"max_size" yaml:"max_size" default:"100"`
	MaxBackups int  `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups" default:"10"`
	Compress   bool `mapstructure:"compress" json:"compress" yaml:"compress"`

	ShowCaller bool `mapstructure:"show_caller" json:"show_caller" yaml:"show_caller" default:"true"`
}

// ParseLevel converts a level name to zapcore.Level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "dpanic":
		return zapcore.DPanicLevel, nil
	case "panic":
		return zapcore.PanicLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func (c Config) encoderConfig() zapcore.EncoderConfig {
	enc := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if c.TimeFormat != "" {
		enc.EncodeTime = zapcore.TimeEncoderOfLayout(c.TimeFormat)
	}
	return enc
}

func (c Config) encoder() zapcore.Encoder {
	if c.Format == "console" {
		enc := c.encoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(enc)
	}
	return zapcore.NewJSONEncoder(c.encoderConfig())
}
