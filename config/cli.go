package config

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/agentuity/memocache/logger"
	"github.com/agentuity/memocache/telemetry"
	"github.com/spf13/cobra"
)

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok && val != "" {
		return val
	}
	return defaultValue
}

// LogLevel reads --log-level, then MEMO_LOG_LEVEL, defaulting to info.
func LogLevel(cmd *cobra.Command) logger.LogLevel {
	level, _ := logger.ParseLevel(FlagOrEnv(cmd, "log-level", logger.EnvLogLevel, "info"))
	return level
}

// NewLogger returns a console logger, or a JSON logger when --log-format or
// MEMO_LOG_FORMAT is "json", at the level chosen by LogLevel.
func NewLogger(cmd *cobra.Command) logger.Logger {
	log.SetFlags(0)
	level := LogLevel(cmd)
	if FlagOrEnv(cmd, "log-format", "MEMO_LOG_FORMAT", "console") == "json" {
		return logger.NewJSONLogger(level)
	}
	return logger.NewConsoleLogger(level)
}

// NewTelemetry returns a logger, a telemetry handle and a shutdown function.
// The cobra flags it reads are:
//
// --otlp-url (string): the OTLP/HTTP collector, also MEMO_OTLP_URL; empty disables export
//
// --otlp-token (string): bearer token for the collector, also MEMO_OTLP_TOKEN
//
// The returned Telemetry is nil when export is disabled.
func NewTelemetry(ctx context.Context, cmd *cobra.Command, serviceName string) (logger.Logger, *telemetry.Telemetry, func(), error) {
	console := NewLogger(cmd)
	otlpURL := FlagOrEnv(cmd, "otlp-url", "MEMO_OTLP_URL", "")
	if otlpURL == "" {
		return console, nil, func() {}, nil
	}
	token := FlagOrEnv(cmd, "otlp-token", "MEMO_OTLP_TOKEN", "")
	tel, shutdown, err := telemetry.New(ctx, otlpURL, token, serviceName, console)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error creating telemetry: %w", err)
	}
	return tel.Logger, tel, shutdown, nil
}
