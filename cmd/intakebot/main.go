package main

import (
	"log/slog"
	"os"

	"github.com/dwizi/intakebot/internal/cli"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	if err := cli.NewRoot(logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("INTAKEBOT_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}
