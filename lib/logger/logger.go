// Package logger builds the service's slog.Logger per environment and
// hosts the Telegram alert handler that mirrors warnings to the admin
// chat. Scan traffic logs at debug, so production keeps the file at info
// to stay readable during redemption bursts.
package logger

import (
	"log"
	"log/slog"
	"os"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// SetupLogger returns the root logger: stdout for local runs, an
// append-only file for dev and prod. Unknown environments are a
// configuration mistake and stop the service.
func SetupLogger(env, logPath string) *slog.Logger {
	if env == envLocal {
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("error opening log file: ", err)
	}
	log.Printf("env: %s; log file: %s", env, logPath)

	level := slog.LevelInfo
	switch env {
	case envDev:
		level = slog.LevelDebug
	case envProd:
		// info hides per-scan debug lines, rejections still log
	default:
		log.Fatal("invalid environment: ", env)
	}

	return slog.New(
		slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}),
	)
}
