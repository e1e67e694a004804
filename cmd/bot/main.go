// cmd/bot/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tontrade/jettonbot/internal/bot"
	"github.com/tontrade/jettonbot/internal/config"
	"github.com/tontrade/jettonbot/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting jetton trading bot", zap.String("config", *configPath))

	runner := bot.NewRunner(cfg, log)
	if err := runner.Run(context.Background()); err != nil {
		log.Error("bot exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}
