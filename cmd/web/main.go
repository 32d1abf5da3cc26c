package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"macpulse/internal/app"
	"macpulse/internal/config"
	"macpulse/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "configuration file (defaults to config.yaml search)")
	port := flag.Int("port", 0, "listen port (overrides configuration)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	// A nil logger makes the application install one from cfg.Logging
	application, err := app.NewApplication(cfg, nil)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
