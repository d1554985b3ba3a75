package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/backend"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/config"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/db"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/mcpserver"
)

var version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to the YAML config file")
	flag.Parse()

	// stdout carries the MCP protocol.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "paper-reader-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		slog.Warn("config", "warning", w)
	}

	var store *db.Store
	if cfg.HistoryDB != "" {
		store, err = db.Open(cfg.HistoryDB)
		if err != nil {
			slog.Warn("history disabled", "path", cfg.HistoryDB, "err", err)
		} else {
			defer store.Close()
		}
	}

	client := backend.New(cfg.BackendURL, backend.WithTimeout(cfg.ParsedRequestTimeout()))
	s := mcpserver.New(client, store, version)

	slog.Info("paper-reader-mcp serving on stdio", "backend", client.BaseURL())
	if err := s.ServeStdio(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
