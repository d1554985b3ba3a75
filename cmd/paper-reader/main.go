package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JarodWellinghoff/ai-paper-reader/internal/app"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/backend"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/config"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/db"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/document"
	"github.com/JarodWellinghoff/ai-paper-reader/internal/media"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to the YAML config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: paper-reader [-config path] [document.pdf]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*configPath, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "paper-reader: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, documentPath string) error {
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a file or nowhere.
	if cfg.LogFile != "" {
		f, err := tea.LogToFile(cfg.LogFile, "")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	}
	for _, w := range warnings {
		slog.Warn("config", "warning", w)
	}

	var store *db.Store
	if cfg.HistoryDB != "" {
		store, err = db.Open(cfg.HistoryDB)
		if err != nil {
			// History is optional; run without it.
			slog.Warn("history disabled", "path", cfg.HistoryDB, "err", err)
		} else {
			defer store.Close()
		}
	}

	client := backend.New(cfg.BackendURL, backend.WithTimeout(cfg.ParsedRequestTimeout()))
	registry := document.NewRegistry("")
	model := app.New(app.Options{
		Backend:        client,
		Opener:         media.MPV{Path: cfg.MPVPath, SocketDir: cfg.SocketDir},
		Registry:       registry,
		Viewer:         document.NewViewer(registry),
		Store:          store,
		PollInterval:   cfg.ParsedPollInterval(),
		MaxPolls:       cfg.MaxPolls,
		AdvanceDelay:   cfg.ParsedAdvanceDelay(),
		SampleInterval: cfg.ParsedSampleInterval(),
		DocumentPath:   documentPath,
	})

	slog.Info("paper-reader starting", "backend", client.BaseURL())
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if m, ok := final.(app.Model); ok {
		m.Shutdown()
	}
	if n := registry.RevokeAll(); n > 0 {
		slog.Debug("revoked remaining object URLs", "count", n)
	}
	if err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}
