package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"gocloud.dev/blob"

	"github.com/JaINTP/vdl/internal/marketplace"
	"github.com/JaINTP/vdl/internal/tui"
)

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)

	bucketURL := fs.String("bucket", "", "Destination bucket URL (default: Downloads folder)")
	configPath := fs.String("config", "", "Path to YAML config file")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: vdl tui [options]

Open the interactive search-and-download screen.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	if *bucketURL != "" {
		cfg.Bucket = *bucketURL
	}

	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, cfg.Bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening bucket: %v\n", err)
		return ExitStorageError
	}
	defer bucket.Close()

	client := marketplace.NewClient(marketplace.Options{
		Timeout:         cfg.Timeout,
		RetryAttempts:   cfg.Retry.Attempts,
		RetryBackoff:    cfg.Retry.Backoff,
		RetryMaxBackoff: cfg.Retry.MaxBackoff,
	})

	model := tui.New(client, bucket, tui.Options{
		PageSize:    cfg.PageSize,
		ByPublisher: cfg.ByPublisher,
		ChunkSize:   cfg.ChunkSize,
		RateLimit:   cfg.RateLimit,
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	return ExitSuccess
}
