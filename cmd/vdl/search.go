package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JaINTP/vdl/internal/marketplace"
)

func runSearch(args []string) int {
	fs := flag.NewFlagSet("search", flag.ExitOnError)

	byPublisher := fs.Bool("publisher", false, "Match the publisher name instead of the extension name")
	page := fs.Int("page", 1, "Result page to fetch")
	pageSize := fs.Int("page-size", 0, "Results per page (default from config)")
	endpoint := fs.String("endpoint", marketplace.Endpoint, "Gallery query URL")
	configPath := fs.String("config", "", "Path to YAML config file")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: vdl search [options] <query>

Query the Visual Studio Marketplace and print one page of matching
extensions. Request further pages with -page.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one query argument is required")
		fs.Usage()
		return ExitInvalidArgs
	}
	query := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	if *pageSize <= 0 {
		*pageSize = cfg.PageSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := marketplace.NewClient(marketplace.Options{
		Endpoint:        *endpoint,
		Timeout:         cfg.Timeout,
		RetryAttempts:   cfg.Retry.Attempts,
		RetryBackoff:    cfg.Retry.Backoff,
		RetryMaxBackoff: cfg.Retry.MaxBackoff,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		client.Stop()
		cancel()
	}()

	exts, err := client.Search(ctx, marketplace.Query{
		Text:        query,
		ByPublisher: *byPublisher || cfg.ByPublisher,
		PageSize:    *pageSize,
		PageNumber:  *page,
	})
	if errors.Is(err, marketplace.ErrStopped) {
		fmt.Fprintln(os.Stderr, "[vdl] Search stopped")
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSearchFailed
	}

	if len(exts) == 0 {
		fmt.Fprintln(os.Stderr, "[vdl] No extensions found")
		return ExitSuccess
	}

	printResults(exts)
	return ExitSuccess
}

func printResults(exts []marketplace.Extension) {
	fmt.Printf("%-32s %-12s %-20s %s\n", "NAME", "VERSION", "PUBLISHER", "DISPLAY NAME")
	for _, ext := range exts {
		note := ""
		if !ext.Downloadable() {
			note = "  (no package)"
		}
		fmt.Printf("%-32s %-12s %-20s %s%s\n", ext.Name, ext.Version, ext.Publisher, ext.DisplayName, note)
	}
}
