package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/JaINTP/vdl/internal/downloader"
	"github.com/JaINTP/vdl/internal/marketplace"
	"github.com/JaINTP/vdl/internal/progress"
)

func runGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ExitOnError)

	byPublisher := fs.Bool("publisher", false, "Match the publisher name instead of the extension name")
	bucketURL := fs.String("bucket", "", "Destination bucket URL (default: Downloads folder)")
	endpoint := fs.String("endpoint", marketplace.Endpoint, "Gallery query URL")
	configPath := fs.String("config", "", "Path to YAML config file")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: vdl get [options] <extension-name>

Search the marketplace for the named extension and download its VSIX
package. An exact name match is preferred; otherwise the first result is
taken.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one extension name is required")
		fs.Usage()
		return ExitInvalidArgs
	}
	query := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	if *bucketURL != "" {
		cfg.Bucket = *bucketURL
	}

	ctx := context.Background()

	client := marketplace.NewClient(marketplace.Options{
		Endpoint:        *endpoint,
		Timeout:         cfg.Timeout,
		RetryAttempts:   cfg.Retry.Attempts,
		RetryBackoff:    cfg.Retry.Backoff,
		RetryMaxBackoff: cfg.Retry.MaxBackoff,
	})

	exts, err := client.Search(ctx, marketplace.Query{
		Text:        query,
		ByPublisher: *byPublisher,
		PageSize:    cfg.PageSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSearchFailed
	}
	if len(exts) == 0 {
		fmt.Fprintln(os.Stderr, "[vdl] No extensions found")
		return ExitSearchFailed
	}

	ext := pickExtension(exts, query)
	if !ext.Downloadable() {
		fmt.Fprintf(os.Stderr, "Error: %s has no VSIX package to download\n", ext.Name)
		return ExitNotDownloadable
	}

	bucket, err := blob.OpenBucket(ctx, cfg.Bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening bucket: %v\n", err)
		return ExitStorageError
	}
	defer bucket.Close()

	return downloadOne(bucket, cfg.ChunkSize, cfg.RateLimit, ext)
}

// pickExtension prefers an exact name match over result order.
func pickExtension(exts []marketplace.Extension, name string) marketplace.Extension {
	for _, ext := range exts {
		if ext.Name == name {
			return ext
		}
	}
	return exts[0]
}

func downloadOne(bucket *blob.Bucket, chunkSize int, rateLimit int64, ext marketplace.Extension) int {
	var (
		mu      sync.Mutex
		dlErr   error
		tracker = progress.NewTracker(200 * time.Millisecond)
	)

	mgr := downloader.New(bucket, downloader.Options{
		ChunkSize: chunkSize,
		RateLimit: rateLimit,
		OnError: func(url string, err error) {
			mu.Lock()
			dlErr = err
			mu.Unlock()
		},
	})

	fmt.Fprintf(os.Stderr, "[vdl] Downloading %s (v%s) -> %s\n", ext.Name, ext.Version, ext.FileName())

	mgr.Start(ext.DownloadURL, ext.FileName(),
		func(n, total int64) {
			if snap, ok := tracker.Update(n, total); ok {
				fmt.Fprintf(os.Stderr, "\r[vdl] %s    ", snap)
			}
		},
		func(n, total int64) {
			snap := tracker.Final(n, total)
			fmt.Fprintf(os.Stderr, "\r[vdl] %s    \n", snap)
			fmt.Fprintf(os.Stderr, "[vdl] Saved %s (%s)\n", ext.FileName(), progress.FormatBytes(n))
		},
	)
	mgr.Wait()

	mu.Lock()
	defer mu.Unlock()
	if dlErr != nil {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Error: %v\n", dlErr)
		return ExitDownloadFailed
	}
	return ExitSuccess
}
