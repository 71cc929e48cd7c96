// Package progress provides display helpers for download progress.
//
// A Tracker turns the raw (downloaded, total) pairs emitted by a download
// into throttled snapshots carrying percentage, transfer speed and ETA, so
// the CLI and the TUI render at a steady cadence instead of once per chunk.
//
// # Usage
//
//	tracker := progress.NewTracker(500 * time.Millisecond)
//
//	onProgress := func(n, total int64) {
//	    if snap, ok := tracker.Update(n, total); ok {
//	        fmt.Fprintf(os.Stderr, "\r%s", snap)
//	    }
//	}
//
// The package also exports the byte and duration formatting helpers used
// across the application.
package progress
