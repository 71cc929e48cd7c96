// Package config defines configuration structures for the vdl CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (VDL_ prefix)
//   - YAML configuration file
//
// # Structure
//
//	type Config struct {
//	    Bucket      string        // gocloud bucket URL for downloads
//	    PageSize    int           // search results per page
//	    ByPublisher bool          // default search filter
//	    Timeout     time.Duration // search request timeout
//	    ChunkSize   int           // download read buffer
//	    RateLimit   int64         // download bandwidth cap, bytes/s
//	    Retry       RetryConfig   // search retry behavior
//	}
//
// The default bucket is the user's Downloads folder as a file:// URL with
// create_dir set, so the directory is created on first use.
package config
