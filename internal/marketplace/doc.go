// Package marketplace provides a client for the Visual Studio Marketplace
// gallery API.
//
// This package handles:
//   - Building extensionquery payloads (publisher or extension-name filters)
//   - Issuing the query with timeout and retry on transient server errors
//   - Best-effort cancellation of an in-flight search via Stop
//   - Parsing the gallery response into Extension records
//
// # Usage
//
//	client := marketplace.NewClient(marketplace.DefaultOptions())
//
//	exts, err := client.Search(ctx, marketplace.Query{
//	    Text:     "gopls",
//	    PageSize: 10,
//	})
//
//	// From another goroutine, e.g. when the user navigates away:
//	client.Stop()
//
// # Cancellation
//
// Stop is best-effort: the flag is checked when the response arrives, so a
// response that has already fully arrived by then is still processed. Each
// Search call re-arms the client; a previous Stop does not carry over.
package marketplace
