// Package downloader runs concurrent VSIX downloads into a blob bucket.
//
// A Manager owns the set of in-flight downloads for the whole application.
// Each Start call launches one goroutine that streams the response body to
// the destination bucket in small fixed-size chunks, reporting progress
// through caller-supplied callbacks. A failing download is terminal for that
// one task only; the error goes to the Options.OnError side channel and
// never reaches sibling downloads.
//
// # Usage
//
//	bucket, _ := blob.OpenBucket(ctx, "file:///home/user/Downloads?create_dir=true")
//	mgr := downloader.New(bucket, downloader.Options{})
//
//	mgr.Start(ext.DownloadURL, ext.FileName(),
//	    func(n, total int64) { /* update progress row */ },
//	    func(n, total int64) { /* mark done */ },
//	)
//	mgr.Wait()
//
// # Lifecycle
//
// Downloads have no stop once started; a stalled stream holds its slot in
// the task set indefinitely. Options.Timeout bounds the whole transfer when
// set, and defaults to disabled.
package downloader
