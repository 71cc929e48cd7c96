package downloader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

func newMemBucket(t *testing.T) *blob.Bucket {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open mem bucket: %v", err)
	}
	t.Cleanup(func() { bucket.Close() })
	return bucket
}

func serveBytes(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDownloadBasic(t *testing.T) {
	data := make([]byte, 10_000)
	for i := range data {
		data[i] = byte(i % 256)
	}
	server := serveBytes(t, data)
	bucket := newMemBucket(t)

	var (
		mu        sync.Mutex
		progress  [][2]int64
		completes [][2]int64
	)

	mgr := New(bucket, Options{})
	mgr.Start(server.URL, "basic.vsix",
		func(n, total int64) {
			mu.Lock()
			progress = append(progress, [2]int64{n, total})
			mu.Unlock()
		},
		func(n, total int64) {
			mu.Lock()
			completes = append(completes, [2]int64{n, total})
			mu.Unlock()
		},
	)
	mgr.Wait()

	if len(progress) == 0 {
		t.Fatal("expected progress callbacks")
	}
	// Strictly increasing downloaded values, total fixed at the real size.
	var prev int64
	for i, p := range progress {
		if p[0] <= prev {
			t.Errorf("progress[%d] = %d, not greater than %d", i, p[0], prev)
		}
		if p[1] != int64(len(data)) {
			t.Errorf("progress[%d] total = %d, want %d", i, p[1], len(data))
		}
		prev = p[0]
	}
	if prev != int64(len(data)) {
		t.Errorf("final progress = %d, want %d", prev, len(data))
	}

	if len(completes) != 1 {
		t.Fatalf("expected exactly one completion, got %d", len(completes))
	}
	if completes[0][0] != int64(len(data)) || completes[0][1] != int64(len(data)) {
		t.Errorf("completion = %v, want both %d", completes[0], len(data))
	}

	got, err := bucket.ReadAll(context.Background(), "basic.vsix")
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if len(got) != len(data) {
		t.Fatalf("destination has %d bytes, want %d", len(got), len(data))
	}
	for i := range got {
		if got[i] != data[i] {
			t.Fatalf("destination data mismatch at offset %d", i)
		}
	}
}

func TestDownloadUnknownLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flush before writing the body to force chunked encoding, so no
		// Content-Length header is sent.
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		io.WriteString(w, "some bytes without a length")
	}))
	defer server.Close()
	bucket := newMemBucket(t)

	var (
		mu        sync.Mutex
		lastTotal int64 = -1
		done      [2]int64
	)

	mgr := New(bucket, Options{})
	mgr.Start(server.URL, "unknown.vsix",
		func(n, total int64) {
			mu.Lock()
			lastTotal = total
			mu.Unlock()
		},
		func(n, total int64) {
			mu.Lock()
			done = [2]int64{n, total}
			mu.Unlock()
		},
	)
	mgr.Wait()

	if lastTotal != 0 {
		t.Errorf("expected total 0 for unknown length, got %d", lastTotal)
	}
	if done[1] != 0 {
		t.Errorf("expected completion total 0, got %d", done[1])
	}
	if done[0] != int64(len("some bytes without a length")) {
		t.Errorf("expected completion bytes %d, got %d", len("some bytes without a length"), done[0])
	}
}

func TestActiveCount(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5")
		w.(http.Flusher).Flush()
		<-release
		io.WriteString(w, "hello")
	}))
	defer server.Close()
	bucket := newMemBucket(t)

	mgr := New(bucket, Options{})
	if got := mgr.Active(); got != 0 {
		t.Fatalf("expected 0 active before any start, got %d", got)
	}

	const n = 5
	for i := 0; i < n; i++ {
		mgr.Start(server.URL, "file-"+strconv.Itoa(i)+".vsix", nil, nil)
	}

	// All n tasks should be in flight while the server holds the bodies.
	deadline := time.Now().Add(2 * time.Second)
	for mgr.Active() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d active downloads, got %d", n, mgr.Active())
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	mgr.Wait()

	if got := mgr.Active(); got != 0 {
		t.Errorf("expected 0 active after settle, got %d", got)
	}
}

func TestDownloadFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()
	bucket := newMemBucket(t)

	var (
		mu        sync.Mutex
		errs      []error
		completed bool
	)

	mgr := New(bucket, Options{
		OnError: func(url string, err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	})
	mgr.Start(server.URL, "missing.vsix", nil, func(n, total int64) {
		mu.Lock()
		completed = true
		mu.Unlock()
	})
	mgr.Wait()

	if len(errs) != 1 {
		t.Fatalf("expected one error on the side channel, got %d", len(errs))
	}
	if completed {
		t.Error("onComplete must not fire for a failed download")
	}
	if got := mgr.Active(); got != 0 {
		t.Errorf("failed task still tracked: Active() = %d", got)
	}

	// A rejected response must not create the destination object.
	exists, err := bucket.Exists(context.Background(), "missing.vsix")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("destination object created for rejected response")
	}
}

func TestFailureDoesNotAffectSiblings(t *testing.T) {
	data := []byte("sibling payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	defer server.Close()
	bucket := newMemBucket(t)

	var (
		mu       sync.Mutex
		failures int
		oks      int
	)

	mgr := New(bucket, Options{
		OnError: func(url string, err error) {
			mu.Lock()
			failures++
			mu.Unlock()
		},
	})

	mgr.Start(server.URL+"/bad", "bad.vsix", nil, nil)
	mgr.Start(server.URL+"/good", "good.vsix", nil, func(n, total int64) {
		mu.Lock()
		oks++
		mu.Unlock()
	})
	mgr.Wait()

	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
	if oks != 1 {
		t.Errorf("expected the sibling download to complete, got %d completions", oks)
	}
	if got := mgr.Active(); got != 0 {
		t.Errorf("expected drained task set, got %d", got)
	}
}

func TestNestedKeyCreatesDirectories(t *testing.T) {
	data := []byte("nested")
	server := serveBytes(t, data)

	dir := t.TempDir()
	bucket, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		t.Fatalf("open file bucket: %v", err)
	}
	defer bucket.Close()

	mgr := New(bucket, Options{})
	mgr.Start(server.URL, "extensions/acme/widget-1.0.0.vsix", nil, nil)
	mgr.Wait()

	path := filepath.Join(dir, "extensions", "acme", "widget-1.0.0.vsix")
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("file content = %q, want %q", got, data)
	}
}

func TestRateLimitedDownload(t *testing.T) {
	data := make([]byte, 4096)
	server := serveBytes(t, data)
	bucket := newMemBucket(t)

	start := time.Now()
	mgr := New(bucket, Options{RateLimit: 16 * 1024, ChunkSize: 1024})
	mgr.Start(server.URL, "limited.vsix", nil, nil)
	mgr.Wait()

	// 4KiB at 16KiB/s beyond the initial burst should not be instantaneous;
	// mostly this asserts the limiter path does not deadlock or error.
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("download took too long: %v", elapsed)
	}

	got, err := bucket.ReadAll(context.Background(), "limited.vsix")
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if len(got) != len(data) {
		t.Errorf("destination has %d bytes, want %d", len(got), len(data))
	}
}

func TestParseContentLength(t *testing.T) {
	tests := []struct {
		header   string
		expected int64
	}{
		{"", 0},
		{"1024", 1024},
		{"notanumber", 0},
		{"-5", 0},
	}

	for _, tt := range tests {
		if got := parseContentLength(tt.header); got != tt.expected {
			t.Errorf("parseContentLength(%q) = %d, want %d", tt.header, got, tt.expected)
		}
	}
}
