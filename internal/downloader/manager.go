package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"golang.org/x/time/rate"
)

// ProgressFunc receives the bytes downloaded so far and the total expected
// bytes (0 when the server did not report a length). It is invoked
// synchronously from the download goroutine; keep it cheap or hand off to a
// channel.
type ProgressFunc func(downloaded, total int64)

// Options configures the download manager.
type Options struct {
	// ChunkSize is the read buffer size. Progress is reported once per
	// chunk, so this also bounds callback granularity.
	// Default: 1024
	ChunkSize int

	// Timeout bounds one whole transfer, connect to last byte.
	// Default: 0 (no timeout)
	Timeout time.Duration

	// RateLimit caps aggregate download bandwidth in bytes per second.
	// Default: 0 (unlimited)
	RateLimit int64

	// OnError receives the terminal failure of a download. It runs on the
	// failing task's goroutine, after the task left the tracking set's
	// visible state but before the goroutine exits.
	// Default: a tagged line on stderr.
	OnError func(url string, err error)
}

// Manager tracks and runs concurrent downloads. Construct one per process
// and inject it wherever a download must be started.
type Manager struct {
	bucket  *blob.Bucket
	client  *http.Client
	limiter *rate.Limiter
	opts    Options

	mu    sync.Mutex
	tasks map[string]*Task
	wg    sync.WaitGroup
}

// New creates a Manager writing downloads into bucket.
func New(bucket *blob.Bucket, opts Options) *Manager {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1024
	}
	if opts.OnError == nil {
		opts.OnError = func(url string, err error) {
			fmt.Fprintf(os.Stderr, "[vdl] download failed: %s: %v\n", url, err)
		}
	}

	m := &Manager{
		bucket: bucket,
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		tasks:  make(map[string]*Task),
	}

	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < opts.ChunkSize {
			burst = opts.ChunkSize
		}
		m.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return m
}

// Start registers a new download and launches it. It returns immediately;
// completion or failure is observed only through the callbacks and the
// OnError side channel. Either callback may be nil.
//
// No two concurrent downloads may target the same destination key; the
// result of violating that is whatever the bucket driver does on
// conflicting writes.
func (m *Manager) Start(url, key string, onProgress, onComplete ProgressFunc) {
	t := &Task{
		ID:    uuid.NewString(),
		URL:   url,
		Key:   key,
		State: StateRunning,
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(t, onProgress, onComplete)
}

func (m *Manager) run(t *Task, onProgress, onComplete ProgressFunc) {
	// Removal must happen on every exit path so the tracking set never
	// leaks a finished task.
	defer func() {
		m.mu.Lock()
		delete(m.tasks, t.ID)
		m.mu.Unlock()
		m.wg.Done()
	}()

	if err := m.download(context.Background(), t, onProgress, onComplete); err != nil {
		m.setState(t, StateFailed)
		m.opts.OnError(t.URL, err)
	}
}

func (m *Manager) download(ctx context.Context, t *Task, onProgress, onComplete ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	// Reject before the destination writer exists, so a refused response
	// leaves nothing behind at the destination.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	total := parseContentLength(resp.Header.Get("Content-Length"))
	m.mu.Lock()
	t.TotalBytes = total
	m.mu.Unlock()

	w, err := m.bucket.NewWriter(ctx, t.Key, nil)
	if err != nil {
		return fmt.Errorf("open destination %s: %w", t.Key, err)
	}

	var downloaded int64
	buf := make([]byte, m.opts.ChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if m.limiter != nil {
				if err := m.limiter.WaitN(ctx, n); err != nil {
					w.Close()
					return err
				}
			}
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				w.Close()
				return fmt.Errorf("write %s: %w", t.Key, writeErr)
			}
			downloaded += int64(n)
			m.mu.Lock()
			t.BytesDownloaded = downloaded
			m.mu.Unlock()
			if onProgress != nil {
				onProgress(downloaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			w.Close()
			return fmt.Errorf("read body: %w", readErr)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", t.Key, err)
	}

	m.setState(t, StateCompleted)
	if onComplete != nil {
		onComplete(downloaded, total)
	}
	return nil
}

// Active returns the number of in-flight downloads at the instant of the
// call. Eventually consistent against concurrent starts and completions;
// for display, not for correctness decisions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Tasks returns a snapshot of the in-flight downloads.
func (m *Manager) Tasks() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks
}

// Wait blocks until every download started so far has settled.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) setState(t *Task, s State) {
	m.mu.Lock()
	t.State = s
	m.mu.Unlock()
}

// parseContentLength returns 0 for an absent or unparsable header; 0 is the
// "unknown total" sentinel, not an error.
func parseContentLength(header string) int64 {
	if header == "" {
		return 0
	}
	n, err := strconv.ParseInt(header, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
