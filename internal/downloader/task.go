package downloader

// State describes where a download task is in its lifecycle.
type State int

const (
	StateRunning State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is one download owned by a Manager. Fields are mutated only by the
// task's own goroutine; read them through Manager.Tasks.
type Task struct {
	ID              string
	URL             string
	Key             string
	BytesDownloaded int64

	// TotalBytes is 0 until response headers arrive, and stays 0 when the
	// server sent no usable Content-Length. 0 means "unknown", not empty.
	TotalBytes int64

	State State
}
