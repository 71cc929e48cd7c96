package progress

import (
	"fmt"
	"time"
)

// Snapshot is one rendered point of a download's progress.
type Snapshot struct {
	Downloaded int64
	Total      int64
	Percent    float64       // 0 when Total is unknown
	Speed      float64       // bytes per second over the last interval
	ETA        time.Duration // 0 when unknown
}

// String renders the snapshot as a single status line.
func (s Snapshot) String() string {
	if s.Total > 0 {
		eta := "calculating..."
		if s.ETA > 0 {
			eta = FormatDuration(s.ETA)
		}
		return fmt.Sprintf("%.1f%% | %s / %s | %s/s | ETA: %s",
			s.Percent,
			FormatBytes(s.Downloaded),
			FormatBytes(s.Total),
			FormatBytes(int64(s.Speed)),
			eta,
		)
	}
	return fmt.Sprintf("%s | %s/s",
		FormatBytes(s.Downloaded),
		FormatBytes(int64(s.Speed)),
	)
}

// Tracker throttles progress updates to a fixed interval and derives speed
// and ETA between emissions. Not safe for concurrent use; give each
// download its own Tracker.
type Tracker struct {
	interval   time.Duration
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
}

// NewTracker creates a tracker emitting at most one snapshot per interval.
func NewTracker(interval time.Duration) *Tracker {
	if interval == 0 {
		interval = 500 * time.Millisecond
	}
	return &Tracker{interval: interval}
}

// Update records the current byte counts. It returns a snapshot and true
// when enough time has passed since the previous emission.
func (t *Tracker) Update(downloaded, total int64) (Snapshot, bool) {
	now := time.Now()
	if t.startTime.IsZero() {
		t.startTime = now
		t.lastUpdate = now
		t.lastBytes = downloaded
		return t.snapshot(now, downloaded, total), true
	}

	if now.Sub(t.lastUpdate) < t.interval {
		return Snapshot{}, false
	}
	return t.snapshot(now, downloaded, total), true
}

// Final returns an unthrottled snapshot for the end of a download, with
// speed averaged over the whole transfer.
func (t *Tracker) Final(downloaded, total int64) Snapshot {
	elapsed := time.Since(t.startTime).Seconds()
	if elapsed <= 0 {
		elapsed = 0.001
	}

	snap := Snapshot{
		Downloaded: downloaded,
		Total:      total,
		Speed:      float64(downloaded) / elapsed,
	}
	if total > 0 {
		snap.Percent = float64(downloaded) / float64(total) * 100
	}
	return snap
}

func (t *Tracker) snapshot(now time.Time, downloaded, total int64) Snapshot {
	elapsed := now.Sub(t.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(downloaded-t.lastBytes) / elapsed

	t.lastUpdate = now
	t.lastBytes = downloaded

	snap := Snapshot{
		Downloaded: downloaded,
		Total:      total,
		Speed:      speed,
	}
	if total > 0 {
		snap.Percent = float64(downloaded) / float64(total) * 100
		if speed > 0 {
			remaining := float64(total - downloaded)
			snap.ETA = time.Duration(remaining / speed * float64(time.Second))
		}
	}
	return snap
}
