package zoedl

import (
	"context"
	"fmt"
	"sync"

	"github.com/zoedl/zoedl/internal/index"
	"github.com/zoedl/zoedl/internal/model"
	"github.com/zoedl/zoedl/internal/ratelimit"
)

// Callbacks bundles the hooks a Downloader invokes from its controller
// goroutine: progress, speed, terminal result, and optional verbose
// logging. None are invoked concurrently for the same Downloader. The
// reentrancy guard (safeCallback) only skips a callback that would start
// while another callback of the same Downloader is still running; calls
// a callback makes into the Downloader's own methods are not intercepted.
type Callbacks struct {
	// OnProgress reports total (−1 when unknown) and downloaded bytes,
	// emitted at up to 10 Hz.
	OnProgress func(total, downloaded int64)
	// OnSpeed reports bytes/sec averaged over the last 1-second window
	// (no smoothing across windows).
	OnSpeed func(bytesPerSecond int64)
	// OnResult fires exactly once with the terminal Result.
	OnResult func(Result)
	// Verbose is an optional line-oriented logging sink.
	Verbose func(line string)
}

type ctrlEvent int

const (
	evPause ctrlEvent = iota
	evResume
	evStop
)

// Downloader is the Download Controller (C6): the state machine that
// drives a probe → plan → worker-pool → finalize pipeline for one
// (url, target path) pair at a time. A Downloader may be reused for a
// new download once it returns to Stopped.
type Downloader struct {
	mu             sync.Mutex
	state          State
	cfg            Config
	url            string
	targetPath     string
	originFileSize int64
	cb             Callbacks
	downloaded     int64
	inCallback     bool

	idx    *index.Store
	slices []*model.Slice
	desc   model.Descriptor

	bucket   *ratelimit.Bucket
	watchdog *ratelimit.SpeedWatchdog

	ctrlCh     chan ctrlEvent
	cancelRoot context.CancelFunc
	done       chan struct{}
	lastResult Result
}

// New returns a Downloader in the Stopped state, ready for Start.
func New() *Downloader {
	return &Downloader{state: Stopped, originFileSize: -1}
}

// Start validates cfg, snapshots it, and begins the download in a
// background goroutine. It returns synchronously for every
// configuration error that can be detected before any network or disk
// I/O happens (including ALREADY_DOWNLOADING); everything else surfaces
// later through Callbacks.OnResult / Wait.
func (d *Downloader) Start(url, targetPath string, cfg Config, cb Callbacks) error {
	if url == "" {
		return &ConfigError{Result: ResultInvalidURL, Detail: "url is empty"}
	}
	if targetPath == "" {
		return &ConfigError{Result: ResultInvalidTargetFilePath, Detail: "target path is empty"}
	}
	if err := validateConfig(&cfg); err != nil {
		return err
	}

	d.mu.Lock()
	if d.state != Stopped {
		d.mu.Unlock()
		return &ConfigError{Result: ResultAlreadyDownloading, Detail: "downloader is not Stopped"}
	}
	if !claimTarget(targetPath) {
		d.mu.Unlock()
		return &ConfigError{Result: ResultAlreadyDownloading, Detail: fmt.Sprintf("%s already downloading", targetPath)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.state = Downloading
	d.cfg = cfg
	d.url = url
	d.targetPath = targetPath
	d.originFileSize = -1
	d.cb = cb
	d.downloaded = 0
	d.idx = nil
	d.slices = nil
	d.ctrlCh = make(chan ctrlEvent, 4)
	d.cancelRoot = cancel
	d.done = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
	return nil
}

// Pause requests a transition to Paused. It is a no-op error if the
// downloader isn't currently Downloading.
func (d *Downloader) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Downloading {
		return fmt.Errorf("zoedl: Pause: not Downloading (state=%s)", d.state)
	}
	select {
	case d.ctrlCh <- evPause:
	default:
	}
	return nil
}

// Resume requests a transition back to Downloading from Paused.
func (d *Downloader) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Paused {
		return fmt.Errorf("zoedl: Resume: not Paused (state=%s)", d.state)
	}
	select {
	case d.ctrlCh <- evResume:
	default:
	}
	return nil
}

// Stop cancels the download (from Downloading or Paused); the terminal
// result is CANCELED.
func (d *Downloader) Stop() error {
	d.mu.Lock()
	state := d.state
	cancel := d.cancelRoot
	d.mu.Unlock()
	if state != Downloading && state != Paused {
		return fmt.Errorf("zoedl: Stop: already Stopped")
	}
	select {
	case d.ctrlCh <- evStop:
	default:
	}
	if cancel != nil {
		// Canceling the root context directly bounds worst-case latency
		// to the current chunk boundary even if the run loop is blocked
		// on a network read the ctrlCh select can't reach.
		cancel()
	}
	return nil
}

// State returns the current lifecycle state.
func (d *Downloader) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// URL returns the origin URL of the current or most recent download.
func (d *Downloader) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// TargetFilePath returns the configured target path.
func (d *Downloader) TargetFilePath() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targetPath
}

// OriginFileSize returns the remote content length, or −1 before the
// probe completes or when the server never reported one.
func (d *Downloader) OriginFileSize() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.originFileSize
}

// Wait blocks until the download reaches a terminal Result (Go's
// equivalent of the original future_result()/shared_future<Result>).
// Safe to call from multiple goroutines and after the result already
// landed.
func (d *Downloader) Wait() Result {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	<-done
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastResult
}

// safeCallback runs fn unless a callback is already executing on this
// Downloader, in which case fn is silently skipped.
func (d *Downloader) safeCallback(fn func()) {
	d.mu.Lock()
	if d.inCallback {
		d.mu.Unlock()
		return
	}
	d.inCallback = true
	d.mu.Unlock()

	fn()

	d.mu.Lock()
	d.inCallback = false
	d.mu.Unlock()
}

func (d *Downloader) verbosef(format string, args ...interface{}) {
	d.mu.Lock()
	cb := d.cb.Verbose
	d.mu.Unlock()
	if cb == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	d.safeCallback(func() { cb(line) })
}
