// Package worker implements the Slice Worker Pool (C5): up to ThreadNum
// goroutines, each pulling a Pending slice, issuing a ranged GET, and
// streaming the response into its share of the Disk Write Cache.
package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/zoedl/zoedl/internal/cache"
	"github.com/zoedl/zoedl/internal/httpclient"
	"github.com/zoedl/zoedl/internal/model"
	"github.com/zoedl/zoedl/internal/ratelimit"
)

const (
	retryInitial = 500 * time.Millisecond
	retryFactor  = 2.0
	retryCap     = 8 * time.Second
	retryMax     = 5
)

// Msg is what a worker reports to the controller: either a progress
// delta, or — when Terminal is set — the slice's final Status. Every
// worker owns exactly one Msg producer loop; Pool fans its workers'
// output into a single channel the controller drains in one event loop.
type Msg struct {
	SliceIndex uint32
	DeltaBytes int64
	Terminal   bool
	Status     model.SliceStatus
	Err        error
}

// Pool executes a slice plan against one origin URL.
type Pool struct {
	cfg      model.Config
	client   *http.Client
	file     *os.File
	bucket   *ratelimit.Bucket
	watchdog *ratelimit.SpeedWatchdog
}

// New builds a Pool. bucket and watchdog may be nil to disable bandwidth
// enforcement.
func New(cfg model.Config, client *http.Client, file *os.File, bucket *ratelimit.Bucket, watchdog *ratelimit.SpeedWatchdog) *Pool {
	return &Pool{cfg: cfg, client: client, file: file, bucket: bucket, watchdog: watchdog}
}

// Run dispatches every non-Done slice to a worker, honoring
// cfg.ThreadNum as the concurrency cap, and returns the fanned-in event
// channel. The channel closes once every dispatched slice has reported a
// terminal Msg (or ctx is canceled and all workers have unwound).
func (p *Pool) Run(ctx context.Context, originURL string, slices []*model.Slice, cpuHint int) <-chan Msg {
	threads := model.ResolveThreadNum(p.cfg.ThreadNum, cpuHint)

	var activeRemaining int64
	for _, sl := range slices {
		if sl.Status != model.Done {
			if r := sl.Remaining(); r > 0 {
				activeRemaining += r
			}
		}
	}

	out := make(chan Msg, 256)
	sem := make(chan struct{}, threads)
	var wg sync.WaitGroup

	for _, sl := range slices {
		if sl.Status == model.Done {
			continue
		}
		sl.Status = model.Pending
		wg.Add(1)
		go func(sl *model.Slice) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				out <- Msg{SliceIndex: sl.Index, Terminal: true, Status: model.Pending, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			share := cache.Share(sl.Remaining(), activeRemaining, p.cfg.DiskCacheBytes)
			status, err := p.runSlice(ctx, originURL, sl, share, out)
			sl.Status = status
			out <- Msg{SliceIndex: sl.Index, Terminal: true, Status: status, Err: err}
		}(sl)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// runSlice drives one slice to completion or exhausted retries, emitting
// progress Msgs as bytes land. It returns the slice's final status.
func (p *Pool) runSlice(ctx context.Context, originURL string, sl *model.Slice, share int64, out chan<- Msg) (model.SliceStatus, error) {
	delay := retryInitial
	var lastErr error

	for attempt := 0; attempt < retryMax; attempt++ {
		if ctx.Err() != nil {
			return model.Pending, ctx.Err()
		}

		n, err := p.attempt(ctx, originURL, sl, share, out)
		sl.Completed += n
		if err == nil {
			return model.Done, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return model.Failed, err
		}

		if attempt+1 >= retryMax {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return model.Pending, ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * retryFactor)
		if delay > retryCap {
			delay = retryCap
		}
	}
	return model.Failed, fmt.Errorf("worker: slice %d exhausted retries: %w", sl.Index, lastErr)
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}

// attempt issues a single ranged GET for the remaining bytes of sl and
// streams the response into the shared temp file, returning the number
// of new bytes written even on a failed attempt (for accurate resume).
func (p *Pool) attempt(ctx context.Context, originURL string, sl *model.Slice, share int64, out chan<- Msg) (int64, error) {
	begin := sl.Begin + sl.Completed
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, originURL, nil)
	if err != nil {
		return 0, err
	}
	httpclient.ApplyHeaders(req, p.cfg)
	if sl.EndExclusive < 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", begin))
	} else {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", begin, sl.EndExclusive-1))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, &retryableError{err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusRequestedRangeNotSatisfiable:
		if sl.EndExclusive >= 0 && sl.Completed == sl.EndExclusive-sl.Begin {
			return 0, nil
		}
		return 0, fmt.Errorf("worker: slice %d: range not satisfiable", sl.Index)
	case http.StatusPartialContent:
		// the expected case: server honored our Range request.
	case http.StatusOK:
		// Server ignored Range and is sending the whole resource from
		// byte 0. Only a slice that itself starts at 0 can make sense of
		// that stream; anything else would land bytes at the wrong offset.
		if sl.Begin != 0 {
			return 0, fmt.Errorf("worker: slice %d: server ignored Range", sl.Index)
		}
		if sl.Completed > 0 {
			sl.Completed = 0
			begin = sl.Begin
		}
	default:
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return 0, &retryableError{fmt.Errorf("status %s", resp.Status)}
		}
		return 0, fmt.Errorf("worker: slice %d: status %s", sl.Index, resp.Status)
	}

	sw := cache.NewSliceWriter(p.file, sl.Index, begin, share)
	reporter := &reportingWriter{ctx: ctx, inner: sw, sliceIndex: sl.Index, out: out, bucket: p.bucket}

	_, copyErr := io.Copy(reporter, resp.Body)
	flushErr := sw.Flush()

	written := reporter.written
	if copyErr != nil {
		return written, &retryableError{copyErr}
	}
	if flushErr != nil {
		return written, flushErr
	}

	if sl.EndExclusive >= 0 && sl.Completed+written != sl.EndExclusive-sl.Begin {
		return written, &retryableError{fmt.Errorf("worker: slice %d: connection closed early", sl.Index)}
	}
	return written, nil
}

// reportingWriter forwards bytes to the disk cache, applies pool-wide
// rate limiting, and emits progress Msgs to the controller.
type reportingWriter struct {
	ctx        context.Context
	inner      io.Writer
	sliceIndex uint32
	out        chan<- Msg
	bucket     *ratelimit.Bucket
	written    int64
}

func (w *reportingWriter) Write(p []byte) (int, error) {
	if w.bucket != nil {
		// The wait uses the attempt's ctx, so a pause or stop cancels
		// a token-bucket wait as well as the body read.
		if err := w.bucket.WaitN(w.ctx, len(p)); err != nil {
			return 0, err
		}
	}
	n, err := w.inner.Write(p)
	w.written += int64(n)
	if n > 0 {
		w.out <- Msg{SliceIndex: w.sliceIndex, DeltaBytes: int64(n)}
	}
	return n, err
}
