package zoedl

import (
	"context"
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/zoedl/zoedl/internal/cache"
	"github.com/zoedl/zoedl/internal/httpclient"
	"github.com/zoedl/zoedl/internal/index"
	"github.com/zoedl/zoedl/internal/model"
	"github.com/zoedl/zoedl/internal/plan"
	"github.com/zoedl/zoedl/internal/probe"
	"github.com/zoedl/zoedl/internal/ratelimit"
	"github.com/zoedl/zoedl/internal/worker"
)

const (
	indexFlushInterval = 1 * time.Second
	progressInterval   = 100 * time.Millisecond // 10Hz cap on OnProgress
)

// run is the controller's background goroutine: it owns every mutable
// piece of download state (slices, file, index, bucket) for the
// lifetime of one Start..result cycle and is the only goroutine that
// touches them directly; worker.Pool only ever sees the slice slice and
// the shared *os.File.
func (d *Downloader) run(ctx context.Context) {
	result := d.runInner(ctx)
	d.finish(result)
}

func (d *Downloader) runInner(rootCtx context.Context) Result {
	httpclient.GlobalInit()

	client, err := httpclient.New(d.cfg, d.cfg.ConnTimeout)
	if err != nil {
		d.verbosef("build http client: %v", err)
		return ResultTmpFileCannotRW
	}

	desc, err := probe.Fetch(rootCtx, client, d.url, d.cfg)
	if err != nil {
		d.verbosef("probe failed: %v", err)
		return ResultFetchFileInfoFailed
	}
	d.mu.Lock()
	d.desc = desc
	d.originFileSize = desc.ContentLength
	d.mu.Unlock()

	idxStore := index.New(d.targetPath)
	d.idx = idxStore
	tmpPath := d.targetPath + ".zoe.tmp"

	saved, err := idxStore.Load(index.LoadOptions{
		OriginURL:            d.url,
		RedirectCheckEnabled: d.cfg.RedirectCheckEnabled,
		TmpExpiry:            d.cfg.TmpExpiry,
		TmpFilePath:          tmpPath,
	})
	if err != nil {
		var rej *index.Rejection
		if errors.As(err, &rej) {
			return rej.Result
		}
		return ResultOpenIndexFileFailed
	}

	slices, err := plan.Build(desc, saved, d.cfg)
	if err != nil {
		var rd *plan.ErrRedirectURLDiffers
		if errors.As(err, &rd) {
			return ResultRedirectURLDifferent
		}
		return ResultInvalidSlicePolicy
	}
	d.slices = slices

	existed := true
	if _, statErr := os.Stat(tmpPath); os.IsNotExist(statErr) {
		existed = false
	}
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		if existed {
			return ResultOpenTmpFileFailed
		}
		return ResultCreateTmpFileFailed
	}
	defer file.Close()

	if desc.ContentLength > 0 {
		if err := cache.EnsureSize(file, desc.ContentLength); err != nil {
			return ResultTmpFileCannotRW
		}
	}

	if allDone(slices) {
		return d.finalize(file, tmpPath)
	}

	d.saveIndexSnapshot()

	d.bucket = ratelimit.NewBucket(d.cfg.MaxSpeedBPS)
	d.watchdog = ratelimit.NewSpeedWatchdog(d.cfg.MinSpeedBPS, d.cfg.MinSpeedDuration)

	for {
		phaseCtx, phaseCancel := context.WithCancel(rootCtx)
		pool := worker.New(d.cfg, client, file, d.bucket, d.watchdog)
		events := pool.Run(phaseCtx, desc.EffectiveURL, slices, runtime.NumCPU())

		outcome := d.drain(phaseCtx, events)
		phaseCancel()
		cache.Sync(file) //nolint:errcheck

		switch outcome {
		case outcomeAllDone:
			return d.finalize(file, tmpPath)

		case outcomeFailed:
			d.saveIndexSnapshot()
			return ResultSliceDownloadFailed

		case outcomeStop:
			d.saveIndexSnapshot()
			if d.cfg.UncompletedSliceSavePolicy == AlwaysDiscard {
				os.Remove(tmpPath)
				idxStore.Delete()
			}
			return ResultCanceled

		case outcomePause:
			d.saveIndexSnapshot()
			d.setState(Paused)
			next := d.waitForResumeOrStop()
			d.setState(Downloading)
			if next == evStop {
				if d.cfg.UncompletedSliceSavePolicy == AlwaysDiscard {
					os.Remove(tmpPath)
					idxStore.Delete()
				}
				return ResultCanceled
			}
			continue
		}
	}
}

type drainOutcome int

const (
	outcomeAllDone drainOutcome = iota
	outcomeFailed
	outcomeStop
	outcomePause
)

// drain runs the controller's single-threaded event loop for one phase:
// it reads every worker's fanned-in Msg, applies progress, emits
// callbacks at their configured cadence, periodically flushes the index,
// and watches for a pause/stop request or a tripped speed watchdog.
func (d *Downloader) drain(ctx context.Context, events <-chan worker.Msg) drainOutcome {
	flushTicker := time.NewTicker(indexFlushInterval)
	defer flushTicker.Stop()
	progressTicker := time.NewTicker(progressInterval)
	defer progressTicker.Stop()

	var windowBytes int64

	for {
		select {
		case ev := <-d.ctrlCh:
			switch ev {
			case evPause:
				return outcomePause
			case evStop:
				return outcomeStop
			}

		case msg, ok := <-events:
			if !ok {
				if anySliceFailed(d.slices) {
					return outcomeFailed
				}
				return outcomeAllDone
			}
			if msg.Terminal {
				d.verbosef("slice %d terminal: %s", msg.SliceIndex, msg.Status)
				if msg.Status == model.Failed {
					return outcomeFailed
				}
				if msg.Status == model.Done {
					d.saveIndexSnapshot()
				}
				continue
			}
			d.mu.Lock()
			d.downloaded += msg.DeltaBytes
			d.mu.Unlock()
			windowBytes += msg.DeltaBytes

		case now := <-flushTicker.C:
			bps := windowBytes
			windowBytes = 0
			d.emitSpeed(bps)
			d.saveIndexSnapshot()
			if d.watchdog != nil && d.watchdog.Observe(now, float64(bps)) {
				return outcomeFailed
			}

		case <-progressTicker.C:
			d.emitProgress()

		case <-ctx.Done():
			return outcomeStop
		}
	}
}

// waitForResumeOrStop blocks while Paused, reacting only to Resume or
// Stop (a Pause request while already Paused is meaningless and ignored).
func (d *Downloader) waitForResumeOrStop() ctrlEvent {
	for ev := range d.ctrlCh {
		if ev == evResume || ev == evStop {
			return ev
		}
	}
	return evStop
}

func (d *Downloader) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Downloader) emitProgress() {
	d.mu.Lock()
	total := d.originFileSize
	downloaded := d.downloaded
	cb := d.cb.OnProgress
	d.mu.Unlock()
	if cb == nil {
		return
	}
	d.safeCallback(func() { cb(total, downloaded) })
}

func (d *Downloader) emitSpeed(bytesInWindow int64) {
	d.mu.Lock()
	cb := d.cb.OnSpeed
	d.mu.Unlock()
	if cb == nil {
		return
	}
	bps := int64(float64(bytesInWindow) / indexFlushInterval.Seconds())
	d.safeCallback(func() { cb(bps) })
}

func (d *Downloader) saveIndexSnapshot() {
	if d.idx == nil {
		return
	}
	rec := &model.IndexRecord{
		OriginURL:           d.url,
		EffectiveURL:        d.desc.EffectiveURL,
		ContentLength:       d.desc.ContentLength,
		ContentMD5:          d.desc.ContentMD5,
		SlicePolicySnapshot: plan.SnapshotPolicy(d.cfg.SlicePolicy),
		Slices:              plan.ToRecords(d.slices),
	}
	if err := d.idx.Save(rec); err != nil {
		d.verbosef("index save failed: %v", err)
	}
}

func allDone(slices []*model.Slice) bool {
	for _, s := range slices {
		if s.Status != model.Done {
			return false
		}
	}
	return true
}

func anySliceFailed(slices []*model.Slice) bool {
	for _, s := range slices {
		if s.Status == model.Failed {
			return true
		}
	}
	return false
}
