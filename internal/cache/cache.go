// Package cache implements the Disk Write Cache (C4): a bounded,
// per-slice write buffer in front of the shared temp file, flushed via
// pwrite-style WriteAt calls at each slice's own offset so that
// concurrent slices never race on the file's seek position.
//
// Every slice writes directly into its own byte range of the shared
// temp file, keyed off Begin+Completed, so no separate assembly step is
// needed once all slices finish.
package cache

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	minShare = 64 << 10
	maxShare = 8 << 20
)

// Share computes one slice's buffer budget: proportional to its
// remaining length, clamped to [64KiB, 8MiB]. total is the configured
// disk cache budget and activeRemaining is the sum of remaining bytes
// across all currently active slices (used to scale this slice's
// proportional share).
func Share(remaining, activeRemaining, total int64) int64 {
	if activeRemaining <= 0 || total <= 0 {
		return minShare
	}
	share := total * remaining / activeRemaining
	if share < minShare {
		share = minShare
	}
	if share > maxShare {
		share = maxShare
	}
	return share
}

// FlushError wraps a pwrite/fsync failure with the slice that caused it
// so the controller can surface which slice's write failed.
type FlushError struct {
	SliceIndex uint32
	Err        error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("cache: slice %d flush failed: %v", e.SliceIndex, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }

// SliceWriter buffers one slice's incoming bytes up to its Budget, then
// flushes to the shared file at its own absolute offset. Multiple
// SliceWriters over the same *os.File are safe to use concurrently: each
// owns a disjoint byte range and writes with WriteAt, never Write/Seek.
type SliceWriter struct {
	file       *os.File
	sliceIndex uint32
	offset     int64 // next absolute write position
	budget     int64
	buf        []byte
}

// NewSliceWriter returns a writer for sliceIndex starting at startOffset,
// buffering up to budget bytes before each flush.
func NewSliceWriter(file *os.File, sliceIndex uint32, startOffset, budget int64) *SliceWriter {
	if budget < minShare {
		budget = minShare
	}
	return &SliceWriter{
		file:       file,
		sliceIndex: sliceIndex,
		offset:     startOffset,
		budget:     budget,
		buf:        make([]byte, 0, budget),
	}
}

// Write implements io.Writer, buffering until the budget fills and then
// flushing synchronously: the calling worker blocks on the pwrite rather
// than handing off to a separate evictor goroutine, since writes are
// already off the network-read path.
func (w *SliceWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := int(w.budget) - len(w.buf)
		n := len(p)
		if n > space {
			n = space
		}
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		total += n
		if len(w.buf) >= int(w.budget) {
			if err := w.Flush(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Flush pwrites any buffered bytes to the underlying file at this
// writer's current offset and advances it.
func (w *SliceWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	n, err := w.file.WriteAt(w.buf, w.offset)
	w.offset += int64(n)
	w.buf = w.buf[:0]
	if err != nil {
		return &FlushError{SliceIndex: w.sliceIndex, Err: err}
	}
	return nil
}

// Offset returns the writer's next absolute write position.
func (w *SliceWriter) Offset() int64 { return w.offset }

var _ io.Writer = (*SliceWriter)(nil)

// Sync fsyncs the shared temp file. Called on pause/stop and before hash
// verification.
func Sync(file *os.File) error {
	return file.Sync()
}

// mu guards truncate/grow operations against concurrent slice writers
// opening the same file for the first time.
var mu sync.Mutex

// EnsureSize grows (or leaves alone) the temp file to at least size
// bytes via Truncate, which on platforms with sparse file support
// extends the file without physically zeroing it, so a multi-slice
// download doesn't pay for zeroing bytes other slices will overwrite
// anyway.
func EnsureSize(file *os.File, size int64) error {
	mu.Lock()
	defer mu.Unlock()
	if size <= 0 {
		return nil
	}
	fi, err := file.Stat()
	if err != nil {
		return err
	}
	if fi.Size() >= size {
		return nil
	}
	return file.Truncate(size)
}
