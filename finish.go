package zoedl

import (
	"os"

	"github.com/zoedl/zoedl/internal/httpclient"
)

// finish unlinks the temp and index files for the Results that
// discardIndexOn lists, resets the controller to Stopped, releases the target claim and the global HTTP
// refcount, and publishes the terminal result to OnResult and Wait.
func (d *Downloader) finish(result Result) {
	d.mu.Lock()
	targetPath := d.targetPath
	idx := d.idx
	d.lastResult = result
	d.state = Stopped
	cb := d.cb.OnResult
	done := d.done
	d.mu.Unlock()

	if discardIndexOn(result) {
		_ = os.Remove(targetPath + ".zoe.tmp")
		if idx != nil {
			_ = idx.Delete()
		}
	}

	releaseTarget(targetPath)
	httpclient.GlobalUnInit()

	if cb != nil {
		d.safeCallback(func() { cb(result) })
	}
	close(done)
}
