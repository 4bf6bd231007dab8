package zoedl

import (
	"errors"
	"os"

	"github.com/zoedl/zoedl/internal/cache"
	"github.com/zoedl/zoedl/internal/verify"
)

// finalize runs the terminal steps of a completed transfer: flush,
// optionally hash-verify, atomically rename temp → target, and drop the
// index file on success. It does not itself decide whether the
// index/temp files survive on a non-success path — finish/discardIndexOn
// owns that, keyed off the Result this returns.
func (d *Downloader) finalize(file *os.File, tmpPath string) Result {
	if err := cache.Sync(file); err != nil {
		d.verbosef("final sync failed: %v", err)
		return ResultFlushTmpFileFailed
	}

	hv := d.cfg.HashVerify
	unknownLength := d.desc.ContentLength < 0

	if unknownLength && !hv.Enabled() {
		// With an open-ended slice and no configured hash, a clean
		// stream close alone can't prove the file is actually complete.
		return ResultNotClearlyResult
	}

	shouldVerify := hv.Enabled() && (hv.Policy == AlwaysVerify || (hv.Policy == OnlyIfNoSize && unknownLength))
	if shouldVerify {
		if err := verify.Verify(tmpPath, hv.Kind, hv.Value); err != nil {
			var mismatch *verify.MismatchError
			if errors.As(err, &mismatch) {
				badPath := tmpPath + ".bad"
				_ = file.Close()
				if renameErr := os.Rename(tmpPath, badPath); renameErr != nil {
					d.verbosef("rename to .bad failed: %v", renameErr)
				}
				return ResultHashVerifyNotPass
			}
			return ResultCalculateHashFailed
		}
	}

	_ = file.Close()
	if err := os.Rename(tmpPath, d.targetPath); err != nil {
		d.verbosef("rename to target failed: %v", err)
		return ResultRenameTmpFileFailed
	}

	if d.idx != nil {
		if err := d.idx.Delete(); err != nil {
			d.verbosef("index delete failed: %v", err)
		}
	}
	return ResultSuccess
}
