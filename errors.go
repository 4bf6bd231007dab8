package zoedl

import "github.com/zoedl/zoedl/internal/model"

// Result is the terminal outcome of a download, translating the original
// ZoeResult enum (see original_source/include/zoe/zoe.h) verbatim.
type Result = model.Result

const (
	ResultUnknown                 = model.ResultUnknown
	ResultSuccess                 = model.ResultSuccess
	ResultCanceled                = model.ResultCanceled
	ResultAlreadyDownloading      = model.ResultAlreadyDownloading
	ResultInvalidURL              = model.ResultInvalidURL
	ResultInvalidIndexFormat      = model.ResultInvalidIndexFormat
	ResultInvalidTargetFilePath   = model.ResultInvalidTargetFilePath
	ResultInvalidThreadNum        = model.ResultInvalidThreadNum
	ResultInvalidHashPolicy       = model.ResultInvalidHashPolicy
	ResultInvalidSlicePolicy      = model.ResultInvalidSlicePolicy
	ResultInvalidConnTimeout      = model.ResultInvalidConnTimeout
	ResultInvalidFetchInfoRetries = model.ResultInvalidFetchInfoRetries
	ResultFetchFileInfoFailed     = model.ResultFetchFileInfoFailed
	ResultURLDifferent            = model.ResultURLDifferent
	ResultRedirectURLDifferent    = model.ResultRedirectURLDifferent
	ResultTmpFileExpired          = model.ResultTmpFileExpired
	ResultTmpFileSizeError        = model.ResultTmpFileSizeError
	ResultTmpFileCannotRW         = model.ResultTmpFileCannotRW
	ResultOpenIndexFileFailed     = model.ResultOpenIndexFileFailed
	ResultCreateTargetFileFailed  = model.ResultCreateTargetFileFailed
	ResultCreateTmpFileFailed     = model.ResultCreateTmpFileFailed
	ResultOpenTmpFileFailed       = model.ResultOpenTmpFileFailed
	ResultFlushTmpFileFailed      = model.ResultFlushTmpFileFailed
	ResultUpdateIndexFileFailed   = model.ResultUpdateIndexFileFailed
	ResultSliceDownloadFailed     = model.ResultSliceDownloadFailed
	ResultHashVerifyNotPass       = model.ResultHashVerifyNotPass
	ResultCalculateHashFailed     = model.ResultCalculateHashFailed
	ResultRenameTmpFileFailed     = model.ResultRenameTmpFileFailed
	ResultNotClearlyResult        = model.ResultNotClearlyResult
)

// State is the controller's lifecycle state.
type State = model.State

const (
	Stopped     = model.Stopped
	Downloading = model.Downloading
	Paused      = model.Paused
)

// discardIndexOn lists the Results after which §7 requires unlinking both
// the temp and index file rather than preserving them for a later resume.
func discardIndexOn(r Result) bool {
	switch r {
	case ResultURLDifferent, ResultTmpFileExpired, ResultTmpFileSizeError, ResultInvalidIndexFormat:
		return true
	default:
		return false
	}
}
