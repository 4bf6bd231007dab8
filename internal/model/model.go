// Package model holds the data types shared by every zoedl component:
// the slice plan, the persisted index record, the download configuration,
// and the result/state enums. Nothing in this package talks to the
// network or the filesystem; it exists so that probe, plan, index, cache
// and worker can agree on a common vocabulary without importing each
// other.
package model

import (
	"net/http"
	"time"
)

// Result is the terminal outcome of a download, mirroring the ZoeResult
// enum from the original C++ implementation this design is based on.
type Result int

const (
	ResultUnknown Result = iota
	ResultSuccess
	ResultCanceled
	ResultAlreadyDownloading
	ResultInvalidURL
	ResultInvalidIndexFormat
	ResultInvalidTargetFilePath
	ResultInvalidThreadNum
	ResultInvalidHashPolicy
	ResultInvalidSlicePolicy
	ResultInvalidConnTimeout
	ResultInvalidFetchInfoRetries
	ResultFetchFileInfoFailed
	ResultURLDifferent
	ResultRedirectURLDifferent
	ResultTmpFileExpired
	ResultTmpFileSizeError
	ResultTmpFileCannotRW
	ResultOpenIndexFileFailed
	ResultCreateTargetFileFailed
	ResultCreateTmpFileFailed
	ResultOpenTmpFileFailed
	ResultFlushTmpFileFailed
	ResultUpdateIndexFileFailed
	ResultSliceDownloadFailed
	ResultHashVerifyNotPass
	ResultCalculateHashFailed
	ResultRenameTmpFileFailed
	ResultNotClearlyResult
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESSED"
	case ResultCanceled:
		return "CANCELED"
	case ResultAlreadyDownloading:
		return "ALREADY_DOWNLOADING"
	case ResultInvalidURL:
		return "INVALID_URL"
	case ResultInvalidIndexFormat:
		return "INVALID_INDEX_FORMAT"
	case ResultInvalidTargetFilePath:
		return "INVALID_TARGET_FILE_PATH"
	case ResultInvalidThreadNum:
		return "INVALID_THREAD_NUM"
	case ResultInvalidHashPolicy:
		return "INVALID_HASH_POLICY"
	case ResultInvalidSlicePolicy:
		return "INVALID_SLICE_POLICY"
	case ResultInvalidConnTimeout:
		return "INVALID_NETWORK_CONN_TIMEOUT"
	case ResultInvalidFetchInfoRetries:
		return "INVALID_FETCH_FILE_INFO_RETRY_TIMES"
	case ResultFetchFileInfoFailed:
		return "FETCH_FILE_INFO_FAILED"
	case ResultURLDifferent:
		return "URL_DIFFERENT"
	case ResultRedirectURLDifferent:
		return "REDIRECT_URL_DIFFERENT"
	case ResultTmpFileExpired:
		return "TMP_FILE_EXPIRED"
	case ResultTmpFileSizeError:
		return "TMP_FILE_SIZE_ERROR"
	case ResultTmpFileCannotRW:
		return "TMP_FILE_CANNOT_RW"
	case ResultOpenIndexFileFailed:
		return "OPEN_INDEX_FILE_FAILED"
	case ResultCreateTargetFileFailed:
		return "CREATE_TARGET_FILE_FAILED"
	case ResultCreateTmpFileFailed:
		return "CREATE_TMP_FILE_FAILED"
	case ResultOpenTmpFileFailed:
		return "OPEN_TMP_FILE_FAILED"
	case ResultFlushTmpFileFailed:
		return "FLUSH_TMP_FILE_FAILED"
	case ResultUpdateIndexFileFailed:
		return "UPDATE_INDEX_FILE_FAILED"
	case ResultSliceDownloadFailed:
		return "SLICE_DOWNLOAD_FAILED"
	case ResultHashVerifyNotPass:
		return "HASH_VERIFY_NOT_PASS"
	case ResultCalculateHashFailed:
		return "CALCULATE_HASH_FAILED"
	case ResultRenameTmpFileFailed:
		return "RENAME_TMP_FILE_FAILED"
	case ResultNotClearlyResult:
		return "NOT_CLEARLY_RESULT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// State is the controller's lifecycle state.
type State int

const (
	Stopped State = iota
	Downloading
	Paused
)

func (s State) String() string {
	switch s {
	case Downloading:
		return "Downloading"
	case Paused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// SlicePolicyKind selects how the plan partitions a file into slices.
type SlicePolicyKind int

const (
	SliceAuto SlicePolicyKind = iota
	SliceFixedSize
	SliceFixedNum
)

// SlicePolicy pairs a kind with its one integer parameter (size in bytes
// for FixedSize, slice count for FixedNum; ignored for Auto).
type SlicePolicy struct {
	Kind  SlicePolicyKind
	Value int64
}

// HashType selects the digest algorithm used for whole-file verification.
type HashType int

const (
	HashMD5 HashType = iota
	HashCRC32
	HashSHA256
)

func (h HashType) String() string {
	switch h {
	case HashMD5:
		return "md5"
	case HashCRC32:
		return "crc32"
	case HashSHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// HashVerifyPolicy decides when a hash check is mandatory.
type HashVerifyPolicy int

const (
	// AlwaysVerify checks the hash whenever one is configured.
	AlwaysVerify HashVerifyPolicy = iota
	// OnlyIfNoSize checks the hash only when the server never reported a
	// content length, since a byte-complete size match isn't proof of
	// content completion in that case.
	OnlyIfNoSize
)

// HashVerify bundles the policy, algorithm and expected digest. An empty
// Value disables verification regardless of Policy.
type HashVerify struct {
	Policy HashVerifyPolicy
	Kind   HashType
	Value  string
}

// Enabled reports whether a hash check was configured at all.
func (h HashVerify) Enabled() bool {
	return h.Value != ""
}

// UncompletedSliceSavePolicy controls what happens to a slice's partial
// progress when a download is stopped or fails before completion.
type UncompletedSliceSavePolicy int

const (
	// AlwaysDiscard resets in-flight/pending slices back to Begin on the
	// next load, the conservative default because a partial slice can't
	// be verified without a full-file hash.
	AlwaysDiscard UncompletedSliceSavePolicy = iota
	// SaveExceptFailed preserves Completed for slices that were merely
	// interrupted, but still resets slices that ended Failed.
	SaveExceptFailed
)

// Config is the immutable configuration snapshot a Downloader takes at
// Start.
type Config struct {
	ThreadNum        int
	ConnTimeout      time.Duration
	FetchInfoRetries int
	FetchInfoUseHead bool
	TmpExpiry        time.Duration // < 0 means never expires

	MaxSpeedBPS        int64 // <= 0 means unlimited
	MinSpeedBPS        int64 // <= 0 means unlimited
	MinSpeedDuration   time.Duration
	DiskCacheBytes     int64
	SlicePolicy        SlicePolicy
	HashVerify         HashVerify
	RedirectCheckEnabled bool
	ContentMD5Enabled    bool

	VerifyCAEnabled bool
	CAPath          string
	VerifyHostEnabled bool
	Proxy             string
	CookieList        string
	HTTPHeaders       http.Header

	UncompletedSliceSavePolicy UncompletedSliceSavePolicy
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() Config {
	return Config{
		ThreadNum:                  0, // resolved lazily, see ResolveThreadNum
		ConnTimeout:                3000 * time.Millisecond,
		FetchInfoRetries:           1,
		FetchInfoUseHead:           true,
		TmpExpiry:                  -1,
		MaxSpeedBPS:                -1,
		MinSpeedBPS:                -1,
		MinSpeedDuration:           10 * time.Second,
		DiskCacheBytes:             20 << 20,
		SlicePolicy:                SlicePolicy{Kind: SliceFixedSize, Value: 10 << 20},
		RedirectCheckEnabled:       true,
		ContentMD5Enabled:          false,
		UncompletedSliceSavePolicy: AlwaysDiscard,
	}
}

// ResolveThreadNum applies the "0 or negative means default" rule:
// min(cpu*2, 8).
func ResolveThreadNum(n, cpu int) int {
	if n > 0 {
		return n
	}
	def := cpu * 2
	if def > 8 || def <= 0 {
		def = 8
	}
	return def
}

// SliceStatus is a slice's position in its own small state machine.
type SliceStatus int

const (
	Pending SliceStatus = iota
	InFlight
	Done
	Failed
)

func (s SliceStatus) String() string {
	switch s {
	case InFlight:
		return "InFlight"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	default:
		return "Pending"
	}
}

// Slice is a contiguous byte range of the remote file assigned to one
// worker. EndExclusive may be -1 to mean "unbounded" (open-ended slice),
// used when the content length is unknown.
type Slice struct {
	Index        uint32
	Begin        int64
	EndExclusive int64 // -1 == unbounded
	Completed    int64
	Status       SliceStatus
}

// Len returns the slice's total byte length, or -1 when unbounded.
func (s Slice) Len() int64 {
	if s.EndExclusive < 0 {
		return -1
	}
	return s.EndExclusive - s.Begin
}

// Remaining returns how many bytes are left to fetch, or -1 when unbounded.
func (s Slice) Remaining() int64 {
	if s.EndExclusive < 0 {
		return -1
	}
	return s.EndExclusive - s.Begin - s.Completed
}

// Descriptor is what the probe learns about the remote resource.
type Descriptor struct {
	EffectiveURL  string
	ContentLength int64 // -1 when unknown
	AcceptsRanges bool
	ContentMD5    string
	LastModified  time.Time
}

// SliceRecord is the on-disk shape of a Slice inside an IndexRecord: only
// the fields needed to reconstruct progress, without the in-memory-only
// Status (which is re-derived from Completed vs length on load).
type SliceRecord struct {
	Begin        int64 `json:"begin"`
	EndExclusive int64 `json:"end"`
	Completed    int64 `json:"completed"`
	// FailedLast records whether this slice's last known state before
	// save was Failed, so SaveExceptFailed can tell it apart from a
	// merely-interrupted Pending/InFlight slice.
	FailedLast bool `json:"failedLast,omitempty"`
}

// IndexSchemaVersion is the only schema version this implementation
// accepts; any other value is rejected with ResultInvalidIndexFormat.
const IndexSchemaVersion = 1

// IndexRecord is the sidecar file persisted next to the temp file,
// carrying the full resume plan.
type IndexRecord struct {
	SchemaVersion       int           `json:"schemaVersion"`
	OriginURL           string        `json:"originUrl"`
	EffectiveURL        string        `json:"effectiveUrl"`
	ContentLength       int64         `json:"contentLength"`
	ContentMD5          string        `json:"contentMd5,omitempty"`
	SavedAt             time.Time     `json:"savedAt"`
	SlicePolicySnapshot string        `json:"slicePolicySnapshot"`
	Slices              []SliceRecord `json:"slices"`
}
