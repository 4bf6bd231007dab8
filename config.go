package zoedl

import (
	"fmt"

	"github.com/zoedl/zoedl/internal/model"
)

// Config is the snapshot of every tunable a download accepts: thread
// count, timeouts, bandwidth envelope, slice policy, hash verification
// and the TLS/proxy/header surface. It is copied into the Downloader at
// Start and never mutated afterward.
type Config = model.Config

// SlicePolicy, HashVerify and their supporting enums are re-exported so
// callers never need to import internal/model directly.
type (
	SlicePolicy                = model.SlicePolicy
	SlicePolicyKind             = model.SlicePolicyKind
	HashType                    = model.HashType
	HashVerify                  = model.HashVerify
	HashVerifyPolicy            = model.HashVerifyPolicy
	UncompletedSliceSavePolicy  = model.UncompletedSliceSavePolicy
)

const (
	SliceAuto      = model.SliceAuto
	SliceFixedSize = model.SliceFixedSize
	SliceFixedNum  = model.SliceFixedNum

	HashMD5    = model.HashMD5
	HashCRC32  = model.HashCRC32
	HashSHA256 = model.HashSHA256

	AlwaysVerify HashVerifyPolicy = model.AlwaysVerify
	OnlyIfNoSize HashVerifyPolicy = model.OnlyIfNoSize

	AlwaysDiscard    UncompletedSliceSavePolicy = model.AlwaysDiscard
	SaveExceptFailed UncompletedSliceSavePolicy = model.SaveExceptFailed
)

// DefaultConfig returns a Config with every field at its default. Start
// does not merge these defaults into a caller's Config: fields left at
// their zero value stay zero, apart from the ones validateConfig replaces.
func DefaultConfig() Config { return model.DefaultConfig() }

// ConfigError reports a rejected configuration value, always tagged with
// the matching Result so callers can switch on it the same way they
// would on_result's terminal codes.
type ConfigError struct {
	Result Result
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("zoedl: %s: %s", e.Result, e.Detail)
}

// validateConfig applies the boundary rules a caller's Config must
// satisfy: some invalid values are rejected outright, others are
// silently replaced by a default.
func validateConfig(cfg *Config) error {
	if cfg.ThreadNum > 100 {
		return &ConfigError{Result: ResultInvalidThreadNum, Detail: fmt.Sprintf("thread_num %d exceeds 100", cfg.ThreadNum)}
	}
	if cfg.ThreadNum < 0 {
		cfg.ThreadNum = 0 // resolved lazily by model.ResolveThreadNum
	}
	if cfg.ConnTimeout < 0 {
		cfg.ConnTimeout = model.DefaultConfig().ConnTimeout
	}
	if cfg.FetchInfoRetries < 0 {
		cfg.FetchInfoRetries = model.DefaultConfig().FetchInfoRetries
	}
	if cfg.SlicePolicy.Kind == SliceFixedNum && cfg.SlicePolicy.Value <= 0 {
		return &ConfigError{Result: ResultInvalidSlicePolicy, Detail: "FixedNum(0) is not a valid slice count"}
	}
	if cfg.SlicePolicy.Kind == SliceFixedSize && cfg.SlicePolicy.Value <= 0 {
		return &ConfigError{Result: ResultInvalidSlicePolicy, Detail: "FixedSize(0) is not a valid slice size"}
	}
	if cfg.HashVerify.Value != "" {
		switch cfg.HashVerify.Kind {
		case HashMD5, HashCRC32, HashSHA256:
		default:
			return &ConfigError{Result: ResultInvalidHashPolicy, Detail: "unrecognized hash kind"}
		}
	}
	if cfg.DiskCacheBytes <= 0 {
		cfg.DiskCacheBytes = model.DefaultConfig().DiskCacheBytes
	}
	return nil
}
