// Package plan implements the Slice Planner (C3): turning a Descriptor
// (plus an optional saved IndexRecord) into the ordered list of Slices a
// worker pool should execute.
//
// Three policies decide how a fresh download is cut into slices
// (FixedSize, FixedNum, Auto), and a separate warm-start path reconciles
// a saved plan against a fresh probe when resuming.
package plan

import (
	"fmt"

	"github.com/zoedl/zoedl/internal/model"
)

// ErrRedirectURLDiffers is returned when resuming and the probe's
// effective URL no longer matches the saved one while redirect checking
// is enabled.
type ErrRedirectURLDiffers struct {
	Saved, Fresh string
}

func (e *ErrRedirectURLDiffers) Error() string {
	return fmt.Sprintf("plan: redirect url changed: %s -> %s", e.Saved, e.Fresh)
}

const (
	minSliceSize  = 1
	autoCeiling   = 10 << 20
	autoFloor     = 1 << 20
)

// Build produces the slice list for a fresh download (saved == nil) or
// reconciles one against a previously saved plan (saved != nil).
func Build(desc model.Descriptor, saved *model.IndexRecord, cfg model.Config) ([]*model.Slice, error) {
	if saved != nil {
		return warmStart(desc, saved, cfg)
	}
	return coldStart(desc, cfg), nil
}

func coldStart(desc model.Descriptor, cfg model.Config) []*model.Slice {
	if desc.ContentLength < 0 || !desc.AcceptsRanges {
		return []*model.Slice{{Index: 0, Begin: 0, EndExclusive: -1, Status: model.Pending}}
	}

	boundaries := partition(desc.ContentLength, cfg)
	slices := make([]*model.Slice, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		slices[i] = &model.Slice{
			Index:        uint32(i),
			Begin:        boundaries[i],
			EndExclusive: boundaries[i+1],
			Status:       model.Pending,
		}
	}
	return slices
}

// partition returns the N+1 byte boundaries for N slices covering
// [0, length).
func partition(length int64, cfg model.Config) []int64 {
	threads := cfg.ThreadNum
	if threads <= 0 {
		threads = 8
	}

	var sliceSize int64
	switch cfg.SlicePolicy.Kind {
	case model.SliceFixedSize:
		sliceSize = cfg.SlicePolicy.Value
		if sliceSize < minSliceSize {
			sliceSize = minSliceSize
		}
	case model.SliceFixedNum:
		n := cfg.SlicePolicy.Value
		if n <= 0 {
			n = 1
		}
		maxN := int64(threads) * 4
		if n > maxN {
			n = maxN
		}
		sliceSize = ceilDiv(length, n)
		if sliceSize < minSliceSize {
			sliceSize = minSliceSize
		}
	default: // Auto
		perThread := length / int64(threads)
		sliceSize = perThread
		if sliceSize > autoCeiling {
			sliceSize = autoCeiling
		}
		if sliceSize < autoFloor {
			sliceSize = autoFloor
		}
	}

	var bounds []int64
	for b := int64(0); b < length; b += sliceSize {
		bounds = append(bounds, b)
	}
	bounds = append(bounds, length)
	return bounds
}

func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}

func warmStart(desc model.Descriptor, saved *model.IndexRecord, cfg model.Config) ([]*model.Slice, error) {
	if cfg.ContentMD5Enabled && saved.ContentMD5 != "" && desc.ContentMD5 != "" && saved.ContentMD5 != desc.ContentMD5 {
		return coldStart(desc, cfg), nil
	}
	if cfg.RedirectCheckEnabled && saved.EffectiveURL != "" && desc.EffectiveURL != "" && saved.EffectiveURL != desc.EffectiveURL {
		return nil, &ErrRedirectURLDiffers{Saved: saved.EffectiveURL, Fresh: desc.EffectiveURL}
	}
	if saved.SlicePolicySnapshot != "" && saved.SlicePolicySnapshot != snapshotPolicy(cfg.SlicePolicy) {
		return coldStart(desc, cfg), nil
	}

	slices := make([]*model.Slice, len(saved.Slices))
	for i, rec := range saved.Slices {
		length := rec.EndExclusive - rec.Begin
		completed := rec.Completed

		switch {
		case rec.EndExclusive >= 0 && completed == length:
			slices[i] = &model.Slice{
				Index: uint32(i), Begin: rec.Begin, EndExclusive: rec.EndExclusive,
				Completed: completed, Status: model.Done,
			}
		default:
			keep := completed
			if rec.FailedLast {
				keep = 0
			} else if cfg.UncompletedSliceSavePolicy == model.AlwaysDiscard {
				keep = 0
			}
			slices[i] = &model.Slice{
				Index: uint32(i), Begin: rec.Begin, EndExclusive: rec.EndExclusive,
				Completed: keep, Status: model.Pending,
			}
		}
	}
	return slices, nil
}

// SnapshotPolicy returns a stable string identifying a slice policy, used
// to detect a configuration change across a resume: a mismatch against
// the saved snapshot discards the old plan and starts cold.
func SnapshotPolicy(p model.SlicePolicy) string { return snapshotPolicy(p) }

func snapshotPolicy(p model.SlicePolicy) string {
	return fmt.Sprintf("%d:%d", p.Kind, p.Value)
}

// ToRecords converts the live slice list into the persisted shape.
func ToRecords(slices []*model.Slice) []model.SliceRecord {
	out := make([]model.SliceRecord, len(slices))
	for i, s := range slices {
		out[i] = model.SliceRecord{
			Begin:        s.Begin,
			EndExclusive: s.EndExclusive,
			Completed:    s.Completed,
			FailedLast:   s.Status == model.Failed,
		}
	}
	return out
}
