package analysis

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"fractaldim/internal/models"
	"fractaldim/pkg/boxcount"
)

// KeyMapper produces the spatial key of every voxel of a frame.
// Implementations differ only in how the work is scheduled; every mapper
// must fill dst[i] with enc.EncodeSample(g, i).
type KeyMapper interface {
	MapKeys(g models.Grid, enc *boxcount.Encoder, dst []boxcount.SpatialKey) error
	Name() string
}

// SequentialMapper encodes all voxels on the calling goroutine
type SequentialMapper struct{}

// Name returns the strategy name
func (SequentialMapper) Name() string { return "sequential" }

// MapKeys implements KeyMapper
func (SequentialMapper) MapKeys(g models.Grid, enc *boxcount.Encoder, dst []boxcount.SpatialKey) error {
	if len(dst) != g.Len() {
		return fmt.Errorf("key buffer holds %d entries, grid has %d voxels", len(dst), g.Len())
	}
	enc.EncodeRange(g, dst, 0, len(dst))
	return nil
}

// ParallelMapper splits the voxels into contiguous ranges, one per core.
// Each goroutine writes only its own range of dst.
type ParallelMapper struct {
	NumCores int
}

// Name returns the strategy name
func (m ParallelMapper) Name() string { return fmt.Sprintf("parallel(%d)", m.NumCores) }

// MapKeys implements KeyMapper
func (m ParallelMapper) MapKeys(g models.Grid, enc *boxcount.Encoder, dst []boxcount.SpatialKey) error {
	n := len(dst)
	if n != g.Len() {
		return fmt.Errorf("key buffer holds %d entries, grid has %d voxels", n, g.Len())
	}

	workers := min(max(m.NumCores, 1), n)
	if workers <= 1 {
		enc.EncodeRange(g, dst, 0, n)
		return nil
	}

	// Divide the work among available cores
	chunk := (n + workers - 1) / workers

	var eg errgroup.Group
	eg.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		eg.Go(func() error {
			enc.EncodeRange(g, dst, start, end)
			return nil
		})
	}

	return eg.Wait()
}
