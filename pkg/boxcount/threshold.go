// Package boxcount implements box-counting fractal dimension and lacunarity
// estimation over 3-D occupancy grids.
//
// A frame is processed in four steps:
//  1. Thresholding turns raw intensities into an occupancy mask.
//  2. Every voxel is encoded into a multiscale key by interleaving its
//     quantized coordinates with its occupancy byte.
//  3. The sorted keys are scanned once; the shared prefix length of
//     neighbouring keys tells at which scales the two voxels share a box.
//  4. A least-squares fit of log box count against log box size gives the
//     dimension.
package boxcount

import (
	"fractaldim/internal/models"
	"fractaldim/pkg/config"
)

// Thresholder classifies intensities into empty and occupied voxels
type Thresholder struct {
	cutoff   int32
	occupied uint8
}

// NewThresholder creates a thresholder from the analysis parameters
func NewThresholder(a config.Analysis) Thresholder {
	return Thresholder{
		cutoff:   a.Cutoff,
		occupied: a.OccupiedValue(),
	}
}

// Classify returns the occupancy byte for one intensity.
// Values below the cutoff are empty (0), anything else is occupied.
func (t Thresholder) Classify(v int32) uint8 {
	if v < t.cutoff {
		return 0
	}
	return t.occupied
}

// Threshold maps a whole grid to an occupancy mask of the same shape
func (t Thresholder) Threshold(g models.Grid) models.Mask {
	m := models.Mask{
		Data: make([]uint8, len(g.Data)),
		X:    g.X,
		Y:    g.Y,
		Z:    g.Z,
	}
	for i, v := range g.Data {
		m.Data[i] = t.Classify(v)
	}
	return m
}
