package boxcount

import (
	"fractaldim/internal/models"
	"fractaldim/pkg/config"
)

// SpatialKey is a 4-D Morton code of (x, y, z, occupancy).
//
// With B bits per field the key uses the low 4*B bits. Fields are
// interleaved most significant bit first and, inside each 4-bit group,
// ordered x, y, z, occupancy. Bit b of field f (x=0, y=1, z=2, occ=3)
// lands on key bit 4*b + (3 - f). For B = 8:
//
//	bit 31 30 29 28 | 27 26 25 24 | ... | 3  2  1  0
//	    x7 y7 z7 o7 | x6 y6 z6 o6 | ... | x0 y0 z0 o0
//
// Keys sharing their top 4*L bits lie in the same box at scale level L.
type SpatialKey uint32

// Field indices inside a key group
const (
	FieldX = iota
	FieldY
	FieldZ
	FieldOccupancy
)

// Encoder quantizes voxel coordinates and builds spatial keys
type Encoder struct {
	bits        int
	buckets     uint64
	thresholder Thresholder
}

// NewEncoder creates an encoder. The analysis parameters must already be validated.
func NewEncoder(a config.Analysis) *Encoder {
	return &Encoder{
		bits:        a.BitsPerDim,
		buckets:     uint64(a.Buckets()),
		thresholder: NewThresholder(a),
	}
}

// Bits returns the number of bits per field
func (e *Encoder) Bits() int {
	return e.bits
}

// KeyWidth returns the number of significant key bits
func (e *Encoder) KeyWidth() int {
	return config.FieldsPerKey * e.bits
}

// Quantize bins coordinate c of an axis with the given extent into one of
// 2^bits buckets. Axes longer than the bucket count share buckets.
func (e *Encoder) Quantize(c, extent int) uint8 {
	if c <= 0 || extent <= 0 {
		return 0
	}
	q := uint64(c) * e.buckets / uint64(extent)
	if q >= e.buckets {
		q = e.buckets - 1
	}
	return uint8(q)
}

// Interleave packs four field values into a key
func (e *Encoder) Interleave(x, y, z, occ uint8) SpatialKey {
	fields := [config.FieldsPerKey]uint8{x, y, z, occ}
	var key uint32
	for b := e.bits - 1; b >= 0; b-- {
		for _, f := range fields {
			key = key<<1 | uint32(f>>b)&1
		}
	}
	return SpatialKey(key)
}

// Decode splits a key back into its four field values
func (e *Encoder) Decode(k SpatialKey) (x, y, z, occ uint8) {
	var fields [config.FieldsPerKey]uint8
	for b := 0; b < e.bits; b++ {
		for f := range fields {
			bit := uint8(uint32(k)>>(config.FieldsPerKey*b+(config.FieldsPerKey-1-f))) & 1
			fields[f] |= bit << b
		}
	}
	return fields[FieldX], fields[FieldY], fields[FieldZ], fields[FieldOccupancy]
}

// Encode builds the key of voxel (x, y, z) with the given occupancy byte
// inside a grid of extents (gx, gy, gz).
func (e *Encoder) Encode(x, y, z int, occ uint8, gx, gy, gz int) SpatialKey {
	return e.Interleave(e.Quantize(x, gx), e.Quantize(y, gy), e.Quantize(z, gz), occ)
}

// EncodeSample thresholds and encodes the voxel at flat offset i of g.
// Every key mapping strategy goes through this function.
func (e *Encoder) EncodeSample(g models.Grid, i int) SpatialKey {
	x, y, z := g.Coords(i)
	return e.Encode(x, y, z, e.thresholder.Classify(g.Data[i]), g.X, g.Y, g.Z)
}

// EncodeRange fills dst[start:end] with the keys of voxels start..end-1
func (e *Encoder) EncodeRange(g models.Grid, dst []SpatialKey, start, end int) {
	for i := start; i < end; i++ {
		dst[i] = e.EncodeSample(g, i)
	}
}

// occupancyTopBit is the key bit holding the most significant occupancy bit
func (e *Encoder) occupancyTopBit() uint {
	return uint(config.FieldsPerKey*(e.bits-1) + (config.FieldsPerKey - 1 - FieldOccupancy))
}
