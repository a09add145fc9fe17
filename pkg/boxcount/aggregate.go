package boxcount

import (
	"math/bits"
	"slices"

	"fractaldim/pkg/config"
)

// ScaleBucket holds the box statistics of one scale level
type ScaleBucket struct {
	// Level is the scale level; box edges are extent/2^Level
	Level int

	// Boxes is the number of joint space×occupancy boxes holding at least one sample
	Boxes int

	// OccupiedBoxes counts the boxes whose occupancy field is set.
	// At level 0 it is 1 when any sample is occupied.
	OccupiedBoxes int

	// MassSum and MassSumSq are the sum and sum of squares of per-box sample counts
	MassSum   int64
	MassSumSq int64
}

// Lacunarity returns variance(mass)/mean(mass)^2 + 1 over the level's boxes
func (b ScaleBucket) Lacunarity() float64 {
	if b.Boxes == 0 || b.MassSum == 0 {
		return 0
	}
	sum := float64(b.MassSum)
	return float64(b.Boxes) * float64(b.MassSumSq) / (sum * sum)
}

// Aggregation is the outcome of one sorted pass over a frame's keys
type Aggregation struct {
	Buckets  []ScaleBucket
	Samples  int
	Occupied int
}

// Aggregate sorts keys in place and derives the statistics of every scale
// level from the agreement depths of neighbouring keys.
//
// Two neighbours share a box at level L iff their agreement depth d, the
// length of their common key prefix, is at least 4*L. Box counts therefore
// come from one depth histogram and a cumulative sum. Per-box masses are
// accumulated in the same pass by closing the runs of every level a
// boundary cuts.
func Aggregate(keys []SpatialKey, enc *Encoder) Aggregation {
	width := enc.KeyWidth()
	levels := enc.Bits() + 1
	agg := Aggregation{
		Buckets: make([]ScaleBucket, levels),
		Samples: len(keys),
	}
	for l := range agg.Buckets {
		agg.Buckets[l].Level = l
	}
	if len(keys) == 0 {
		return agg
	}

	slices.Sort(keys)

	occTop := SpatialKey(1) << enc.occupancyTopBit()
	shift := 32 - width

	depthHist := make([]int, width+1)
	occHist := make([]int, width+1)
	runStart := make([]int, levels)

	closeRun := func(l, end int) {
		m := int64(end - runStart[l])
		agg.Buckets[l].MassSum += m
		agg.Buckets[l].MassSumSq += m * m
		runStart[l] = end
	}

	if keys[0]&occTop != 0 {
		agg.Occupied++
	}
	for i := 1; i < len(keys); i++ {
		d := bits.LeadingZeros32(uint32(keys[i]^keys[i-1])) - shift
		depthHist[d]++
		if keys[i]&occTop != 0 {
			agg.Occupied++
			occHist[d]++
		}
		for l := d/config.FieldsPerKey + 1; l < levels; l++ {
			closeRun(l, i)
		}
	}
	for l := 0; l < levels; l++ {
		closeRun(l, len(keys))
	}

	// cum[d] is the number of boundaries with depth < d
	cum := make([]int, width+2)
	occCum := make([]int, width+2)
	for d := 0; d <= width; d++ {
		cum[d+1] = cum[d] + depthHist[d]
		occCum[d+1] = occCum[d] + occHist[d]
	}

	firstOccupied := 0
	if keys[0]&occTop != 0 {
		firstOccupied = 1
	}
	for l := range agg.Buckets {
		depth := config.FieldsPerKey * l
		agg.Buckets[l].Boxes = 1 + cum[depth]
		if l == 0 {
			if agg.Occupied > 0 {
				agg.Buckets[l].OccupiedBoxes = 1
			}
			continue
		}
		agg.Buckets[l].OccupiedBoxes = firstOccupied + occCum[depth]
	}

	return agg
}
