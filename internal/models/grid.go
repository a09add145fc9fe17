package models

import "fmt"

// Grid is a single 3-D frame of raw intensities
type Grid struct {
	// Data holds the intensities in row-major order, index (x*Y + y)*Z + z
	Data []int32

	// X, Y, Z are the extents of the grid in voxels
	X, Y, Z int
}

// NewGrid allocates a zeroed grid with the given extents
func NewGrid(x, y, z int) Grid {
	return Grid{
		Data: make([]int32, x*y*z),
		X:    x,
		Y:    y,
		Z:    z,
	}
}

// Len returns the number of voxels in the grid
func (g Grid) Len() int {
	return g.X * g.Y * g.Z
}

// Index returns the flat offset of voxel (x, y, z)
func (g Grid) Index(x, y, z int) int {
	return (x*g.Y+y)*g.Z + z
}

// Coords is the inverse of Index
func (g Grid) Coords(i int) (x, y, z int) {
	z = i % g.Z
	i /= g.Z
	y = i % g.Y
	x = i / g.Y
	return x, y, z
}

// At returns the intensity at (x, y, z)
func (g Grid) At(x, y, z int) int32 {
	return g.Data[g.Index(x, y, z)]
}

// Set stores an intensity at (x, y, z)
func (g Grid) Set(x, y, z int, v int32) {
	g.Data[g.Index(x, y, z)] = v
}

// Mask is an occupancy grid of the same shape as the Grid it was derived from.
// Every cell is either 0 (empty) or the occupied byte value.
type Mask struct {
	Data    []uint8
	X, Y, Z int
}

// Index returns the flat offset of voxel (x, y, z)
func (m Mask) Index(x, y, z int) int {
	return (x*m.Y+y)*m.Z + z
}

// At returns the occupancy byte at (x, y, z)
func (m Mask) At(x, y, z int) uint8 {
	return m.Data[m.Index(x, y, z)]
}

// Series is the 4-D input: a sequence of equally shaped frames.
// Time is the outermost axis and Data is row-major.
type Series struct {
	Data    []int32
	Frames  int
	X, Y, Z int
}

// FrameSize returns the number of voxels per frame
func (s *Series) FrameSize() int {
	return s.X * s.Y * s.Z
}

// Frame returns a view of frame t. The returned grid shares storage with the series.
func (s *Series) Frame(t int) (Grid, error) {
	if t < 0 || t >= s.Frames {
		return Grid{}, fmt.Errorf("frame %d out of range [0, %d)", t, s.Frames)
	}
	n := s.FrameSize()
	return Grid{
		Data: s.Data[t*n : (t+1)*n],
		X:    s.X,
		Y:    s.Y,
		Z:    s.Z,
	}, nil
}
