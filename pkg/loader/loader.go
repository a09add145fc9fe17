// Package loader reads 4-D simulation output from compressed NumPy archives.
package loader

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/sbinet/npyio/npy"
	"github.com/sbinet/npyio/npz"

	"fractaldim/internal/models"
	"fractaldim/pkg/config"
)

// ErrInputFormat is returned when the archive cannot be read or does not
// hold a usable 4-D integer array.
var ErrInputFormat = errors.New("invalid input archive")

// Load reads the array named by a.ArrayName from the .npz archive at path.
// The outermost axis is time; both C and Fortran storage orders are
// accepted and the returned series is always row-major.
func Load(path string, a config.Analysis) (*models.Series, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrInputFormat, path, err)
	}
	defer r.Close()

	key, ok := findKey(r.Keys(), a.ArrayName)
	if !ok {
		return nil, fmt.Errorf("%w: could not load array by name %s (archive holds %v)",
			ErrInputFormat, a.ArrayName, r.Keys())
	}

	rc, err := r.Open(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open array %s: %w", ErrInputFormat, key, err)
	}
	defer rc.Close()

	nr, err := npy.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header of %s: %w", ErrInputFormat, key, err)
	}

	shape := nr.Header.Descr.Shape
	if len(shape) != 4 {
		return nil, fmt.Errorf("%w: expected 4D array, got shape %v", ErrInputFormat, shape)
	}
	var dims [4]int
	total := 1
	for i, n := range shape {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative extent in shape %v", ErrInputFormat, shape)
		}
		dims[i] = n
		total *= n
	}

	data, err := readInt32(nr, nr.Header.Descr.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: array %s: %w", ErrInputFormat, a.ArrayName, err)
	}
	if len(data) != total {
		return nil, fmt.Errorf("%w: array %s holds %d values, shape %v needs %d",
			ErrInputFormat, a.ArrayName, len(data), shape, total)
	}

	if nr.Header.Descr.Fortran {
		data = fortranToRowMajor(data, dims)
	}

	return &models.Series{
		Data:   data,
		Frames: dims[0],
		X:      dims[1],
		Y:      dims[2],
		Z:      dims[3],
	}, nil
}

// findKey returns the archive entry holding the named array. Entries are
// stored as <name>.npy; the name may be given with or without the suffix.
func findKey(keys []string, name string) (string, bool) {
	want := strings.TrimSuffix(name, ".npy")
	i := slices.IndexFunc(keys, func(k string) bool {
		return strings.TrimSuffix(k, ".npy") == want
	})
	if i < 0 {
		return "", false
	}
	return keys[i], true
}

// reader is the part of the npy reader used here
type reader interface {
	Read(ptr any) error
}

// readInt32 decodes the payload according to its dtype and widens or
// clamps every value into int32.
func readInt32(r reader, descr string) ([]int32, error) {
	dtype := strings.TrimLeft(descr, "<>|=")

	switch dtype {
	case "i4":
		var v []int32
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return v, nil
	case "i1":
		var v []int8
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return convert(v), nil
	case "u1":
		var v []uint8
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return convert(v), nil
	case "i2":
		var v []int16
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return convert(v), nil
	case "u2":
		var v []uint16
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return convert(v), nil
	case "u4":
		var v []uint32
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return convert(v), nil
	case "i8":
		var v []int64
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return convert(v), nil
	case "u8":
		var v []uint64
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		return convert(v), nil
	case "b1":
		var v []bool
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		out := make([]int32, len(v))
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported dtype %q, expected an integer array", descr)
}

type integer interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~uint32 | ~int64 | ~uint64
}

func convert[T integer](v []T) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = clampInt32(x)
	}
	return out
}

func clampInt32[T integer](x T) int32 {
	switch {
	case x < 0 && int64(x) < math.MinInt32:
		return math.MinInt32
	case x > 0 && uint64(x) > math.MaxInt32:
		return math.MaxInt32
	}
	return int32(x)
}

// fortranToRowMajor reorders a column-major (t, x, y, z) array
func fortranToRowMajor(data []int32, dims [4]int) []int32 {
	out := make([]int32, len(data))
	nt, nx, ny, nz := dims[0], dims[1], dims[2], dims[3]
	i := 0
	for t := 0; t < nt; t++ {
		for x := 0; x < nx; x++ {
			for y := 0; y < ny; y++ {
				for z := 0; z < nz; z++ {
					out[i] = data[t+nt*(x+nx*(y+ny*z))]
					i++
				}
			}
		}
	}
	return out
}
