package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"fractaldim/internal/models"
)

// Viewer renders axis-aligned slices of an occupancy mask
type Viewer struct {
	mask models.Mask
}

// NewViewer creates a new slice viewer over a mask
func NewViewer(mask models.Mask) *Viewer {
	return &Viewer{mask: mask}
}

// ExtractSlice extracts a 2D slice from the mask along the specified axis.
// Occupied voxels are white, empty voxels black.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	m := v.mask
	var img *image.Gray

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= m.X {
			return nil, fmt.Errorf("position %d exceeds x extent %d", position, m.X)
		}
		img = image.NewGray(image.Rect(0, 0, m.Z, m.Y))
		for y := 0; y < m.Y; y++ {
			for z := 0; z < m.Z; z++ {
				img.SetGray(z, y, cellColor(m.At(position, y, z)))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= m.Y {
			return nil, fmt.Errorf("position %d exceeds y extent %d", position, m.Y)
		}
		img = image.NewGray(image.Rect(0, 0, m.X, m.Z))
		for z := 0; z < m.Z; z++ {
			for x := 0; x < m.X; x++ {
				img.SetGray(x, z, cellColor(m.At(x, position, z)))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= m.Z {
			return nil, fmt.Errorf("position %d exceeds z extent %d", position, m.Z)
		}
		img = image.NewGray(image.Rect(0, 0, m.X, m.Y))
		for y := 0; y < m.Y; y++ {
			for x := 0; x < m.X; x++ {
				img.SetGray(x, y, cellColor(m.At(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveMidSlices writes the central slice along each axis to outputDir,
// named <prefix>_<axis>.png, and returns the written paths.
func (v *Viewer) SaveMidSlices(outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	mid := map[string]int{
		"x": v.mask.X / 2,
		"y": v.mask.Y / 2,
		"z": v.mask.Z / 2,
	}

	var paths []string
	for _, axis := range []string{"x", "y", "z"} {
		img, err := v.ExtractSlice(axis, mid[axis])
		if err != nil {
			return paths, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.png", prefix, axis))
		if err := v.SaveSlice(img, filename); err != nil {
			return paths, err
		}
		paths = append(paths, filename)
	}

	return paths, nil
}

func cellColor(v uint8) color.Gray {
	if v == 0 {
		return color.Gray{Y: 0}
	}
	return color.Gray{Y: 255}
}
