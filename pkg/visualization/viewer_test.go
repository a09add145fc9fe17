package visualization

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"fractaldim/internal/models"
)

// createTestMask builds a mask where only voxels with x == y are occupied
func createTestMask(nx, ny, nz int) models.Mask {
	m := models.Mask{Data: make([]uint8, nx*ny*nz), X: nx, Y: ny, Z: nz}
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				if x == y {
					m.Data[m.Index(x, y, z)] = 255
				}
			}
		}
	}
	return m
}

// TestExtractSlice verifies slice dimensions and pixel values along every axis
func TestExtractSlice(t *testing.T) {
	m := createTestMask(6, 4, 3)
	viewer := NewViewer(m)

	tests := []struct {
		axis          string
		position      int
		width, height int
	}{
		{"x", 2, 3, 4},
		{"y", 1, 6, 3},
		{"z", 0, 6, 4},
	}

	for _, tt := range tests {
		t.Run(tt.axis, func(t *testing.T) {
			img, err := viewer.ExtractSlice(tt.axis, tt.position)
			if err != nil {
				t.Fatalf("Failed to extract %s slice: %v", tt.axis, err)
			}
			b := img.Bounds()
			if b.Dx() != tt.width || b.Dy() != tt.height {
				t.Errorf("Expected %dx%d slice, got %dx%d", tt.width, tt.height, b.Dx(), b.Dy())
			}
		})
	}

	// On the z slice, pixel (x, y) is white exactly when x == y
	img, err := viewer.ExtractSlice("z", 1)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	gray := img.(*image.Gray)
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			want := uint8(0)
			if x == y {
				want = 255
			}
			if got := gray.GrayAt(x, y).Y; got != want {
				t.Errorf("pixel (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

// TestExtractSliceErrors verifies invalid positions and axes are rejected
func TestExtractSliceErrors(t *testing.T) {
	viewer := NewViewer(createTestMask(4, 4, 4))

	if _, err := viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected error for negative position")
	}
	if _, err := viewer.ExtractSlice("y", 4); err == nil {
		t.Error("Expected error for out-of-range position")
	}
	if _, err := viewer.ExtractSlice("w", 0); err == nil {
		t.Error("Expected error for invalid axis")
	}
}

// TestSaveMidSlices verifies that one PNG per axis is written
func TestSaveMidSlices(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "masks")
	viewer := NewViewer(createTestMask(5, 5, 5))

	paths, err := viewer.SaveMidSlices(dir, "frame_0003")
	if err != nil {
		t.Fatalf("Failed to save slices: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(paths))
	}
	for _, p := range paths {
		assertPNG(t, p)
	}
	if filepath.Base(paths[2]) != "frame_0003_z.png" {
		t.Errorf("Unexpected file name %s", filepath.Base(paths[2]))
	}
}

// TestDimensionChart verifies that the chart renders to a PNG file
func TestDimensionChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "dimension.png")

	chart := NewDimensionChart("test run")
	chart.Add(0, 0, true)
	for i := 1; i < 20; i++ {
		chart.Add(i, 1.5+float64(i)/20, false)
	}
	if chart.Len() != 20 {
		t.Errorf("Expected 20 samples, got %d", chart.Len())
	}

	if err := chart.Save(path); err != nil {
		t.Fatalf("Failed to save chart: %v", err)
	}
	assertPNG(t, path)
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("%s is not a PNG file", path)
	}
}
