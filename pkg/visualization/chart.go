// Package visualization renders occupancy masks and dimension series as images.
package visualization

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DimensionChart accumulates (frame, dimension) samples and renders them
// as a line chart.
type DimensionChart struct {
	title  string
	points plotter.XYs
	empty  plotter.XYs
}

// NewDimensionChart creates an empty chart
func NewDimensionChart(title string) *DimensionChart {
	return &DimensionChart{title: title}
}

// Add records one frame. Empty frames are drawn as separate markers on the
// frame axis instead of joining the line.
func (c *DimensionChart) Add(frame int, dimension float64, empty bool) {
	pt := plotter.XY{X: float64(frame), Y: dimension}
	if empty {
		c.empty = append(c.empty, pt)
		return
	}
	c.points = append(c.points, pt)
}

// Len returns the number of recorded frames
func (c *DimensionChart) Len() int {
	return len(c.points) + len(c.empty)
}

// Save renders the chart to path. The image format follows the file extension.
func (c *DimensionChart) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = c.title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Fractal dimension"
	p.Y.Min = 0
	p.Y.Max = 3
	p.Add(plotter.NewGrid())

	if len(c.points) > 0 {
		line, err := plotter.NewLine(c.points)
		if err != nil {
			return fmt.Errorf("failed to build line: %w", err)
		}
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("dimension", line)
	}

	if len(c.empty) > 0 {
		scatter, err := plotter.NewScatter(c.empty)
		if err != nil {
			return fmt.Errorf("failed to build markers: %w", err)
		}
		scatter.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		p.Add(scatter)
		p.Legend.Add("empty frame", scatter)
	}

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
