// Package analysis drives the per-frame box-counting pipeline over a 4-D series.
package analysis

import (
	"fmt"
	"log"
	"time"

	"gonum.org/v1/gonum/stat"

	"fractaldim/internal/models"
	"fractaldim/pkg/boxcount"
	"fractaldim/pkg/config"
	"fractaldim/pkg/sink"
	"fractaldim/pkg/visualization"
)

// Params holds the driver parameters
type Params struct {
	// Analysis configures thresholding, key encoding and regression
	Analysis config.Analysis

	// Mapper selects how keys are generated for each frame.
	// Defaults to SequentialMapper when nil.
	Mapper KeyMapper

	// FlushEvery flushes the sink after every frame whose index is a multiple of it
	FlushEvery int

	// Verbose logs one line per processed frame
	Verbose bool

	// MaskDir, when set, receives the central occupancy slices of every frame
	MaskDir string
}

// Summary describes a completed run
type Summary struct {
	Frames        int
	EmptyFrames   int
	MeanDimension float64
	StdDimension  float64
	Elapsed       time.Duration
}

// Driver runs the box-counting pipeline frame by frame
type Driver struct {
	params      *Params
	thresholder boxcount.Thresholder
	encoder     *boxcount.Encoder
	estimator   *boxcount.Estimator

	// dimensions of the non-empty frames seen by the last Process call
	dimensions []float64
	summary    Summary
}

// NewDriver creates a driver. The analysis parameters are validated here so
// the encoder and the aggregator agree on the key layout.
func NewDriver(params *Params) (*Driver, error) {
	if err := params.Analysis.Validate(); err != nil {
		return nil, err
	}
	if params.Mapper == nil {
		params.Mapper = SequentialMapper{}
	}
	if params.FlushEvery < 1 {
		params.FlushEvery = 1
	}
	return &Driver{
		params:      params,
		thresholder: boxcount.NewThresholder(params.Analysis),
		encoder:     boxcount.NewEncoder(params.Analysis),
		estimator:   boxcount.NewEstimator(params.Analysis),
	}, nil
}

// Keys returns the sorted keys of one frame
func (d *Driver) Keys(g models.Grid) ([]boxcount.SpatialKey, error) {
	keys := make([]boxcount.SpatialKey, g.Len())
	if err := d.params.Mapper.MapKeys(g, d.encoder, keys); err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return keys, nil
}

// AnalyzeFrame estimates the dimension and lacunarity of a single frame
func (d *Driver) AnalyzeFrame(frame int, g models.Grid) (boxcount.FrameResult, error) {
	keys, err := d.Keys(g)
	if err != nil {
		return boxcount.FrameResult{Frame: frame}, err
	}
	agg := boxcount.Aggregate(keys, d.encoder)
	return d.estimator.Estimate(frame, agg, g.X, g.Y, g.Z)
}

// Process analyses every frame of series in index order and hands each
// result to out as soon as it is available. The sink is flushed
// periodically and once more at the end. Any error stops the run; results
// flushed before it stay in the sink.
func (d *Driver) Process(series *models.Series, out sink.Sink) error {
	startTime := time.Now()
	d.dimensions = d.dimensions[:0]
	d.summary = Summary{}

	for t := 0; t < series.Frames; t++ {
		g, err := series.Frame(t)
		if err != nil {
			return err
		}

		res, err := d.AnalyzeFrame(t, g)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		if d.params.MaskDir != "" {
			if err := d.saveMask(t, g); err != nil {
				return err
			}
		}

		if err := out.Write(res); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", t, err)
		}
		if t%d.params.FlushEvery == 0 {
			if err := out.Flush(); err != nil {
				return fmt.Errorf("failed to flush after frame %d: %w", t, err)
			}
		}

		d.summary.Frames++
		if res.Empty {
			d.summary.EmptyFrames++
		} else {
			d.dimensions = append(d.dimensions, res.Dimension)
		}

		if d.params.Verbose {
			log.Printf("Processed frame: %d", t)
		}
	}

	if err := out.Flush(); err != nil {
		return fmt.Errorf("final flush failed: %w", err)
	}

	switch len(d.dimensions) {
	case 0:
	case 1:
		d.summary.MeanDimension = d.dimensions[0]
	default:
		d.summary.MeanDimension, d.summary.StdDimension = stat.MeanStdDev(d.dimensions, nil)
	}
	d.summary.Elapsed = time.Since(startTime)

	return nil
}

// saveMask writes the thresholded central slices of frame t
func (d *Driver) saveMask(t int, g models.Grid) error {
	mask := d.thresholder.Threshold(g)
	viewer := visualization.NewViewer(mask)
	if _, err := viewer.SaveMidSlices(d.params.MaskDir, fmt.Sprintf("frame_%04d", t)); err != nil {
		return fmt.Errorf("%w: failed to save mask slices of frame %d: %w", sink.ErrIO, t, err)
	}
	return nil
}

// GetSummary returns the statistics of the last Process call
func (d *Driver) GetSummary() Summary {
	return d.summary
}
