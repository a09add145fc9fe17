package analysis

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fractaldim/internal/models"
	"fractaldim/pkg/boxcount"
	"fractaldim/pkg/config"
	"fractaldim/pkg/sink"
)

// recordingSink keeps every result and notes after which frame each flush happened
type recordingSink struct {
	results     []boxcount.FrameResult
	flushedAt   []int
	closed      bool
	failWriteAt int
}

func (r *recordingSink) Write(res boxcount.FrameResult) error {
	if r.failWriteAt > 0 && res.Frame == r.failWriteAt {
		return sink.ErrIO
	}
	r.results = append(r.results, res)
	return nil
}

func (r *recordingSink) Flush() error {
	r.flushedAt = append(r.flushedAt, len(r.results)-1)
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

// createTestSeries builds a series whose frame t holds a growing cube of side t
func createTestSeries(frames, n int) *models.Series {
	s := &models.Series{
		Data:   make([]int32, frames*n*n*n),
		Frames: frames,
		X:      n,
		Y:      n,
		Z:      n,
	}
	for t := 0; t < frames; t++ {
		g, _ := s.Frame(t)
		side := min(t, n)
		for x := 0; x < side; x++ {
			for y := 0; y < side; y++ {
				for z := 0; z < side; z++ {
					g.Set(x, y, z, int32(2+(x+y+z)%3))
				}
			}
		}
	}
	return s
}

func newTestDriver(t *testing.T, mapper KeyMapper) *Driver {
	t.Helper()
	d, err := NewDriver(&Params{
		Analysis:   config.DefaultAnalysis(),
		Mapper:     mapper,
		FlushEvery: 10,
	})
	require.NoError(t, err)
	return d
}

func TestSequentialAndParallelAgree(t *testing.T) {
	series := createTestSeries(6, 13)
	seq := newTestDriver(t, SequentialMapper{})

	for _, cores := range []int{1, 2, 3, 8, 64} {
		par := newTestDriver(t, ParallelMapper{NumCores: cores})

		for f := 0; f < series.Frames; f++ {
			g, err := series.Frame(f)
			require.NoError(t, err)

			seqKeys, err := seq.Keys(g)
			require.NoError(t, err)
			parKeys, err := par.Keys(g)
			require.NoError(t, err)
			if diff := cmp.Diff(seqKeys, parKeys); diff != "" {
				t.Fatalf("cores=%d frame=%d: unsorted keys differ (-seq +par):\n%s", cores, f, diff)
			}

			slices.Sort(seqKeys)
			slices.Sort(parKeys)
			if diff := cmp.Diff(seqKeys, parKeys); diff != "" {
				t.Fatalf("cores=%d frame=%d: sorted keys differ (-seq +par):\n%s", cores, f, diff)
			}

			seqRes, seqErr := seq.AnalyzeFrame(f, g)
			parRes, parErr := par.AnalyzeFrame(f, g)
			require.Equal(t, seqErr == nil, parErr == nil)
			if diff := cmp.Diff(seqRes, parRes); diff != "" {
				t.Errorf("cores=%d frame=%d: results differ (-seq +par):\n%s", cores, f, diff)
			}
		}
	}
}

func TestParallelMapperRejectsShortBuffer(t *testing.T) {
	g := models.NewGrid(4, 4, 4)
	enc := boxcount.NewEncoder(config.DefaultAnalysis())

	err := ParallelMapper{NumCores: 4}.MapKeys(g, enc, make([]boxcount.SpatialKey, 10))
	assert.Error(t, err)
	err = SequentialMapper{}.MapKeys(g, enc, make([]boxcount.SpatialKey, 10))
	assert.Error(t, err)
}

func TestProcessEmitsFramesInOrder(t *testing.T) {
	series := createTestSeries(25, 8)
	d := newTestDriver(t, ParallelMapper{NumCores: 4})
	out := &recordingSink{}

	require.NoError(t, d.Process(series, out))

	require.Len(t, out.results, 25)
	for i, res := range out.results {
		assert.Equal(t, i, res.Frame)
	}

	// frame 0 is empty, every other frame holds a solid cube
	assert.True(t, out.results[0].Empty)
	assert.Equal(t, boxcount.EmptyDimension, out.results[0].Dimension)
	assert.InDelta(t, 3.0, out.results[24].Dimension, 0.1)

	// flushed after frames 0, 10 and 20, then once more at the end
	assert.Equal(t, []int{0, 10, 20, 24}, out.flushedAt)
	assert.False(t, out.closed, "closing the sink is left to the caller")

	summary := d.GetSummary()
	assert.Equal(t, 25, summary.Frames)
	assert.Equal(t, 1, summary.EmptyFrames)
	assert.Greater(t, summary.MeanDimension, 0.0)
}

func TestProcessStopsOnSinkError(t *testing.T) {
	series := createTestSeries(6, 4)
	d := newTestDriver(t, SequentialMapper{})
	out := &recordingSink{failWriteAt: 3}

	err := d.Process(series, out)
	require.ErrorIs(t, err, sink.ErrIO)
	assert.Len(t, out.results, 3)
}

func TestProcessStopsOnDegenerateFrame(t *testing.T) {
	// a 1x1x1 grid can never yield two scale levels
	series := &models.Series{Data: []int32{0, 7, 0}, Frames: 3, X: 1, Y: 1, Z: 1}
	d := newTestDriver(t, SequentialMapper{})
	out := &recordingSink{}

	err := d.Process(series, out)
	require.ErrorIs(t, err, boxcount.ErrNumerical)
	require.Len(t, out.results, 1)
	assert.True(t, out.results[0].Empty)
}

func TestNewDriverValidatesAnalysis(t *testing.T) {
	a := config.DefaultAnalysis()
	a.KeyWidth = 28

	_, err := NewDriver(&Params{Analysis: a})
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestProcessSavesMasks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "masks")
	d, err := NewDriver(&Params{
		Analysis:   config.DefaultAnalysis(),
		FlushEvery: 1,
		MaskDir:    dir,
	})
	require.NoError(t, err)

	require.NoError(t, d.Process(createTestSeries(2, 4), &recordingSink{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 6)
	_, err = os.Stat(filepath.Join(dir, "frame_0001_z.png"))
	assert.NoError(t, err)
}

func TestSummaryStatistics(t *testing.T) {
	d := newTestDriver(t, SequentialMapper{})
	require.NoError(t, d.Process(createTestSeries(5, 16), &recordingSink{}))

	s := d.GetSummary()
	assert.Equal(t, 5, s.Frames)
	assert.Equal(t, 1, s.EmptyFrames)
	assert.False(t, math.IsNaN(s.StdDimension))
}
