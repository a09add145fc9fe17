package sink

import (
	"fmt"

	"fractaldim/pkg/boxcount"
	"fractaldim/pkg/visualization"
)

// PlotSink collects the dimension series and renders it when closed
type PlotSink struct {
	path  string
	chart *visualization.DimensionChart
}

// NewPlotSink creates a sink that saves a chart to path on Close
func NewPlotSink(path, title string) *PlotSink {
	return &PlotSink{
		path:  path,
		chart: visualization.NewDimensionChart(title),
	}
}

// Write implements Sink
func (p *PlotSink) Write(res boxcount.FrameResult) error {
	p.chart.Add(res.Frame, res.Dimension, res.Empty)
	return nil
}

// Flush implements Sink. The chart is only rendered on Close.
func (p *PlotSink) Flush() error {
	return nil
}

// Close renders the chart
func (p *PlotSink) Close() error {
	if p.chart.Len() == 0 {
		return nil
	}
	if err := p.chart.Save(p.path); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}
