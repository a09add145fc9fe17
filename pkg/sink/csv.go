package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"fractaldim/pkg/boxcount"
)

// Column names of the delimited output
const (
	FrameColumn      = "FrameNumber"
	DimensionColumn  = "FractalDimension"
	LacunarityPrefix = "Lacunarity"
)

// CSVSink writes one delimited row per frame. Non-numeric fields such as
// the header names are always quoted, numeric fields never are.
type CSVSink struct {
	w          *bufio.Writer
	closer     io.Closer
	sep        byte
	lacunarity int
	rows       int
}

// CreateCSV creates the output file at path and writes the header row.
// When lacunarityLevels is positive, one Λ column per level is appended.
func CreateCSV(path string, sep byte, lacunarityLevels int) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create %s: %w", ErrIO, path, err)
	}
	s, err := NewCSV(f, sep, lacunarityLevels)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewCSV wraps an arbitrary writer and writes the header row
func NewCSV(w io.Writer, sep byte, lacunarityLevels int) (*CSVSink, error) {
	s := &CSVSink{
		w:          bufio.NewWriter(w),
		sep:        sep,
		lacunarity: max(lacunarityLevels, 0),
	}

	header := []string{quote(FrameColumn), quote(DimensionColumn)}
	for l := 0; l < s.lacunarity; l++ {
		header = append(header, quote(LacunarityPrefix+strconv.Itoa(l)))
	}
	if err := s.writeRow(header); err != nil {
		return nil, err
	}
	return s, nil
}

// Write implements Sink
func (s *CSVSink) Write(res boxcount.FrameResult) error {
	row := []string{
		strconv.Itoa(res.Frame),
		formatFloat(res.Dimension),
	}
	for l := 0; l < s.lacunarity; l++ {
		v := 0.0
		if l < len(res.Lacunarity) {
			v = res.Lacunarity[l]
		}
		row = append(row, formatFloat(v))
	}
	if err := s.writeRow(row); err != nil {
		return err
	}
	s.rows++
	return nil
}

// Rows returns the number of data rows written so far
func (s *CSVSink) Rows() int {
	return s.rows
}

// Flush pushes buffered rows to the underlying writer
func (s *CSVSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("%w: flush failed: %w", ErrIO, err)
	}
	return nil
}

// Close flushes and closes the underlying file, if any
func (s *CSVSink) Close() error {
	err := s.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close failed: %w", ErrIO, cerr)
		}
		s.closer = nil
	}
	return err
}

func (s *CSVSink) writeRow(fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := s.w.WriteByte(s.sep); err != nil {
				return fmt.Errorf("%w: %w", ErrIO, err)
			}
		}
		if _, err := s.w.WriteString(f); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
