// Package sink writes per-frame results to their destinations.
package sink

import (
	"errors"

	"fractaldim/pkg/boxcount"
)

// ErrIO wraps every failure to create, write or flush an output
var ErrIO = errors.New("output error")

// Sink receives frame results in ascending frame order
type Sink interface {
	Write(res boxcount.FrameResult) error
	Flush() error
	Close() error
}

// Multi fans every call out to several sinks, stopping at the first error
type Multi []Sink

// Write implements Sink
func (m Multi) Write(res boxcount.FrameResult) error {
	for _, s := range m {
		if err := s.Write(res); err != nil {
			return err
		}
	}
	return nil
}

// Flush implements Sink
func (m Multi) Flush() error {
	for _, s := range m {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and returns the first error
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
