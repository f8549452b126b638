// Package ephem holds tabulated ephemeris and orientation series and
// reconstructs continuous state between their samples.
package ephem

import (
	"errors"
	"fmt"

	"github.com/litescript/ls-orrery/internal/astro"
)

var (
	// ErrEmptySeries is returned when a series has no samples.
	ErrEmptySeries = errors.New("empty series")

	// ErrNonMonotonicSeries is returned when sample times do not strictly increase.
	ErrNonMonotonicSeries = errors.New("series times not strictly increasing")
)

// NonMonotonicError locates the first ordering violation in a series.
type NonMonotonicError struct {
	Index int     // index of the offending sample
	Prev  float64 // TDB Julian Date of sample Index-1
	Next  float64 // TDB Julian Date of sample Index
}

func (e *NonMonotonicError) Error() string {
	return fmt.Sprintf("%v: sample %d at JD %.9f does not follow JD %.9f",
		ErrNonMonotonicSeries, e.Index, e.Next, e.Prev)
}

func (e *NonMonotonicError) Unwrap() error {
	return ErrNonMonotonicSeries
}

// Sample is implemented by every tabulated record a Series can hold.
type Sample interface {
	// JDTDB returns the sample epoch as a TDB Julian Date.
	JDTDB() float64
	// DeltaTSeconds returns TDB-UT at the sample epoch, in seconds.
	DeltaTSeconds() float64
}

// EphemerisSample is one tabulated position/velocity observation.
type EphemerisSample struct {
	TimeTDB  float64
	DeltaT   float64
	Position astro.Vec3 // km
	Velocity astro.Vec3 // km/s
}

// JDTDB implements Sample.
func (s EphemerisSample) JDTDB() float64 { return s.TimeTDB }

// DeltaTSeconds implements Sample.
func (s EphemerisSample) DeltaTSeconds() float64 { return s.DeltaT }

// OrientationSample is one tabulated orientation observation.
type OrientationSample struct {
	TimeTDB float64
	DeltaT  float64
	Pole    astro.Vec3 // body center toward north pole
	W       float64    // prime meridian angle, degrees
}

// JDTDB implements Sample.
func (s OrientationSample) JDTDB() float64 { return s.TimeTDB }

// DeltaTSeconds implements Sample.
func (s OrientationSample) DeltaTSeconds() float64 { return s.DeltaT }

// Series is an immutable, time-ordered run of samples for one body.
// A Series always holds at least one sample.
type Series[T Sample] struct {
	samples []T
}

// EphemerisSeries is a position/velocity table.
type EphemerisSeries = Series[EphemerisSample]

// OrientationSeries is a pole/rotation table.
type OrientationSeries = Series[OrientationSample]

// NewSeries validates samples and returns a series over a private copy.
func NewSeries[T Sample](samples []T) (*Series[T], error) {
	if err := Validate(samples); err != nil {
		return nil, err
	}
	cp := make([]T, len(samples))
	copy(cp, samples)
	return &Series[T]{samples: cp}, nil
}

// NewEphemerisSeries validates and wraps position/velocity samples.
func NewEphemerisSeries(samples []EphemerisSample) (*EphemerisSeries, error) {
	return NewSeries(samples)
}

// NewOrientationSeries validates and wraps orientation samples.
func NewOrientationSeries(samples []OrientationSample) (*OrientationSeries, error) {
	return NewSeries(samples)
}

// Validate checks that samples is non-empty and strictly increasing in time.
func Validate[T Sample](samples []T) error {
	if len(samples) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(samples); i++ {
		prev, next := samples[i-1].JDTDB(), samples[i].JDTDB()
		if !(next > prev) {
			return &NonMonotonicError{Index: i, Prev: prev, Next: next}
		}
	}
	return nil
}

// Len returns the number of samples.
func (s *Series[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.samples)
}

// At returns the i-th sample.
func (s *Series[T]) At(i int) T {
	return s.samples[i]
}

// First returns the earliest sample.
func (s *Series[T]) First() T {
	return s.samples[0]
}

// Last returns the latest sample.
func (s *Series[T]) Last() T {
	return s.samples[len(s.samples)-1]
}

// Span returns the TDB Julian Dates of the first and last samples.
func (s *Series[T]) Span() (start, end float64) {
	return s.First().JDTDB(), s.Last().JDTDB()
}

// Covers reports whether jdTDB lies within the tabulated range.
func (s *Series[T]) Covers(jdTDB float64) bool {
	start, end := s.Span()
	return jdTDB >= start && jdTDB <= end
}

// Samples returns a copy of the underlying samples.
func (s *Series[T]) Samples() []T {
	cp := make([]T, len(s.samples))
	copy(cp, s.samples)
	return cp
}
