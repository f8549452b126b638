package ephem

import "github.com/litescript/ls-orrery/internal/astro"

// Bracket is the pair of adjacent samples surrounding a query time.
// Outside the tabulated range both ends are the nearest extreme sample.
type Bracket[T Sample] struct {
	Start T
	End   T
}

// Degenerate reports whether the bracket collapses to a single epoch.
func (b Bracket[T]) Degenerate() bool {
	return b.Start.JDTDB() == b.End.JDTDB()
}

// FindBracket locates the samples surrounding queryTDB by binary search.
// Queries at or before the first sample clamp to (first, first); at or
// after the last sample to (last, last).
func FindBracket[T Sample](s *Series[T], queryTDB float64) (Bracket[T], error) {
	if s.Len() == 0 {
		return Bracket[T]{}, ErrEmptySeries
	}
	return search(s.samples, queryTDB), nil
}

// BracketAtUTC converts a UTC Julian Date into the series time base using
// the deltaT of its first sample and returns the surrounding bracket.
func BracketAtUTC[T Sample](s *Series[T], jdUTC float64) (Bracket[T], error) {
	if s.Len() == 0 {
		return Bracket[T]{}, ErrEmptySeries
	}
	q := astro.JulianDateUTCToTDB(jdUTC, s.samples[0].DeltaTSeconds())
	return search(s.samples, q), nil
}

// QueryTDB returns the TDB time to interpolate at within b. deltaT is taken
// from the bracket start and held constant across the bracket.
func (b Bracket[T]) QueryTDB(jdUTC float64) float64 {
	return astro.JulianDateUTCToTDB(jdUTC, b.Start.DeltaTSeconds())
}

func search[T Sample](data []T, q float64) Bracket[T] {
	low, high := 0, len(data)-1

	if q <= data[low].JDTDB() {
		return Bracket[T]{Start: data[low], End: data[low]}
	}
	if q >= data[high].JDTDB() {
		return Bracket[T]{Start: data[high], End: data[high]}
	}

	for low <= high {
		mid := int(uint(low+high) >> 1)
		if data[mid].JDTDB() < q {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	// low == high+1 here, and data[high] < q <= data[low].
	return Bracket[T]{Start: data[high], End: data[low]}
}
