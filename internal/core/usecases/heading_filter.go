package usecases

import "math"

// DefaultHeadingCapacity is the window size for heading smoothing.
const DefaultHeadingCapacity = 10

// HeadingFilter smooths compass headings over a bounded window using a
// circular mean, so readings straddling the 0/360 wrap average correctly.
// Instances are not safe for concurrent use.
type HeadingFilter struct {
	capacity int
	headings []float64
}

// NewHeadingFilter creates a new HeadingFilter.
func NewHeadingFilter(capacity int) *HeadingFilter {
	if capacity <= 0 {
		capacity = DefaultHeadingCapacity
	}
	return &HeadingFilter{
		capacity: capacity,
		headings: make([]float64, 0, capacity),
	}
}

// AddHeading enqueues one heading in degrees and returns the recomputed
// filtered heading. NaN readings are dropped.
func (f *HeadingFilter) AddHeading(deg float64) float64 {
	if math.IsNaN(deg) {
		return f.FilteredHeading()
	}
	if len(f.headings) >= f.capacity {
		copy(f.headings, f.headings[1:])
		f.headings = f.headings[:len(f.headings)-1]
	}
	f.headings = append(f.headings, deg)
	return f.FilteredHeading()
}

// FilteredHeading returns the circular mean of the window normalized to
// [0,360), or 0 when the window is empty. Each heading becomes a unit
// vector; the mean is the angle of the vector sum, so [359, 1] averages to
// 0 rather than 180.
func (f *HeadingFilter) FilteredHeading() float64 {
	if len(f.headings) == 0 {
		return 0
	}
	var sumSin, sumCos float64
	for _, h := range f.headings {
		r := h * math.Pi / 180.0
		sumSin += math.Sin(r)
		sumCos += math.Cos(r)
	}
	deg := math.Atan2(sumSin, sumCos) * 180.0 / math.Pi
	if deg < 0 {
		deg += 360
	}
	// Float rounding can land exactly on 360 after the wrap.
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// Len returns the number of headings currently in the window.
func (f *HeadingFilter) Len() int { return len(f.headings) }

// Reset clears the window.
func (f *HeadingFilter) Reset() { f.headings = f.headings[:0] }
