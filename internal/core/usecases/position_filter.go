package usecases

import (
	"sort"

	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/pkg/geospatial"
)

// Filter defaults. Constructors fall back to these when given zero values,
// so config can leave them unset.
const (
	DefaultPositionCapacity        = 8
	DefaultAccuracyThresholdMeters = 15.0
	DefaultMaxSpeedMps             = 30.0
)

// PositionFilter smooths a bounded window of raw GPS fixes into a stable
// filtered pose. Fixes with poor reported accuracy and fixes implying a
// physically implausible jump are rejected before they enter the window.
// Instances are not safe for concurrent use; the monitor serializes access
// per device session.
type PositionFilter struct {
	capacity          int
	accuracyThreshold float64
	maxSpeed          float64

	samples []domain.RawSample
}

// NewPositionFilter creates a new PositionFilter.
func NewPositionFilter(capacity int, accuracyThresholdM, maxSpeedMps float64) *PositionFilter {
	if capacity <= 0 {
		capacity = DefaultPositionCapacity
	}
	if accuracyThresholdM <= 0 {
		accuracyThresholdM = DefaultAccuracyThresholdMeters
	}
	if maxSpeedMps <= 0 {
		maxSpeedMps = DefaultMaxSpeedMps
	}
	return &PositionFilter{
		capacity:          capacity,
		accuracyThreshold: accuracyThresholdM,
		maxSpeed:          maxSpeedMps,
		samples:           make([]domain.RawSample, 0, capacity),
	}
}

// AddSample gates one raw fix and, if accepted, enqueues it and recomputes
// the pose. A rejected sample leaves the window untouched; the returned
// reason says which gate dropped it. Rejection is an expected outcome of
// poor signal, not an error.
func (f *PositionFilter) AddSample(raw domain.RawSample) (*domain.FilteredPose, domain.RejectReason) {
	// Speed gate: compare against the most recently accepted fix. Only
	// enforced once the window holds enough samples to trust, and skipped
	// entirely for out-of-order or duplicate timestamps.
	if n := len(f.samples); n >= 3 {
		prev := f.samples[n-1].Coords
		dtSec := float64(raw.TimestampMs-f.samples[n-1].TimestampMs) / 1000.0
		if dtSec > 0 {
			dist := geospatial.Haversine(prev.Lat, prev.Lon, raw.Coords.Lat, raw.Coords.Lon)
			if dist/dtSec > f.maxSpeed {
				return f.FilteredPose(), domain.RejectSpeedOutlier
			}
		}
	}

	if raw.Coords.AccuracyMeters > f.accuracyThreshold {
		return f.FilteredPose(), domain.RejectAccuracy
	}

	if len(f.samples) >= f.capacity {
		copy(f.samples, f.samples[1:])
		f.samples = f.samples[:len(f.samples)-1]
	}
	f.samples = append(f.samples, raw)

	return f.FilteredPose(), domain.RejectNone
}

// FilteredPose returns the weighted average of the current window, or nil
// when no fix has been accepted yet. Weights combine recency (newer fixes
// count more) with a quadratic preference for accurate fixes. The reported
// accuracy is the mean of the best half of the window and the timestamp is
// the newest sample's.
func (f *PositionFilter) FilteredPose() *domain.FilteredPose {
	n := len(f.samples)
	if n == 0 {
		return nil
	}

	var sumW, sumLat, sumLon float64
	for i, s := range f.samples {
		w := recencyWeight(i, n) * accuracyWeight(s.Coords.AccuracyMeters)
		sumW += w
		sumLat += s.Coords.Lat * w
		sumLon += s.Coords.Lon * w
	}

	accuracies := make([]float64, n)
	for i, s := range f.samples {
		accuracies[i] = s.Coords.AccuracyMeters
	}
	sort.Float64s(accuracies)
	best := (n + 1) / 2
	var sumAcc float64
	for _, a := range accuracies[:best] {
		sumAcc += a
	}

	return &domain.FilteredPose{
		Lat:            sumLat / sumW,
		Lon:            sumLon / sumW,
		AccuracyMeters: sumAcc / float64(best),
		TimestampMs:    f.samples[n-1].TimestampMs,
	}
}

// Len returns the number of fixes currently in the window.
func (f *PositionFilter) Len() int { return len(f.samples) }

// Reset clears the window, used on mode transitions such as switching sites.
func (f *PositionFilter) Reset() { f.samples = f.samples[:0] }

// recencyWeight scales linearly from 0.5 for the oldest queued fix to 1.5
// for the newest. A single fix weighs 1.0.
func recencyWeight(i, n int) float64 {
	if n <= 1 {
		return 1.0
	}
	return 0.5 + float64(i)/float64(n-1)
}

// accuracyWeight is (max(1, 25-acc)/25)^2, near zero beyond 25 m.
func accuracyWeight(accuracyMeters float64) float64 {
	d := 25.0 - accuracyMeters
	if d < 1 {
		d = 1
	}
	w := d / 25.0
	return w * w
}
