package usecases_test

import (
	"math"
	"testing"

	"github.com/digsentry/digsentry/internal/core/usecases"
)

func TestHeadingFilter_EmptyReturnsZero(t *testing.T) {
	f := usecases.NewHeadingFilter(0)
	if h := f.FilteredHeading(); h != 0 {
		t.Fatalf("expected 0 for empty filter, got %f", h)
	}
}

func TestHeadingFilter_WrapAverage(t *testing.T) {
	f := usecases.NewHeadingFilter(0)
	f.AddHeading(359)
	got := f.AddHeading(1)

	// Distance from 0 accounting for the wrap.
	diff := got
	if diff > 180 {
		diff = 360 - diff
	}
	if diff > 1.0 {
		t.Errorf("expected circular mean of 359 and 1 near 0, got %f", got)
	}
	if math.Abs(got-180) < 90 {
		t.Errorf("arithmetic-mean artifact: got %f", got)
	}
}

func TestHeadingFilter_SimpleMean(t *testing.T) {
	f := usecases.NewHeadingFilter(0)
	f.AddHeading(10)
	got := f.AddHeading(20)
	if math.Abs(got-15) > 1e-9 {
		t.Errorf("expected 15, got %f", got)
	}
}

func TestHeadingFilter_NormalizesNegativeInput(t *testing.T) {
	f := usecases.NewHeadingFilter(0)
	got := f.AddHeading(-90)
	if math.Abs(got-270) > 1e-9 {
		t.Errorf("expected -90 to normalize to 270, got %f", got)
	}
}

func TestHeadingFilter_RejectsNaN(t *testing.T) {
	f := usecases.NewHeadingFilter(0)
	f.AddHeading(90)
	got := f.AddHeading(math.NaN())
	if f.Len() != 1 {
		t.Fatalf("expected NaN dropped, window has %d entries", f.Len())
	}
	if math.Abs(got-90) > 1e-9 {
		t.Errorf("expected heading unchanged at 90, got %f", got)
	}
}

func TestHeadingFilter_EvictsBeyondCapacity(t *testing.T) {
	f := usecases.NewHeadingFilter(3)
	for _, h := range []float64{0, 0, 0, 90, 90, 90} {
		f.AddHeading(h)
	}
	if f.Len() != 3 {
		t.Fatalf("expected window capped at 3, got %d", f.Len())
	}
	if got := f.FilteredHeading(); math.Abs(got-90) > 1e-9 {
		t.Errorf("expected 90 after old headings evicted, got %f", got)
	}
}

func TestHeadingFilter_Reset(t *testing.T) {
	f := usecases.NewHeadingFilter(0)
	f.AddHeading(45)
	f.Reset()
	if f.Len() != 0 {
		t.Errorf("expected empty window after reset, got %d", f.Len())
	}
	if h := f.FilteredHeading(); h != 0 {
		t.Errorf("expected 0 after reset, got %f", h)
	}
}
