package domain

// Coordinates is one platform sensor reading as delivered by a device.
// Heading and speed are optional; not every fix carries them.
type Coordinates struct {
	Lat            float64  `json:"lat"`
	Lon            float64  `json:"lon"`
	AccuracyMeters float64  `json:"accuracy_m"`
	HeadingDeg     *float64 `json:"heading_deg,omitempty"`
	SpeedMps       *float64 `json:"speed_mps,omitempty"`
}

// RawSample is one GPS delivery from a device, at whatever cadence the
// platform chooses.
type RawSample struct {
	Coords      Coordinates `json:"coords"`
	TimestampMs int64       `json:"timestamp_ms"`
}

// FilteredPose is the smoothed location estimate derived from a bounded
// window of raw fixes. It is owned by the position filter; callers must
// treat it as read-only.
type FilteredPose struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	AccuracyMeters float64 `json:"accuracy_m"`
	TimestampMs    int64   `json:"timestamp_ms"`
}

// RejectReason classifies why the position filter dropped a sample.
// Transient poor signal is an expected operating condition, so rejections
// are reported as results rather than errors.
type RejectReason string

const (
	RejectNone         RejectReason = ""
	RejectAccuracy     RejectReason = "accuracy"
	RejectSpeedOutlier RejectReason = "speed_outlier"
)
