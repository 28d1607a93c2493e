package models

import "time"

// Detection is a single labeled bounding box produced by a detector for one frame.
// Coordinates are in pixel space of the frame the detection was produced from.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// Severity represents the severity level of an incident
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// String returns the string representation of Severity
func (s Severity) String() string {
	return string(s)
}

// SeverityFor maps a detection confidence onto a severity band.
// Band edges belong to the lower band: 0.85 is medium and 0.70 is low.
func SeverityFor(confidence float64) Severity {
	switch {
	case confidence > 0.85:
		return SeverityHigh
	case confidence > 0.70:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IncidentCandidate is an accident detection accepted by the trigger but not yet persisted.
type IncidentCandidate struct {
	CameraID    string
	Detection   Detection
	Severity    Severity
	Frame       *Frame
	TriggeredAt time.Time
}

// LabelSet is a set of detector labels.
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet from a list of labels, skipping empty entries.
func NewLabelSet(labels ...string) LabelSet {
	set := make(LabelSet, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		set[l] = struct{}{}
	}
	return set
}

// Contains reports whether label is in the set.
func (s LabelSet) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// Count returns how many detections carry a label from the set.
func (s LabelSet) Count(detections []Detection) int {
	n := 0
	for _, d := range detections {
		if s.Contains(d.Label) {
			n++
		}
	}
	return n
}
