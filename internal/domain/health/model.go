package health

import (
	"strings"
	"time"
)

// SignalKind identifies one physiological reading type.
type SignalKind string

const (
	SignalHRV             SignalKind = "hrv"
	SignalHeartRate       SignalKind = "heart_rate"
	SignalMindfulness     SignalKind = "mindfulness"
	SignalRespiratoryRate SignalKind = "respiratory_rate"
)

// SignalKinds lists every supported kind in scoring order.
var SignalKinds = []SignalKind{SignalHRV, SignalHeartRate, SignalMindfulness, SignalRespiratoryRate}

// ParseSignalKind accepts the canonical names plus a few platform aliases.
func ParseSignalKind(raw string) (SignalKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hrv", "heart_rate_variability", "heartratevariability":
		return SignalHRV, true
	case "heart_rate", "heartrate", "hr":
		return SignalHeartRate, true
	case "mindfulness", "mindful_session", "mindfulsession":
		return SignalMindfulness, true
	case "respiratory_rate", "respiratoryrate":
		return SignalRespiratoryRate, true
	default:
		return "", false
	}
}

// Sample is a stored health reading. Mindfulness samples carry no value,
// only the session interval.
type Sample struct {
	ID        string     `json:"id"`
	Kind      SignalKind `json:"kind"`
	Value     float64    `json:"value"`
	StartDate time.Time  `json:"startDate"`
	EndDate   time.Time  `json:"endDate"`
}

// MindfulSession is one recorded mindfulness interval.
type MindfulSession struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Minutes returns the session length in minutes.
func (s MindfulSession) Minutes() float64 {
	return s.EndDate.Sub(s.StartDate).Minutes()
}

// AuthorizationStatus reports whether health data can be read.
type AuthorizationStatus struct {
	Available bool `json:"available"`
	Granted   bool `json:"granted"`
}

// SampleInput is the ingest payload for a single reading.
type SampleInput struct {
	Kind      string    `json:"kind"`
	Value     float64   `json:"value"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// IngestRequest carries a batch of readings pushed by the device.
type IngestRequest struct {
	Samples []SampleInput `json:"samples"`
}

// IngestResponse reports how many readings were stored.
type IngestResponse struct {
	Stored int `json:"stored"`
}

// MindfulSessionRequest asks for a session ending now.
type MindfulSessionRequest struct {
	DurationSeconds float64 `json:"durationSeconds"`
}

// MindfulSessionResponse describes the outcome of a mindful session write.
type MindfulSessionResponse struct {
	Recorded  bool      `json:"recorded"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}
