package models

// RankedCandidate is a candidate profile together with the number of weekdays
// it shares with the viewer. It only lives for one ranking pass.
type RankedCandidate struct {
	Profile             Profile `json:"profile"`
	AvailabilityOverlap int     `json:"availability_overlap"`
}
