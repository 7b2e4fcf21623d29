package models

// RecordVisitResult is the outcome of a successful or deduplicated submission.
type RecordVisitResult struct {
	Success      bool   `json:"success"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
	VisitID      string `json:"visit_id,omitempty"`
	Ordinal      int    `json:"ordinal,omitempty"`
}

// RegisterAttendeeResult carries the created attendee and, when an initial
// booth was given, the outcome of that visit.
type RegisterAttendeeResult struct {
	Attendee     *Attendee          `json:"attendee"`
	InitialVisit *RecordVisitResult `json:"initial_visit,omitempty"`
}
