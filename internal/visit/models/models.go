package models

import (
	"slices"
	"strconv"
	"time"

	id "checkin/pkg/domain"
)

// VisitMethod tags how a visit was captured.
type VisitMethod string

const (
	MethodQRScan       VisitMethod = "qr_scan"
	MethodRegistration VisitMethod = "registration"
)

// IsValid checks if the method is one of the supported values.
func (m VisitMethod) IsValid() bool {
	return m == MethodQRScan || m == MethodRegistration
}

func (m VisitMethod) String() string {
	return string(m)
}

// Attendee is a registered visitor. VisitCount always equals the size of
// VisitedOrganizations once a transaction commits.
type Attendee struct {
	ID                   id.AttendeeID       `json:"id"`
	Email                string              `json:"email"`
	Program              string              `json:"program"`
	VisitedOrganizations []id.OrganizationID `json:"visited_organizations"`
	VisitCount           int                 `json:"visit_count"`
	LastVisitTime        *time.Time          `json:"last_visit_time,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	Version              int64               `json:"-"`
}

// HasVisited reports whether the attendee has already visited orgID.
func (a *Attendee) HasVisited(orgID id.OrganizationID) bool {
	return slices.Contains(a.VisitedOrganizations, orgID)
}

// NextOrdinal is the 1-based position of the attendee's next visit.
func (a *Attendee) NextOrdinal() int {
	return a.VisitCount + 1
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (a *Attendee) Clone() *Attendee {
	if a == nil {
		return nil
	}
	c := *a
	c.VisitedOrganizations = slices.Clone(a.VisitedOrganizations)
	if a.LastVisitTime != nil {
		t := *a.LastVisitTime
		c.LastVisitTime = &t
	}
	return &c
}

// Organization is a booth. VisitorCount always equals the size of VisitorIDs.
type Organization struct {
	ID           id.OrganizationID `json:"id"`
	Name         string            `json:"name"`
	BoothNumber  string            `json:"booth_number"`
	VisitorIDs   []id.AttendeeID   `json:"visitor_ids"`
	VisitorCount int               `json:"visitor_count"`
	CreatedAt    time.Time         `json:"created_at"`
	Version      int64             `json:"-"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	c := *o
	c.VisitorIDs = slices.Clone(o.VisitorIDs)
	return &c
}

// VisitRecord is the immutable log entry written alongside the two
// aggregate updates.
type VisitRecord struct {
	ID               string            `json:"id"`
	AttendeeID       id.AttendeeID     `json:"attendee_id"`
	OrganizationID   id.OrganizationID `json:"organization_id"`
	AttendeeEmail    string            `json:"attendee_email"`
	AttendeeProgram  string            `json:"attendee_program"`
	OrganizationName string            `json:"organization_name"`
	BoothNumber      string            `json:"booth_number"`
	VisitedAt        time.Time         `json:"visited_at"`
	Method           VisitMethod       `json:"method"`
}

// Ordinal recovers the position encoded in the record id, or 0 if the id is
// not in the expected form.
func (r *VisitRecord) Ordinal() int {
	prefix := r.AttendeeID.String() + "_"
	if len(r.ID) <= len(prefix) || r.ID[:len(prefix)] != prefix {
		return 0
	}
	n, err := strconv.Atoi(r.ID[len(prefix):])
	if err != nil {
		return 0
	}
	return n
}

// VisitID builds the log id for the attendee's ordinal-th visit.
func VisitID(attendeeID id.AttendeeID, ordinal int) string {
	return attendeeID.String() + "_" + strconv.Itoa(ordinal)
}

// AttendeeVisitPatch is the attendee side of one visit.
type AttendeeVisitPatch struct {
	AddOrganization id.OrganizationID
	VisitCount      int
	LastVisitTime   time.Time
}

// OrganizationVisitPatch is the organization side of one visit.
type OrganizationVisitPatch struct {
	AddVisitor id.AttendeeID
}
