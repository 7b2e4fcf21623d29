package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

func TestVisitID(t *testing.T) {
	assert.Equal(t, "ab12345_1", VisitID("ab12345", 1))
	assert.Equal(t, "ab12345_12", VisitID("ab12345", 12))

	rec := &VisitRecord{ID: "ab12345_12", AttendeeID: "ab12345"}
	assert.Equal(t, 12, rec.Ordinal())

	rec = &VisitRecord{ID: "other_3", AttendeeID: "ab12345"}
	assert.Zero(t, rec.Ordinal())
}

func TestAttendeeCloneIsDeep(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a := &Attendee{
		ID:                   "ab12345",
		VisitedOrganizations: []id.OrganizationID{"google"},
		VisitCount:           1,
		LastVisitTime:        &ts,
	}
	c := a.Clone()
	c.VisitedOrganizations[0] = "meta"
	*c.LastVisitTime = ts.Add(time.Hour)

	assert.Equal(t, id.OrganizationID("google"), a.VisitedOrganizations[0])
	assert.Equal(t, ts, *a.LastVisitTime)
	assert.True(t, a.HasVisited("google"))
	assert.False(t, a.HasVisited("meta"))
	assert.Equal(t, 2, a.NextOrdinal())
}

func TestRecordVisitRequestValidate(t *testing.T) {
	valid := func() RecordVisitRequest {
		return RecordVisitRequest{
			AttendeeID:       " ab12345 ",
			AttendeeEmail:    "Student@Andrew.cmu.edu",
			AttendeeProgram:  "CS",
			OrganizationID:   "google",
			OrganizationName: "Google",
			BoothNumber:      "B12",
		}
	}

	t.Run("normalized request passes", func(t *testing.T) {
		req := valid()
		req.Normalize()
		require.NoError(t, req.Validate())
		assert.Equal(t, "ab12345", req.AttendeeID)
		assert.Equal(t, "student@andrew.cmu.edu", req.AttendeeEmail)
		assert.Equal(t, MethodQRScan, req.Method)
	})

	tests := []struct {
		name    string
		mutate  func(*RecordVisitRequest)
		message string
	}{
		{"missing attendee", func(r *RecordVisitRequest) { r.AttendeeID = "" }, "attendee_id failed required validation"},
		{"missing organization", func(r *RecordVisitRequest) { r.OrganizationID = "   " }, "organization_id failed required validation"},
		{"bad email", func(r *RecordVisitRequest) { r.AttendeeEmail = "nope" }, "attendee_email failed email validation"},
		{"bad method", func(r *RecordVisitRequest) { r.Method = "nfc" }, "method failed oneof validation"},
		{"bad attendee chars", func(r *RecordVisitRequest) { r.AttendeeID = "ab 123" }, "invalid attendee_id"},
		{"bad organization chars", func(r *RecordVisitRequest) { r.OrganizationID = "g/oo" }, "invalid organization_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			req.Normalize()
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	t.Run("nil request", func(t *testing.T) {
		var req *RecordVisitRequest
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})
}

func TestRegisterAttendeeRequestValidate(t *testing.T) {
	req := RegisterAttendeeRequest{ID: "ab12345", Email: "a@b.co", InitialOrganizationID: "google"}
	req.Normalize()
	require.NoError(t, req.Validate())

	req.InitialOrganizationID = "bad id"
	assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))

	req = RegisterAttendeeRequest{ID: "ab12345"}
	assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
}

func TestCreateOrganizationRequestValidate(t *testing.T) {
	req := CreateOrganizationRequest{ID: " google ", Name: " Google ", BoothNumber: "B12"}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "Google", req.Name)

	req.Name = ""
	assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
}
