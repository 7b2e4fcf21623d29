package models

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RecordVisitRequest is one booth scan. Display fields are denormalized into
// the visit log as supplied by the scanner.
type RecordVisitRequest struct {
	AttendeeID       string      `json:"attendee_id" validate:"required"`
	AttendeeEmail    string      `json:"attendee_email" validate:"omitempty,email,max=254"`
	AttendeeProgram  string      `json:"attendee_program" validate:"max=128"`
	OrganizationID   string      `json:"organization_id" validate:"required"`
	OrganizationName string      `json:"organization_name" validate:"max=256"`
	BoothNumber      string      `json:"booth_number" validate:"max=32"`
	Method           VisitMethod `json:"method,omitempty" validate:"omitempty,oneof=qr_scan registration"`
}

// Normalize trims free text fields and defaults the method.
func (r *RecordVisitRequest) Normalize() {
	if r == nil {
		return
	}
	r.AttendeeID = strings.TrimSpace(r.AttendeeID)
	r.AttendeeEmail = strings.TrimSpace(strings.ToLower(r.AttendeeEmail))
	r.AttendeeProgram = strings.TrimSpace(r.AttendeeProgram)
	r.OrganizationID = strings.TrimSpace(r.OrganizationID)
	r.OrganizationName = strings.TrimSpace(r.OrganizationName)
	r.BoothNumber = strings.TrimSpace(r.BoothNumber)
	if r.Method == "" {
		r.Method = MethodQRScan
	}
}

// Validate checks required fields and identifier syntax.
func (r *RecordVisitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	if _, err := id.ParseAttendeeID(r.AttendeeID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid attendee_id")
	}
	if _, err := id.ParseOrganizationID(r.OrganizationID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid organization_id")
	}
	return nil
}

// RegisterAttendeeRequest creates an attendee, optionally with the booth at
// which they registered.
type RegisterAttendeeRequest struct {
	ID                    string `json:"id" validate:"required"`
	Email                 string `json:"email" validate:"required,email,max=254"`
	Program               string `json:"program" validate:"max=128"`
	InitialOrganizationID string `json:"initial_organization_id,omitempty"`
}

// Normalize trims and lowercases input fields.
func (r *RegisterAttendeeRequest) Normalize() {
	if r == nil {
		return
	}
	r.ID = strings.TrimSpace(r.ID)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	r.Program = strings.TrimSpace(r.Program)
	r.InitialOrganizationID = strings.TrimSpace(r.InitialOrganizationID)
}

// Validate checks required fields and identifier syntax.
func (r *RegisterAttendeeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	if _, err := id.ParseAttendeeID(r.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid id")
	}
	if r.InitialOrganizationID != "" {
		if _, err := id.ParseOrganizationID(r.InitialOrganizationID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid initial_organization_id")
		}
	}
	return nil
}

// CreateOrganizationRequest creates a booth.
type CreateOrganizationRequest struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required,max=256"`
	BoothNumber string `json:"booth_number" validate:"max=32"`
}

// Normalize trims input fields.
func (r *CreateOrganizationRequest) Normalize() {
	if r == nil {
		return
	}
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.BoothNumber = strings.TrimSpace(r.BoothNumber)
}

// Validate checks required fields and identifier syntax.
func (r *CreateOrganizationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	if _, err := id.ParseOrganizationID(r.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid id")
	}
	return nil
}

// validationError reports the first failing field by its json name.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return dErrors.New(dErrors.CodeValidation, fe.Field()+" failed "+fe.Tag()+" validation")
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
}
