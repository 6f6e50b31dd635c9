package voc

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/odin/core"
)

// Disposition is the explicit three-state approval machine of a practical
// session: Pending → Approved | Rejected, both terminal.
type Disposition string

const (
	DispositionPending  Disposition = "pending"
	DispositionApproved Disposition = "approved"
	DispositionRejected Disposition = "rejected"
)

// Terminal reports whether the disposition is a valid decision outcome.
func (d Disposition) Terminal() bool {
	return d == DispositionApproved || d == DispositionRejected
}

// Voc is a practical-work session a student completes independently for a
// curricular unit. Ended stays null while the work is in progress; approval of
// an open-ended record is invalid.
type Voc struct {
	ID               string      `json:"id"`
	Description      string      `json:"description"`
	StudentID        string      `json:"student_id"`
	CurricularUnitID string      `json:"curricular_unit_id"`
	Started          time.Time   `json:"started"`
	Ended            null.Time   `json:"ended"`
	Disposition      Disposition `json:"disposition"`
	CreatedAt        time.Time   `json:"created_at"` // UTC
	UpdatedAt        time.Time   `json:"updated_at"` // UTC
}

func (v *Voc) Pending() bool { return v.Disposition == DispositionPending }

// NewVoc contains information needed to submit a new practical session.
type NewVoc struct {
	Description      string    `json:"description" validate:"required,max=255"`
	StudentID        string    `json:"student_id" validate:"required"`
	CurricularUnitID string    `json:"curricular_unit_id" validate:"required"`
	Started          time.Time `json:"started" validate:"required"`
	Ended            null.Time `json:"ended"`
}

func (nv *NewVoc) Validate(validate *validator.Validate) error {
	nv.Description = core.CleanString(nv.Description)
	if err := validate.Struct(nv); err != nil {
		return err
	}
	return checkInterval(nv.Started, nv.Ended)
}

// UpdateVoc defines what information may be provided to modify a still-pending
// practical session.
type UpdateVoc struct {
	Description string    `json:"description" validate:"omitempty,max=255"`
	Started     time.Time `json:"started"`
	Ended       null.Time `json:"ended"`
}

func (uv *UpdateVoc) Validate(validate *validator.Validate, origVoc Voc) error {
	desc := core.CleanString(uv.Description)
	if desc != "" {
		uv.Description = desc
	} else {
		uv.Description = origVoc.Description
	}

	if uv.Started.IsZero() {
		uv.Started = origVoc.Started
	}
	if !uv.Ended.Valid {
		uv.Ended = origVoc.Ended
	}

	if err := validate.Struct(uv); err != nil {
		return err
	}
	return checkInterval(uv.Started, uv.Ended)
}

// Decision is a terminal outcome for a pending practical session.
type Decision struct {
	Outcome Disposition `json:"outcome" validate:"required,vocoutcome"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	return validate.Struct(d)
}

type QueryFilter struct {
	StudentID        string      `query:"student"`
	CurricularUnitID string      `query:"curricular_unit"`
	Disposition      Disposition `query:"disposition"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.CurricularUnitID == "" && qf.Disposition == ""
}

func checkInterval(started time.Time, ended null.Time) error {
	if ended.Valid && ended.Time.Before(started) {
		return core.NewValidationError(ErrInvalidInterval, core.FieldError{Field: "ended", Error: ErrInvalidInterval.Error()})
	}
	return nil
}
