package tech

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/odin/core"
)

// Tech is a theoretical class session held by a teacher for a section.
// MissedIDs is the recorded miss list; it may only reference students enrolled
// in the session's section and is materialized into ClassAttendance rows.
type Tech struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	SectionID string    `json:"section_id"`
	Date      time.Time `json:"date"`
	Summary   string    `json:"summary"`
	MissedIDs []string  `json:"miss_tech"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Missed reports whether the student is in the session's miss list.
func (t *Tech) Missed(studentID string) bool {
	for _, id := range t.MissedIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// ClassAttendance is the per-student-per-session attendance fact: exactly one
// row exists per (student, tech) pair; Attended is false iff the student was in
// the session's miss list when it was last saved.
type ClassAttendance struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	TechID    string `json:"tech_id"`
	Attended  bool   `json:"attended"`
}

// StudentAttendance pairs a session with one student's attendance fact.
type StudentAttendance struct {
	Tech     Tech `json:"tech"`
	Attended bool `json:"attended"`
}

// NewTech contains information needed to record a new class session.
type NewTech struct {
	TeacherID string    `json:"teacher_id" validate:"required"`
	SectionID string    `json:"section_id" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`
	Summary   string    `json:"summary" validate:"required,max=50"`
	MissedIDs []string  `json:"miss_tech"`
}

func (nt *NewTech) Validate(validate *validator.Validate) error {
	nt.Summary = core.CleanString(nt.Summary)
	return validate.Struct(nt)
}

// UpdateTech defines what information may be provided to modify an existing
// session. A nil MissedIDs keeps the current miss list; a non-nil one replaces
// it and the attendance rows are recomputed to match.
type UpdateTech struct {
	Date      time.Time `json:"date"`
	Summary   string    `json:"summary" validate:"omitempty,max=50"`
	MissedIDs []string  `json:"miss_tech"`
}

func (ut *UpdateTech) Validate(validate *validator.Validate, origTech Tech) error {
	summary := core.CleanString(ut.Summary)
	if summary != "" {
		ut.Summary = summary
	} else {
		ut.Summary = origTech.Summary
	}

	if ut.Date.IsZero() {
		ut.Date = origTech.Date
	}
	if ut.MissedIDs == nil {
		ut.MissedIDs = origTech.MissedIDs
	}
	return validate.Struct(ut)
}

type QueryFilter struct {
	TeacherID string   `query:"teacher"`
	SectionID string   `query:"section"`
	IDs       []string `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.TeacherID == "" && qf.SectionID == "" && qf.IDs == nil
}
