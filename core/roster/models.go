package roster

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/odin/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var (
	AllRoles = []string{RoleStudent, RoleTeacher, RoleAdmin}

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleTeacher: 20,
		RoleStudent: 10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is a roster account. Role is immutable after creation; a role change is
// modeled as re-provisioning. Credits is a cached projection of the credit
// ledger; the attendance and approved practical-work rows remain the source of
// truth and the cache is recomputed by credit.Service.Reconcile.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Credits   float64   `json:"credits"`
	IsActive  *bool     `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }

func (u *User) SetActive(active bool) { u.IsActive = &active }

// Section is a cohort of enrolled students. StudentIDs is a non-owning
// reference set: deleting a Section never deletes its students.
type Section struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Summary    string    `json:"summary"`
	StudentIDs []string  `json:"student_ids"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// HasStudent reports whether the student is enrolled in this section.
func (s *Section) HasStudent(studentID string) bool {
	for _, id := range s.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// CurricularUnit is a subject under which practical work is organized.
type CurricularUnit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Assertion is a verified identity assertion from the external identity
// provider; only its (email, name) contract matters here.
type Assertion struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (a *Assertion) Clean() {
	a.Email = core.CleanString(a.Email, true /* lower */)
	a.Name = core.CleanString(a.Name)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name  string `json:"name" validate:"required,alphanum_"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,rosterrole"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Role and Credits are deliberately absent: the former is immutable, the latter
// only moves through ledger reconciliation.
type UpdateUser struct {
	Name     string `json:"name" validate:"omitempty,alphanum_"`
	Email    string `json:"email" validate:"omitempty,email"`
	IsActive *bool  `json:"is_active"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate, origUsr User, svc *Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(uu.Email, origUsr)
}

// NewSection contains information needed to create a new Section.
type NewSection struct {
	Name       string   `json:"name" validate:"required"`
	Summary    string   `json:"summary"`
	StudentIDs []string `json:"student_ids"`
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Summary = core.CleanString(ns.Summary)
	return validate.Struct(ns)
}

// UpdateSection defines what information may be provided to modify an existing
// Section. A nil StudentIDs keeps the current enrollment.
type UpdateSection struct {
	Name       string   `json:"name"`
	Summary    string   `json:"summary"`
	StudentIDs []string `json:"student_ids"`
}

func (us *UpdateSection) Validate(validate *validator.Validate, origSec Section) error {
	name := core.CleanString(us.Name)
	if name != "" {
		us.Name = name
	} else {
		us.Name = origSec.Name
	}

	summary := core.CleanString(us.Summary)
	if summary != "" {
		us.Summary = summary
	} else {
		us.Summary = origSec.Summary
	}

	if us.StudentIDs == nil {
		us.StudentIDs = origSec.StudentIDs
	}
	return validate.Struct(us)
}

// NewCurricularUnit contains information needed to create a new CurricularUnit.
type NewCurricularUnit struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (nc *NewCurricularUnit) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateCurricularUnit defines what information may be provided to modify an
// existing CurricularUnit.
type UpdateCurricularUnit struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (uc *UpdateCurricularUnit) Validate(validate *validator.Validate, origUnit CurricularUnit) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = origUnit.Name
	}

	desc := core.CleanString(uc.Description)
	if desc != "" {
		uc.Description = desc
	} else {
		uc.Description = origUnit.Description
	}
	return validate.Struct(uc)
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Role     string   `query:"role"`
	IsActive *bool    `query:"is_active"`
	IDs      []string `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.IsActive == nil && qf.IDs == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}

// GetFilter selects a single User by ID or unique Email.
type GetFilter struct {
	ID    string
	Email string
}

var (
	roleTag  = "rosterrole"
	roleText = "invalid role"
)

// InitValidators registers the roster custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
}

// roleValidation checks that the provided role is a known role tag.
func roleValidation(fl validator.FieldLevel) bool {
	role, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
