package roster

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/odin/core"
)

var (
	// errors
	ErrNotFound         = errors.New("user not found")
	ErrSectionNotFound  = errors.New("section not found")
	ErrUnitNotFound     = errors.New("curricular unit not found")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrUserInUse        = errors.New("user has recorded attendance or practical work")
	ErrSectionInUse     = errors.New("section has recorded class sessions")
	ErrUnitInUse        = errors.New("curricular unit has recorded practical work")
	ErrInvalidAssertion = errors.New("identity assertion is missing email or name")

	errUnknownStudents = "one or more students do not exist or are not student accounts"
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// UpdateUserCredits stores the cached credit projection for a user.
		UpdateUserCredits(ctx context.Context, userID string, credits float64, exec ...core.DBExecutor) (User, error)
		DeleteUser(ctx context.Context, id string, exec ...core.DBExecutor) error
		// RemoveStudentFromSections drops the student's id from every section's
		// reference set. Sections never own students; this is the explicit cleanup
		// that replaces implicit cascades.
		RemoveStudentFromSections(ctx context.Context, studentID string, exec ...core.DBExecutor) error

		CreateSection(ctx context.Context, sec Section, exec ...core.DBExecutor) (Section, error)
		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (Section, error)
		QuerySections(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Section, error)
		UpdateSection(ctx context.Context, sec Section, exec ...core.DBExecutor) (Section, error)
		DeleteSection(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateCurricularUnit(ctx context.Context, unit CurricularUnit, exec ...core.DBExecutor) (CurricularUnit, error)
		GetCurricularUnit(ctx context.Context, id string, exec ...core.DBExecutor) (CurricularUnit, error)
		QueryCurricularUnits(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]CurricularUnit, error)
		UpdateCurricularUnit(ctx context.Context, unit CurricularUnit, exec ...core.DBExecutor) (CurricularUnit, error)
		DeleteCurricularUnit(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// HistoryChecker reports whether ledger history still references a roster
	// entity. Deletion is blocked while history exists; ledgers are never
	// silently orphaned.
	HistoryChecker interface {
		HasUserHistory(ctx context.Context, userID string) (bool, error)
		HasSectionHistory(ctx context.Context, sectionID string) (bool, error)
		HasCurricularUnitHistory(ctx context.Context, unitID string) (bool, error)
	}

	Service struct {
		db             core.DB
		repo           Repository
		isStudentEmail func(string) bool
		checkers       []HistoryChecker
	}
)

func NewService(db core.DB, repo Repository, conf *core.Config, checkers ...HistoryChecker) *Service {
	return &Service{
		db:             db,
		repo:           repo,
		isStudentEmail: conf.StudentEmailRegex.MatchString,
		checkers:       checkers,
	}
}

func (svc *Service) CheckEmailUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Resolve maps a verified identity assertion to exactly one account. It is
// idempotent: a login never duplicates or overwrites an existing account. On
// first login the subject is classified by the injected student-address
// predicate and provisioned as a Student or a staff (teacher) account.
func (svc *Service) Resolve(ctx context.Context, asrt Assertion) (User, error) {
	asrt.Clean()
	if asrt.Email == "" || asrt.Name == "" {
		return User{}, ErrInvalidAssertion
	}

	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: asrt.Email})
	if err == nil {
		return usr, nil
	}
	if err != ErrNotFound {
		return User{}, err
	}

	role := RoleTeacher
	if svc.isStudentEmail(asrt.Email) {
		role = RoleStudent
	}
	now := time.Now().UTC()
	usr = User{
		Name:      asrt.Name,
		Email:     asrt.Email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)

	usr, err = svc.repo.CreateUser(ctx, usr)
	if err == ErrEmailExists {
		// lost a first-login race; the winner's row is the account
		return svc.repo.GetUser(ctx, GetFilter{Email: asrt.Email})
	}
	return usr, err
}

// Users

func (svc *Service) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) QueryUsers(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetUser(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) UpdateUser(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Email:     uu.Email,
		IsActive:  uu.IsActive,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateUser(ctx, usr)
}

// DeleteUser deletes a user and cleans up section references. Deletion is
// blocked with ErrUserInUse while attendance or practical-work history exists.
func (svc *Service) DeleteUser(ctx context.Context, id string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	for _, checker := range svc.checkers {
		inUse, err := checker.HasUserHistory(ctx, usr.ID)
		if err != nil {
			return err
		}
		if inUse {
			return ErrUserInUse
		}
	}
	return core.AtomicFn(ctx, svc.db, func(tx core.DBTransactor) error {
		if err := svc.repo.RemoveStudentFromSections(ctx, usr.ID, tx); err != nil {
			return err
		}
		return svc.repo.DeleteUser(ctx, usr.ID, tx)
	})
}

// Sections

func (svc *Service) CreateSection(ctx context.Context, ns NewSection) (Section, error) {
	if err := svc.validateStudentIDs(ctx, ns.StudentIDs); err != nil {
		return Section{}, err
	}
	now := time.Now().UTC()
	sec := Section{
		Name:       ns.Name,
		Summary:    ns.Summary,
		StudentIDs: ns.StudentIDs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateSection(ctx, sec)
}

func (svc *Service) GetSection(ctx context.Context, id string) (Section, error) {
	return svc.repo.GetSection(ctx, id)
}

func (svc *Service) QuerySections(ctx context.Context, ordering ...core.DBOrdering) ([]Section, error) {
	return svc.repo.QuerySections(ctx, ordering)
}

func (svc *Service) UpdateSection(ctx context.Context, id string, us UpdateSection) (Section, error) {
	if err := svc.validateStudentIDs(ctx, us.StudentIDs); err != nil {
		return Section{}, err
	}
	sec := Section{
		ID:         id,
		Name:       us.Name,
		Summary:    us.Summary,
		StudentIDs: us.StudentIDs,
		UpdatedAt:  time.Now().UTC(),
	}
	return svc.repo.UpdateSection(ctx, sec)
}

func (svc *Service) DeleteSection(ctx context.Context, id string) error {
	sec, err := svc.repo.GetSection(ctx, id)
	if err != nil {
		return err
	}
	for _, checker := range svc.checkers {
		inUse, err := checker.HasSectionHistory(ctx, sec.ID)
		if err != nil {
			return err
		}
		if inUse {
			return ErrSectionInUse
		}
	}
	return svc.repo.DeleteSection(ctx, sec.ID)
}

func (svc *Service) EnrollStudent(ctx context.Context, sectionID, studentID string) (Section, error) {
	if err := svc.validateStudentIDs(ctx, []string{studentID}); err != nil {
		return Section{}, err
	}
	sec, err := svc.repo.GetSection(ctx, sectionID)
	if err != nil {
		return Section{}, err
	}
	if sec.HasStudent(studentID) {
		return sec, nil
	}
	sec.StudentIDs = append(sec.StudentIDs, studentID)
	sec.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSection(ctx, sec)
}

func (svc *Service) RemoveStudent(ctx context.Context, sectionID, studentID string) (Section, error) {
	sec, err := svc.repo.GetSection(ctx, sectionID)
	if err != nil {
		return Section{}, err
	}
	ids := make([]string, 0, len(sec.StudentIDs))
	for _, id := range sec.StudentIDs {
		if id != studentID {
			ids = append(ids, id)
		}
	}
	sec.StudentIDs = ids
	sec.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSection(ctx, sec)
}

// Curricular Units

func (svc *Service) CreateCurricularUnit(ctx context.Context, nc NewCurricularUnit) (CurricularUnit, error) {
	now := time.Now().UTC()
	unit := CurricularUnit{
		Name:        nc.Name,
		Description: nc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCurricularUnit(ctx, unit)
}

func (svc *Service) GetCurricularUnit(ctx context.Context, id string) (CurricularUnit, error) {
	return svc.repo.GetCurricularUnit(ctx, id)
}

func (svc *Service) QueryCurricularUnits(ctx context.Context, ordering ...core.DBOrdering) ([]CurricularUnit, error) {
	return svc.repo.QueryCurricularUnits(ctx, ordering)
}

func (svc *Service) UpdateCurricularUnit(ctx context.Context, id string, uc UpdateCurricularUnit) (CurricularUnit, error) {
	unit := CurricularUnit{
		ID:          id,
		Name:        uc.Name,
		Description: uc.Description,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateCurricularUnit(ctx, unit)
}

func (svc *Service) DeleteCurricularUnit(ctx context.Context, id string) error {
	unit, err := svc.repo.GetCurricularUnit(ctx, id)
	if err != nil {
		return err
	}
	for _, checker := range svc.checkers {
		inUse, err := checker.HasCurricularUnitHistory(ctx, unit.ID)
		if err != nil {
			return err
		}
		if inUse {
			return ErrUnitInUse
		}
	}
	return svc.repo.DeleteCurricularUnit(ctx, unit.ID)
}

// validateStudentIDs checks that every id references an existing, student-role
// account. Sections and miss lists may only reference students.
func (svc *Service) validateStudentIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	users, err := svc.repo.QueryUsers(ctx, &QueryFilter{IDs: ids}, nil)
	if err != nil {
		return err
	}
	found := make(map[string]User, len(users))
	for _, usr := range users {
		found[usr.ID] = usr
	}
	for _, id := range ids {
		usr, ok := found[id]
		if !ok || !usr.IsStudent() {
			return core.NewValidationError(nil, core.FieldError{Field: "student_ids", Error: errUnknownStudents})
		}
	}
	return nil
}
