package pgrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/roster"
)

type rosterRepository struct {
	exec core.DBExecutor
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(exec core.DBExecutor) *rosterRepository {
	return &rosterRepository{exec: exec}
}

func (repo rosterRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

type userRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	Credits   float64   `db:"credits"`
	IsActive  null.Bool `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r userRow) user() roster.User {
	return roster.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      r.Role,
		Credits:   r.Credits,
		IsActive:  r.IsActive.Ptr(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type sectionRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Summary    string         `db:"summary"`
	StudentIDs pq.StringArray `db:"student_ids"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r sectionRow) section() roster.Section {
	return roster.Section{
		ID:         r.ID,
		Name:       r.Name,
		Summary:    r.Summary,
		StudentIDs: r.StudentIDs,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type unitRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r unitRow) unit() roster.CurricularUnit {
	return roster.CurricularUnit{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// Users

func (repo rosterRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []roster.User, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	var exists bool
	var err error
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		query, args, inErr := sqlx.In(`SELECT EXISTS (SELECT 1 FROM "user" WHERE email = ? AND id NOT IN (?))`, email, ids)
		if inErr != nil {
			return errors.Wrap(inErr, "checking email uniqueness")
		}
		err = exe.GetContext(ctx, &exists, exe.Rebind(query), args...)
	} else {
		err = exe.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM "user" WHERE email = $1)`, email)
	}
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return roster.ErrEmailExists
	}
	return nil
}

func (repo rosterRepository) CreateUser(ctx context.Context, usr roster.User, exec ...core.DBExecutor) (roster.User, error) {
	usr.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO "user" (id, name, email, role, credits, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		usr.ID, usr.Name, usr.Email, usr.Role, usr.Credits, null.BoolFromPtr(usr.IsActive), usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return roster.User{}, roster.ErrEmailExists
		}
		return roster.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo rosterRepository) QueryUsers(ctx context.Context, filter *roster.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]roster.User, error) {
	exe := repo.getExec(exec)

	query := `SELECT * FROM "user"`
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.Search != "" {
			conds = append(conds, "(name ILIKE ? OR email ILIKE ?)")
			val := "%" + filter.Search + "%"
			args = append(args, val, val)
		}
		if filter.Role != "" {
			conds = append(conds, "role = ?")
			args = append(args, filter.Role)
		}
		if filter.IsActive != nil {
			conds = append(conds, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
		if len(filter.IDs) > 0 {
			conds = append(conds, "id IN (?)")
			args = append(args, filter.IDs)
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	var rows []userRow
	if err = exe.SelectContext(ctx, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]roster.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo rosterRepository) GetUser(ctx context.Context, filter roster.GetFilter, exec ...core.DBExecutor) (roster.User, error) {
	exe := repo.getExec(exec)

	var r userRow
	var err error
	if filter.ID != "" {
		if _, err = uuid.Parse(filter.ID); err != nil {
			return roster.User{}, roster.ErrNotFound
		}
		err = exe.GetContext(ctx, &r, `SELECT * FROM "user" WHERE id = $1`, filter.ID)
	} else {
		err = exe.GetContext(ctx, &r, `SELECT * FROM "user" WHERE email = $1`, filter.Email)
	}
	if err != nil {
		return roster.User{}, trapNoRowsErr(err, roster.ErrNotFound, "finding user")
	}
	return r.user(), nil
}

func (repo rosterRepository) UpdateUser(ctx context.Context, usr roster.User, exec ...core.DBExecutor) (roster.User, error) {
	exe := repo.getExec(exec)

	var r userRow
	err := exe.GetContext(ctx, &r,
		`UPDATE "user"
		 SET name = $2, email = $3, is_active = COALESCE($4, is_active), updated_at = $5
		 WHERE id = $1
		 RETURNING *`,
		usr.ID, usr.Name, usr.Email, null.BoolFromPtr(usr.IsActive), usr.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return roster.User{}, roster.ErrEmailExists
		}
		return roster.User{}, trapNoRowsErr(err, roster.ErrNotFound, "updating user")
	}
	return r.user(), nil
}

func (repo rosterRepository) UpdateUserCredits(ctx context.Context, userID string, credits float64, exec ...core.DBExecutor) (roster.User, error) {
	exe := repo.getExec(exec)

	var r userRow
	err := exe.GetContext(ctx, &r,
		`UPDATE "user" SET credits = $2, updated_at = $3 WHERE id = $1 RETURNING *`,
		userID, credits, time.Now().UTC(),
	)
	if err != nil {
		return roster.User{}, trapNoRowsErr(err, roster.ErrNotFound, "updating user credits")
	}
	return r.user(), nil
}

func (repo rosterRepository) DeleteUser(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM "user" WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return roster.ErrNotFound
	}
	return nil
}

func (repo rosterRepository) RemoveStudentFromSections(ctx context.Context, studentID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE section
		 SET student_ids = array_remove(student_ids, $1), updated_at = now()
		 WHERE $1 = ANY (student_ids)`,
		studentID,
	)
	return errors.Wrap(err, "removing student from sections")
}

// Sections

func (repo rosterRepository) CreateSection(ctx context.Context, sec roster.Section, exec ...core.DBExecutor) (roster.Section, error) {
	sec.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO section (id, name, summary, student_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sec.ID, sec.Name, sec.Summary, pq.StringArray(sec.StudentIDs), sec.CreatedAt.UTC(), sec.UpdatedAt.UTC(),
	)
	if err != nil {
		return roster.Section{}, errors.Wrap(err, "inserting section")
	}
	return sec, nil
}

func (repo rosterRepository) GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (roster.Section, error) {
	exe := repo.getExec(exec)

	if _, err := uuid.Parse(id); err != nil {
		return roster.Section{}, roster.ErrSectionNotFound
	}
	var r sectionRow
	if err := exe.GetContext(ctx, &r, `SELECT * FROM section WHERE id = $1`, id); err != nil {
		return roster.Section{}, trapNoRowsErr(err, roster.ErrSectionNotFound, "finding section")
	}
	return r.section(), nil
}

func (repo rosterRepository) QuerySections(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]roster.Section, error) {
	var rows []sectionRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, `SELECT * FROM section`+orderBy(ordering)); err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	secs := make([]roster.Section, 0, len(rows))
	for _, r := range rows {
		secs = append(secs, r.section())
	}
	return secs, nil
}

func (repo rosterRepository) UpdateSection(ctx context.Context, sec roster.Section, exec ...core.DBExecutor) (roster.Section, error) {
	exe := repo.getExec(exec)

	var r sectionRow
	err := exe.GetContext(ctx, &r,
		`UPDATE section
		 SET name = $2, summary = $3, student_ids = $4, updated_at = $5
		 WHERE id = $1
		 RETURNING *`,
		sec.ID, sec.Name, sec.Summary, pq.StringArray(sec.StudentIDs), sec.UpdatedAt.UTC(),
	)
	if err != nil {
		return roster.Section{}, trapNoRowsErr(err, roster.ErrSectionNotFound, "updating section")
	}
	return r.section(), nil
}

func (repo rosterRepository) DeleteSection(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM section WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting section")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return roster.ErrSectionNotFound
	}
	return nil
}

// Curricular Units

func (repo rosterRepository) CreateCurricularUnit(ctx context.Context, unit roster.CurricularUnit, exec ...core.DBExecutor) (roster.CurricularUnit, error) {
	unit.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO curricular_unit (id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		unit.ID, unit.Name, unit.Description, unit.CreatedAt.UTC(), unit.UpdatedAt.UTC(),
	)
	if err != nil {
		return roster.CurricularUnit{}, errors.Wrap(err, "inserting curricular unit")
	}
	return unit, nil
}

func (repo rosterRepository) GetCurricularUnit(ctx context.Context, id string, exec ...core.DBExecutor) (roster.CurricularUnit, error) {
	exe := repo.getExec(exec)

	if _, err := uuid.Parse(id); err != nil {
		return roster.CurricularUnit{}, roster.ErrUnitNotFound
	}
	var r unitRow
	if err := exe.GetContext(ctx, &r, `SELECT * FROM curricular_unit WHERE id = $1`, id); err != nil {
		return roster.CurricularUnit{}, trapNoRowsErr(err, roster.ErrUnitNotFound, "finding curricular unit")
	}
	return r.unit(), nil
}

func (repo rosterRepository) QueryCurricularUnits(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]roster.CurricularUnit, error) {
	var rows []unitRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, `SELECT * FROM curricular_unit`+orderBy(ordering)); err != nil {
		return nil, errors.Wrap(err, "querying curricular units")
	}
	units := make([]roster.CurricularUnit, 0, len(rows))
	for _, r := range rows {
		units = append(units, r.unit())
	}
	return units, nil
}

func (repo rosterRepository) UpdateCurricularUnit(ctx context.Context, unit roster.CurricularUnit, exec ...core.DBExecutor) (roster.CurricularUnit, error) {
	exe := repo.getExec(exec)

	var r unitRow
	err := exe.GetContext(ctx, &r,
		`UPDATE curricular_unit
		 SET name = $2, description = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING *`,
		unit.ID, unit.Name, unit.Description, unit.UpdatedAt.UTC(),
	)
	if err != nil {
		return roster.CurricularUnit{}, trapNoRowsErr(err, roster.ErrUnitNotFound, "updating curricular unit")
	}
	return r.unit(), nil
}

func (repo rosterRepository) DeleteCurricularUnit(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM curricular_unit WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting curricular unit")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return roster.ErrUnitNotFound
	}
	return nil
}

// helpers

func orderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return ""
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}
