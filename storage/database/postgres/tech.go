package pgrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/tech"
)

type techRepository struct {
	exec core.DBExecutor
}

var _ tech.Repository = (*techRepository)(nil) // interface compliance check

func NewTechRepository(exec core.DBExecutor) *techRepository {
	return &techRepository{exec: exec}
}

func (repo techRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

type techRow struct {
	ID        string         `db:"id"`
	TeacherID string         `db:"teacher_id"`
	SectionID string         `db:"section_id"`
	Date      time.Time      `db:"date"`
	Summary   string         `db:"summary"`
	MissedIDs pq.StringArray `db:"missed_ids"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r techRow) tech() tech.Tech {
	return tech.Tech{
		ID:        r.ID,
		TeacherID: r.TeacherID,
		SectionID: r.SectionID,
		Date:      r.Date,
		Summary:   r.Summary,
		MissedIDs: r.MissedIDs,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type attendanceRow struct {
	ID        string `db:"id"`
	StudentID string `db:"student_id"`
	TechID    string `db:"tech_id"`
	Attended  bool   `db:"attended"`
}

func (r attendanceRow) attendance() tech.ClassAttendance {
	return tech.ClassAttendance{
		ID:        r.ID,
		StudentID: r.StudentID,
		TechID:    r.TechID,
		Attended:  r.Attended,
	}
}

func (repo techRepository) CreateTech(ctx context.Context, t tech.Tech, exec ...core.DBExecutor) (tech.Tech, error) {
	t.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO tech (id, teacher_id, section_id, date, summary, missed_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.TeacherID, t.SectionID, t.Date.UTC(), t.Summary, pq.StringArray(t.MissedIDs), t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		return tech.Tech{}, errors.Wrap(err, "inserting tech")
	}
	return t, nil
}

func (repo techRepository) GetTech(ctx context.Context, id string, exec ...core.DBExecutor) (tech.Tech, error) {
	exe := repo.getExec(exec)

	if _, err := uuid.Parse(id); err != nil {
		return tech.Tech{}, tech.ErrNotFound
	}
	var r techRow
	if err := exe.GetContext(ctx, &r, `SELECT * FROM tech WHERE id = $1`, id); err != nil {
		return tech.Tech{}, trapNoRowsErr(err, tech.ErrNotFound, "finding tech")
	}
	return r.tech(), nil
}

func (repo techRepository) QueryTechs(ctx context.Context, filter *tech.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]tech.Tech, error) {
	exe := repo.getExec(exec)

	query := `SELECT * FROM tech`
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.TeacherID != "" {
			conds = append(conds, "teacher_id = ?")
			args = append(args, filter.TeacherID)
		}
		if filter.SectionID != "" {
			conds = append(conds, "section_id = ?")
			args = append(args, filter.SectionID)
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
		return nil, errors.Wrap(err, "querying techs")
	}

	var rows []techRow
	if err = exe.SelectContext(ctx, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying techs")
	}
	techs := make([]tech.Tech, 0, len(rows))
	for _, r := range rows {
		techs = append(techs, r.tech())
	}
	return techs, nil
}

func (repo techRepository) UpdateTech(ctx context.Context, t tech.Tech, exec ...core.DBExecutor) (tech.Tech, error) {
	exe := repo.getExec(exec)

	var r techRow
	err := exe.GetContext(ctx, &r,
		`UPDATE tech
		 SET date = $2, summary = $3, missed_ids = $4, updated_at = $5
		 WHERE id = $1
		 RETURNING *`,
		t.ID, t.Date.UTC(), t.Summary, pq.StringArray(t.MissedIDs), t.UpdatedAt.UTC(),
	)
	if err != nil {
		return tech.Tech{}, trapNoRowsErr(err, tech.ErrNotFound, "updating tech")
	}
	return r.tech(), nil
}

func (repo techRepository) DeleteTech(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM tech WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting tech")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return tech.ErrNotFound
	}
	return nil
}

func (repo techRepository) CreateAttendance(ctx context.Context, row tech.ClassAttendance, exec ...core.DBExecutor) (tech.ClassAttendance, error) {
	row.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO class_attendance (id, student_id, tech_id, attended) VALUES ($1, $2, $3, $4)`,
		row.ID, row.StudentID, row.TechID, row.Attended,
	)
	if err != nil {
		return tech.ClassAttendance{}, errors.Wrap(err, "inserting class attendance")
	}
	return row, nil
}

func (repo techRepository) QueryAttendanceByTech(ctx context.Context, techID string, exec ...core.DBExecutor) ([]tech.ClassAttendance, error) {
	return repo.queryAttendance(ctx, "tech_id", techID, exec)
}

func (repo techRepository) QueryAttendanceByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]tech.ClassAttendance, error) {
	return repo.queryAttendance(ctx, "student_id", studentID, exec)
}

func (repo techRepository) queryAttendance(ctx context.Context, col, id string, exec []core.DBExecutor) ([]tech.ClassAttendance, error) {
	var rows []attendanceRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, `SELECT * FROM class_attendance WHERE `+col+` = $1`, id); err != nil {
		return nil, errors.Wrap(err, "querying class attendance")
	}
	atts := make([]tech.ClassAttendance, 0, len(rows))
	for _, r := range rows {
		atts = append(atts, r.attendance())
	}
	return atts, nil
}

func (repo techRepository) UpdateAttendance(ctx context.Context, row tech.ClassAttendance, exec ...core.DBExecutor) (tech.ClassAttendance, error) {
	exe := repo.getExec(exec)

	var r attendanceRow
	err := exe.GetContext(ctx, &r,
		`UPDATE class_attendance SET attended = $2 WHERE id = $1 RETURNING *`,
		row.ID, row.Attended,
	)
	if err != nil {
		return tech.ClassAttendance{}, trapNoRowsErr(err, tech.ErrNotFound, "updating class attendance")
	}
	return r.attendance(), nil
}

func (repo techRepository) DeleteAttendanceByTech(ctx context.Context, techID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM class_attendance WHERE tech_id = $1`, techID)
	return errors.Wrap(err, "deleting class attendance")
}

// HasUserHistory reports whether the user is referenced by any session record,
// as a teacher on a tech or as a student on an attendance row.
func (repo techRepository) HasUserHistory(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := repo.exec.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM tech WHERE teacher_id = $1)
		     OR EXISTS (SELECT 1 FROM class_attendance WHERE student_id = $1)`,
		userID,
	)
	if err != nil {
		return false, errors.Wrap(err, "checking user tech history")
	}
	return exists, nil
}

func (repo techRepository) HasSectionHistory(ctx context.Context, sectionID string) (bool, error) {
	var exists bool
	err := repo.exec.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM tech WHERE section_id = $1)`, sectionID)
	if err != nil {
		return false, errors.Wrap(err, "checking section tech history")
	}
	return exists, nil
}

func (repo techRepository) HasCurricularUnitHistory(ctx context.Context, unitID string) (bool, error) {
	return false, nil
}
