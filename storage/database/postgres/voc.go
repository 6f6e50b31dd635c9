package pgrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/voc"
)

type vocRepository struct {
	exec core.DBExecutor
}

var _ voc.Repository = (*vocRepository)(nil) // interface compliance check

func NewVocRepository(exec core.DBExecutor) *vocRepository {
	return &vocRepository{exec: exec}
}

func (repo vocRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

type vocRow struct {
	ID               string    `db:"id"`
	Description      string    `db:"description"`
	StudentID        string    `db:"student_id"`
	CurricularUnitID string    `db:"curricular_unit_id"`
	Started          time.Time `db:"started"`
	Ended            null.Time `db:"ended"`
	Disposition      string    `db:"disposition"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r vocRow) voc() voc.Voc {
	return voc.Voc{
		ID:               r.ID,
		Description:      r.Description,
		StudentID:        r.StudentID,
		CurricularUnitID: r.CurricularUnitID,
		Started:          r.Started,
		Ended:            r.Ended,
		Disposition:      voc.Disposition(r.Disposition),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (repo vocRepository) CreateVoc(ctx context.Context, v voc.Voc, exec ...core.DBExecutor) (voc.Voc, error) {
	v.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO voc (id, description, student_id, curricular_unit_id, started, ended, disposition, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.Description, v.StudentID, v.CurricularUnitID, v.Started.UTC(), v.Ended, string(v.Disposition), v.CreatedAt.UTC(), v.UpdatedAt.UTC(),
	)
	if err != nil {
		return voc.Voc{}, errors.Wrap(err, "inserting voc")
	}
	return v, nil
}

func (repo vocRepository) GetVoc(ctx context.Context, id string, exec ...core.DBExecutor) (voc.Voc, error) {
	exe := repo.getExec(exec)

	if _, err := uuid.Parse(id); err != nil {
		return voc.Voc{}, voc.ErrNotFound
	}
	var r vocRow
	if err := exe.GetContext(ctx, &r, `SELECT * FROM voc WHERE id = $1`, id); err != nil {
		return voc.Voc{}, trapNoRowsErr(err, voc.ErrNotFound, "finding voc")
	}
	return r.voc(), nil
}

func (repo vocRepository) QueryVocs(ctx context.Context, filter *voc.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]voc.Voc, error) {
	exe := repo.getExec(exec)

	query := `SELECT * FROM voc`
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.StudentID != "" {
			args = append(args, filter.StudentID)
			conds = append(conds, "student_id = $"+strconv.Itoa(len(args)))
		}
		if filter.CurricularUnitID != "" {
			args = append(args, filter.CurricularUnitID)
			conds = append(conds, "curricular_unit_id = $"+strconv.Itoa(len(args)))
		}
		if filter.Disposition != "" {
			args = append(args, string(filter.Disposition))
			conds = append(conds, "disposition = $"+strconv.Itoa(len(args)))
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering)

	var rows []vocRow
	if err := exe.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying vocs")
	}
	vocs := make([]voc.Voc, 0, len(rows))
	for _, r := range rows {
		vocs = append(vocs, r.voc())
	}
	return vocs, nil
}

func (repo vocRepository) UpdateVoc(ctx context.Context, v voc.Voc, exec ...core.DBExecutor) (voc.Voc, error) {
	exe := repo.getExec(exec)

	var r vocRow
	err := exe.GetContext(ctx, &r,
		`UPDATE voc
		 SET description = $2, started = $3, ended = $4, updated_at = $5
		 WHERE id = $1
		 RETURNING *`,
		v.ID, v.Description, v.Started.UTC(), v.Ended, v.UpdatedAt.UTC(),
	)
	if err != nil {
		return voc.Voc{}, trapNoRowsErr(err, voc.ErrNotFound, "updating voc")
	}
	return r.voc(), nil
}

// DecideVoc flips a still-pending record to the given terminal disposition.
// The WHERE clause makes the transition conditional; a concurrent decision has
// exactly one winner and the losers get ErrAlreadyDecided.
func (repo vocRepository) DecideVoc(ctx context.Context, id string, d voc.Disposition, decidedAt time.Time, exec ...core.DBExecutor) (voc.Voc, error) {
	exe := repo.getExec(exec)

	var r vocRow
	err := exe.GetContext(ctx, &r,
		`UPDATE voc
		 SET disposition = $2, updated_at = $3
		 WHERE id = $1 AND disposition = $4
		 RETURNING *`,
		id, string(d), decidedAt.UTC(), string(voc.DispositionPending),
	)
	if err == nil {
		return r.voc(), nil
	}
	if err != sql.ErrNoRows {
		return voc.Voc{}, errors.Wrap(err, "deciding voc")
	}

	// no pending row matched: either already decided or gone
	var exists bool
	if err = exe.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM voc WHERE id = $1)`, id); err != nil {
		return voc.Voc{}, errors.Wrap(err, "deciding voc")
	}
	if exists {
		return voc.Voc{}, voc.ErrAlreadyDecided
	}
	return voc.Voc{}, voc.ErrNotFound
}

func (repo vocRepository) DeleteVoc(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM voc WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting voc")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return voc.ErrNotFound
	}
	return nil
}

// HasUserHistory reports whether the user has submitted practical work.
func (repo vocRepository) HasUserHistory(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := repo.exec.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM voc WHERE student_id = $1)`, userID)
	if err != nil {
		return false, errors.Wrap(err, "checking user voc history")
	}
	return exists, nil
}

func (repo vocRepository) HasSectionHistory(ctx context.Context, sectionID string) (bool, error) {
	return false, nil
}

func (repo vocRepository) HasCurricularUnitHistory(ctx context.Context, unitID string) (bool, error) {
	var exists bool
	err := repo.exec.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM voc WHERE curricular_unit_id = $1)`, unitID)
	if err != nil {
		return false, errors.Wrap(err, "checking curricular unit voc history")
	}
	return exists, nil
}

