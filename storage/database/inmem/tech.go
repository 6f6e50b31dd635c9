package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/tech"
)

type techRepository struct {
	db *techTables
}

var _ tech.Repository = (*techRepository)(nil) // interface compliance check

func NewTechRepository(db *DB) *techRepository {
	return &techRepository{db: db.tech}
}

func (repo *techRepository) CreateTech(ctx context.Context, t tech.Tech, exec ...core.DBExecutor) (tech.Tech, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t.ID = uuid.New().String()
	repo.db.techs[t.ID] = &t
	return t, nil
}

func (repo *techRepository) GetTech(ctx context.Context, id string, exec ...core.DBExecutor) (tech.Tech, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.techs[id]; ok {
		return *t, nil
	}
	return tech.Tech{}, tech.ErrNotFound
}

func (repo *techRepository) QueryTechs(ctx context.Context, filter *tech.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]tech.Tech, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	techs := make([]tech.Tech, 0, len(repo.db.techs))
	for _, t := range repo.db.techs {
		if matchTech(*t, filter) {
			techs = append(techs, *t)
		}
	}
	return techs, nil
}

func matchTech(t tech.Tech, filter *tech.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.TeacherID != "" && t.TeacherID != filter.TeacherID {
		return false
	}
	if filter.SectionID != "" && t.SectionID != filter.SectionID {
		return false
	}
	if filter.IDs != nil {
		found := false
		for _, id := range filter.IDs {
			if id == t.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (repo *techRepository) UpdateTech(ctx context.Context, t tech.Tech, exec ...core.DBExecutor) (tech.Tech, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origTech, ok := repo.db.techs[t.ID]
	if !ok {
		return tech.Tech{}, tech.ErrNotFound
	}
	origTech.Date = t.Date
	origTech.Summary = t.Summary
	origTech.MissedIDs = t.MissedIDs
	origTech.UpdatedAt = t.UpdatedAt
	return *origTech, nil
}

func (repo *techRepository) DeleteTech(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.techs[id]; !ok {
		return tech.ErrNotFound
	}
	delete(repo.db.techs, id)
	return nil
}

func (repo *techRepository) CreateAttendance(ctx context.Context, row tech.ClassAttendance, exec ...core.DBExecutor) (tech.ClassAttendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row.ID = uuid.New().String()
	repo.db.attendance[row.ID] = &row
	return row, nil
}

func (repo *techRepository) QueryAttendanceByTech(ctx context.Context, techID string, exec ...core.DBExecutor) ([]tech.ClassAttendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := make([]tech.ClassAttendance, 0)
	for _, row := range repo.db.attendance {
		if row.TechID == techID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (repo *techRepository) QueryAttendanceByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]tech.ClassAttendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := make([]tech.ClassAttendance, 0)
	for _, row := range repo.db.attendance {
		if row.StudentID == studentID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (repo *techRepository) UpdateAttendance(ctx context.Context, row tech.ClassAttendance, exec ...core.DBExecutor) (tech.ClassAttendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origRow, ok := repo.db.attendance[row.ID]
	if !ok {
		return tech.ClassAttendance{}, tech.ErrNotFound
	}
	origRow.Attended = row.Attended
	return *origRow, nil
}

func (repo *techRepository) DeleteAttendanceByTech(ctx context.Context, techID string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, row := range repo.db.attendance {
		if row.TechID == techID {
			delete(repo.db.attendance, id)
		}
	}
	return nil
}

func (repo *techRepository) HasUserHistory(ctx context.Context, userID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.techs {
		if t.TeacherID == userID {
			return true, nil
		}
	}
	for _, row := range repo.db.attendance {
		if row.StudentID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *techRepository) HasSectionHistory(ctx context.Context, sectionID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.techs {
		if t.SectionID == sectionID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *techRepository) HasCurricularUnitHistory(ctx context.Context, unitID string) (bool, error) {
	return false, nil
}
