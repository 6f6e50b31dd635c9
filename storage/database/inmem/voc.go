package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/voc"
)

type vocRepository struct {
	db *vocTable
}

var _ voc.Repository = (*vocRepository)(nil) // interface compliance check

func NewVocRepository(db *DB) *vocRepository {
	return &vocRepository{db: db.voc}
}

func (repo *vocRepository) CreateVoc(ctx context.Context, v voc.Voc, exec ...core.DBExecutor) (voc.Voc, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	v.ID = uuid.New().String()
	repo.db.table[v.ID] = &v
	return v, nil
}

func (repo *vocRepository) GetVoc(ctx context.Context, id string, exec ...core.DBExecutor) (voc.Voc, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if v, ok := repo.db.table[id]; ok {
		return *v, nil
	}
	return voc.Voc{}, voc.ErrNotFound
}

func (repo *vocRepository) QueryVocs(ctx context.Context, filter *voc.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]voc.Voc, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	vocs := make([]voc.Voc, 0, len(repo.db.table))
	for _, v := range repo.db.table {
		if matchVoc(*v, filter) {
			vocs = append(vocs, *v)
		}
	}
	return vocs, nil
}

func matchVoc(v voc.Voc, filter *voc.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.StudentID != "" && v.StudentID != filter.StudentID {
		return false
	}
	if filter.CurricularUnitID != "" && v.CurricularUnitID != filter.CurricularUnitID {
		return false
	}
	if filter.Disposition != "" && v.Disposition != filter.Disposition {
		return false
	}
	return true
}

func (repo *vocRepository) UpdateVoc(ctx context.Context, v voc.Voc, exec ...core.DBExecutor) (voc.Voc, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origVoc, ok := repo.db.table[v.ID]
	if !ok {
		return voc.Voc{}, voc.ErrNotFound
	}
	origVoc.Description = v.Description
	origVoc.Started = v.Started
	origVoc.Ended = v.Ended
	origVoc.UpdatedAt = v.UpdatedAt
	return *origVoc, nil
}

// DecideVoc transitions the record only while it is still pending; the check
// and the write happen under one lock so a decision race has a single winner.
func (repo *vocRepository) DecideVoc(ctx context.Context, id string, d voc.Disposition, decidedAt time.Time, exec ...core.DBExecutor) (voc.Voc, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	v, ok := repo.db.table[id]
	if !ok {
		return voc.Voc{}, voc.ErrNotFound
	}
	if !v.Pending() {
		return voc.Voc{}, voc.ErrAlreadyDecided
	}
	v.Disposition = d
	v.UpdatedAt = decidedAt
	return *v, nil
}

func (repo *vocRepository) DeleteVoc(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return voc.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *vocRepository) HasUserHistory(ctx context.Context, userID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, v := range repo.db.table {
		if v.StudentID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *vocRepository) HasSectionHistory(ctx context.Context, sectionID string) (bool, error) {
	return false, nil
}

func (repo *vocRepository) HasCurricularUnitHistory(ctx context.Context, unitID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, v := range repo.db.table {
		if v.CurricularUnitID == unitID {
			return true, nil
		}
	}
	return false, nil
}
