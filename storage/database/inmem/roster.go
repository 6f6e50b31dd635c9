package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/roster"
)

type rosterRepository struct {
	db *rosterTables
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) *rosterRepository {
	return &rosterRepository{db: db.roster}
}

// Users

func (repo *rosterRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []roster.User, exec ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = true
	}
	for _, usr := range repo.db.users {
		if usr.Email == email && !excluded[usr.ID] {
			return roster.ErrEmailExists
		}
	}
	return nil
}

func (repo *rosterRepository) CreateUser(ctx context.Context, usr roster.User, exec ...core.DBExecutor) (roster.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.users {
		if existing.Email == usr.Email {
			return roster.User{}, roster.ErrEmailExists
		}
	}
	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *rosterRepository) QueryUsers(ctx context.Context, filter *roster.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]roster.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]roster.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if matchUser(*usr, filter) {
			users = append(users, *usr)
		}
	}
	return users, nil
}

func matchUser(usr roster.User, filter *roster.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), search) && !strings.Contains(strings.ToLower(usr.Email), search) {
			return false
		}
	}
	if filter.Role != "" && usr.Role != filter.Role {
		return false
	}
	if filter.IsActive != nil {
		if usr.IsActive == nil || *usr.IsActive != *filter.IsActive {
			return false
		}
	}
	if filter.IDs != nil {
		found := false
		for _, id := range filter.IDs {
			if id == usr.ID {
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

func (repo *rosterRepository) GetUser(ctx context.Context, filter roster.GetFilter, exec ...core.DBExecutor) (roster.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return *usr, nil
		}
		return roster.User{}, roster.ErrNotFound
	}
	for _, usr := range repo.db.users {
		if usr.Email == filter.Email {
			return *usr, nil
		}
	}
	return roster.User{}, roster.ErrNotFound
}

func (repo *rosterRepository) UpdateUser(ctx context.Context, usr roster.User, exec ...core.DBExecutor) (roster.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields
	origUsr, ok := repo.db.users[usr.ID]
	if !ok {
		return roster.User{}, roster.ErrNotFound
	}
	origUsr.Name = usr.Name
	origUsr.Email = usr.Email
	if usr.IsActive != nil {
		origUsr.IsActive = usr.IsActive
	}
	origUsr.UpdatedAt = usr.UpdatedAt
	return *origUsr, nil
}

func (repo *rosterRepository) UpdateUserCredits(ctx context.Context, userID string, credits float64, exec ...core.DBExecutor) (roster.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.users[userID]
	if !ok {
		return roster.User{}, roster.ErrNotFound
	}
	usr.Credits = credits
	return *usr, nil
}

func (repo *rosterRepository) DeleteUser(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[id]; !ok {
		return roster.ErrNotFound
	}
	delete(repo.db.users, id)
	return nil
}

func (repo *rosterRepository) RemoveStudentFromSections(ctx context.Context, studentID string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, sec := range repo.db.sections {
		ids := make([]string, 0, len(sec.StudentIDs))
		for _, id := range sec.StudentIDs {
			if id != studentID {
				ids = append(ids, id)
			}
		}
		sec.StudentIDs = ids
	}
	return nil
}

// Sections

func (repo *rosterRepository) CreateSection(ctx context.Context, sec roster.Section, exec ...core.DBExecutor) (roster.Section, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sec.ID = uuid.New().String()
	repo.db.sections[sec.ID] = &sec
	return sec, nil
}

func (repo *rosterRepository) GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (roster.Section, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sec, ok := repo.db.sections[id]; ok {
		return *sec, nil
	}
	return roster.Section{}, roster.ErrSectionNotFound
}

func (repo *rosterRepository) QuerySections(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]roster.Section, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	secs := make([]roster.Section, 0, len(repo.db.sections))
	for _, sec := range repo.db.sections {
		secs = append(secs, *sec)
	}
	return secs, nil
}

func (repo *rosterRepository) UpdateSection(ctx context.Context, sec roster.Section, exec ...core.DBExecutor) (roster.Section, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origSec, ok := repo.db.sections[sec.ID]
	if !ok {
		return roster.Section{}, roster.ErrSectionNotFound
	}
	origSec.Name = sec.Name
	origSec.Summary = sec.Summary
	origSec.StudentIDs = sec.StudentIDs
	origSec.UpdatedAt = sec.UpdatedAt
	return *origSec, nil
}

func (repo *rosterRepository) DeleteSection(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sections[id]; !ok {
		return roster.ErrSectionNotFound
	}
	delete(repo.db.sections, id)
	return nil
}

// Curricular Units

func (repo *rosterRepository) CreateCurricularUnit(ctx context.Context, unit roster.CurricularUnit, exec ...core.DBExecutor) (roster.CurricularUnit, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	unit.ID = uuid.New().String()
	repo.db.units[unit.ID] = &unit
	return unit, nil
}

func (repo *rosterRepository) GetCurricularUnit(ctx context.Context, id string, exec ...core.DBExecutor) (roster.CurricularUnit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if unit, ok := repo.db.units[id]; ok {
		return *unit, nil
	}
	return roster.CurricularUnit{}, roster.ErrUnitNotFound
}

func (repo *rosterRepository) QueryCurricularUnits(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]roster.CurricularUnit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	units := make([]roster.CurricularUnit, 0, len(repo.db.units))
	for _, unit := range repo.db.units {
		units = append(units, *unit)
	}
	return units, nil
}

func (repo *rosterRepository) UpdateCurricularUnit(ctx context.Context, unit roster.CurricularUnit, exec ...core.DBExecutor) (roster.CurricularUnit, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origUnit, ok := repo.db.units[unit.ID]
	if !ok {
		return roster.CurricularUnit{}, roster.ErrUnitNotFound
	}
	origUnit.Name = unit.Name
	origUnit.Description = unit.Description
	origUnit.UpdatedAt = unit.UpdatedAt
	return *origUnit, nil
}

func (repo *rosterRepository) DeleteCurricularUnit(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.units[id]; !ok {
		return roster.ErrUnitNotFound
	}
	delete(repo.db.units, id)
	return nil
}
