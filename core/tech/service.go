package tech

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/roster"
)

var (
	// errors
	ErrNotFound        = errors.New("class session not found")
	ErrInvalidMissList = errors.New("miss list references students not enrolled in the section")
)

type (
	Repository interface {
		CreateTech(ctx context.Context, t Tech, exec ...core.DBExecutor) (Tech, error)
		GetTech(ctx context.Context, id string, exec ...core.DBExecutor) (Tech, error)
		QueryTechs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Tech, error)
		UpdateTech(ctx context.Context, t Tech, exec ...core.DBExecutor) (Tech, error)
		DeleteTech(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateAttendance(ctx context.Context, row ClassAttendance, exec ...core.DBExecutor) (ClassAttendance, error)
		QueryAttendanceByTech(ctx context.Context, techID string, exec ...core.DBExecutor) ([]ClassAttendance, error)
		QueryAttendanceByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]ClassAttendance, error)
		UpdateAttendance(ctx context.Context, row ClassAttendance, exec ...core.DBExecutor) (ClassAttendance, error)
		DeleteAttendanceByTech(ctx context.Context, techID string, exec ...core.DBExecutor) error
	}

	// SectionDirectory looks up cohort enrollment; roster.Repository satisfies it.
	SectionDirectory interface {
		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (roster.Section, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		sections SectionDirectory
	}
)

func NewService(db core.DB, repo Repository, sections SectionDirectory) *Service {
	return &Service{db: db, repo: repo, sections: sections}
}

// Create records a class session and, in the same transaction, one
// ClassAttendance row per student enrolled in the section: attended unless the
// student is in the miss list. Partial attendance coverage is never committed.
func (svc *Service) Create(ctx context.Context, nt NewTech) (Tech, error) {
	sec, err := svc.sections.GetSection(ctx, nt.SectionID)
	if err != nil {
		return Tech{}, err
	}
	if err = checkMissList(nt.MissedIDs, sec); err != nil {
		return Tech{}, err
	}

	now := time.Now().UTC()
	t := Tech{
		TeacherID: nt.TeacherID,
		SectionID: nt.SectionID,
		Date:      nt.Date,
		Summary:   nt.Summary,
		MissedIDs: nt.MissedIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = core.AtomicFn(ctx, svc.db, func(tx core.DBTransactor) error {
		if t, err = svc.repo.CreateTech(ctx, t, tx); err != nil {
			return err
		}
		for _, studentID := range sec.StudentIDs {
			row := ClassAttendance{
				StudentID: studentID,
				TechID:    t.ID,
				Attended:  !t.Missed(studentID),
			}
			if _, err = svc.repo.CreateAttendance(ctx, row, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Tech{}, err
	}
	return t, nil
}

// Update modifies a session and recomputes its attendance coverage to match
// the new miss list. Rows for students newly enrolled since creation are
// created; rows for students no longer enrolled are retained for historical
// accuracy.
func (svc *Service) Update(ctx context.Context, id string, ut UpdateTech) (Tech, error) {
	t, err := svc.repo.GetTech(ctx, id)
	if err != nil {
		return Tech{}, err
	}
	sec, err := svc.sections.GetSection(ctx, t.SectionID)
	if err != nil {
		return Tech{}, err
	}
	if ut.MissedIDs == nil {
		ut.MissedIDs = t.MissedIDs
	}
	if err = checkMissList(ut.MissedIDs, sec); err != nil {
		return Tech{}, err
	}

	t.Date = ut.Date
	t.Summary = ut.Summary
	t.MissedIDs = ut.MissedIDs
	t.UpdatedAt = time.Now().UTC()

	err = core.AtomicFn(ctx, svc.db, func(tx core.DBTransactor) error {
		if t, err = svc.repo.UpdateTech(ctx, t, tx); err != nil {
			return err
		}

		rows, err := svc.repo.QueryAttendanceByTech(ctx, t.ID, tx)
		if err != nil {
			return err
		}
		existing := make(map[string]ClassAttendance, len(rows))
		for _, row := range rows {
			existing[row.StudentID] = row
		}

		for _, studentID := range sec.StudentIDs {
			attended := !t.Missed(studentID)
			if row, ok := existing[studentID]; ok {
				if row.Attended == attended {
					continue
				}
				row.Attended = attended
				if _, err = svc.repo.UpdateAttendance(ctx, row, tx); err != nil {
					return err
				}
			} else {
				row := ClassAttendance{StudentID: studentID, TechID: t.ID, Attended: attended}
				if _, err = svc.repo.CreateAttendance(ctx, row, tx); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return Tech{}, err
	}
	return t, nil
}

// Delete removes a session along with its attendance rows; the cascade is
// explicit, never left to the store.
func (svc *Service) Delete(ctx context.Context, id string) error {
	t, err := svc.repo.GetTech(ctx, id)
	if err != nil {
		return err
	}
	return core.AtomicFn(ctx, svc.db, func(tx core.DBTransactor) error {
		if err := svc.repo.DeleteAttendanceByTech(ctx, t.ID, tx); err != nil {
			return err
		}
		return svc.repo.DeleteTech(ctx, t.ID, tx)
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Tech, error) {
	return svc.repo.GetTech(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Tech, error) {
	return svc.repo.QueryTechs(ctx, filter, ordering)
}

// AttendanceForTech returns the attendance rows recorded for a session.
func (svc *Service) AttendanceForTech(ctx context.Context, techID string) ([]ClassAttendance, error) {
	if _, err := svc.repo.GetTech(ctx, techID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttendanceByTech(ctx, techID)
}

// StudentAttendance returns the student's (session, attended) history, ordered
// by session date ascending.
func (svc *Service) StudentAttendance(ctx context.Context, studentID string) ([]StudentAttendance, error) {
	rows, err := svc.repo.QueryAttendanceByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []StudentAttendance{}, nil
	}

	attended := make(map[string]bool, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		attended[row.TechID] = row.Attended
		ids = append(ids, row.TechID)
	}

	techs, err := svc.repo.QueryTechs(ctx, &QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(techs, func(i, j int) bool { return techs[i].Date.Before(techs[j].Date) })

	history := make([]StudentAttendance, 0, len(techs))
	for _, t := range techs {
		history = append(history, StudentAttendance{Tech: t, Attended: attended[t.ID]})
	}
	return history, nil
}

// checkMissList validates missList ⊆ section.StudentIDs.
func checkMissList(missList []string, sec roster.Section) error {
	for _, studentID := range missList {
		if !sec.HasStudent(studentID) {
			return core.NewValidationError(ErrInvalidMissList, core.FieldError{Field: "miss_tech", Error: ErrInvalidMissList.Error()})
		}
	}
	return nil
}
