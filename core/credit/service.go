package credit

import (
	"context"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/roster"
	"github.com/trezcool/odin/core/tech"
	"github.com/trezcool/odin/core/voc"
)

type (
	// AttendanceSource provides the attendance facts a balance is derived from;
	// tech.Repository satisfies it.
	AttendanceSource interface {
		QueryAttendanceByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]tech.ClassAttendance, error)
	}

	// PracticalSource provides the practical-work records a balance is derived
	// from; voc.Repository satisfies it.
	PracticalSource interface {
		QueryVocs(ctx context.Context, filter *voc.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]voc.Voc, error)
	}

	// BalanceCache stores the cached credit projection on the roster;
	// roster.Repository satisfies it.
	BalanceCache interface {
		UpdateUserCredits(ctx context.Context, userID string, credits float64, exec ...core.DBExecutor) (roster.User, error)
	}

	// Service derives a student's credit standing from the attendance index and
	// the approved practical sessions. The computation is pure and recomputed on
	// read: no stored value is ever trusted without reconciliation.
	Service struct {
		attendance AttendanceSource
		practicals PracticalSource
		cache      BalanceCache
		weights    core.CreditsConfig
	}
)

func NewService(attendance AttendanceSource, practicals PracticalSource, cache BalanceCache, conf *core.Config) *Service {
	return &Service{
		attendance: attendance,
		practicals: practicals,
		cache:      cache,
		weights:    conf.Credits,
	}
}

// Compute returns the student's credit balance as a deterministic function of
// the current ClassAttendance rows and approved Vocs: two calls with no
// intervening mutation yield the same value.
func (svc *Service) Compute(ctx context.Context, studentID string) (float64, error) {
	rows, err := svc.attendance.QueryAttendanceByStudent(ctx, studentID)
	if err != nil {
		return 0, err
	}
	var credits float64
	for _, row := range rows {
		if row.Attended {
			credits += svc.weights.TechSessionValue
		}
	}

	vocs, err := svc.practicals.QueryVocs(ctx, &voc.QueryFilter{
		StudentID:   studentID,
		Disposition: voc.DispositionApproved,
	}, nil)
	if err != nil {
		return 0, err
	}
	for _, v := range vocs {
		credits += svc.vocValue(v)
	}
	return credits, nil
}

// Reconcile recomputes the balance and stores it as the roster's cached
// projection. The cache exists for display only; it must always be
// reconcilable back to Compute's output from the ledger rows alone.
func (svc *Service) Reconcile(ctx context.Context, studentID string) (roster.User, error) {
	credits, err := svc.Compute(ctx, studentID)
	if err != nil {
		return roster.User{}, err
	}
	return svc.cache.UpdateUserCredits(ctx, studentID, credits)
}

// vocValue weighs an approved practical session: by inclusive interval length
// when a per-day value is configured, by the fixed per-unit value otherwise.
func (svc *Service) vocValue(v voc.Voc) float64 {
	if svc.weights.VocDayValue > 0 && v.Ended.Valid {
		days := v.Ended.Time.Sub(v.Started).Hours()/24 + 1
		return days * svc.weights.VocDayValue
	}
	return svc.weights.VocFixedValue
}
