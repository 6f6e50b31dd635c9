package voc

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/roster"
)

var (
	// errors
	ErrNotFound           = errors.New("practical session not found")
	ErrInvalidInterval    = errors.New("end date cannot precede start date")
	ErrIncompleteInterval = errors.New("cannot approve a practical session without an end date")
	ErrAlreadyDecided     = errors.New("practical session has already been decided")

	errNotAStudent = "student does not exist or is not a student account"
)

type (
	Repository interface {
		CreateVoc(ctx context.Context, v Voc, exec ...core.DBExecutor) (Voc, error)
		GetVoc(ctx context.Context, id string, exec ...core.DBExecutor) (Voc, error)
		QueryVocs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Voc, error)
		UpdateVoc(ctx context.Context, v Voc, exec ...core.DBExecutor) (Voc, error)
		// DecideVoc transitions a pending record to the given terminal
		// disposition. The transition is conditional on the record still being
		// pending: a decision race has exactly one winner and every loser gets
		// ErrAlreadyDecided.
		DecideVoc(ctx context.Context, id string, d Disposition, decidedAt time.Time, exec ...core.DBExecutor) (Voc, error)
		DeleteVoc(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// RosterDirectory looks up the submitting student and the curricular unit;
	// roster.Repository satisfies it.
	RosterDirectory interface {
		GetUser(ctx context.Context, filter roster.GetFilter, exec ...core.DBExecutor) (roster.User, error)
		GetCurricularUnit(ctx context.Context, id string, exec ...core.DBExecutor) (roster.CurricularUnit, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		dir     RosterDirectory
		mailSvc core.EmailService
	}
)

func NewService(db core.DB, repo Repository, dir RosterDirectory, mailSvc core.EmailService) *Service {
	return &Service{db: db, repo: repo, dir: dir, mailSvc: mailSvc}
}

// Submit records a new practical session in the Pending disposition.
func (svc *Service) Submit(ctx context.Context, nv NewVoc) (Voc, error) {
	usr, err := svc.dir.GetUser(ctx, roster.GetFilter{ID: nv.StudentID})
	if err != nil {
		if err == roster.ErrNotFound {
			return Voc{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: errNotAStudent})
		}
		return Voc{}, err
	}
	if !usr.IsStudent() {
		return Voc{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: errNotAStudent})
	}
	if _, err = svc.dir.GetCurricularUnit(ctx, nv.CurricularUnitID); err != nil {
		return Voc{}, err
	}

	now := time.Now().UTC()
	v := Voc{
		Description:      nv.Description,
		StudentID:        nv.StudentID,
		CurricularUnitID: nv.CurricularUnitID,
		Started:          nv.Started,
		Ended:            nv.Ended,
		Disposition:      DispositionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return svc.repo.CreateVoc(ctx, v)
}

// Decide moves a pending record to a terminal disposition. Approving a record
// with no end date fails with ErrIncompleteInterval; deciding a record twice
// fails with ErrAlreadyDecided, concurrent callers included.
func (svc *Service) Decide(ctx context.Context, id string, outcome Disposition) (Voc, error) {
	if !outcome.Terminal() {
		return Voc{}, core.NewValidationError(nil, core.FieldError{Field: "outcome", Error: "outcome must be approved or rejected"})
	}

	v, err := svc.repo.GetVoc(ctx, id)
	if err != nil {
		return Voc{}, err
	}
	if !v.Pending() {
		return Voc{}, ErrAlreadyDecided
	}
	if outcome == DispositionApproved && !v.Ended.Valid {
		return Voc{}, ErrIncompleteInterval
	}

	err = core.AtomicFn(ctx, svc.db, func(tx core.DBTransactor) error {
		v, err = svc.repo.DecideVoc(ctx, v.ID, outcome, time.Now().UTC(), tx)
		return err
	})
	if err != nil {
		return Voc{}, err
	}

	svc.notifyDecision(ctx, v)
	return v, nil
}

// Update modifies a practical session; only pending records may change.
func (svc *Service) Update(ctx context.Context, id string, uv UpdateVoc) (Voc, error) {
	v, err := svc.repo.GetVoc(ctx, id)
	if err != nil {
		return Voc{}, err
	}
	if !v.Pending() {
		return Voc{}, ErrAlreadyDecided
	}

	v.Description = uv.Description
	v.Started = uv.Started
	v.Ended = uv.Ended
	v.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateVoc(ctx, v)
}

// Delete removes a practical session; only pending records may be deleted.
func (svc *Service) Delete(ctx context.Context, id string) error {
	v, err := svc.repo.GetVoc(ctx, id)
	if err != nil {
		return err
	}
	if !v.Pending() {
		return ErrAlreadyDecided
	}
	return svc.repo.DeleteVoc(ctx, v.ID)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Voc, error) {
	return svc.repo.GetVoc(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Voc, error) {
	return svc.repo.QueryVocs(ctx, filter, ordering)
}

func (svc *Service) ListByStudent(ctx context.Context, studentID string, ordering ...core.DBOrdering) ([]Voc, error) {
	return svc.repo.QueryVocs(ctx, &QueryFilter{StudentID: studentID}, ordering)
}

func (svc *Service) ListByCurricularUnit(ctx context.Context, unitID string, ordering ...core.DBOrdering) ([]Voc, error) {
	return svc.repo.QueryVocs(ctx, &QueryFilter{CurricularUnitID: unitID}, ordering)
}

// notifyDecision emails the student about the decision; delivery is
// best-effort and never fails the operation.
func (svc *Service) notifyDecision(ctx context.Context, v Voc) {
	if svc.mailSvc == nil {
		return
	}
	usr, err := svc.dir.GetUser(ctx, roster.GetFilter{ID: v.StudentID})
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Practical session %s", v.Disposition),
		TemplateName: "voc-decision",
		TemplateData: struct {
			Name        string
			Description string
			Disposition Disposition
		}{usr.Name, v.Description, v.Disposition},
	})
}

var (
	outcomeTag  = "vocoutcome"
	outcomeText = "outcome must be approved or rejected"
)

// InitValidators registers the practical-session custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(outcomeTag, outcomeValidation)
	core.RegisterCustomTranslation(validate, translator, outcomeTag, outcomeText)
}

// outcomeValidation only allows terminal decision outcomes.
func outcomeValidation(fl validator.FieldLevel) bool {
	d, ok := fl.Field().Interface().(Disposition)
	if !ok {
		d = Disposition(fl.Field().String())
	}
	return d.Terminal()
}
