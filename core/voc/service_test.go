package voc_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/roster"
	"github.com/trezcool/odin/core/voc"
	inmemdb "github.com/trezcool/odin/storage/database/inmem"
	testutil "github.com/trezcool/odin/tests"
)

type mailRecorder struct {
	mu   sync.Mutex
	msgs []*core.EmailMessage
}

func (r *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, messages...)
}

type fixture struct {
	svc     *voc.Service
	mail    *mailRecorder
	student roster.User
	unit    roster.CurricularUnit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewVocRepository(db)
	rosterRepo := inmemdb.NewRosterRepository(db)
	mail := &mailRecorder{}

	return &fixture{
		svc:     voc.NewService(db, repo, rosterRepo, mail),
		mail:    mail,
		student: testutil.CreateUser(t, rosterRepo, "Jane", "a1@school.cd", roster.RoleStudent, true),
		unit:    testutil.CreateCurricularUnit(t, rosterRepo, "Databases"),
	}
}

func (f *fixture) submit(t *testing.T, ended null.Time) voc.Voc {
	t.Helper()
	v, err := f.svc.Submit(context.Background(), voc.NewVoc{
		Description:      "Index tuning lab",
		StudentID:        f.student.ID,
		CurricularUnitID: f.unit.ID,
		Started:          time.Now().UTC().Add(-72 * time.Hour),
		Ended:            ended,
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	return v
}

func TestService_Submit(t *testing.T) {
	f := newFixture(t)

	v := f.submit(t, null.Time{})
	if v.Disposition != voc.DispositionPending {
		t.Errorf("Disposition = %v; want %v", v.Disposition, voc.DispositionPending)
	}
	if v.Ended.Valid {
		t.Error("Ended should stay null while the work is in progress")
	}
}

func TestService_Submit_rejectsNonStudents(t *testing.T) {
	db, _ := inmemdb.Open()
	repo := inmemdb.NewVocRepository(db)
	rosterRepo := inmemdb.NewRosterRepository(db)
	svc := voc.NewService(db, repo, rosterRepo, nil)
	teacher := testutil.CreateUser(t, rosterRepo, "John", "jdoe@school.cd", roster.RoleTeacher, true)
	unit := testutil.CreateCurricularUnit(t, rosterRepo, "Databases")

	_, err := svc.Submit(context.Background(), voc.NewVoc{
		Description:      "Nope",
		StudentID:        teacher.ID,
		CurricularUnitID: unit.ID,
		Started:          time.Now().UTC(),
	})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Submit() error = %v; want validation error", err)
	}
}

func TestService_Decide(t *testing.T) {
	ctx := context.Background()

	t.Run("approve", func(t *testing.T) {
		f := newFixture(t)
		v := f.submit(t, null.TimeFrom(time.Now().UTC()))

		v, err := f.svc.Decide(ctx, v.ID, voc.DispositionApproved)
		if err != nil {
			t.Fatalf("Decide() failed: %v", err)
		}
		if v.Disposition != voc.DispositionApproved {
			t.Errorf("Disposition = %v; want %v", v.Disposition, voc.DispositionApproved)
		}
		if len(f.mail.msgs) != 1 {
			t.Errorf("len(mail) = %v; want 1", len(f.mail.msgs))
		}
	})

	t.Run("approve without end date", func(t *testing.T) {
		f := newFixture(t)
		v := f.submit(t, null.Time{})

		if _, err := f.svc.Decide(ctx, v.ID, voc.DispositionApproved); err != voc.ErrIncompleteInterval {
			t.Errorf("Decide() error = %v; want %v", err, voc.ErrIncompleteInterval)
		}
	})

	t.Run("reject without end date is fine", func(t *testing.T) {
		f := newFixture(t)
		v := f.submit(t, null.Time{})

		v, err := f.svc.Decide(ctx, v.ID, voc.DispositionRejected)
		if err != nil {
			t.Fatalf("Decide() failed: %v", err)
		}
		if v.Disposition != voc.DispositionRejected {
			t.Errorf("Disposition = %v; want %v", v.Disposition, voc.DispositionRejected)
		}
	})

	t.Run("decisions are final", func(t *testing.T) {
		f := newFixture(t)
		v := f.submit(t, null.TimeFrom(time.Now().UTC()))

		if _, err := f.svc.Decide(ctx, v.ID, voc.DispositionApproved); err != nil {
			t.Fatalf("Decide() failed: %v", err)
		}
		if _, err := f.svc.Decide(ctx, v.ID, voc.DispositionRejected); err != voc.ErrAlreadyDecided {
			t.Errorf("Decide() error = %v; want %v", err, voc.ErrAlreadyDecided)
		}
	})

	t.Run("pending is not an outcome", func(t *testing.T) {
		f := newFixture(t)
		v := f.submit(t, null.TimeFrom(time.Now().UTC()))

		_, err := f.svc.Decide(ctx, v.ID, voc.DispositionPending)
		if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("Decide() error = %v; want validation error", err)
		}
	})
}

func TestService_Decide_concurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	v := f.submit(t, null.TimeFrom(time.Now().UTC()))

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Decide(context.Background(), v.ID, voc.DispositionApproved)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		switch err {
		case nil:
			wins++
		case voc.ErrAlreadyDecided:
			losses++
		default:
			t.Errorf("Decide() unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %v; want exactly 1", wins)
	}
	if losses != n-1 {
		t.Errorf("losses = %v; want %v", losses, n-1)
	}
}

func TestService_UpdateDelete_pendingOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pending := f.submit(t, null.Time{})
	decided := f.submit(t, null.TimeFrom(time.Now().UTC()))
	if _, err := f.svc.Decide(ctx, decided.ID, voc.DispositionApproved); err != nil {
		t.Fatalf("Decide() failed: %v", err)
	}

	if _, err := f.svc.Update(ctx, decided.ID, voc.UpdateVoc{Description: "x", Started: decided.Started}); err != voc.ErrAlreadyDecided {
		t.Errorf("Update() error = %v; want %v", err, voc.ErrAlreadyDecided)
	}
	if err := f.svc.Delete(ctx, decided.ID); err != voc.ErrAlreadyDecided {
		t.Errorf("Delete() error = %v; want %v", err, voc.ErrAlreadyDecided)
	}

	if _, err := f.svc.Update(ctx, pending.ID, voc.UpdateVoc{Description: "Rewritten", Started: pending.Started}); err != nil {
		t.Errorf("Update() failed: %v", err)
	}
	if err := f.svc.Delete(ctx, pending.ID); err != nil {
		t.Errorf("Delete() failed: %v", err)
	}
}
