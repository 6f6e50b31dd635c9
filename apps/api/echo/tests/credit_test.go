package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/odin/apps/api/echo"
	"github.com/trezcool/odin/core/roster"
	"github.com/trezcool/odin/core/tech"
	"github.com/trezcool/odin/core/voc"
	testutil "github.com/trezcool/odin/tests"
)

// seeds one attended session and one 2-day approved practical; worth
// 1*1.0 + 2*0.5 = 2.0 credits under the test weights.
func seedLedger(t *testing.T, app *testApp, student roster.User) {
	t.Helper()
	ctx := context.Background()

	teacher := testutil.CreateUser(t, app.rosterRepo, "John", "jdoe@school.cd", roster.RoleTeacher, true)
	section := testutil.CreateSection(t, app.rosterRepo, "CS-101", student.ID)
	unit := testutil.CreateCurricularUnit(t, app.rosterRepo, "Databases")

	if _, err := app.techSvc.Create(ctx, tech.NewTech{
		TeacherID: teacher.ID,
		SectionID: section.ID,
		Date:      time.Now().UTC(),
		Summary:   "Pointers",
	}); err != nil {
		t.Fatalf("techSvc.Create() failed: %v", err)
	}

	started := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	v, err := app.vocSvc.Submit(ctx, voc.NewVoc{
		Description:      "Index tuning lab",
		StudentID:        student.ID,
		CurricularUnitID: unit.ID,
		Started:          started,
		Ended:            null.TimeFrom(started.AddDate(0, 0, 1)),
	})
	if err != nil {
		t.Fatalf("vocSvc.Submit() failed: %v", err)
	}
	if _, err = app.vocSvc.Decide(ctx, v.ID, voc.DispositionApproved); err != nil {
		t.Fatalf("vocSvc.Decide() failed: %v", err)
	}
}

func Test_creditApi_balance(t *testing.T) {
	app := newTestApp(t)
	student := testutil.CreateUser(t, app.rosterRepo, "Jane", "a1@school.cd", roster.RoleStudent, true)
	other := testutil.CreateUser(t, app.rosterRepo, "Joe", "a2@school.cd", roster.RoleStudent, true)
	seedLedger(t, app, student)

	path := "/v1/students/" + student.ID + "/credits"

	t.Run("auth required", func(t *testing.T) {
		tt := httpTest{
			path:     path,
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})

	t.Run("students see their own balance", func(t *testing.T) {
		tt := httpTest{
			path:     path,
			token:    app.getToken(t, student),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, echoapi.BalanceResponse{StudentID: student.ID, Credits: 2.0}),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})

	t.Run("but nobody else's", func(t *testing.T) {
		tt := httpTest{
			path:     path,
			token:    app.getToken(t, other),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})
}

func Test_creditApi_reconcile(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, app.rosterRepo, "Jane", "a1@school.cd", roster.RoleStudent, true)
	admin := testutil.CreateUser(t, app.rosterRepo, "Root", "admin@school.cd", roster.RoleAdmin, true)
	seedLedger(t, app, student)

	path := "/v1/students/" + student.ID + "/credits/reconcile"

	t.Run("admin only", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: path,
			token:    app.getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})

	t.Run("stores the cached projection", func(t *testing.T) {
		rec := app.do(httpTest{method: http.MethodPost, path: path, token: app.getToken(t, admin)})
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body = %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		usr, err := app.rosterRepo.GetUser(ctx, roster.GetFilter{ID: student.ID})
		if err != nil {
			t.Fatalf("GetUser() failed: %v", err)
		}
		if usr.Credits != 2.0 {
			t.Errorf("stored credits = %v; want 2", usr.Credits)
		}
	})
}
