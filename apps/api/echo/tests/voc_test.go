package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/odin/core/roster"
	"github.com/trezcool/odin/core/voc"
	testutil "github.com/trezcool/odin/tests"
)

func Test_vocApi_submit(t *testing.T) {
	app := newTestApp(t)
	student := testutil.CreateUser(t, app.rosterRepo, "Jane", "a1@school.cd", roster.RoleStudent, true)
	other := testutil.CreateUser(t, app.rosterRepo, "Joe", "a2@school.cd", roster.RoleStudent, true)
	unit := testutil.CreateCurricularUnit(t, app.rosterRepo, "Databases")

	t.Run("auth required", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: "/v1/vocs",
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})

	t.Run("students submit for themselves only", func(t *testing.T) {
		// the student ID in the payload is ignored for student callers
		rec := app.do(httpTest{
			method: http.MethodPost, path: "/v1/vocs",
			token: app.getToken(t, student),
			body: marshalObj(t, voc.NewVoc{
				Description:      "Index tuning lab",
				StudentID:        other.ID,
				CurricularUnitID: unit.ID,
				Started:          time.Now().UTC(),
			}),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body = %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var v voc.Voc
		decodeBody(t, rec, &v)
		if v.StudentID != student.ID {
			t.Errorf("StudentID = %v; want the caller %v", v.StudentID, student.ID)
		}
		if v.Disposition != voc.DispositionPending {
			t.Errorf("Disposition = %v; want %v", v.Disposition, voc.DispositionPending)
		}
	})

	t.Run("interval must be coherent", func(t *testing.T) {
		started := time.Now().UTC()
		rec := app.do(httpTest{
			method: http.MethodPost, path: "/v1/vocs",
			token: app.getToken(t, student),
			body: marshalObj(t, voc.NewVoc{
				Description:      "Time travel",
				CurricularUnitID: unit.ID,
				Started:          started,
				Ended:            null.TimeFrom(started.Add(-time.Hour)),
			}),
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body = %v", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})
}

func Test_vocApi_visibility(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, app.rosterRepo, "Jane", "a1@school.cd", roster.RoleStudent, true)
	other := testutil.CreateUser(t, app.rosterRepo, "Joe", "a2@school.cd", roster.RoleStudent, true)
	teacher := testutil.CreateUser(t, app.rosterRepo, "John", "jdoe@school.cd", roster.RoleTeacher, true)
	unit := testutil.CreateCurricularUnit(t, app.rosterRepo, "Databases")

	v, err := app.vocSvc.Submit(ctx, voc.NewVoc{
		Description:      "Index tuning lab",
		StudentID:        student.ID,
		CurricularUnitID: unit.ID,
		Started:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	t.Run("other students cannot see it", func(t *testing.T) {
		tt := httpTest{
			path:     "/v1/vocs/" + v.ID,
			token:    app.getToken(t, other),
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "not found"}),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})

	t.Run("the owner and staff can", func(t *testing.T) {
		for _, usr := range []roster.User{student, teacher} {
			rec := app.do(httpTest{path: "/v1/vocs/" + v.ID, token: app.getToken(t, usr)})
			if rec.Code != http.StatusOK {
				t.Errorf("code for %v = %v; want %v", usr.Role, rec.Code, http.StatusOK)
			}
		}
	})

	t.Run("query scoped to the calling student", func(t *testing.T) {
		rec := app.do(httpTest{path: "/v1/vocs", token: app.getToken(t, other)})
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v", rec.Code, http.StatusOK)
		}
		var vocs []voc.Voc
		decodeBody(t, rec, &vocs)
		if len(vocs) != 0 {
			t.Errorf("len(vocs) = %v; want 0", len(vocs))
		}
	})
}

func Test_vocApi_decide(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, app.rosterRepo, "Jane", "a1@school.cd", roster.RoleStudent, true)
	teacher := testutil.CreateUser(t, app.rosterRepo, "John", "jdoe@school.cd", roster.RoleTeacher, true)
	unit := testutil.CreateCurricularUnit(t, app.rosterRepo, "Databases")

	started := time.Now().UTC().Add(-48 * time.Hour)
	v, err := app.vocSvc.Submit(ctx, voc.NewVoc{
		Description:      "Index tuning lab",
		StudentID:        student.ID,
		CurricularUnitID: unit.ID,
		Started:          started,
		Ended:            null.TimeFrom(started.Add(24 * time.Hour)),
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	path := fmt.Sprintf("/v1/vocs/%s/decision", v.ID)
	approve := marshalObj(t, voc.Decision{Outcome: voc.DispositionApproved})

	t.Run("staff only", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: path, body: approve,
			token:    app.getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})

	t.Run("teacher approves", func(t *testing.T) {
		rec := app.do(httpTest{method: http.MethodPost, path: path, body: approve, token: app.getToken(t, teacher)})
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var decided voc.Voc
		decodeBody(t, rec, &decided)
		if decided.Disposition != voc.DispositionApproved {
			t.Errorf("Disposition = %v; want %v", decided.Disposition, voc.DispositionApproved)
		}
	})

	t.Run("second decision conflicts", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: path,
			body:     marshalObj(t, voc.Decision{Outcome: voc.DispositionRejected}),
			token:    app.getToken(t, teacher),
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: voc.ErrAlreadyDecided.Error()}),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})

	t.Run("decided records are frozen", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodDelete, path: "/v1/vocs/" + v.ID,
			token:    app.getToken(t, student),
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: voc.ErrAlreadyDecided.Error()}),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})
}
