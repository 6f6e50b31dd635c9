package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/trezcool/odin/apps/api/echo"
	"github.com/trezcool/odin/core/roster"
	testutil "github.com/trezcool/odin/tests"
)

func Test_authApi_token(t *testing.T) {
	app := newTestApp(t)

	t.Run("provisions a student on first sign-in", func(t *testing.T) {
		rec := app.do(httpTest{
			method: http.MethodPost, path: "/v1/auth/token",
			body: marshalObj(t, echoapi.TokenRequest{Email: "A1234@School.CD", Name: "Jane Mwamba"}),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp echoapi.TokenResponse
		decodeBody(t, rec, &resp)
		if resp.Token == "" {
			t.Error("no token returned")
		}

		usr, err := app.rosterRepo.GetUser(context.Background(), roster.GetFilter{Email: "a1234@school.cd"})
		if err != nil {
			t.Fatalf("GetUser() failed: %v", err)
		}
		if !usr.IsStudent() {
			t.Errorf("provisioned role = %v; want %v", usr.Role, roster.RoleStudent)
		}
	})

	t.Run("provisions staff for non-student addresses", func(t *testing.T) {
		rec := app.do(httpTest{
			method: http.MethodPost, path: "/v1/auth/token",
			body: marshalObj(t, echoapi.TokenRequest{Email: "jdoe@school.cd", Name: "John Doe"}),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		usr, err := app.rosterRepo.GetUser(context.Background(), roster.GetFilter{Email: "jdoe@school.cd"})
		if err != nil {
			t.Fatalf("GetUser() failed: %v", err)
		}
		if !usr.IsTeacher() {
			t.Errorf("provisioned role = %v; want %v", usr.Role, roster.RoleTeacher)
		}
	})

	t.Run("rejects a malformed assertion", func(t *testing.T) {
		rec := app.do(httpTest{
			method: http.MethodPost, path: "/v1/auth/token",
			body: marshalObj(t, echoapi.TokenRequest{Email: "not-an-email", Name: "Jane"}),
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects a deactivated account", func(t *testing.T) {
		testutil.CreateUser(t, app.rosterRepo, "Gone", "a9999@school.cd", roster.RoleStudent, false)

		tt := httpTest{
			method: http.MethodPost, path: "/v1/auth/token",
			body:     marshalObj(t, echoapi.TokenRequest{Email: "a9999@school.cd", Name: "Gone"}),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})
}

func Test_authApi_refreshToken(t *testing.T) {
	app := newTestApp(t)
	usr := testutil.CreateUser(t, app.rosterRepo, "Jane", "a1@school.cd", roster.RoleStudent, true)

	t.Run("auth required", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: "/v1/auth/token-refresh",
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})

	t.Run("refreshes a live token", func(t *testing.T) {
		rec := app.do(httpTest{
			method: http.MethodPost, path: "/v1/auth/token-refresh",
			token: app.getToken(t, usr),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body = %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp echoapi.TokenResponse
		decodeBody(t, rec, &resp)
		if resp.Token == "" {
			t.Error("no token returned")
		}
	})

	t.Run("deactivation revokes refresh", func(t *testing.T) {
		token := app.getToken(t, usr)

		inactive := false
		if _, err := app.rosterSvc.UpdateUser(context.Background(), usr.ID, roster.UpdateUser{
			Name: usr.Name, Email: usr.Email, IsActive: &inactive,
		}); err != nil {
			t.Fatalf("UpdateUser() failed: %v", err)
		}

		tt := httpTest{
			method: http.MethodPost, path: "/v1/auth/token-refresh",
			token:    token,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})
}
