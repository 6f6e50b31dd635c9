package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/odin/core/credit"
)

type creditApi struct {
	deps ServerDeps
	svc  *credit.Service
}

func registerCreditAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := creditApi{deps: deps, svc: deps.CreditSvc}

	sg := g.Group("/students", jwt)
	sg.GET("/:id/credits", api.balance)
	sg.POST("/:id/credits/reconcile", api.reconcile, adminMiddleware())
}

// Handlers

// balance recomputes the student's standing from the ledger on every read;
// students may only see their own.
func (api *creditApi) balance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	studentID := ctx.Param("id")
	if claims.IsStudent && claims.Subject != studentID {
		return errHttpForbidden
	}

	credits, err := api.svc.Compute(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "computing credits")
	}
	return ctx.JSON(http.StatusOK, BalanceResponse{StudentID: studentID, Credits: credits})
}

func (api *creditApi) reconcile(ctx echo.Context) error {
	usr, err := api.svc.Reconcile(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

type BalanceResponse struct {
	StudentID string  `json:"student_id"`
	Credits   float64 `json:"credits"`
}
