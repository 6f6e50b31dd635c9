package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/odin/core/voc"
)

type vocApi struct {
	deps ServerDeps
	svc  *voc.Service
}

func registerVocAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := vocApi{deps: deps, svc: deps.VocSvc}

	vg := g.Group("/vocs", jwt)
	vg.POST("", api.submit)
	vg.GET("", api.query)
	vg.GET("/:id", api.retrieve)
	vg.PUT("/:id", api.update)
	vg.DELETE("/:id", api.destroy)
	vg.POST("/:id/decision", api.decide, staffMiddleware())
}

// Handlers

func (api *vocApi) submit(ctx echo.Context) error {
	var data voc.NewVoc
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewVoc")
	}

	// students always submit for themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsStudent {
		data.StudentID = claims.Subject
	}

	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	v, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *vocApi) query(ctx echo.Context) error {
	filter := new(voc.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []voc.Voc{})
	}

	// students only see their own records
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsStudent {
		filter.StudentID = claims.Subject
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	vocs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying vocs")
	}
	if vocs == nil {
		vocs = []voc.Voc{}
	}
	return ctx.JSON(http.StatusOK, vocs)
}

func (api *vocApi) retrieve(ctx echo.Context) error {
	v, err := api.getOwnedVoc(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *vocApi) update(ctx echo.Context) error {
	v, err := api.getOwnedVoc(ctx)
	if err != nil {
		return err
	}

	var data voc.UpdateVoc
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateVoc")
	}
	if err := data.Validate(api.deps.Validate, v); err != nil {
		return err
	}

	v, err = api.svc.Update(ctx.Request().Context(), v.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *vocApi) destroy(ctx echo.Context) error {
	v, err := api.getOwnedVoc(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), v.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *vocApi) decide(ctx echo.Context) error {
	var data voc.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	v, err := api.svc.Decide(ctx.Request().Context(), ctx.Param("id"), data.Outcome)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, v)
}

// getOwnedVoc fetches the record and hides other students' records from a
// student caller.
func (api *vocApi) getOwnedVoc(ctx echo.Context) (voc.Voc, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return voc.Voc{}, err
	}

	v, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return voc.Voc{}, err
	}
	if claims.IsStudent && v.StudentID != claims.Subject {
		return voc.Voc{}, errHttpNotFound
	}
	return v, nil
}
