package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/odin/core/tech"
)

type techApi struct {
	deps ServerDeps
	svc  *tech.Service
}

func registerTechAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := techApi{deps: deps, svc: deps.TechSvc}

	tg := g.Group("/techs", jwt)
	tg.POST("", api.create, staffMiddleware())
	tg.GET("", api.query)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update, staffMiddleware())
	tg.DELETE("/:id", api.destroy, staffMiddleware())
	tg.GET("/:id/attendance", api.attendance, staffMiddleware())

	sg := g.Group("/students", jwt)
	sg.GET("/:id/attendance", api.studentAttendance)
}

// Handlers

func (api *techApi) create(ctx echo.Context) error {
	var data tech.NewTech
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTech")
	}

	// teachers always record their own sessions
	ctxUsr, err := getContextUser(ctx, api.deps.RosterSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		data.TeacherID = ctxUsr.ID
	}

	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *techApi) query(ctx echo.Context) error {
	filter := new(tech.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []tech.Tech{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	techs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying techs")
	}
	if techs == nil {
		techs = []tech.Tech{}
	}
	return ctx.JSON(http.StatusOK, techs)
}

func (api *techApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *techApi) update(ctx echo.Context) error {
	t, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data tech.UpdateTech
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTech")
	}
	if err := data.Validate(api.deps.Validate, t); err != nil {
		return err
	}

	t, err = api.svc.Update(ctx.Request().Context(), t.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *techApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *techApi) attendance(ctx echo.Context) error {
	rows, err := api.svc.AttendanceForTech(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rows)
}

// studentAttendance returns the student's attendance history; students may
// only see their own.
func (api *techApi) studentAttendance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsStudent && claims.Subject != ctx.Param("id") {
		return errHttpForbidden
	}

	history, err := api.svc.StudentAttendance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying student attendance")
	}
	return ctx.JSON(http.StatusOK, history)
}
