package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/odin/core/roster"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type rosterApi struct {
	deps ServerDeps
	svc  *roster.Service
}

func registerRosterAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := rosterApi{deps: deps, svc: deps.RosterSvc}

	// users
	ug := g.Group("/users", jwt)
	ug.POST("", api.userCreate, adminMiddleware())
	ug.GET("", api.userQuery, staffMiddleware())
	ug.GET("/roles", api.userQueryRoles, adminMiddleware())

	dg := ug.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.userRetrieve)
	dg.PUT("", api.userUpdate)
	dg.DELETE("", api.userDestroy, adminMiddleware())

	// sections
	sg := g.Group("/sections", jwt)
	sg.POST("", api.sectionCreate, adminMiddleware())
	sg.GET("", api.sectionQuery)
	sg.GET("/:id", api.sectionRetrieve)
	sg.PUT("/:id", api.sectionUpdate, adminMiddleware())
	sg.DELETE("/:id", api.sectionDestroy, adminMiddleware())
	sg.POST("/:id/students", api.sectionEnrollStudent, staffMiddleware())
	sg.DELETE("/:id/students/:studentID", api.sectionRemoveStudent, staffMiddleware())

	// curricular units
	cg := g.Group("/units", jwt)
	cg.POST("", api.unitCreate, adminMiddleware())
	cg.GET("", api.unitQuery)
	cg.GET("/:id", api.unitRetrieve)
	cg.PUT("/:id", api.unitUpdate, adminMiddleware())
	cg.DELETE("/:id", api.unitDestroy, adminMiddleware())
}

// User handlers

func (api *rosterApi) userCreate(ctx echo.Context) error {
	var data roster.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.deps.Validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.CreateUser(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *rosterApi) userQuery(ctx echo.Context) error {
	filter := new(roster.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []roster.User{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.QueryUsers(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []roster.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *rosterApi) userQueryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, roster.Roles)
}

func (api *rosterApi) userRetrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(roster.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *rosterApi) userUpdate(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(roster.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data roster.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		// `IsActive` and `Email` can only be changed by admin
		if data.IsActive != nil || data.Email != "" {
			return errHttpForbidden
		}
	}

	if err := data.Validate(api.deps.Validate, usr, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.UpdateUser(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *rosterApi) userDestroy(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(roster.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err := api.svc.DeleteUser(ctx.Request().Context(), usr.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Section handlers

func (api *rosterApi) sectionCreate(ctx echo.Context) error {
	var data roster.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	sec, err := api.svc.CreateSection(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sec)
}

func (api *rosterApi) sectionQuery(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	secs, err := api.svc.QuerySections(ctx.Request().Context(), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	if secs == nil {
		secs = []roster.Section{}
	}
	return ctx.JSON(http.StatusOK, secs)
}

func (api *rosterApi) sectionRetrieve(ctx echo.Context) error {
	sec, err := api.svc.GetSection(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *rosterApi) sectionUpdate(ctx echo.Context) error {
	sec, err := api.svc.GetSection(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data roster.UpdateSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSection")
	}
	if err := data.Validate(api.deps.Validate, sec); err != nil {
		return err
	}

	sec, err = api.svc.UpdateSection(ctx.Request().Context(), sec.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *rosterApi) sectionDestroy(ctx echo.Context) error {
	if err := api.svc.DeleteSection(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *rosterApi) sectionEnrollStudent(ctx echo.Context) error {
	var data EnrollmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollmentRequest")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	sec, err := api.svc.EnrollStudent(ctx.Request().Context(), ctx.Param("id"), data.StudentID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *rosterApi) sectionRemoveStudent(ctx echo.Context) error {
	sec, err := api.svc.RemoveStudent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

// Curricular unit handlers

func (api *rosterApi) unitCreate(ctx echo.Context) error {
	var data roster.NewCurricularUnit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCurricularUnit")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	unit, err := api.svc.CreateCurricularUnit(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, unit)
}

func (api *rosterApi) unitQuery(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	units, err := api.svc.QueryCurricularUnits(ctx.Request().Context(), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying curricular units")
	}
	if units == nil {
		units = []roster.CurricularUnit{}
	}
	return ctx.JSON(http.StatusOK, units)
}

func (api *rosterApi) unitRetrieve(ctx echo.Context) error {
	unit, err := api.svc.GetCurricularUnit(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, unit)
}

func (api *rosterApi) unitUpdate(ctx echo.Context) error {
	unit, err := api.svc.GetCurricularUnit(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data roster.UpdateCurricularUnit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCurricularUnit")
	}
	if err := data.Validate(api.deps.Validate, unit); err != nil {
		return err
	}

	unit, err = api.svc.UpdateCurricularUnit(ctx.Request().Context(), unit.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, unit)
}

func (api *rosterApi) unitDestroy(ctx echo.Context) error {
	if err := api.svc.DeleteCurricularUnit(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func ctxUserOrAdminMiddleware(svc *roster.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetUser(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set("object", usr)
					return next(ctx)
				} else if errors.Cause(err) != roster.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type EnrollmentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}
