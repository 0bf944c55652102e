package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/services/authz"
)

type orgApi struct {
	svc      org.Service
	validate *validator.Validate
}

func registerOrgAPI(g *echo.Group, can guard, svc org.Service, validate *validator.Validate) {
	api := orgApi{svc: svc, validate: validate}

	dg := g.Group("/departments")
	dg.GET("", api.queryDepartments, can(resDepartments, authz.ActionRead))
	dg.POST("", api.createDepartment, can(resDepartments, authz.ActionCreate))
	dg.GET("/:id", api.retrieveDepartment, can(resDepartments, authz.ActionRead))
	dg.PUT("/:id", api.updateDepartment, can(resDepartments, authz.ActionUpdate))
	dg.DELETE("/:id", api.destroyDepartment, can(resDepartments, authz.ActionDelete))

	og := g.Group("/offices")
	og.GET("", api.queryOffices, can(resOffices, authz.ActionRead))
	og.POST("", api.createOffice, can(resOffices, authz.ActionCreate))
	og.GET("/:id", api.retrieveOffice, can(resOffices, authz.ActionRead))
	og.PUT("/:id", api.updateOffice, can(resOffices, authz.ActionUpdate))
	og.DELETE("/:id", api.destroyOffice, can(resOffices, authz.ActionDelete))
}

// Departments

func (api *orgApi) createDepartment(ctx echo.Context) error {
	var data org.NewDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDepartment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	dept, err := api.svc.CreateDepartment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, dept)
}

func (api *orgApi) queryDepartments(ctx echo.Context) error {
	filter := org.DepartmentFilter{Search: ctx.QueryParam("search")}
	ordering, page, err := bindList(ctx, org.DepartmentOrderingFields)
	if err != nil {
		return err
	}

	depts, err := api.svc.QueryDepartments(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	return ctx.JSON(http.StatusOK, depts)
}

func (api *orgApi) retrieveDepartment(ctx echo.Context) error {
	dept, err := api.svc.GetDepartment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding department by ID")
	}
	return ctx.JSON(http.StatusOK, dept)
}

func (api *orgApi) updateDepartment(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	dept, err := api.svc.GetDepartment(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding department by ID")
	}

	var data org.UpdateDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDepartment")
	}
	if err := data.Validate(dept, api.validate); err != nil {
		return err
	}

	dept, err = api.svc.UpdateDepartment(reqCtx, dept.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating department")
	}
	return ctx.JSON(http.StatusOK, dept)
}

func (api *orgApi) destroyDepartment(ctx echo.Context) error {
	if err := api.svc.DeleteDepartment(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Offices

func (api *orgApi) createOffice(ctx echo.Context) error {
	var data org.NewOffice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOffice")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	office, err := api.svc.CreateOffice(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating office")
	}
	return ctx.JSON(http.StatusCreated, office)
}

func (api *orgApi) queryOffices(ctx echo.Context) error {
	filter := org.OfficeFilter{
		Search:       ctx.QueryParam("search"),
		DepartmentID: ctx.QueryParam("department_id"),
	}
	ordering, page, err := bindList(ctx, org.OfficeOrderingFields)
	if err != nil {
		return err
	}

	offices, err := api.svc.QueryOffices(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying offices")
	}
	return ctx.JSON(http.StatusOK, offices)
}

func (api *orgApi) retrieveOffice(ctx echo.Context) error {
	office, err := api.svc.GetOffice(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding office by ID")
	}
	return ctx.JSON(http.StatusOK, office)
}

func (api *orgApi) updateOffice(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	office, err := api.svc.GetOffice(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding office by ID")
	}

	var data org.UpdateOffice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOffice")
	}
	if err := data.Validate(office, api.validate); err != nil {
		return err
	}

	office, err = api.svc.UpdateOffice(reqCtx, office.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating office")
	}
	return ctx.JSON(http.StatusOK, office)
}

func (api *orgApi) destroyOffice(ctx echo.Context) error {
	if err := api.svc.DeleteOffice(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting office")
	}
	return ctx.NoContent(http.StatusNoContent)
}
