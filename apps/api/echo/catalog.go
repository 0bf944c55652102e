package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/services/authz"
)

type catalogApi struct {
	svc      catalog.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, can guard, svc catalog.Service, validate *validator.Validate) {
	api := catalogApi{svc: svc, validate: validate}

	sg := g.Group("/suppliers")
	sg.GET("", api.querySuppliers, can(resSuppliers, authz.ActionRead))
	sg.POST("", api.createSupplier, can(resSuppliers, authz.ActionCreate))
	sg.GET("/:id", api.retrieveSupplier, can(resSuppliers, authz.ActionRead))
	sg.PUT("/:id", api.updateSupplier, can(resSuppliers, authz.ActionUpdate))
	sg.DELETE("/:id", api.destroySupplier, can(resSuppliers, authz.ActionDelete))

	cg := g.Group("/categories")
	cg.GET("", api.queryCategories, can(resCategories, authz.ActionRead))
	cg.POST("", api.createCategory, can(resCategories, authz.ActionCreate))
	cg.GET("/:id", api.retrieveCategory, can(resCategories, authz.ActionRead))
	cg.PUT("/:id", api.updateCategory, can(resCategories, authz.ActionUpdate))
	cg.DELETE("/:id", api.destroyCategory, can(resCategories, authz.ActionDelete))

	ig := g.Group("/items")
	ig.GET("", api.queryItems, can(resItems, authz.ActionRead))
	ig.POST("", api.createItem, can(resItems, authz.ActionCreate))
	ig.GET("/:id", api.retrieveItem, can(resItems, authz.ActionRead))
	ig.PUT("/:id", api.updateItem, can(resItems, authz.ActionUpdate))
	ig.DELETE("/:id", api.destroyItem, can(resItems, authz.ActionDelete))
}

// Suppliers

func (api *catalogApi) createSupplier(ctx echo.Context) error {
	var data catalog.NewSupplier
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSupplier")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sup, err := api.svc.CreateSupplier(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating supplier")
	}
	return ctx.JSON(http.StatusCreated, sup)
}

func (api *catalogApi) querySuppliers(ctx echo.Context) error {
	q := newQueryParams(ctx)
	filter := catalog.SupplierFilter{
		Search:   q.String("search"),
		IsActive: q.Bool("is_active"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ordering, page, err := bindList(ctx, catalog.SupplierOrderingFields)
	if err != nil {
		return err
	}

	sups, err := api.svc.QuerySuppliers(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying suppliers")
	}
	return ctx.JSON(http.StatusOK, sups)
}

func (api *catalogApi) retrieveSupplier(ctx echo.Context) error {
	sup, err := api.svc.GetSupplier(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding supplier by ID")
	}
	return ctx.JSON(http.StatusOK, sup)
}

func (api *catalogApi) updateSupplier(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	sup, err := api.svc.GetSupplier(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding supplier by ID")
	}

	var data catalog.UpdateSupplier
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSupplier")
	}
	if err := data.Validate(sup, api.validate); err != nil {
		return err
	}

	sup, err = api.svc.UpdateSupplier(reqCtx, sup.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating supplier")
	}
	return ctx.JSON(http.StatusOK, sup)
}

func (api *catalogApi) destroySupplier(ctx echo.Context) error {
	if err := api.svc.DeleteSupplier(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting supplier")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Categories

func (api *catalogApi) createCategory(ctx echo.Context) error {
	var data catalog.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *catalogApi) queryCategories(ctx echo.Context) error {
	filter := catalog.CategoryFilter{Search: ctx.QueryParam("search")}
	ordering, page, err := bindList(ctx, catalog.CategoryOrderingFields)
	if err != nil {
		return err
	}

	cats, err := api.svc.QueryCategories(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *catalogApi) retrieveCategory(ctx echo.Context) error {
	cat, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding category by ID")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *catalogApi) updateCategory(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	cat, err := api.svc.GetCategory(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding category by ID")
	}

	var data catalog.UpdateCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCategory")
	}
	if err := data.Validate(cat, api.validate); err != nil {
		return err
	}

	cat, err = api.svc.UpdateCategory(reqCtx, cat.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *catalogApi) destroyCategory(ctx echo.Context) error {
	if err := api.svc.DeleteCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Items

func (api *catalogApi) createItem(ctx echo.Context) error {
	var data catalog.NewItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.CreateItem(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *catalogApi) queryItems(ctx echo.Context) error {
	filter := catalog.ItemFilter{
		Search:     ctx.QueryParam("search"),
		CategoryID: ctx.QueryParam("category_id"),
	}
	ordering, page, err := bindList(ctx, catalog.ItemOrderingFields)
	if err != nil {
		return err
	}

	items, err := api.svc.QueryItems(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying items")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *catalogApi) retrieveItem(ctx echo.Context) error {
	item, err := api.svc.GetItem(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding item by ID")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *catalogApi) updateItem(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	item, err := api.svc.GetItem(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding item by ID")
	}

	var data catalog.UpdateItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateItem")
	}
	if err := data.Validate(item, api.validate); err != nil {
		return err
	}

	item, err = api.svc.UpdateItem(reqCtx, item.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *catalogApi) destroyItem(ctx echo.Context) error {
	if err := api.svc.DeleteItem(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting item")
	}
	return ctx.NoContent(http.StatusNoContent)
}
