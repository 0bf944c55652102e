package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core/stock"
	"github.com/unistock/stockroom/core/user"
	"github.com/unistock/stockroom/services/authz"
)

type stockApi struct {
	svc      stock.Service
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerStockAPI(g *echo.Group, can guard, svc stock.Service, userSvc user.ServiceInterface, validate *validator.Validate) {
	api := stockApi{svc: svc, userSvc: userSvc, validate: validate}

	ig := g.Group("/stock-ins")
	ig.GET("", api.queryStockIns, can(resStockIns, authz.ActionRead))
	ig.POST("", api.createStockIn, can(resStockIns, authz.ActionCreate))
	ig.GET("/:id", api.retrieveStockIn, can(resStockIns, authz.ActionRead))
	ig.PUT("/:id", api.updateStockIn, can(resStockIns, authz.ActionUpdate))
	ig.DELETE("/:id", api.destroyStockIn, can(resStockIns, authz.ActionDelete))
	ig.POST("/:id/verify", api.verifyStockIn, can(resStockIns, authz.ActionReview))
	ig.GET("/:id/ledger", api.stockInChain, can(resLedger, authz.ActionRead))
	ig.GET("/:id/ledger/verify", api.verifyStockInChain, can(resLedger, authz.ActionRead))

	og := g.Group("/stock-outs")
	og.GET("", api.queryStockOuts, can(resStockOuts, authz.ActionRead))
	og.POST("", api.createStockOut, can(resStockOuts, authz.ActionCreate))
	og.GET("/:id", api.retrieveStockOut, can(resStockOuts, authz.ActionRead))
	og.DELETE("/:id", api.destroyStockOut, can(resStockOuts, authz.ActionDelete))

	cg := g.Group("/current-stock")
	cg.GET("", api.queryCurrentStock, can(resCurrentStock, authz.ActionRead))
	cg.GET("/:item_id", api.retrieveCurrentStock, can(resCurrentStock, authz.ActionRead))

	g.GET("/stock-history", api.queryHistory, can(resStockHistory, authz.ActionRead))
}

// Stock-ins

func (api *stockApi) createStockIn(ctx echo.Context) error {
	var data stock.NewStockIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStockIn")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	si, err := api.svc.CreateStockIn(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating stock-in")
	}
	return ctx.JSON(http.StatusCreated, si)
}

func (api *stockApi) queryStockIns(ctx echo.Context) error {
	q := newQueryParams(ctx)
	filter := stock.StockInFilter{
		Search:       q.String("search"),
		ItemID:       q.String("item_id"),
		SupplierID:   q.String("supplier_id"),
		DepartmentID: q.String("department_id"),
		IsVerified:   q.Bool("is_verified"),
		From:         q.Time("from"),
		To:           q.Time("to", true /* endOfDay */),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ordering, page, err := bindList(ctx, stock.StockInOrderingFields)
	if err != nil {
		return err
	}

	sis, err := api.svc.QueryStockIns(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying stock-ins")
	}
	return ctx.JSON(http.StatusOK, sis)
}

func (api *stockApi) retrieveStockIn(ctx echo.Context) error {
	si, err := api.svc.GetStockIn(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding stock-in by ID")
	}
	return ctx.JSON(http.StatusOK, si)
}

func (api *stockApi) updateStockIn(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	si, err := api.svc.GetStockIn(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding stock-in by ID")
	}

	var data stock.UpdateStockIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStockIn")
	}
	if err := data.Validate(si, api.validate); err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	si, err = api.svc.UpdateStockIn(reqCtx, actor, si.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating stock-in")
	}
	return ctx.JSON(http.StatusOK, si)
}

func (api *stockApi) verifyStockIn(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	si, err := api.svc.VerifyStockIn(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "verifying stock-in")
	}
	return ctx.JSON(http.StatusOK, si)
}

func (api *stockApi) destroyStockIn(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.DeleteStockIn(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting stock-in")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *stockApi) stockInChain(ctx echo.Context) error {
	blocks, err := api.svc.StockInChain(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting stock-in chain")
	}
	return ctx.JSON(http.StatusOK, blocks)
}

func (api *stockApi) verifyStockInChain(ctx echo.Context) error {
	report, err := api.svc.VerifyStockInChain(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "verifying stock-in chain")
	}
	return ctx.JSON(http.StatusOK, report)
}

// Stock-outs

func (api *stockApi) createStockOut(ctx echo.Context) error {
	var data stock.NewStockOut
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStockOut")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	so, err := api.svc.CreateStockOut(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating stock-out")
	}
	return ctx.JSON(http.StatusCreated, so)
}

func (api *stockApi) queryStockOuts(ctx echo.Context) error {
	q := newQueryParams(ctx)
	filter := stock.StockOutFilter{
		Search:       q.String("search"),
		ItemID:       q.String("item_id"),
		OfficeID:     q.String("office_id"),
		DepartmentID: q.String("department_id"),
		From:         q.Time("from"),
		To:           q.Time("to", true /* endOfDay */),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ordering, page, err := bindList(ctx, stock.StockOutOrderingFields)
	if err != nil {
		return err
	}

	sos, err := api.svc.QueryStockOuts(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying stock-outs")
	}
	return ctx.JSON(http.StatusOK, sos)
}

func (api *stockApi) retrieveStockOut(ctx echo.Context) error {
	so, err := api.svc.GetStockOut(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding stock-out by ID")
	}
	return ctx.JSON(http.StatusOK, so)
}

func (api *stockApi) destroyStockOut(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.DeleteStockOut(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting stock-out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Current stock & history

func (api *stockApi) queryCurrentStock(ctx echo.Context) error {
	q := newQueryParams(ctx)
	filter := stock.CurrentStockFilter{
		Search:     q.String("search"),
		CategoryID: q.String("category_id"),
		LowStock:   q.Bool("low_stock"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ordering, page, err := bindList(ctx, stock.CurrentStockOrderingFields)
	if err != nil {
		return err
	}

	rows, err := api.svc.QueryCurrentStock(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying current stock")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *stockApi) retrieveCurrentStock(ctx echo.Context) error {
	cs, err := api.svc.GetCurrentStock(ctx.Request().Context(), ctx.Param("item_id"))
	if err != nil {
		return errors.Wrap(err, "finding current stock by item ID")
	}
	return ctx.JSON(http.StatusOK, cs)
}

func (api *stockApi) queryHistory(ctx echo.Context) error {
	filter, err := bindHistoryFilter(ctx)
	if err != nil {
		return err
	}
	ordering, page, err := bindList(ctx, stock.HistoryOrderingFields)
	if err != nil {
		return err
	}

	entries, err := api.svc.QueryHistory(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying stock history")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func bindHistoryFilter(ctx echo.Context) (stock.HistoryFilter, error) {
	q := newQueryParams(ctx)
	filter := stock.HistoryFilter{
		ItemID:       q.String("item_id"),
		DepartmentID: q.String("department_id"),
		Kind:         q.String("kind"),
		From:         q.Time("from"),
		To:           q.Time("to", true /* endOfDay */),
	}
	switch filter.Kind {
	case "", stock.KindIn, stock.KindOut, stock.KindDead:
	default:
		q.fail("kind", errors.New("must be one of in, out, dead"))
	}
	return filter, q.Err()
}
