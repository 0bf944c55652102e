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

// requestApi serves dead stock and the requests reviewed by storekeepers.
type requestApi struct {
	svc      stock.Service
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerRequestAPI(g *echo.Group, can guard, svc stock.Service, userSvc user.ServiceInterface, validate *validator.Validate) {
	api := requestApi{svc: svc, userSvc: userSvc, validate: validate}

	dg := g.Group("/dead-stocks")
	dg.GET("", api.queryDeadStocks, can(resDeadStocks, authz.ActionRead))
	dg.POST("", api.createDeadStock, can(resDeadStocks, authz.ActionCreate))
	dg.GET("/:id", api.retrieveDeadStock, can(resDeadStocks, authz.ActionRead))

	drg := g.Group("/dead-stock-requests")
	drg.GET("", api.queryDeadStockRequests, can(resDeadStockRequests, authz.ActionRead))
	drg.POST("", api.createDeadStockRequest, can(resDeadStockRequests, authz.ActionCreate))
	drg.GET("/:id", api.retrieveDeadStockRequest, can(resDeadStockRequests, authz.ActionRead))
	drg.POST("/:id/approve", api.approveDeadStockRequest, can(resDeadStockRequests, authz.ActionReview))
	drg.POST("/:id/reject", api.rejectDeadStockRequest, can(resDeadStockRequests, authz.ActionReview))

	srg := g.Group("/stock-in-requests")
	srg.GET("", api.queryStockInRequests, can(resStockInRequests, authz.ActionRead))
	srg.POST("", api.createStockInRequest, can(resStockInRequests, authz.ActionCreate))
	srg.GET("/:id", api.retrieveStockInRequest, can(resStockInRequests, authz.ActionRead))
	srg.POST("/:id/approve", api.approveStockInRequest, can(resStockInRequests, authz.ActionReview))
	srg.POST("/:id/reject", api.rejectStockInRequest, can(resStockInRequests, authz.ActionReview))
}

// Dead stock

func (api *requestApi) createDeadStock(ctx echo.Context) error {
	var data stock.NewDeadStock
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDeadStock")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ds, err := api.svc.CreateDeadStock(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating dead stock")
	}
	return ctx.JSON(http.StatusCreated, ds)
}

func (api *requestApi) queryDeadStocks(ctx echo.Context) error {
	q := newQueryParams(ctx)
	filter := stock.DeadStockFilter{
		Search: q.String("search"),
		ItemID: q.String("item_id"),
		From:   q.Time("from"),
		To:     q.Time("to", true /* endOfDay */),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ordering, page, err := bindList(ctx, stock.DeadStockOrderingFields)
	if err != nil {
		return err
	}

	dss, err := api.svc.QueryDeadStocks(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying dead stock")
	}
	return ctx.JSON(http.StatusOK, dss)
}

func (api *requestApi) retrieveDeadStock(ctx echo.Context) error {
	ds, err := api.svc.GetDeadStock(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding dead stock by ID")
	}
	return ctx.JSON(http.StatusOK, ds)
}

// Requests

func bindRequestFilter(ctx echo.Context) (stock.RequestFilter, error) {
	q := newQueryParams(ctx)
	filter := stock.RequestFilter{
		Status:      q.String("status"),
		ItemID:      q.String("item_id"),
		OfficeID:    q.String("office_id"),
		RequestedBy: q.String("requested_by"),
	}
	switch filter.Status {
	case "", stock.StatusPending, stock.StatusApproved, stock.StatusRejected:
	default:
		q.fail("status", errors.New("must be one of pending, approved, rejected"))
	}
	return filter, q.Err()
}

// bindReview binds the optional review note.
func (api *requestApi) bindReview(ctx echo.Context) (stock.Review, error) {
	var data stock.Review
	if err := ctx.Bind(&data); err != nil {
		return stock.Review{}, errors.Wrap(err, "binding to Review")
	}
	if err := data.Validate(api.validate); err != nil {
		return stock.Review{}, err
	}
	return data, nil
}

func (api *requestApi) createDeadStockRequest(ctx echo.Context) error {
	var data stock.NewDeadStockRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDeadStockRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	req, err := api.svc.CreateDeadStockRequest(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating dead stock request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *requestApi) queryDeadStockRequests(ctx echo.Context) error {
	filter, err := bindRequestFilter(ctx)
	if err != nil {
		return err
	}
	ordering, page, err := bindList(ctx, stock.DeadStockRequestOrderingFields)
	if err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqs, err := api.svc.QueryDeadStockRequests(ctx.Request().Context(), actor, filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying dead stock requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *requestApi) retrieveDeadStockRequest(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	req, err := api.svc.GetDeadStockRequest(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding dead stock request by ID")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *requestApi) approveDeadStockRequest(ctx echo.Context) error {
	review, err := api.bindReview(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	req, err := api.svc.ApproveDeadStockRequest(ctx.Request().Context(), actor, ctx.Param("id"), review)
	if err != nil {
		return errors.Wrap(err, "approving dead stock request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *requestApi) rejectDeadStockRequest(ctx echo.Context) error {
	review, err := api.bindReview(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	req, err := api.svc.RejectDeadStockRequest(ctx.Request().Context(), actor, ctx.Param("id"), review)
	if err != nil {
		return errors.Wrap(err, "rejecting dead stock request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *requestApi) createStockInRequest(ctx echo.Context) error {
	var data stock.NewStockInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStockInRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	req, err := api.svc.CreateStockInRequest(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating stock-in request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *requestApi) queryStockInRequests(ctx echo.Context) error {
	filter, err := bindRequestFilter(ctx)
	if err != nil {
		return err
	}
	ordering, page, err := bindList(ctx, stock.StockInRequestOrderingFields)
	if err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqs, err := api.svc.QueryStockInRequests(ctx.Request().Context(), actor, filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying stock-in requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *requestApi) retrieveStockInRequest(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	req, err := api.svc.GetStockInRequest(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding stock-in request by ID")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *requestApi) approveStockInRequest(ctx echo.Context) error {
	review, err := api.bindReview(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	req, err := api.svc.ApproveStockInRequest(ctx.Request().Context(), actor, ctx.Param("id"), review)
	if err != nil {
		return errors.Wrap(err, "approving stock-in request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *requestApi) rejectStockInRequest(ctx echo.Context) error {
	review, err := api.bindReview(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	req, err := api.svc.RejectStockInRequest(ctx.Request().Context(), actor, ctx.Param("id"), review)
	if err != nil {
		return errors.Wrap(err, "rejecting stock-in request")
	}
	return ctx.JSON(http.StatusOK, req)
}
