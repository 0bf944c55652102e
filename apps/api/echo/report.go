package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core/report"
	"github.com/unistock/stockroom/core/stock"
	"github.com/unistock/stockroom/services/authz"
)

type reportApi struct {
	svc report.Service
}

func registerReportAPI(g *echo.Group, can guard, svc report.Service) {
	api := reportApi{svc: svc}

	rg := g.Group("/reports", can(resReports, authz.ActionRead))
	rg.GET("/summary", api.summary)
	rg.GET("/low-stock", api.lowStock)
	rg.GET("/current-stock/export", api.exportCurrentStock)
	rg.GET("/stock-history/export", api.exportHistory)
}

func (api *reportApi) summary(ctx echo.Context) error {
	q := newQueryParams(ctx)
	filter := report.SummaryFilter{
		DepartmentID: q.String("department_id"),
		From:         q.Time("from"),
		To:           q.Time("to", true /* endOfDay */),
	}
	if err := q.Err(); err != nil {
		return err
	}

	summary, err := api.svc.Summary(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "building summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *reportApi) lowStock(ctx echo.Context) error {
	rows, err := api.svc.LowStock(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying low stock")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *reportApi) exportCurrentStock(ctx echo.Context) error {
	q := newQueryParams(ctx)
	filter := stock.CurrentStockFilter{
		Search:     q.String("search"),
		CategoryID: q.String("category_id"),
		LowStock:   q.Bool("low_stock"),
	}
	if err := q.Err(); err != nil {
		return err
	}

	export, err := api.svc.ExportCurrentStock(ctx.Request().Context(), filter, ctx.QueryParam("format"))
	if err != nil {
		return errors.Wrap(err, "exporting current stock")
	}
	return attachment(ctx, export)
}

func (api *reportApi) exportHistory(ctx echo.Context) error {
	filter, err := bindHistoryFilter(ctx)
	if err != nil {
		return err
	}

	export, err := api.svc.ExportHistory(ctx.Request().Context(), filter, ctx.QueryParam("format"))
	if err != nil {
		return errors.Wrap(err, "exporting stock history")
	}
	return attachment(ctx, export)
}

func attachment(ctx echo.Context, export report.Export) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename))
	return ctx.Blob(http.StatusOK, export.ContentType, export.Content)
}
