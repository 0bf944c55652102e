package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/services/authz"
	"github.com/unistock/stockroom/services/events"
)

type ledgerApi struct {
	svc ledger.Service
}

func registerLedgerAPI(g *echo.Group, can guard, svc ledger.Service) {
	api := ledgerApi{svc: svc}

	lg := g.Group("/ledger", can(resLedger, authz.ActionRead))
	lg.GET("", api.verifyAll)
	lg.GET("/:chain", api.chain)
	lg.GET("/:chain/verify", api.verify)
}

func (api *ledgerApi) chain(ctx echo.Context) error {
	blocks, err := api.svc.Chain(ctx.Request().Context(), ctx.Param("chain"))
	if err != nil {
		return errors.Wrap(err, "getting ledger chain")
	}
	return ctx.JSON(http.StatusOK, blocks)
}

func (api *ledgerApi) verify(ctx echo.Context) error {
	rep, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("chain"))
	if err != nil {
		return errors.Wrap(err, "verifying ledger chain")
	}
	return ctx.JSON(http.StatusOK, rep)
}

// verifyAll verifies every chain whose key starts with the prefix param.
func (api *ledgerApi) verifyAll(ctx echo.Context) error {
	reports, err := api.svc.VerifyAll(ctx.Request().Context(), ctx.QueryParam("prefix"))
	if err != nil {
		return errors.Wrap(err, "verifying ledger chains")
	}
	if reports == nil {
		reports = []ledger.Report{}
	}
	return ctx.JSON(http.StatusOK, reports)
}

// registerEventsAPI serves the live events. Browsers cannot set headers on websockets,
// so the JWT is read from the token query param.
func registerEventsAPI(g *echo.Group, conf *core.Config, can guard, hub *events.Hub) {
	jwtConf := newJWTConfig(conf)
	jwtConf.TokenLookup = "query:token"

	g.GET("/events/ws", func(ctx echo.Context) error {
		if err := hub.ServeWS(ctx.Response(), ctx.Request()); err != nil {
			ctx.Logger().Debugf("websocket upgrade: %v", err)
		}
		return nil
	}, middleware.JWTWithConfig(jwtConf), can(resEvents, authz.ActionRead))
}
