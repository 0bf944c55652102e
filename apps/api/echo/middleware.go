package echoapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/services/authz"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// guard returns the middleware checking that the authenticated user may perform action on object.
type guard func(object, action string) echo.MiddlewareFunc

// newGuard checks the roles of the JWT claims against the authz policy.
// In shadow mode denials are only logged.
func newGuard(az *authz.Authorizer, logger core.Logger) guard {
	return func(object, action string) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(ctx echo.Context) error {
				claims, err := getContextClaims(ctx)
				if err != nil {
					return errors.Wrap(err, "getting context claims")
				}
				allowed, enforced, err := az.Authorize(claims.Roles, object, action)
				if err != nil {
					return errors.Wrap(err, "authorizing request")
				}
				if allowed {
					return next(ctx)
				}
				if enforced {
					return errHttpForbidden
				}
				logger.Warn(fmt.Sprintf("authz (%s): %s may not %s %s", az.Mode(), claims.Username, action, object), map[string]interface{}{
					"roles":  claims.Roles,
					"object": object,
					"action": action,
				})
				return next(ctx)
			}
		}
	}
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// middleware counts requests by route. It runs outside of the error handler, so errors are mapped to their status here.
func (m *httpMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)

		status := ctx.Response().Status
		if err != nil {
			status = statusOf(err)
		}
		path := ctx.Path()
		if path == "" {
			path = "unknown"
		}
		m.requests.WithLabelValues(ctx.Request().Method, path, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(ctx.Request().Method, path).Observe(time.Since(start).Seconds())
		return err
	}
}

func statusOf(err error) int {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		return origErr.Code
	case validator.ValidationErrors, *core.ValidationError:
		return http.StatusBadRequest
	case *core.NotFoundError:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Resources of the authz policy.
const (
	resDepartments       = "departments"
	resOffices           = "offices"
	resSuppliers         = "suppliers"
	resCategories        = "categories"
	resItems             = "items"
	resStockIns          = "stock-ins"
	resStockOuts         = "stock-outs"
	resCurrentStock      = "current-stock"
	resDeadStocks        = "dead-stocks"
	resDeadStockRequests = "dead-stock-requests"
	resStockInRequests   = "stock-in-requests"
	resStockHistory      = "stock-history"
	resReports           = "reports"
	resLedger            = "ledger"
	resEvents            = "events"
)
