package echoapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
)

const (
	orderingParam = "ordering"
	pageParam     = "page"
	pageSizeParam = "page_size"

	dateLayout = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses the comma separated ordering fields, "-" prefixed when descending.
// Fields not in allowed are rejected.
func (ord *Ordering) Bind(ctx echo.Context, allowed []string) error {
	val := strings.TrimSpace(ctx.QueryParam(orderingParam))
	if val == "" {
		return nil
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !contains(allowed, field) {
			return core.NewFieldValidationError(orderingParam, fmt.Errorf("unknown ordering field %q", field))
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}

// bindPagination reads the page & page_size params. Lists are always paginated.
func bindPagination(ctx echo.Context) (core.Pagination, error) {
	q := newQueryParams(ctx)
	page := q.Int(pageParam)
	pageSize := q.Int(pageSizeParam)
	if err := q.Err(); err != nil {
		return core.Pagination{}, err
	}
	return core.NewPagination(page, pageSize), nil
}

// bindList binds the ordering & pagination of a list request.
func bindList(ctx echo.Context, orderingFields []string) ([]core.DBOrdering, core.Pagination, error) {
	ordering := new(Ordering)
	if err := ordering.Bind(ctx, orderingFields); err != nil {
		return nil, core.Pagination{}, err
	}
	page, err := bindPagination(ctx)
	if err != nil {
		return nil, core.Pagination{}, err
	}
	return ordering.Orderings, page, nil
}

// queryParams reads typed query params. The first invalid param is reported by Err.
type queryParams struct {
	ctx echo.Context
	err error
}

func newQueryParams(ctx echo.Context) *queryParams {
	return &queryParams{ctx: ctx}
}

func (q *queryParams) fail(name string, err error) {
	if q.err == nil {
		q.err = core.NewFieldValidationError(name, err)
	}
}

func (q *queryParams) String(name string) string {
	return core.CleanString(q.ctx.QueryParam(name))
}

func (q *queryParams) Strings(name string) []string {
	var vals []string
	for _, raw := range q.ctx.QueryParams()[name] {
		for _, val := range strings.Split(raw, ",") {
			if val = strings.TrimSpace(val); val != "" {
				vals = append(vals, val)
			}
		}
	}
	return vals
}

func (q *queryParams) Int(name string) int {
	raw := strings.TrimSpace(q.ctx.QueryParam(name))
	if raw == "" {
		return 0
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, errors.New("must be an integer"))
	}
	return val
}

func (q *queryParams) Bool(name string) *bool {
	raw := strings.TrimSpace(q.ctx.QueryParam(name))
	if raw == "" {
		return nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, errors.New("must be a boolean"))
		return nil
	}
	return &val
}

// Time accepts RFC3339 timestamps and dates. A date is the start of the day (UTC),
// or its end when endOfDay is set.
func (q *queryParams) Time(name string, endOfDay ...bool) time.Time {
	raw := strings.TrimSpace(q.ctx.QueryParam(name))
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		q.fail(name, errors.New("must be a date (YYYY-MM-DD) or an RFC3339 timestamp"))
		return time.Time{}
	}
	if len(endOfDay) > 0 && endOfDay[0] {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}

func (q *queryParams) Err() error {
	return q.err
}

func contains(vals []string, val string) bool {
	for _, v := range vals {
		if v == val {
			return true
		}
	}
	return false
}
