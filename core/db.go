package core

import (
	"context"
	"database/sql"
	"math"

	"github.com/jmoiron/sqlx"
)

type (
	DBExecutor interface {
		sqlx.ExtContext

		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
		Close() error
	}
)

var (
	_ DB         = (*sqlx.DB)(nil)
	_ DBExecutor = (*sqlx.Tx)(nil)
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Pagination is a 1-indexed page of query results.
type Pagination struct {
	Page     int
	PageSize int
}

func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	} else if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	// the offset must fit in an int32
	if maxPage := math.MaxInt32/pageSize + 1; page > maxPage {
		page = maxPage
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// IsZero reports whether no pagination was requested; all rows are returned then.
func (p Pagination) IsZero() bool { return p.Page == 0 && p.PageSize == 0 }

func (p Pagination) Limit() uint64 { return uint64(p.PageSize) }

func (p Pagination) Offset() uint64 {
	if p.Page < 1 {
		return 0
	}
	return uint64((p.Page - 1) * p.PageSize)
}

// Page holds one page of query results along with the total count of matching rows.
type Page[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func NewPage[T any](count int, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}
	return Page[T]{Count: count, Results: results}
}
