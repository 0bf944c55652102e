// Package inmemdb implements the repositories in memory. Used by tests and the in-memory server mode.
package inmemdb

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/core/stock"
	"github.com/unistock/stockroom/core/user"
)

// DB holds every table. Repositories share it so that names of related rows are always current.
type DB struct {
	mutex sync.RWMutex

	users       map[string]user.User
	departments map[string]org.Department
	offices     map[string]org.Office
	suppliers   map[string]catalog.Supplier
	categories  map[string]catalog.Category
	items       map[string]catalog.Item

	stockIns          map[string]stock.StockIn
	stockOuts         map[string]stock.StockOut
	deadStocks        map[string]stock.DeadStock
	deadStockRequests map[string]stock.DeadStockRequest
	stockInRequests   map[string]stock.StockInRequest

	chains map[string][]ledger.Block
}

func Open() *DB {
	return &DB{
		users:             make(map[string]user.User),
		departments:       make(map[string]org.Department),
		offices:           make(map[string]org.Office),
		suppliers:         make(map[string]catalog.Supplier),
		categories:        make(map[string]catalog.Category),
		items:             make(map[string]catalog.Item),
		stockIns:          make(map[string]stock.StockIn),
		stockOuts:         make(map[string]stock.StockOut),
		deadStocks:        make(map[string]stock.DeadStock),
		deadStockRequests: make(map[string]stock.DeadStockRequest),
		stockInRequests:   make(map[string]stock.StockInRequest),
		chains:            make(map[string][]ledger.Block),
	}
}

func newID() string {
	return uuid.New().String()
}

// comparers compare two rows on an ordering field.
type comparers[T any] map[string]func(a, b T) int

// query returns the requested page of the rows of table matching keep, sorted by ordering, and the count of matching rows.
// Rows are mapped through fill before filtering, to set their joined fields.
func query[T any](table map[string]T, fill func(T) T, keep func(T) bool, ordering []core.DBOrdering, cmps comparers[T], id func(T) string, page core.Pagination) ([]T, int) {
	rows := make([]T, 0, len(table))
	for _, row := range table {
		if fill != nil {
			row = fill(row)
		}
		if keep == nil || keep(row) {
			rows = append(rows, row)
		}
	}

	slices.SortStableFunc(rows, func(a, b T) int {
		for _, ord := range ordering {
			compare, ok := cmps[ord.Field]
			if !ok {
				continue
			}
			if res := compare(a, b); res != 0 {
				if !ord.Ascending {
					return -res
				}
				return res
			}
		}
		return cmp.Compare(id(a), id(b))
	})

	count := len(rows)
	if page.IsZero() {
		return rows, count
	}
	start := int(page.Offset())
	if start >= count {
		return []T{}, count
	}
	end := start + int(page.Limit())
	if end > count {
		end = count
	}
	return rows[start:end], count
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// containsFold does a case-insensitive match of term on any of vals.
func containsFold(term string, vals ...string) bool {
	term = strings.ToLower(term)
	for _, val := range vals {
		if strings.Contains(strings.ToLower(val), term) {
			return true
		}
	}
	return false
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
