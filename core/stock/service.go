package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/org"
	"github.com/unistock/stockroom/core/user"
)

// Ledger chains and events of stock-ins.
const (
	ChainKindStockIn = "stock_in"

	EventStockInCreated  = "stock_in.created"
	EventStockInUpdated  = "stock_in.updated"
	EventStockInVerified = "stock_in.verified"
	EventStockInDeleted  = "stock_in.deleted"
)

// Topics published to live subscribers.
const (
	TopicStockOutCreated          = "stock_out.created"
	TopicStockOutDeleted          = "stock_out.deleted"
	TopicDeadStockCreated         = "dead_stock.created"
	TopicDeadStockRequestCreated  = "dead_stock_request.created"
	TopicDeadStockRequestReviewed = "dead_stock_request.reviewed"
	TopicStockInRequestCreated    = "stock_in_request.created"
	TopicStockInRequestReviewed   = "stock_in_request.reviewed"
)

var (
	// errors
	ErrStockInNotFound          = core.NewNotFoundError("stock-in")
	ErrStockOutNotFound         = core.NewNotFoundError("stock-out")
	ErrItemStockNotFound        = core.NewNotFoundError("item stock")
	ErrDeadStockNotFound        = core.NewNotFoundError("dead stock")
	ErrDeadStockRequestNotFound = core.NewNotFoundError("dead stock request")
	ErrStockInRequestNotFound   = core.NewNotFoundError("stock-in request")

	ErrStockInVerified        = errors.New("a verified stock-in cannot be changed")
	ErrStockInAlreadyVerified = errors.New("stock-in is already verified")
	ErrRequestNotPending      = errors.New("only pending requests can be reviewed")
	ErrUnknownItem            = errors.New("item not found")
	ErrUnknownSupplier        = errors.New("supplier not found")
	ErrInactiveSupplier       = errors.New("supplier is not active")
	ErrUnknownDepartment      = errors.New("department not found")
	ErrUnknownOffice          = errors.New("office not found")
)

// fieldErrors maps errors to the field they are reported on.
var fieldErrors = map[error]string{
	ErrUnknownItem:       "item_id",
	ErrUnknownSupplier:   "supplier_id",
	ErrInactiveSupplier:  "supplier_id",
	ErrUnknownDepartment: "department_id",
	ErrUnknownOffice:     "office_id",
}

// InsufficientStockError is returned when a movement would overdraw an item.
type InsufficientStockError struct {
	ItemID    string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available, %d requested", e.Available, e.Requested)
}

func toValidationError(err error) error {
	cause := errors.Cause(err)
	if field, ok := fieldErrors[cause]; ok {
		return core.NewFieldValidationError(field, cause)
	}
	if insufErr, ok := cause.(*InsufficientStockError); ok {
		return core.NewFieldValidationError("quantity", insufErr)
	}
	switch cause {
	case ErrStockInVerified, ErrStockInAlreadyVerified, ErrRequestNotPending:
		return core.NewValidationError(cause)
	}
	return err
}

// ReviewInfo records who reviewed a request, and when.
type ReviewInfo struct {
	By   string
	At   time.Time
	Note string
}

type (
	// Repository persists stock movements.
	// Every operation consuming stock checks the item balance atomically
	// and fails with *InsufficientStockError when it would become negative.
	Repository interface {
		CreateStockIn(ctx context.Context, si StockIn) (StockIn, error)
		QueryStockIns(ctx context.Context, filter StockInFilter, ordering []core.DBOrdering, page core.Pagination) ([]StockIn, int, error)
		GetStockInByID(ctx context.Context, id string) (StockIn, error)
		// UpdateStockIn fails with ErrStockInVerified if the stock-in got verified
		// and checks the balance when the quantity decreases.
		UpdateStockIn(ctx context.Context, si StockIn) (StockIn, error)
		VerifyStockIn(ctx context.Context, id, by string, at time.Time) (StockIn, error)
		DeleteStockIn(ctx context.Context, id string) error

		CreateStockOut(ctx context.Context, so StockOut) (StockOut, error)
		QueryStockOuts(ctx context.Context, filter StockOutFilter, ordering []core.DBOrdering, page core.Pagination) ([]StockOut, int, error)
		GetStockOutByID(ctx context.Context, id string) (StockOut, error)
		DeleteStockOut(ctx context.Context, id string) error

		QueryCurrentStock(ctx context.Context, filter CurrentStockFilter, ordering []core.DBOrdering, page core.Pagination) ([]CurrentStock, int, error)
		GetCurrentStock(ctx context.Context, itemID string) (CurrentStock, error)

		CreateDeadStock(ctx context.Context, ds DeadStock) (DeadStock, error)
		QueryDeadStocks(ctx context.Context, filter DeadStockFilter, ordering []core.DBOrdering, page core.Pagination) ([]DeadStock, int, error)
		GetDeadStockByID(ctx context.Context, id string) (DeadStock, error)

		CreateDeadStockRequest(ctx context.Context, req DeadStockRequest) (DeadStockRequest, error)
		QueryDeadStockRequests(ctx context.Context, filter RequestFilter, ordering []core.DBOrdering, page core.Pagination) ([]DeadStockRequest, int, error)
		GetDeadStockRequestByID(ctx context.Context, id string) (DeadStockRequest, error)
		// ApproveDeadStockRequest records ds and marks the pending request approved, atomically.
		ApproveDeadStockRequest(ctx context.Context, id string, review ReviewInfo, ds DeadStock) (DeadStockRequest, DeadStock, error)
		RejectDeadStockRequest(ctx context.Context, id string, review ReviewInfo) (DeadStockRequest, error)

		CreateStockInRequest(ctx context.Context, req StockInRequest) (StockInRequest, error)
		QueryStockInRequests(ctx context.Context, filter RequestFilter, ordering []core.DBOrdering, page core.Pagination) ([]StockInRequest, int, error)
		GetStockInRequestByID(ctx context.Context, id string) (StockInRequest, error)
		// ApproveStockInRequest issues so and links it to the pending request, atomically.
		ApproveStockInRequest(ctx context.Context, id string, review ReviewInfo, so StockOut) (StockInRequest, StockOut, error)
		RejectStockInRequest(ctx context.Context, id string, review ReviewInfo) (StockInRequest, error)

		QueryHistory(ctx context.Context, filter HistoryFilter, ordering []core.DBOrdering, page core.Pagination) ([]HistoryEntry, int, error)
	}

	CatalogLookup interface {
		GetItem(ctx context.Context, id string) (catalog.Item, error)
		GetSupplier(ctx context.Context, id string) (catalog.Supplier, error)
	}

	OrgLookup interface {
		GetDepartment(ctx context.Context, id string) (org.Department, error)
		GetOffice(ctx context.Context, id string) (org.Office, error)
	}

	RecipientLookup interface {
		QueryActiveByRoles(ctx context.Context, roles ...string) ([]user.User, error)
	}

	Service interface {
		CreateStockIn(ctx context.Context, actor user.User, ns NewStockIn) (StockIn, error)
		QueryStockIns(ctx context.Context, filter StockInFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[StockIn], error)
		GetStockIn(ctx context.Context, id string) (StockIn, error)
		UpdateStockIn(ctx context.Context, actor user.User, id string, us UpdateStockIn) (StockIn, error)
		VerifyStockIn(ctx context.Context, actor user.User, id string) (StockIn, error)
		DeleteStockIn(ctx context.Context, actor user.User, id string) error
		StockInChain(ctx context.Context, id string) ([]ledger.Block, error)
		VerifyStockInChain(ctx context.Context, id string) (ledger.Report, error)

		CreateStockOut(ctx context.Context, actor user.User, ns NewStockOut) (StockOut, error)
		QueryStockOuts(ctx context.Context, filter StockOutFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[StockOut], error)
		GetStockOut(ctx context.Context, id string) (StockOut, error)
		DeleteStockOut(ctx context.Context, actor user.User, id string) error

		QueryCurrentStock(ctx context.Context, filter CurrentStockFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[CurrentStock], error)
		GetCurrentStock(ctx context.Context, itemID string) (CurrentStock, error)

		CreateDeadStock(ctx context.Context, actor user.User, nd NewDeadStock) (DeadStock, error)
		QueryDeadStocks(ctx context.Context, filter DeadStockFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[DeadStock], error)
		GetDeadStock(ctx context.Context, id string) (DeadStock, error)

		CreateDeadStockRequest(ctx context.Context, actor user.User, nr NewDeadStockRequest) (DeadStockRequest, error)
		// QueryDeadStockRequests only returns the actor's own requests unless they manage stock.
		QueryDeadStockRequests(ctx context.Context, actor user.User, filter RequestFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[DeadStockRequest], error)
		GetDeadStockRequest(ctx context.Context, actor user.User, id string) (DeadStockRequest, error)
		ApproveDeadStockRequest(ctx context.Context, actor user.User, id string, review Review) (DeadStockRequest, error)
		RejectDeadStockRequest(ctx context.Context, actor user.User, id string, review Review) (DeadStockRequest, error)

		CreateStockInRequest(ctx context.Context, actor user.User, nr NewStockInRequest) (StockInRequest, error)
		QueryStockInRequests(ctx context.Context, actor user.User, filter RequestFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[StockInRequest], error)
		GetStockInRequest(ctx context.Context, actor user.User, id string) (StockInRequest, error)
		ApproveStockInRequest(ctx context.Context, actor user.User, id string, review Review) (StockInRequest, error)
		RejectStockInRequest(ctx context.Context, actor user.User, id string, review Review) (StockInRequest, error)

		QueryHistory(ctx context.Context, filter HistoryFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[HistoryEntry], error)
	}

	Deps struct {
		Repo      Repository
		Catalog   CatalogLookup
		Org       OrgLookup
		Ledger    ledger.Service
		Users     RecipientLookup
		Mail      core.EmailService
		Publisher core.EventPublisher
		Logger    core.Logger
		Conf      *core.Config
	}

	service struct {
		repo      Repository
		catalog   CatalogLookup
		org       OrgLookup
		ledger    ledger.Service
		users     RecipientLookup
		mailSvc   core.EmailService
		publisher core.EventPublisher
		logger    core.Logger
		conf      *core.Config
	}
)

func NewService(deps Deps) Service {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = core.NopPublisher
	}
	return &service{
		repo:      deps.Repo,
		catalog:   deps.Catalog,
		org:       deps.Org,
		ledger:    deps.Ledger,
		users:     deps.Users,
		mailSvc:   deps.Mail,
		publisher: publisher,
		logger:    deps.Logger,
		conf:      deps.Conf,
	}
}

// Lookups: unknown references are reported as field errors.

func (svc *service) lookupItem(ctx context.Context, id string) (catalog.Item, error) {
	item, err := svc.catalog.GetItem(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return catalog.Item{}, toValidationError(ErrUnknownItem)
		}
		return catalog.Item{}, errors.Wrap(err, "finding item by ID")
	}
	return item, nil
}

func (svc *service) lookupSupplier(ctx context.Context, id string) (catalog.Supplier, error) {
	sup, err := svc.catalog.GetSupplier(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return catalog.Supplier{}, toValidationError(ErrUnknownSupplier)
		}
		return catalog.Supplier{}, errors.Wrap(err, "finding supplier by ID")
	}
	return sup, nil
}

func (svc *service) lookupDepartment(ctx context.Context, id string) (org.Department, error) {
	dept, err := svc.org.GetDepartment(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return org.Department{}, toValidationError(ErrUnknownDepartment)
		}
		return org.Department{}, errors.Wrap(err, "finding department by ID")
	}
	return dept, nil
}

func (svc *service) lookupOffice(ctx context.Context, id string) (org.Office, error) {
	office, err := svc.org.GetOffice(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return org.Office{}, toValidationError(ErrUnknownOffice)
		}
		return org.Office{}, errors.Wrap(err, "finding office by ID")
	}
	return office, nil
}

func (svc *service) logError(msg string, err error, actor user.User) {
	svc.logger.Error(fmt.Sprintf("%s: %v", msg, err), err, actor.Person())
}

// Current stock & history

func (svc *service) QueryCurrentStock(ctx context.Context, filter CurrentStockFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[CurrentStock], error) {
	filter.Search = core.CleanString(filter.Search)
	rows, count, err := svc.repo.QueryCurrentStock(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[CurrentStock]{}, err
	}
	return core.NewPage(count, rows), nil
}

func (svc *service) GetCurrentStock(ctx context.Context, itemID string) (CurrentStock, error) {
	return svc.repo.GetCurrentStock(ctx, itemID)
}

func (svc *service) QueryHistory(ctx context.Context, filter HistoryFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[HistoryEntry], error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "date", Ascending: false}}
	}
	entries, count, err := svc.repo.QueryHistory(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[HistoryEntry]{}, err
	}
	return core.NewPage(count, entries), nil
}
