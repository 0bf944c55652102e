package stock

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/unistock/stockroom/core"
)

// Movement kinds of the stock history.
const (
	KindIn   = "in"
	KindOut  = "out"
	KindDead = "dead"
)

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Ordering fields accepted by the Query operations.
var (
	StockInOrderingFields          = []string{"received_at", "quantity", "unit_price", "item_name", "supplier_name", "created_at"}
	StockOutOrderingFields         = []string{"issued_at", "quantity", "item_name", "office_name", "created_at"}
	CurrentStockOrderingFields     = []string{"item_name", "category_name", "balance", "total_in", "total_out", "total_dead"}
	DeadStockOrderingFields        = []string{"declared_at", "quantity", "item_name", "created_at"}
	DeadStockRequestOrderingFields = []string{"created_at", "quantity", "item_name", "status"}
	StockInRequestOrderingFields   = []string{"created_at", "quantity", "item_name", "office_name", "status"}
	HistoryOrderingFields          = []string{"date", "quantity", "item_name", "kind"}

	errNegativeUnitPrice  = errors.New("unit price cannot be negative")
	errUnitPricePrecision = errors.New("unit price cannot have more than 2 decimal places")
	errNoDestination      = errors.New("one of office or department is required")

	errOfficeNotInDepartment = errors.New("the office does not belong to this department")
	errStockOutFromRequest   = errors.New("a stock-out issued for a request cannot be deleted")
)

type StockIn struct {
	ID             string          `json:"id" db:"id"`
	ItemID         string          `json:"item_id" db:"item_id"`
	ItemName       string          `json:"item_name" db:"item_name"`
	SupplierID     string          `json:"supplier_id" db:"supplier_id"`
	SupplierName   string          `json:"supplier_name" db:"supplier_name"`
	DepartmentID   null.String     `json:"department_id" db:"department_id"`
	DepartmentName string          `json:"department_name" db:"department_name"`
	Quantity       int             `json:"quantity" db:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price" db:"-"`
	InvoiceNo      string          `json:"invoice_no" db:"invoice_no"`
	ReceivedAt     time.Time       `json:"received_at" db:"received_at"` // UTC
	Remarks        string          `json:"remarks" db:"remarks"`
	IsVerified     bool            `json:"is_verified" db:"is_verified"`
	VerifiedBy     null.String     `json:"verified_by" db:"verified_by"`
	VerifiedAt     null.Time       `json:"verified_at" db:"verified_at"` // UTC
	CreatedBy      string          `json:"created_by" db:"created_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"` // UTC
}

// ComputeTotal sets TotalPrice from Quantity and UnitPrice.
func (si *StockIn) ComputeTotal() {
	si.TotalPrice = si.UnitPrice.Mul(decimal.NewFromInt(int64(si.Quantity))).Round(2)
}

type NewStockIn struct {
	ItemID       string          `json:"item_id" validate:"required,uuid"`
	SupplierID   string          `json:"supplier_id" validate:"required,uuid"`
	DepartmentID string          `json:"department_id" validate:"omitempty,uuid"`
	Quantity     int             `json:"quantity" validate:"gt=0"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	InvoiceNo    string          `json:"invoice_no" validate:"max=100"`
	ReceivedAt   time.Time       `json:"received_at"`
	Remarks      string          `json:"remarks" validate:"max=1000"`
}

func (ns *NewStockIn) Validate(validate *validator.Validate) error {
	ns.ItemID = strings.TrimSpace(ns.ItemID)
	ns.SupplierID = strings.TrimSpace(ns.SupplierID)
	ns.DepartmentID = strings.TrimSpace(ns.DepartmentID)
	ns.InvoiceNo = core.CleanString(ns.InvoiceNo)
	ns.Remarks = strings.TrimSpace(ns.Remarks)
	if ns.ReceivedAt.IsZero() {
		ns.ReceivedAt = time.Now()
	}
	ns.ReceivedAt = ns.ReceivedAt.UTC()

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return validateUnitPrice(ns.UnitPrice)
}

// UpdateStockIn holds the fields to change; omitted fields keep their current value.
type UpdateStockIn struct {
	SupplierID   string           `json:"supplier_id" validate:"required,uuid"`
	DepartmentID *string          `json:"department_id" validate:"omitempty,uuid"` // "" clears the department
	Quantity     int              `json:"quantity" validate:"gt=0"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	InvoiceNo    *string          `json:"invoice_no" validate:"omitempty,max=100"`
	ReceivedAt   time.Time        `json:"received_at"`
	Remarks      *string          `json:"remarks" validate:"omitempty,max=1000"`
}

func (us *UpdateStockIn) Validate(orig StockIn, validate *validator.Validate) error {
	if supID := strings.TrimSpace(us.SupplierID); supID != "" {
		us.SupplierID = supID
	} else {
		us.SupplierID = orig.SupplierID
	}
	if us.DepartmentID == nil {
		deptID := orig.DepartmentID.String
		us.DepartmentID = &deptID
	} else {
		deptID := strings.TrimSpace(*us.DepartmentID)
		us.DepartmentID = &deptID
	}
	if us.Quantity == 0 {
		us.Quantity = orig.Quantity
	}
	if us.UnitPrice == nil {
		us.UnitPrice = &orig.UnitPrice
	}
	if us.InvoiceNo == nil {
		us.InvoiceNo = &orig.InvoiceNo
	} else {
		invoice := core.CleanString(*us.InvoiceNo)
		us.InvoiceNo = &invoice
	}
	if us.ReceivedAt.IsZero() {
		us.ReceivedAt = orig.ReceivedAt
	}
	us.ReceivedAt = us.ReceivedAt.UTC()
	if us.Remarks == nil {
		us.Remarks = &orig.Remarks
	}

	// omitempty only skips nil pointers
	var err error
	if *us.DepartmentID == "" {
		err = validate.StructExcept(us, "DepartmentID")
	} else {
		err = validate.Struct(us)
	}
	if err != nil {
		return err
	}
	return validateUnitPrice(*us.UnitPrice)
}

func validateUnitPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return core.NewFieldValidationError("unit_price", errNegativeUnitPrice)
	}
	// stored as NUMERIC(14,2)
	if !price.Equal(price.Truncate(2)) {
		return core.NewFieldValidationError("unit_price", errUnitPricePrecision)
	}
	return nil
}

type StockInFilter struct {
	// Search does a case-insensitive match on the item name, supplier name or invoice number
	Search       string
	ItemID       string
	SupplierID   string
	DepartmentID string
	IsVerified   *bool
	From         time.Time // ReceivedAt >= From
	To           time.Time // ReceivedAt <= To
}

type StockOut struct {
	ID             string      `json:"id" db:"id"`
	ItemID         string      `json:"item_id" db:"item_id"`
	ItemName       string      `json:"item_name" db:"item_name"`
	OfficeID       null.String `json:"office_id" db:"office_id"`
	OfficeName     string      `json:"office_name" db:"office_name"`
	DepartmentID   null.String `json:"department_id" db:"department_id"`
	DepartmentName string      `json:"department_name" db:"department_name"`
	Quantity       int         `json:"quantity" db:"quantity"`
	IssuedTo       string      `json:"issued_to" db:"issued_to"`
	IssuedAt       time.Time   `json:"issued_at" db:"issued_at"` // UTC
	Remarks        string      `json:"remarks" db:"remarks"`
	RequestID      null.String `json:"request_id" db:"request_id"`
	CreatedBy      string      `json:"created_by" db:"created_by"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"` // UTC
}

type NewStockOut struct {
	ItemID       string    `json:"item_id" validate:"required,uuid"`
	OfficeID     string    `json:"office_id" validate:"omitempty,uuid"`
	DepartmentID string    `json:"department_id" validate:"omitempty,uuid"`
	Quantity     int       `json:"quantity" validate:"gt=0"`
	IssuedTo     string    `json:"issued_to" validate:"max=150"`
	IssuedAt     time.Time `json:"issued_at"`
	Remarks      string    `json:"remarks" validate:"max=1000"`
}

func (ns *NewStockOut) Validate(validate *validator.Validate) error {
	ns.ItemID = strings.TrimSpace(ns.ItemID)
	ns.OfficeID = strings.TrimSpace(ns.OfficeID)
	ns.DepartmentID = strings.TrimSpace(ns.DepartmentID)
	ns.IssuedTo = core.CleanString(ns.IssuedTo)
	ns.Remarks = strings.TrimSpace(ns.Remarks)
	if ns.IssuedAt.IsZero() {
		ns.IssuedAt = time.Now()
	}
	ns.IssuedAt = ns.IssuedAt.UTC()

	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.OfficeID == "" && ns.DepartmentID == "" {
		return core.NewFieldValidationError("office_id", errNoDestination)
	}
	return nil
}

type StockOutFilter struct {
	// Search does a case-insensitive match on the item name, office name or recipient
	Search       string
	ItemID       string
	OfficeID     string
	DepartmentID string
	From         time.Time
	To           time.Time
}

// CurrentStock is the running balance of an item: stock-ins minus stock-outs and dead stock.
type CurrentStock struct {
	ItemID       string `json:"item_id" db:"item_id"`
	ItemName     string `json:"item_name" db:"item_name"`
	CategoryID   string `json:"category_id" db:"category_id"`
	CategoryName string `json:"category_name" db:"category_name"`
	Unit         string `json:"unit" db:"unit"`
	TotalIn      int    `json:"total_in" db:"total_in"`
	TotalOut     int    `json:"total_out" db:"total_out"`
	TotalDead    int    `json:"total_dead" db:"total_dead"`
	Balance      int    `json:"balance" db:"balance"`
	ReorderLevel int    `json:"reorder_level" db:"reorder_level"`
	LowStock     bool   `json:"low_stock" db:"-"`
}

func (cs *CurrentStock) ComputeBalance() {
	cs.Balance = cs.TotalIn - cs.TotalOut - cs.TotalDead
	cs.LowStock = cs.Balance <= cs.ReorderLevel
}

type CurrentStockFilter struct {
	// Search does a case-insensitive match on the item or category name
	Search     string
	CategoryID string
	LowStock   *bool
}

type DeadStock struct {
	ID         string      `json:"id" db:"id"`
	ItemID     string      `json:"item_id" db:"item_id"`
	ItemName   string      `json:"item_name" db:"item_name"`
	Quantity   int         `json:"quantity" db:"quantity"`
	Reason     string      `json:"reason" db:"reason"`
	DeclaredBy string      `json:"declared_by" db:"declared_by"`
	DeclaredAt time.Time   `json:"declared_at" db:"declared_at"` // UTC
	RequestID  null.String `json:"request_id" db:"request_id"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"` // UTC
}

type NewDeadStock struct {
	ItemID     string    `json:"item_id" validate:"required,uuid"`
	Quantity   int       `json:"quantity" validate:"gt=0"`
	Reason     string    `json:"reason" validate:"required,notblank,max=1000"`
	DeclaredAt time.Time `json:"declared_at"`
}

func (nd *NewDeadStock) Validate(validate *validator.Validate) error {
	nd.ItemID = strings.TrimSpace(nd.ItemID)
	nd.Reason = strings.TrimSpace(nd.Reason)
	if nd.DeclaredAt.IsZero() {
		nd.DeclaredAt = time.Now()
	}
	nd.DeclaredAt = nd.DeclaredAt.UTC()
	return validate.Struct(nd)
}

type DeadStockFilter struct {
	// Search does a case-insensitive match on the item name or reason
	Search string
	ItemID string
	From   time.Time
	To     time.Time
}

// Review is the decision taken on a pending request.
type Review struct {
	Note string `json:"note" validate:"max=1000"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Note = strings.TrimSpace(r.Note)
	return validate.Struct(r)
}

type DeadStockRequest struct {
	ID          string      `json:"id" db:"id"`
	ItemID      string      `json:"item_id" db:"item_id"`
	ItemName    string      `json:"item_name" db:"item_name"`
	Quantity    int         `json:"quantity" db:"quantity"`
	Reason      string      `json:"reason" db:"reason"`
	Status      string      `json:"status" db:"status"`
	RequestedBy string      `json:"requested_by" db:"requested_by"` // user ID
	ReviewedBy  null.String `json:"reviewed_by" db:"reviewed_by"`
	ReviewedAt  null.Time   `json:"reviewed_at" db:"reviewed_at"` // UTC
	ReviewNote  string      `json:"review_note" db:"review_note"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

type NewDeadStockRequest struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Reason   string `json:"reason" validate:"required,notblank,max=1000"`
}

func (nr *NewDeadStockRequest) Validate(validate *validator.Validate) error {
	nr.ItemID = strings.TrimSpace(nr.ItemID)
	nr.Reason = strings.TrimSpace(nr.Reason)
	return validate.Struct(nr)
}

type RequestFilter struct {
	Status      string
	ItemID      string
	OfficeID    string // stock-in requests only
	RequestedBy string
}

type StockInRequest struct {
	ID          string      `json:"id" db:"id"`
	ItemID      string      `json:"item_id" db:"item_id"`
	ItemName    string      `json:"item_name" db:"item_name"`
	OfficeID    string      `json:"office_id" db:"office_id"`
	OfficeName  string      `json:"office_name" db:"office_name"`
	Quantity    int         `json:"quantity" db:"quantity"`
	Purpose     string      `json:"purpose" db:"purpose"`
	Status      string      `json:"status" db:"status"`
	RequestedBy string      `json:"requested_by" db:"requested_by"` // user ID
	ReviewedBy  null.String `json:"reviewed_by" db:"reviewed_by"`
	ReviewedAt  null.Time   `json:"reviewed_at" db:"reviewed_at"` // UTC
	ReviewNote  string      `json:"review_note" db:"review_note"`
	StockOutID  null.String `json:"stock_out_id" db:"stock_out_id"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

type NewStockInRequest struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	OfficeID string `json:"office_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Purpose  string `json:"purpose" validate:"max=1000"`
}

func (nr *NewStockInRequest) Validate(validate *validator.Validate) error {
	nr.ItemID = strings.TrimSpace(nr.ItemID)
	nr.OfficeID = strings.TrimSpace(nr.OfficeID)
	nr.Purpose = strings.TrimSpace(nr.Purpose)
	return validate.Struct(nr)
}

// HistoryEntry is one movement of the merged stock history.
type HistoryEntry struct {
	Kind         string      `json:"kind" db:"kind"`
	RefID        string      `json:"ref_id" db:"ref_id"`
	ItemID       string      `json:"item_id" db:"item_id"`
	ItemName     string      `json:"item_name" db:"item_name"`
	DepartmentID null.String `json:"department_id" db:"department_id"`
	Quantity     int         `json:"quantity" db:"quantity"`
	Date         time.Time   `json:"date" db:"date"` // UTC
	Party        string      `json:"party" db:"party"`
}

type HistoryFilter struct {
	ItemID       string
	DepartmentID string
	Kind         string
	From         time.Time
	To           time.Time
}
