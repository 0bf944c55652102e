package catalog

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/unistock/stockroom/core"
)

// Ordering fields accepted by the Query operations.
var (
	SupplierOrderingFields = []string{"name", "contact_name", "created_at", "updated_at"}
	CategoryOrderingFields = []string{"name", "created_at", "updated_at"}
	ItemOrderingFields     = []string{"name", "unit", "category_name", "reorder_level", "created_at", "updated_at"}
)

const DefaultUnit = "pcs"

type Supplier struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ContactName string    `json:"contact_name" db:"contact_name"`
	Email       string    `json:"email" db:"email"`
	Phone       string    `json:"phone" db:"phone"`
	Address     string    `json:"address" db:"address"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type NewSupplier struct {
	Name        string `json:"name" validate:"required,notblank,max=150"`
	ContactName string `json:"contact_name" validate:"max=150"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"max=30"`
	Address     string `json:"address" validate:"max=500"`
}

func (ns *NewSupplier) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.ContactName = core.CleanString(ns.ContactName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Address = strings.TrimSpace(ns.Address)
	return validate.Struct(ns)
}

// UpdateSupplier holds the fields to change; omitted fields keep their current value.
type UpdateSupplier struct {
	Name        string  `json:"name" validate:"required,notblank,max=150"`
	ContactName *string `json:"contact_name" validate:"omitempty,max=150"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=30"`
	Address     *string `json:"address" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
}

func (us *UpdateSupplier) Validate(orig Supplier, validate *validator.Validate) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	us.ContactName = cleanOrKeep(us.ContactName, orig.ContactName)
	if us.Email != nil && *us.Email != "" {
		email := core.CleanString(*us.Email, true /* lower */)
		us.Email = &email
	} else if us.Email == nil {
		us.Email = &orig.Email
	}
	us.Phone = cleanOrKeep(us.Phone, orig.Phone)
	us.Address = cleanOrKeep(us.Address, orig.Address)
	if us.IsActive == nil {
		isActive := orig.IsActive
		us.IsActive = &isActive
	}
	// omitempty only skips nil pointers
	if *us.Email == "" {
		return validate.StructExcept(us, "Email")
	}
	return validate.Struct(us)
}

type SupplierFilter struct {
	// Search does a case-insensitive match on Name, ContactName or Email
	Search   string
	IsActive *bool
}

type Category struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type NewCategory struct {
	Name        string `json:"name" validate:"required,notblank,max=150"`
	Description string `json:"description" validate:"max=1000"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = strings.TrimSpace(nc.Description)
	return validate.Struct(nc)
}

type UpdateCategory struct {
	Name        string  `json:"name" validate:"required,notblank,max=150"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

func (uc *UpdateCategory) Validate(orig Category, validate *validator.Validate) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	uc.Description = cleanOrKeep(uc.Description, orig.Description)
	return validate.Struct(uc)
}

type CategoryFilter struct {
	Search string
}

type Item struct {
	ID           string    `json:"id" db:"id"`
	CategoryID   string    `json:"category_id" db:"category_id"`
	CategoryName string    `json:"category_name" db:"category_name"`
	Name         string    `json:"name" db:"name"`
	Unit         string    `json:"unit" db:"unit"`
	Description  string    `json:"description" db:"description"`
	ReorderLevel int       `json:"reorder_level" db:"reorder_level"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type NewItem struct {
	CategoryID   string `json:"category_id" validate:"required,uuid"`
	Name         string `json:"name" validate:"required,notblank,max=150"`
	Unit         string `json:"unit" validate:"max=20"`
	Description  string `json:"description" validate:"max=1000"`
	ReorderLevel int    `json:"reorder_level" validate:"gte=0"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.CategoryID = strings.TrimSpace(ni.CategoryID)
	ni.Name = core.CleanString(ni.Name)
	ni.Unit = core.CleanString(ni.Unit, true /* lower */)
	if ni.Unit == "" {
		ni.Unit = DefaultUnit
	}
	ni.Description = strings.TrimSpace(ni.Description)
	return validate.Struct(ni)
}

type UpdateItem struct {
	CategoryID   string  `json:"category_id" validate:"required,uuid"`
	Name         string  `json:"name" validate:"required,notblank,max=150"`
	Unit         string  `json:"unit" validate:"required,max=20"`
	Description  *string `json:"description" validate:"omitempty,max=1000"`
	ReorderLevel *int    `json:"reorder_level" validate:"omitempty,gte=0"`
}

func (ui *UpdateItem) Validate(orig Item, validate *validator.Validate) error {
	if catID := strings.TrimSpace(ui.CategoryID); catID != "" {
		ui.CategoryID = catID
	} else {
		ui.CategoryID = orig.CategoryID
	}
	if name := core.CleanString(ui.Name); name != "" {
		ui.Name = name
	} else {
		ui.Name = orig.Name
	}
	if unit := core.CleanString(ui.Unit, true /* lower */); unit != "" {
		ui.Unit = unit
	} else {
		ui.Unit = orig.Unit
	}
	ui.Description = cleanOrKeep(ui.Description, orig.Description)
	if ui.ReorderLevel == nil {
		lvl := orig.ReorderLevel
		ui.ReorderLevel = &lvl
	}
	return validate.Struct(ui)
}

type ItemFilter struct {
	// Search does a case-insensitive match on Name or Description
	Search     string
	CategoryID string
}

func cleanOrKeep(val *string, orig string) *string {
	if val == nil {
		return &orig
	}
	cleaned := strings.TrimSpace(*val)
	return &cleaned
}
