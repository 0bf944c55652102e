package catalog

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
)

var (
	// errors
	ErrSupplierNotFound   = core.NewNotFoundError("supplier")
	ErrCategoryNotFound   = core.NewNotFoundError("category")
	ErrItemNotFound       = core.NewNotFoundError("item")
	ErrSupplierNameExists = errors.New("a supplier with this name already exists")
	ErrCategoryNameExists = errors.New("a category with this name already exists")
	ErrItemNameExists     = errors.New("an item with this name already exists in the category")
	ErrUnknownCategory    = errors.New("category not found")
	ErrSupplierInUse      = errors.New("supplier is in use by stock-ins")
	ErrCategoryInUse      = errors.New("category is in use by items")
	ErrItemInUse          = errors.New("item is in use by stock movements or requests")
)

// fieldErrors maps repository errors to the field they are reported on.
var fieldErrors = map[error]string{
	ErrSupplierNameExists: "name",
	ErrCategoryNameExists: "name",
	ErrItemNameExists:     "name",
	ErrUnknownCategory:    "category_id",
}

type (
	Repository interface {
		CreateSupplier(ctx context.Context, sup Supplier) (Supplier, error)
		QuerySuppliers(ctx context.Context, filter SupplierFilter, ordering []core.DBOrdering, page core.Pagination) ([]Supplier, int, error)
		GetSupplierByID(ctx context.Context, id string) (Supplier, error)
		UpdateSupplier(ctx context.Context, sup Supplier) (Supplier, error)
		DeleteSupplier(ctx context.Context, id string) error

		CreateCategory(ctx context.Context, cat Category) (Category, error)
		QueryCategories(ctx context.Context, filter CategoryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Category, int, error)
		GetCategoryByID(ctx context.Context, id string) (Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		DeleteCategory(ctx context.Context, id string) error

		CreateItem(ctx context.Context, item Item) (Item, error)
		QueryItems(ctx context.Context, filter ItemFilter, ordering []core.DBOrdering, page core.Pagination) ([]Item, int, error)
		GetItemByID(ctx context.Context, id string) (Item, error)
		UpdateItem(ctx context.Context, item Item) (Item, error)
		DeleteItem(ctx context.Context, id string) error
	}

	Service interface {
		CreateSupplier(ctx context.Context, ns NewSupplier) (Supplier, error)
		QuerySuppliers(ctx context.Context, filter SupplierFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[Supplier], error)
		GetSupplier(ctx context.Context, id string) (Supplier, error)
		UpdateSupplier(ctx context.Context, id string, us UpdateSupplier) (Supplier, error)
		DeleteSupplier(ctx context.Context, id string) error

		CreateCategory(ctx context.Context, nc NewCategory) (Category, error)
		QueryCategories(ctx context.Context, filter CategoryFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[Category], error)
		GetCategory(ctx context.Context, id string) (Category, error)
		UpdateCategory(ctx context.Context, id string, uc UpdateCategory) (Category, error)
		DeleteCategory(ctx context.Context, id string) error

		CreateItem(ctx context.Context, ni NewItem) (Item, error)
		QueryItems(ctx context.Context, filter ItemFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[Item], error)
		GetItem(ctx context.Context, id string) (Item, error)
		UpdateItem(ctx context.Context, id string, ui UpdateItem) (Item, error)
		DeleteItem(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func toValidationError(err error) error {
	cause := errors.Cause(err)
	if field, ok := fieldErrors[cause]; ok {
		return core.NewFieldValidationError(field, cause)
	}
	switch cause {
	case ErrSupplierInUse, ErrCategoryInUse, ErrItemInUse:
		return core.NewValidationError(cause)
	}
	return err
}

// Suppliers

func (svc *service) CreateSupplier(ctx context.Context, ns NewSupplier) (Supplier, error) {
	now := time.Now().UTC()
	sup, err := svc.repo.CreateSupplier(ctx, Supplier{
		Name:        ns.Name,
		ContactName: ns.ContactName,
		Email:       ns.Email,
		Phone:       ns.Phone,
		Address:     ns.Address,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return sup, toValidationError(err)
}

func (svc *service) QuerySuppliers(ctx context.Context, filter SupplierFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[Supplier], error) {
	filter.Search = core.CleanString(filter.Search)
	sups, count, err := svc.repo.QuerySuppliers(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[Supplier]{}, err
	}
	return core.NewPage(count, sups), nil
}

func (svc *service) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	return svc.repo.GetSupplierByID(ctx, id)
}

func (svc *service) UpdateSupplier(ctx context.Context, id string, us UpdateSupplier) (Supplier, error) {
	sup, err := svc.repo.GetSupplierByID(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	sup.Name = us.Name
	if us.ContactName != nil {
		sup.ContactName = *us.ContactName
	}
	if us.Email != nil {
		sup.Email = *us.Email
	}
	if us.Phone != nil {
		sup.Phone = *us.Phone
	}
	if us.Address != nil {
		sup.Address = *us.Address
	}
	if us.IsActive != nil {
		sup.IsActive = *us.IsActive
	}
	sup.UpdatedAt = time.Now().UTC()
	sup, err = svc.repo.UpdateSupplier(ctx, sup)
	return sup, toValidationError(err)
}

func (svc *service) DeleteSupplier(ctx context.Context, id string) error {
	return toValidationError(svc.repo.DeleteSupplier(ctx, id))
}

// Categories

func (svc *service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	now := time.Now().UTC()
	cat, err := svc.repo.CreateCategory(ctx, Category{
		Name:        nc.Name,
		Description: nc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return cat, toValidationError(err)
}

func (svc *service) QueryCategories(ctx context.Context, filter CategoryFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[Category], error) {
	filter.Search = core.CleanString(filter.Search)
	cats, count, err := svc.repo.QueryCategories(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[Category]{}, err
	}
	return core.NewPage(count, cats), nil
}

func (svc *service) GetCategory(ctx context.Context, id string) (Category, error) {
	return svc.repo.GetCategoryByID(ctx, id)
}

func (svc *service) UpdateCategory(ctx context.Context, id string, uc UpdateCategory) (Category, error) {
	cat, err := svc.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return Category{}, err
	}
	cat.Name = uc.Name
	if uc.Description != nil {
		cat.Description = *uc.Description
	}
	cat.UpdatedAt = time.Now().UTC()
	cat, err = svc.repo.UpdateCategory(ctx, cat)
	return cat, toValidationError(err)
}

func (svc *service) DeleteCategory(ctx context.Context, id string) error {
	return toValidationError(svc.repo.DeleteCategory(ctx, id))
}

// Items

// checkCategory reports an unknown category as a field error.
func (svc *service) checkCategory(ctx context.Context, id string) (Category, error) {
	cat, err := svc.repo.GetCategoryByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Category{}, toValidationError(ErrUnknownCategory)
		}
		return Category{}, errors.Wrap(err, "finding category by ID")
	}
	return cat, nil
}

func (svc *service) CreateItem(ctx context.Context, ni NewItem) (Item, error) {
	cat, err := svc.checkCategory(ctx, ni.CategoryID)
	if err != nil {
		return Item{}, err
	}
	now := time.Now().UTC()
	item, err := svc.repo.CreateItem(ctx, Item{
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Name:         ni.Name,
		Unit:         ni.Unit,
		Description:  ni.Description,
		ReorderLevel: ni.ReorderLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return item, toValidationError(err)
}

func (svc *service) QueryItems(ctx context.Context, filter ItemFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[Item], error) {
	filter.Search = core.CleanString(filter.Search)
	items, count, err := svc.repo.QueryItems(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[Item]{}, err
	}
	return core.NewPage(count, items), nil
}

func (svc *service) GetItem(ctx context.Context, id string) (Item, error) {
	return svc.repo.GetItemByID(ctx, id)
}

func (svc *service) UpdateItem(ctx context.Context, id string, ui UpdateItem) (Item, error) {
	item, err := svc.repo.GetItemByID(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if ui.CategoryID != item.CategoryID {
		cat, err := svc.checkCategory(ctx, ui.CategoryID)
		if err != nil {
			return Item{}, err
		}
		item.CategoryID = cat.ID
		item.CategoryName = cat.Name
	}
	item.Name = ui.Name
	item.Unit = ui.Unit
	if ui.Description != nil {
		item.Description = *ui.Description
	}
	if ui.ReorderLevel != nil {
		item.ReorderLevel = *ui.ReorderLevel
	}
	item.UpdatedAt = time.Now().UTC()
	item, err = svc.repo.UpdateItem(ctx, item)
	return item, toValidationError(err)
}

func (svc *service) DeleteItem(ctx context.Context, id string) error {
	return toValidationError(svc.repo.DeleteItem(ctx, id))
}
