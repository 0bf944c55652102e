package inmemdb

import (
	"cmp"
	"context"
	"strings"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
)

var (
	supplierComparers = comparers[catalog.Supplier]{
		"name":         func(a, b catalog.Supplier) int { return compareFold(a.Name, b.Name) },
		"contact_name": func(a, b catalog.Supplier) int { return compareFold(a.ContactName, b.ContactName) },
		"created_at":   func(a, b catalog.Supplier) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"updated_at":   func(a, b catalog.Supplier) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	}
	categoryComparers = comparers[catalog.Category]{
		"name":       func(a, b catalog.Category) int { return compareFold(a.Name, b.Name) },
		"created_at": func(a, b catalog.Category) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"updated_at": func(a, b catalog.Category) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	}
	itemComparers = comparers[catalog.Item]{
		"name":          func(a, b catalog.Item) int { return compareFold(a.Name, b.Name) },
		"unit":          func(a, b catalog.Item) int { return strings.Compare(a.Unit, b.Unit) },
		"category_name": func(a, b catalog.Item) int { return compareFold(a.CategoryName, b.CategoryName) },
		"reorder_level": func(a, b catalog.Item) int { return cmp.Compare(a.ReorderLevel, b.ReorderLevel) },
		"created_at":    func(a, b catalog.Item) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"updated_at":    func(a, b catalog.Item) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	}
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

// Suppliers

func (repo *catalogRepository) checkSupplier(sup catalog.Supplier) error {
	for _, other := range repo.db.suppliers {
		if other.ID != sup.ID && strings.EqualFold(other.Name, sup.Name) {
			return catalog.ErrSupplierNameExists
		}
	}
	return nil
}

func (repo *catalogRepository) CreateSupplier(_ context.Context, sup catalog.Supplier) (catalog.Supplier, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkSupplier(sup); err != nil {
		return catalog.Supplier{}, err
	}
	sup.ID = newID()
	repo.db.suppliers[sup.ID] = sup
	return sup, nil
}

func (repo *catalogRepository) QuerySuppliers(_ context.Context, filter catalog.SupplierFilter, ordering []core.DBOrdering, page core.Pagination) ([]catalog.Supplier, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(sup catalog.Supplier) bool {
		if filter.Search != "" && !containsFold(filter.Search, sup.Name, sup.ContactName, sup.Email) {
			return false
		}
		return filter.IsActive == nil || sup.IsActive == *filter.IsActive
	}
	sups, count := query(repo.db.suppliers, nil, keep, ordering, supplierComparers, func(s catalog.Supplier) string { return s.ID }, page)
	return sups, count, nil
}

func (repo *catalogRepository) GetSupplierByID(_ context.Context, id string) (catalog.Supplier, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sup, ok := repo.db.suppliers[id]; ok {
		return sup, nil
	}
	return catalog.Supplier{}, catalog.ErrSupplierNotFound
}

func (repo *catalogRepository) UpdateSupplier(_ context.Context, sup catalog.Supplier) (catalog.Supplier, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.suppliers[sup.ID]; !ok {
		return catalog.Supplier{}, catalog.ErrSupplierNotFound
	}
	if err := repo.checkSupplier(sup); err != nil {
		return catalog.Supplier{}, err
	}
	repo.db.suppliers[sup.ID] = sup
	return sup, nil
}

func (repo *catalogRepository) DeleteSupplier(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.suppliers[id]; !ok {
		return catalog.ErrSupplierNotFound
	}
	for _, si := range repo.db.stockIns {
		if si.SupplierID == id {
			return catalog.ErrSupplierInUse
		}
	}
	delete(repo.db.suppliers, id)
	return nil
}

// Categories

func (repo *catalogRepository) checkCategory(cat catalog.Category) error {
	for _, other := range repo.db.categories {
		if other.ID != cat.ID && strings.EqualFold(other.Name, cat.Name) {
			return catalog.ErrCategoryNameExists
		}
	}
	return nil
}

func (repo *catalogRepository) CreateCategory(_ context.Context, cat catalog.Category) (catalog.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkCategory(cat); err != nil {
		return catalog.Category{}, err
	}
	cat.ID = newID()
	repo.db.categories[cat.ID] = cat
	return cat, nil
}

func (repo *catalogRepository) QueryCategories(_ context.Context, filter catalog.CategoryFilter, ordering []core.DBOrdering, page core.Pagination) ([]catalog.Category, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(cat catalog.Category) bool {
		return filter.Search == "" || containsFold(filter.Search, cat.Name, cat.Description)
	}
	cats, count := query(repo.db.categories, nil, keep, ordering, categoryComparers, func(c catalog.Category) string { return c.ID }, page)
	return cats, count, nil
}

func (repo *catalogRepository) GetCategoryByID(_ context.Context, id string) (catalog.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return cat, nil
	}
	return catalog.Category{}, catalog.ErrCategoryNotFound
}

func (repo *catalogRepository) UpdateCategory(_ context.Context, cat catalog.Category) (catalog.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.categories[cat.ID]; !ok {
		return catalog.Category{}, catalog.ErrCategoryNotFound
	}
	if err := repo.checkCategory(cat); err != nil {
		return catalog.Category{}, err
	}
	repo.db.categories[cat.ID] = cat
	return cat, nil
}

func (repo *catalogRepository) DeleteCategory(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return catalog.ErrCategoryNotFound
	}
	for _, item := range repo.db.items {
		if item.CategoryID == id {
			return catalog.ErrCategoryInUse
		}
	}
	delete(repo.db.categories, id)
	return nil
}

// Items

func (db *DB) fillItem(item catalog.Item) catalog.Item {
	item.CategoryName = db.categories[item.CategoryID].Name
	return item
}

func (repo *catalogRepository) checkItem(item catalog.Item) error {
	if _, ok := repo.db.categories[item.CategoryID]; !ok {
		return catalog.ErrUnknownCategory
	}
	for _, other := range repo.db.items {
		if other.ID != item.ID && other.CategoryID == item.CategoryID && strings.EqualFold(other.Name, item.Name) {
			return catalog.ErrItemNameExists
		}
	}
	return nil
}

func (repo *catalogRepository) CreateItem(_ context.Context, item catalog.Item) (catalog.Item, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkItem(item); err != nil {
		return catalog.Item{}, err
	}
	item.ID = newID()
	repo.db.items[item.ID] = item
	return repo.db.fillItem(item), nil
}

func (repo *catalogRepository) QueryItems(_ context.Context, filter catalog.ItemFilter, ordering []core.DBOrdering, page core.Pagination) ([]catalog.Item, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(item catalog.Item) bool {
		if filter.Search != "" && !containsFold(filter.Search, item.Name, item.Description) {
			return false
		}
		return filter.CategoryID == "" || item.CategoryID == filter.CategoryID
	}
	items, count := query(repo.db.items, repo.db.fillItem, keep, ordering, itemComparers, func(i catalog.Item) string { return i.ID }, page)
	return items, count, nil
}

func (repo *catalogRepository) GetItemByID(_ context.Context, id string) (catalog.Item, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if item, ok := repo.db.items[id]; ok {
		return repo.db.fillItem(item), nil
	}
	return catalog.Item{}, catalog.ErrItemNotFound
}

func (repo *catalogRepository) UpdateItem(_ context.Context, item catalog.Item) (catalog.Item, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.items[item.ID]; !ok {
		return catalog.Item{}, catalog.ErrItemNotFound
	}
	if err := repo.checkItem(item); err != nil {
		return catalog.Item{}, err
	}
	repo.db.items[item.ID] = item
	return repo.db.fillItem(item), nil
}

func (repo *catalogRepository) DeleteItem(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.items[id]; !ok {
		return catalog.ErrItemNotFound
	}
	if repo.db.itemInUse(id) {
		return catalog.ErrItemInUse
	}
	delete(repo.db.items, id)
	return nil
}

func (db *DB) itemInUse(id string) bool {
	for _, si := range db.stockIns {
		if si.ItemID == id {
			return true
		}
	}
	for _, so := range db.stockOuts {
		if so.ItemID == id {
			return true
		}
	}
	for _, ds := range db.deadStocks {
		if ds.ItemID == id {
			return true
		}
	}
	for _, req := range db.deadStockRequests {
		if req.ItemID == id {
			return true
		}
	}
	for _, req := range db.stockInRequests {
		if req.ItemID == id {
			return true
		}
	}
	return false
}
