package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/catalog"
)

var (
	supplierColumns = []string{
		"id", "name", "contact_name", "email", "phone", "address", "is_active", "created_at", "updated_at",
	}
	supplierOrdering = map[string]string{
		"name":         "name",
		"contact_name": "contact_name",
		"created_at":   "created_at",
		"updated_at":   "updated_at",
	}

	categoryColumns  = []string{"id", "name", "description", "created_at", "updated_at"}
	categoryOrdering = map[string]string{
		"name":       "name",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}

	itemColumns = []string{
		"i.id", "i.category_id", "c.name AS category_name", "i.name", "i.unit", "i.description", "i.reorder_level",
		"i.created_at", "i.updated_at",
	}
	itemOrdering = map[string]string{
		"name":          "i.name",
		"unit":          "i.unit",
		"category_name": "c.name",
		"reorder_level": "i.reorder_level",
		"created_at":    "i.created_at",
		"updated_at":    "i.updated_at",
	}

	catalogConstraints = map[string]error{
		"supplier_name_key":      catalog.ErrSupplierNameExists,
		"category_name_key":      catalog.ErrCategoryNameExists,
		"item_category_name_key": catalog.ErrItemNameExists,
		"item_category_id_fkey":  catalog.ErrUnknownCategory,
	}
)

type catalogRepository struct {
	db core.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db core.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

// deleteByID deletes the row of table identified by id; rows still referenced fail with inUse.
func (repo catalogRepository) deleteByID(ctx context.Context, table, id string, notFound, inUse error) error {
	n, err := execQuery(ctx, repo.db, psql.Delete(table).Where(eqID("id", id)))
	if err != nil {
		if isForeignKeyViolation(err) {
			return inUse
		}
		return errors.Wrapf(err, "deleting %s", table)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Suppliers

func (repo catalogRepository) CreateSupplier(ctx context.Context, sup catalog.Supplier) (catalog.Supplier, error) {
	sup.ID = uuid.New().String()
	q := psql.Insert("supplier").
		Columns(supplierColumns...).
		Values(sup.ID, sup.Name, sup.ContactName, sup.Email, sup.Phone, sup.Address, sup.IsActive, sup.CreatedAt, sup.UpdatedAt)
	if _, err := execQuery(ctx, repo.db, q); err != nil {
		return catalog.Supplier{}, errors.Wrap(constraintErr(err, catalogConstraints), "inserting supplier")
	}
	return sup, nil
}

func (repo catalogRepository) QuerySuppliers(ctx context.Context, filter catalog.SupplierFilter, ordering []core.DBOrdering, page core.Pagination) ([]catalog.Supplier, int, error) {
	q := psql.Select().From("supplier")
	if filter.Search != "" {
		q = q.Where(search(filter.Search, "name", "contact_name", "email"))
	}
	if filter.IsActive != nil {
		q = q.Where(sq.Eq{"is_active": *filter.IsActive})
	}

	sups := make([]catalog.Supplier, 0)
	count, err := queryPage(ctx, repo.db, &sups, q, supplierColumns, orderBy(ordering, supplierOrdering, "id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying suppliers")
	}
	return sups, count, nil
}

func (repo catalogRepository) GetSupplierByID(ctx context.Context, id string) (catalog.Supplier, error) {
	var sup catalog.Supplier
	q := psql.Select(supplierColumns...).From("supplier").Where(eqID("id", id))
	if err := getRow(ctx, repo.db, &sup, q); err != nil {
		return catalog.Supplier{}, trapNoRowsErr(err, catalog.ErrSupplierNotFound, "finding supplier")
	}
	return sup, nil
}

func (repo catalogRepository) UpdateSupplier(ctx context.Context, sup catalog.Supplier) (catalog.Supplier, error) {
	q := psql.Update("supplier").
		SetMap(map[string]interface{}{
			"name":         sup.Name,
			"contact_name": sup.ContactName,
			"email":        sup.Email,
			"phone":        sup.Phone,
			"address":      sup.Address,
			"is_active":    sup.IsActive,
			"updated_at":   sup.UpdatedAt,
		}).
		Where(eqID("id", sup.ID))
	n, err := execQuery(ctx, repo.db, q)
	if err != nil {
		return catalog.Supplier{}, errors.Wrap(constraintErr(err, catalogConstraints), "updating supplier")
	}
	if n == 0 {
		return catalog.Supplier{}, catalog.ErrSupplierNotFound
	}
	return sup, nil
}

func (repo catalogRepository) DeleteSupplier(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "supplier", id, catalog.ErrSupplierNotFound, catalog.ErrSupplierInUse)
}

// Categories

func (repo catalogRepository) CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	cat.ID = uuid.New().String()
	q := psql.Insert("category").
		Columns(categoryColumns...).
		Values(cat.ID, cat.Name, cat.Description, cat.CreatedAt, cat.UpdatedAt)
	if _, err := execQuery(ctx, repo.db, q); err != nil {
		return catalog.Category{}, errors.Wrap(constraintErr(err, catalogConstraints), "inserting category")
	}
	return cat, nil
}

func (repo catalogRepository) QueryCategories(ctx context.Context, filter catalog.CategoryFilter, ordering []core.DBOrdering, page core.Pagination) ([]catalog.Category, int, error) {
	q := psql.Select().From("category")
	if filter.Search != "" {
		q = q.Where(search(filter.Search, "name", "description"))
	}

	cats := make([]catalog.Category, 0)
	count, err := queryPage(ctx, repo.db, &cats, q, categoryColumns, orderBy(ordering, categoryOrdering, "id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying categories")
	}
	return cats, count, nil
}

func (repo catalogRepository) GetCategoryByID(ctx context.Context, id string) (catalog.Category, error) {
	var cat catalog.Category
	q := psql.Select(categoryColumns...).From("category").Where(eqID("id", id))
	if err := getRow(ctx, repo.db, &cat, q); err != nil {
		return catalog.Category{}, trapNoRowsErr(err, catalog.ErrCategoryNotFound, "finding category")
	}
	return cat, nil
}

func (repo catalogRepository) UpdateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	q := psql.Update("category").
		Set("name", cat.Name).
		Set("description", cat.Description).
		Set("updated_at", cat.UpdatedAt).
		Where(eqID("id", cat.ID))
	n, err := execQuery(ctx, repo.db, q)
	if err != nil {
		return catalog.Category{}, errors.Wrap(constraintErr(err, catalogConstraints), "updating category")
	}
	if n == 0 {
		return catalog.Category{}, catalog.ErrCategoryNotFound
	}
	return cat, nil
}

func (repo catalogRepository) DeleteCategory(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "category", id, catalog.ErrCategoryNotFound, catalog.ErrCategoryInUse)
}

// Items

func (repo catalogRepository) selectItems() sq.SelectBuilder {
	return psql.Select().From("item i").Join("category c ON c.id = i.category_id")
}

func (repo catalogRepository) CreateItem(ctx context.Context, item catalog.Item) (catalog.Item, error) {
	item.ID = uuid.New().String()
	q := psql.Insert("item").
		Columns("id", "category_id", "name", "unit", "description", "reorder_level", "created_at", "updated_at").
		Values(item.ID, item.CategoryID, item.Name, item.Unit, item.Description, item.ReorderLevel, item.CreatedAt, item.UpdatedAt)
	if _, err := execQuery(ctx, repo.db, q); err != nil {
		return catalog.Item{}, errors.Wrap(constraintErr(err, catalogConstraints), "inserting item")
	}
	return item, nil
}

func (repo catalogRepository) QueryItems(ctx context.Context, filter catalog.ItemFilter, ordering []core.DBOrdering, page core.Pagination) ([]catalog.Item, int, error) {
	q := repo.selectItems()
	if filter.Search != "" {
		q = q.Where(search(filter.Search, "i.name", "i.description"))
	}
	if filter.CategoryID != "" {
		q = q.Where(eqID("i.category_id", filter.CategoryID))
	}

	items := make([]catalog.Item, 0)
	count, err := queryPage(ctx, repo.db, &items, q, itemColumns, orderBy(ordering, itemOrdering, "i.id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying items")
	}
	return items, count, nil
}

func (repo catalogRepository) GetItemByID(ctx context.Context, id string) (catalog.Item, error) {
	var item catalog.Item
	q := repo.selectItems().Columns(itemColumns...).Where(eqID("i.id", id))
	if err := getRow(ctx, repo.db, &item, q); err != nil {
		return catalog.Item{}, trapNoRowsErr(err, catalog.ErrItemNotFound, "finding item")
	}
	return item, nil
}

func (repo catalogRepository) UpdateItem(ctx context.Context, item catalog.Item) (catalog.Item, error) {
	q := psql.Update("item").
		SetMap(map[string]interface{}{
			"category_id":   item.CategoryID,
			"name":          item.Name,
			"unit":          item.Unit,
			"description":   item.Description,
			"reorder_level": item.ReorderLevel,
			"updated_at":    item.UpdatedAt,
		}).
		Where(eqID("id", item.ID))
	n, err := execQuery(ctx, repo.db, q)
	if err != nil {
		return catalog.Item{}, errors.Wrap(constraintErr(err, catalogConstraints), "updating item")
	}
	if n == 0 {
		return catalog.Item{}, catalog.ErrItemNotFound
	}
	return repo.GetItemByID(ctx, item.ID)
}

func (repo catalogRepository) DeleteItem(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "item", id, catalog.ErrItemNotFound, catalog.ErrItemInUse)
}
