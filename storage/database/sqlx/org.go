package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/org"
)

var (
	departmentColumns  = []string{"id", "name", "code", "description", "created_at", "updated_at"}
	departmentOrdering = map[string]string{
		"name":       "name",
		"code":       "code",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	departmentConstraints = map[string]error{
		"department_name_key": org.ErrDepartmentNameExists,
		"department_code_key": org.ErrDepartmentCodeExists,
	}

	officeColumns = []string{
		"o.id", "o.department_id", "d.name AS department_name", "o.name", "o.location", "o.created_at", "o.updated_at",
	}
	officeOrdering = map[string]string{
		"name":            "o.name",
		"location":        "o.location",
		"department_name": "d.name",
		"created_at":      "o.created_at",
		"updated_at":      "o.updated_at",
	}
	officeConstraints = map[string]error{
		"office_department_name_key": org.ErrOfficeNameExists,
		"office_department_id_fkey":  org.ErrUnknownDepartment,
	}
)

type orgRepository struct {
	db core.DB
}

var _ org.Repository = (*orgRepository)(nil) // interface compliance check

func NewOrgRepository(db core.DB) *orgRepository {
	return &orgRepository{db: db}
}

// Departments

func (repo orgRepository) CreateDepartment(ctx context.Context, dept org.Department) (org.Department, error) {
	dept.ID = uuid.New().String()
	q := psql.Insert("department").
		Columns(departmentColumns...).
		Values(dept.ID, dept.Name, dept.Code, dept.Description, dept.CreatedAt, dept.UpdatedAt)
	if _, err := execQuery(ctx, repo.db, q); err != nil {
		return org.Department{}, errors.Wrap(constraintErr(err, departmentConstraints), "inserting department")
	}
	return dept, nil
}

func (repo orgRepository) QueryDepartments(ctx context.Context, filter org.DepartmentFilter, ordering []core.DBOrdering, page core.Pagination) ([]org.Department, int, error) {
	q := psql.Select().From("department")
	if filter.Search != "" {
		q = q.Where(search(filter.Search, "name", "code"))
	}

	depts := make([]org.Department, 0)
	count, err := queryPage(ctx, repo.db, &depts, q, departmentColumns, orderBy(ordering, departmentOrdering, "id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying departments")
	}
	return depts, count, nil
}

func (repo orgRepository) GetDepartmentByID(ctx context.Context, id string) (org.Department, error) {
	var dept org.Department
	q := psql.Select(departmentColumns...).From("department").Where(eqID("id", id))
	if err := getRow(ctx, repo.db, &dept, q); err != nil {
		return org.Department{}, trapNoRowsErr(err, org.ErrDepartmentNotFound, "finding department")
	}
	return dept, nil
}

func (repo orgRepository) UpdateDepartment(ctx context.Context, dept org.Department) (org.Department, error) {
	q := psql.Update("department").
		Set("name", dept.Name).
		Set("code", dept.Code).
		Set("description", dept.Description).
		Set("updated_at", dept.UpdatedAt).
		Where(eqID("id", dept.ID))
	n, err := execQuery(ctx, repo.db, q)
	if err != nil {
		return org.Department{}, errors.Wrap(constraintErr(err, departmentConstraints), "updating department")
	}
	if n == 0 {
		return org.Department{}, org.ErrDepartmentNotFound
	}
	return dept, nil
}

func (repo orgRepository) DeleteDepartment(ctx context.Context, id string) error {
	n, err := execQuery(ctx, repo.db, psql.Delete("department").Where(eqID("id", id)))
	if err != nil {
		if isForeignKeyViolation(err) {
			return org.ErrDepartmentInUse
		}
		return errors.Wrap(err, "deleting department")
	}
	if n == 0 {
		return org.ErrDepartmentNotFound
	}
	return nil
}

// Offices

func (repo orgRepository) selectOffices() sq.SelectBuilder {
	return psql.Select().From("office o").Join("department d ON d.id = o.department_id")
}

func (repo orgRepository) CreateOffice(ctx context.Context, office org.Office) (org.Office, error) {
	office.ID = uuid.New().String()
	q := psql.Insert("office").
		Columns("id", "department_id", "name", "location", "created_at", "updated_at").
		Values(office.ID, office.DepartmentID, office.Name, office.Location, office.CreatedAt, office.UpdatedAt)
	if _, err := execQuery(ctx, repo.db, q); err != nil {
		return org.Office{}, errors.Wrap(constraintErr(err, officeConstraints), "inserting office")
	}
	return office, nil
}

func (repo orgRepository) QueryOffices(ctx context.Context, filter org.OfficeFilter, ordering []core.DBOrdering, page core.Pagination) ([]org.Office, int, error) {
	q := repo.selectOffices()
	if filter.Search != "" {
		q = q.Where(search(filter.Search, "o.name", "o.location"))
	}
	if filter.DepartmentID != "" {
		q = q.Where(eqID("o.department_id", filter.DepartmentID))
	}

	offices := make([]org.Office, 0)
	count, err := queryPage(ctx, repo.db, &offices, q, officeColumns, orderBy(ordering, officeOrdering, "o.id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying offices")
	}
	return offices, count, nil
}

func (repo orgRepository) GetOfficeByID(ctx context.Context, id string) (org.Office, error) {
	var office org.Office
	q := repo.selectOffices().Columns(officeColumns...).Where(eqID("o.id", id))
	if err := getRow(ctx, repo.db, &office, q); err != nil {
		return org.Office{}, trapNoRowsErr(err, org.ErrOfficeNotFound, "finding office")
	}
	return office, nil
}

func (repo orgRepository) UpdateOffice(ctx context.Context, office org.Office) (org.Office, error) {
	q := psql.Update("office").
		Set("department_id", office.DepartmentID).
		Set("name", office.Name).
		Set("location", office.Location).
		Set("updated_at", office.UpdatedAt).
		Where(eqID("id", office.ID))
	n, err := execQuery(ctx, repo.db, q)
	if err != nil {
		return org.Office{}, errors.Wrap(constraintErr(err, officeConstraints), "updating office")
	}
	if n == 0 {
		return org.Office{}, org.ErrOfficeNotFound
	}
	return repo.GetOfficeByID(ctx, office.ID)
}

func (repo orgRepository) DeleteOffice(ctx context.Context, id string) error {
	n, err := execQuery(ctx, repo.db, psql.Delete("office").Where(eqID("id", id)))
	if err != nil {
		if isForeignKeyViolation(err) {
			return org.ErrOfficeInUse
		}
		return errors.Wrap(err, "deleting office")
	}
	if n == 0 {
		return org.ErrOfficeNotFound
	}
	return nil
}
