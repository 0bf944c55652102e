package inmemdb

import (
	"context"
	"strings"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/org"
)

var (
	departmentComparers = comparers[org.Department]{
		"name":       func(a, b org.Department) int { return compareFold(a.Name, b.Name) },
		"code":       func(a, b org.Department) int { return strings.Compare(a.Code, b.Code) },
		"created_at": func(a, b org.Department) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"updated_at": func(a, b org.Department) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	}
	officeComparers = comparers[org.Office]{
		"name":            func(a, b org.Office) int { return compareFold(a.Name, b.Name) },
		"location":        func(a, b org.Office) int { return compareFold(a.Location, b.Location) },
		"department_name": func(a, b org.Office) int { return compareFold(a.DepartmentName, b.DepartmentName) },
		"created_at":      func(a, b org.Office) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"updated_at":      func(a, b org.Office) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	}
)

type orgRepository struct {
	db *DB
}

var _ org.Repository = (*orgRepository)(nil) // interface compliance check

func NewOrgRepository(db *DB) *orgRepository {
	return &orgRepository{db: db}
}

// Departments

func (repo *orgRepository) checkDepartment(dept org.Department) error {
	for _, other := range repo.db.departments {
		if other.ID == dept.ID {
			continue
		}
		if strings.EqualFold(other.Name, dept.Name) {
			return org.ErrDepartmentNameExists
		}
		if strings.EqualFold(other.Code, dept.Code) {
			return org.ErrDepartmentCodeExists
		}
	}
	return nil
}

func (repo *orgRepository) CreateDepartment(_ context.Context, dept org.Department) (org.Department, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkDepartment(dept); err != nil {
		return org.Department{}, err
	}
	dept.ID = newID()
	repo.db.departments[dept.ID] = dept
	return dept, nil
}

func (repo *orgRepository) QueryDepartments(_ context.Context, filter org.DepartmentFilter, ordering []core.DBOrdering, page core.Pagination) ([]org.Department, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(dept org.Department) bool {
		return filter.Search == "" || containsFold(filter.Search, dept.Name, dept.Code)
	}
	depts, count := query(repo.db.departments, nil, keep, ordering, departmentComparers, func(d org.Department) string { return d.ID }, page)
	return depts, count, nil
}

func (repo *orgRepository) GetDepartmentByID(_ context.Context, id string) (org.Department, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if dept, ok := repo.db.departments[id]; ok {
		return dept, nil
	}
	return org.Department{}, org.ErrDepartmentNotFound
}

func (repo *orgRepository) UpdateDepartment(_ context.Context, dept org.Department) (org.Department, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.departments[dept.ID]; !ok {
		return org.Department{}, org.ErrDepartmentNotFound
	}
	if err := repo.checkDepartment(dept); err != nil {
		return org.Department{}, err
	}
	repo.db.departments[dept.ID] = dept
	return dept, nil
}

func (repo *orgRepository) DeleteDepartment(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.departments[id]; !ok {
		return org.ErrDepartmentNotFound
	}
	if repo.db.departmentInUse(id) {
		return org.ErrDepartmentInUse
	}
	delete(repo.db.departments, id)
	return nil
}

// Offices

func (db *DB) fillOffice(office org.Office) org.Office {
	office.DepartmentName = db.departments[office.DepartmentID].Name
	return office
}

func (repo *orgRepository) checkOffice(office org.Office) error {
	if _, ok := repo.db.departments[office.DepartmentID]; !ok {
		return org.ErrUnknownDepartment
	}
	for _, other := range repo.db.offices {
		if other.ID != office.ID && other.DepartmentID == office.DepartmentID && strings.EqualFold(other.Name, office.Name) {
			return org.ErrOfficeNameExists
		}
	}
	return nil
}

func (repo *orgRepository) CreateOffice(_ context.Context, office org.Office) (org.Office, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkOffice(office); err != nil {
		return org.Office{}, err
	}
	office.ID = newID()
	repo.db.offices[office.ID] = office
	return repo.db.fillOffice(office), nil
}

func (repo *orgRepository) QueryOffices(_ context.Context, filter org.OfficeFilter, ordering []core.DBOrdering, page core.Pagination) ([]org.Office, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(office org.Office) bool {
		if filter.Search != "" && !containsFold(filter.Search, office.Name, office.Location) {
			return false
		}
		return filter.DepartmentID == "" || office.DepartmentID == filter.DepartmentID
	}
	offices, count := query(repo.db.offices, repo.db.fillOffice, keep, ordering, officeComparers, func(o org.Office) string { return o.ID }, page)
	return offices, count, nil
}

func (repo *orgRepository) GetOfficeByID(_ context.Context, id string) (org.Office, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if office, ok := repo.db.offices[id]; ok {
		return repo.db.fillOffice(office), nil
	}
	return org.Office{}, org.ErrOfficeNotFound
}

func (repo *orgRepository) UpdateOffice(_ context.Context, office org.Office) (org.Office, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.offices[office.ID]; !ok {
		return org.Office{}, org.ErrOfficeNotFound
	}
	if err := repo.checkOffice(office); err != nil {
		return org.Office{}, err
	}
	repo.db.offices[office.ID] = office
	return repo.db.fillOffice(office), nil
}

func (repo *orgRepository) DeleteOffice(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.offices[id]; !ok {
		return org.ErrOfficeNotFound
	}
	if repo.db.officeInUse(id) {
		return org.ErrOfficeInUse
	}
	delete(repo.db.offices, id)
	return nil
}

// departmentInUse mirrors the foreign keys referencing departments. The caller must hold the lock.
func (db *DB) departmentInUse(id string) bool {
	for _, office := range db.offices {
		if office.DepartmentID == id {
			return true
		}
	}
	for _, si := range db.stockIns {
		if si.DepartmentID.String == id {
			return true
		}
	}
	for _, so := range db.stockOuts {
		if so.DepartmentID.String == id {
			return true
		}
	}
	return false
}

func (db *DB) officeInUse(id string) bool {
	for _, so := range db.stockOuts {
		if so.OfficeID.String == id {
			return true
		}
	}
	for _, req := range db.stockInRequests {
		if req.OfficeID == id {
			return true
		}
	}
	return false
}
