package org

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
)

var (
	// errors
	ErrDepartmentNotFound   = core.NewNotFoundError("department")
	ErrOfficeNotFound       = core.NewNotFoundError("office")
	ErrDepartmentNameExists = errors.New("a department with this name already exists")
	ErrDepartmentCodeExists = errors.New("a department with this code already exists")
	ErrDepartmentInUse      = errors.New("department still has offices or stock movements")
	ErrOfficeNameExists     = errors.New("an office with this name already exists in the department")
	ErrOfficeInUse          = errors.New("office still has stock movements or requests")
	ErrUnknownDepartment    = errors.New("department not found")
)

// fieldErrors maps repository errors to the field they are reported on.
var fieldErrors = map[error]string{
	ErrDepartmentNameExists: "name",
	ErrDepartmentCodeExists: "code",
	ErrOfficeNameExists:     "name",
	ErrUnknownDepartment:    "department_id",
}

type (
	Repository interface {
		CreateDepartment(ctx context.Context, dept Department) (Department, error)
		QueryDepartments(ctx context.Context, filter DepartmentFilter, ordering []core.DBOrdering, page core.Pagination) ([]Department, int, error)
		GetDepartmentByID(ctx context.Context, id string) (Department, error)
		UpdateDepartment(ctx context.Context, dept Department) (Department, error)
		DeleteDepartment(ctx context.Context, id string) error

		CreateOffice(ctx context.Context, office Office) (Office, error)
		QueryOffices(ctx context.Context, filter OfficeFilter, ordering []core.DBOrdering, page core.Pagination) ([]Office, int, error)
		GetOfficeByID(ctx context.Context, id string) (Office, error)
		UpdateOffice(ctx context.Context, office Office) (Office, error)
		DeleteOffice(ctx context.Context, id string) error
	}

	Service interface {
		CreateDepartment(ctx context.Context, nd NewDepartment) (Department, error)
		QueryDepartments(ctx context.Context, filter DepartmentFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[Department], error)
		GetDepartment(ctx context.Context, id string) (Department, error)
		UpdateDepartment(ctx context.Context, id string, ud UpdateDepartment) (Department, error)
		DeleteDepartment(ctx context.Context, id string) error

		CreateOffice(ctx context.Context, no NewOffice) (Office, error)
		QueryOffices(ctx context.Context, filter OfficeFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[Office], error)
		GetOffice(ctx context.Context, id string) (Office, error)
		UpdateOffice(ctx context.Context, id string, uo UpdateOffice) (Office, error)
		DeleteOffice(ctx context.Context, id string) error
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
	case ErrDepartmentInUse, ErrOfficeInUse:
		return core.NewValidationError(cause)
	}
	return err
}

func (svc *service) CreateDepartment(ctx context.Context, nd NewDepartment) (Department, error) {
	now := time.Now().UTC()
	dept, err := svc.repo.CreateDepartment(ctx, Department{
		Name:        nd.Name,
		Code:        nd.Code,
		Description: nd.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return dept, toValidationError(err)
}

func (svc *service) QueryDepartments(ctx context.Context, filter DepartmentFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[Department], error) {
	filter.Search = core.CleanString(filter.Search)
	depts, count, err := svc.repo.QueryDepartments(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[Department]{}, err
	}
	return core.NewPage(count, depts), nil
}

func (svc *service) GetDepartment(ctx context.Context, id string) (Department, error) {
	return svc.repo.GetDepartmentByID(ctx, id)
}

func (svc *service) UpdateDepartment(ctx context.Context, id string, ud UpdateDepartment) (Department, error) {
	dept, err := svc.repo.GetDepartmentByID(ctx, id)
	if err != nil {
		return Department{}, err
	}
	dept.Name = ud.Name
	dept.Code = ud.Code
	if ud.Description != nil {
		dept.Description = *ud.Description
	}
	dept.UpdatedAt = time.Now().UTC()
	dept, err = svc.repo.UpdateDepartment(ctx, dept)
	return dept, toValidationError(err)
}

func (svc *service) DeleteDepartment(ctx context.Context, id string) error {
	return toValidationError(svc.repo.DeleteDepartment(ctx, id))
}

// checkDepartment reports an unknown department as a field error.
func (svc *service) checkDepartment(ctx context.Context, id string) (Department, error) {
	dept, err := svc.repo.GetDepartmentByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Department{}, toValidationError(ErrUnknownDepartment)
		}
		return Department{}, errors.Wrap(err, "finding department by ID")
	}
	return dept, nil
}

func (svc *service) CreateOffice(ctx context.Context, no NewOffice) (Office, error) {
	dept, err := svc.checkDepartment(ctx, no.DepartmentID)
	if err != nil {
		return Office{}, err
	}
	now := time.Now().UTC()
	office, err := svc.repo.CreateOffice(ctx, Office{
		DepartmentID:   dept.ID,
		DepartmentName: dept.Name,
		Name:           no.Name,
		Location:       no.Location,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	return office, toValidationError(err)
}

func (svc *service) QueryOffices(ctx context.Context, filter OfficeFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[Office], error) {
	filter.Search = core.CleanString(filter.Search)
	offices, count, err := svc.repo.QueryOffices(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[Office]{}, err
	}
	return core.NewPage(count, offices), nil
}

func (svc *service) GetOffice(ctx context.Context, id string) (Office, error) {
	return svc.repo.GetOfficeByID(ctx, id)
}

func (svc *service) UpdateOffice(ctx context.Context, id string, uo UpdateOffice) (Office, error) {
	office, err := svc.repo.GetOfficeByID(ctx, id)
	if err != nil {
		return Office{}, err
	}
	if uo.DepartmentID != office.DepartmentID {
		dept, err := svc.checkDepartment(ctx, uo.DepartmentID)
		if err != nil {
			return Office{}, err
		}
		office.DepartmentID = dept.ID
		office.DepartmentName = dept.Name
	}
	office.Name = uo.Name
	if uo.Location != nil {
		office.Location = *uo.Location
	}
	office.UpdatedAt = time.Now().UTC()
	office, err = svc.repo.UpdateOffice(ctx, office)
	return office, toValidationError(err)
}

func (svc *service) DeleteOffice(ctx context.Context, id string) error {
	return toValidationError(svc.repo.DeleteOffice(ctx, id))
}
