package org

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/unistock/stockroom/core"
)

// Ordering fields accepted by the Query operations.
var (
	DepartmentOrderingFields = []string{"name", "code", "created_at", "updated_at"}
	OfficeOrderingFields     = []string{"name", "location", "department_name", "created_at", "updated_at"}
)

type Department struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Code        string    `json:"code" db:"code"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type NewDepartment struct {
	Name        string `json:"name" validate:"required,notblank,max=150"`
	Code        string `json:"code" validate:"required,max=20,code"`
	Description string `json:"description" validate:"max=1000"`
}

func (nd *NewDepartment) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	nd.Code = strings.ToUpper(core.CleanString(nd.Code))
	nd.Description = strings.TrimSpace(nd.Description)
	return validate.Struct(nd)
}

// UpdateDepartment holds the fields to change; empty fields keep their current value.
type UpdateDepartment struct {
	Name        string  `json:"name" validate:"required,notblank,max=150"`
	Code        string  `json:"code" validate:"required,max=20,code"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

func (ud *UpdateDepartment) Validate(orig Department, validate *validator.Validate) error {
	if name := core.CleanString(ud.Name); name != "" {
		ud.Name = name
	} else {
		ud.Name = orig.Name
	}
	if code := strings.ToUpper(core.CleanString(ud.Code)); code != "" {
		ud.Code = code
	} else {
		ud.Code = orig.Code
	}
	if ud.Description == nil {
		ud.Description = &orig.Description
	} else {
		desc := strings.TrimSpace(*ud.Description)
		ud.Description = &desc
	}
	return validate.Struct(ud)
}

type DepartmentFilter struct {
	// Search does a case-insensitive match on Name or Code
	Search string
}

type Office struct {
	ID             string    `json:"id" db:"id"`
	DepartmentID   string    `json:"department_id" db:"department_id"`
	DepartmentName string    `json:"department_name" db:"department_name"`
	Name           string    `json:"name" db:"name"`
	Location       string    `json:"location" db:"location"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type NewOffice struct {
	DepartmentID string `json:"department_id" validate:"required,uuid"`
	Name         string `json:"name" validate:"required,notblank,max=150"`
	Location     string `json:"location" validate:"max=255"`
}

func (no *NewOffice) Validate(validate *validator.Validate) error {
	no.DepartmentID = strings.TrimSpace(no.DepartmentID)
	no.Name = core.CleanString(no.Name)
	no.Location = core.CleanString(no.Location)
	return validate.Struct(no)
}

// UpdateOffice holds the fields to change; empty fields keep their current value.
type UpdateOffice struct {
	DepartmentID string  `json:"department_id" validate:"required,uuid"`
	Name         string  `json:"name" validate:"required,notblank,max=150"`
	Location     *string `json:"location" validate:"omitempty,max=255"`
}

func (uo *UpdateOffice) Validate(orig Office, validate *validator.Validate) error {
	if deptID := strings.TrimSpace(uo.DepartmentID); deptID != "" {
		uo.DepartmentID = deptID
	} else {
		uo.DepartmentID = orig.DepartmentID
	}
	if name := core.CleanString(uo.Name); name != "" {
		uo.Name = name
	} else {
		uo.Name = orig.Name
	}
	if uo.Location == nil {
		uo.Location = &orig.Location
	} else {
		loc := core.CleanString(*uo.Location)
		uo.Location = &loc
	}
	return validate.Struct(uo)
}

type OfficeFilter struct {
	// Search does a case-insensitive match on Name or Location
	Search       string
	DepartmentID string
}
