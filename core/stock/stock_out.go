package stock

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/user"
)

func (svc *service) CreateStockOut(ctx context.Context, actor user.User, ns NewStockOut) (StockOut, error) {
	item, err := svc.lookupItem(ctx, ns.ItemID)
	if err != nil {
		return StockOut{}, err
	}

	so := StockOut{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Quantity:  ns.Quantity,
		IssuedTo:  ns.IssuedTo,
		IssuedAt:  ns.IssuedAt,
		Remarks:   ns.Remarks,
		CreatedBy: actor.DisplayName(),
		CreatedAt: time.Now().UTC(),
	}
	if ns.OfficeID != "" {
		office, err := svc.lookupOffice(ctx, ns.OfficeID)
		if err != nil {
			return StockOut{}, err
		}
		so.OfficeID = null.StringFrom(office.ID)
		so.OfficeName = office.Name
		so.DepartmentID = null.StringFrom(office.DepartmentID)
		so.DepartmentName = office.DepartmentName
	}
	if ns.DepartmentID != "" && ns.DepartmentID != so.DepartmentID.String {
		if so.OfficeID.Valid {
			return StockOut{}, core.NewFieldValidationError("department_id", errOfficeNotInDepartment)
		}
		dept, err := svc.lookupDepartment(ctx, ns.DepartmentID)
		if err != nil {
			return StockOut{}, err
		}
		so.DepartmentID = null.StringFrom(dept.ID)
		so.DepartmentName = dept.Name
	}

	so, err = svc.repo.CreateStockOut(ctx, so)
	if err != nil {
		return StockOut{}, errors.Wrap(toValidationError(err), "creating stock-out")
	}
	svc.publisher.Publish(TopicStockOutCreated, so)
	return so, nil
}

func (svc *service) QueryStockOuts(ctx context.Context, filter StockOutFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[StockOut], error) {
	filter.Search = core.CleanString(filter.Search)
	rows, count, err := svc.repo.QueryStockOuts(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[StockOut]{}, err
	}
	return core.NewPage(count, rows), nil
}

func (svc *service) GetStockOut(ctx context.Context, id string) (StockOut, error) {
	return svc.repo.GetStockOutByID(ctx, id)
}

// DeleteStockOut returns the issued quantity to the store.
// Stock-outs issued for a request cannot be deleted.
func (svc *service) DeleteStockOut(ctx context.Context, actor user.User, id string) error {
	so, err := svc.repo.GetStockOutByID(ctx, id)
	if err != nil {
		return err
	}
	if so.RequestID.Valid {
		return core.NewValidationError(errStockOutFromRequest)
	}
	if err := svc.repo.DeleteStockOut(ctx, id); err != nil {
		return errors.Wrap(toValidationError(err), "deleting stock-out")
	}
	svc.publisher.Publish(TopicStockOutDeleted, so)
	return nil
}
