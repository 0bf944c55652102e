package stock

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/user"
)

// Stock-in requests are staff requests to receive items from the store.

func (svc *service) CreateStockInRequest(ctx context.Context, actor user.User, nr NewStockInRequest) (StockInRequest, error) {
	item, err := svc.lookupItem(ctx, nr.ItemID)
	if err != nil {
		return StockInRequest{}, err
	}
	office, err := svc.lookupOffice(ctx, nr.OfficeID)
	if err != nil {
		return StockInRequest{}, err
	}

	now := time.Now().UTC()
	req, err := svc.repo.CreateStockInRequest(ctx, StockInRequest{
		ItemID:      item.ID,
		ItemName:    item.Name,
		OfficeID:    office.ID,
		OfficeName:  office.Name,
		Quantity:    nr.Quantity,
		Purpose:     nr.Purpose,
		Status:      StatusPending,
		RequestedBy: actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return StockInRequest{}, errors.Wrap(toValidationError(err), "creating stock-in request")
	}
	svc.publisher.Publish(TopicStockInRequestCreated, req)
	return req, nil
}

func (svc *service) QueryStockInRequests(ctx context.Context, actor user.User, filter RequestFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[StockInRequest], error) {
	if !actor.CanManageStock() {
		filter.RequestedBy = actor.ID
	}
	rows, count, err := svc.repo.QueryStockInRequests(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[StockInRequest]{}, err
	}
	return core.NewPage(count, rows), nil
}

func (svc *service) GetStockInRequest(ctx context.Context, actor user.User, id string) (StockInRequest, error) {
	req, err := svc.repo.GetStockInRequestByID(ctx, id)
	if err != nil {
		return StockInRequest{}, err
	}
	if !actor.CanManageStock() && req.RequestedBy != actor.ID {
		return StockInRequest{}, ErrStockInRequestNotFound
	}
	return req, nil
}

// ApproveStockInRequest issues the requested quantity to the requesting office.
func (svc *service) ApproveStockInRequest(ctx context.Context, actor user.User, id string, review Review) (StockInRequest, error) {
	req, err := svc.repo.GetStockInRequestByID(ctx, id)
	if err != nil {
		return StockInRequest{}, err
	}
	if req.Status != StatusPending {
		return StockInRequest{}, toValidationError(ErrRequestNotPending)
	}
	office, err := svc.lookupOffice(ctx, req.OfficeID)
	if err != nil {
		return StockInRequest{}, err
	}

	now := time.Now().UTC()
	info := ReviewInfo{By: actor.DisplayName(), At: now, Note: review.Note}
	req, so, err := svc.repo.ApproveStockInRequest(ctx, id, info, StockOut{
		ItemID:         req.ItemID,
		ItemName:       req.ItemName,
		OfficeID:       null.StringFrom(office.ID),
		OfficeName:     office.Name,
		DepartmentID:   null.StringFrom(office.DepartmentID),
		DepartmentName: office.DepartmentName,
		Quantity:       req.Quantity,
		IssuedTo:       office.Name,
		IssuedAt:       now,
		Remarks:        req.Purpose,
		RequestID:      null.StringFrom(req.ID),
		CreatedBy:      actor.DisplayName(),
		CreatedAt:      now,
	})
	if err != nil {
		return StockInRequest{}, errors.Wrap(toValidationError(err), "approving stock-in request")
	}
	svc.publisher.Publish(TopicStockOutCreated, so)
	svc.publisher.Publish(TopicStockInRequestReviewed, req)
	return req, nil
}

func (svc *service) RejectStockInRequest(ctx context.Context, actor user.User, id string, review Review) (StockInRequest, error) {
	info := ReviewInfo{By: actor.DisplayName(), At: time.Now().UTC(), Note: review.Note}
	req, err := svc.repo.RejectStockInRequest(ctx, id, info)
	if err != nil {
		return StockInRequest{}, errors.Wrap(toValidationError(err), "rejecting stock-in request")
	}
	svc.publisher.Publish(TopicStockInRequestReviewed, req)
	return req, nil
}
