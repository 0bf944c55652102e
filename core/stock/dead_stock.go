package stock

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/user"
)

func (svc *service) CreateDeadStock(ctx context.Context, actor user.User, nd NewDeadStock) (DeadStock, error) {
	item, err := svc.lookupItem(ctx, nd.ItemID)
	if err != nil {
		return DeadStock{}, err
	}

	ds, err := svc.repo.CreateDeadStock(ctx, DeadStock{
		ItemID:     item.ID,
		ItemName:   item.Name,
		Quantity:   nd.Quantity,
		Reason:     nd.Reason,
		DeclaredBy: actor.DisplayName(),
		DeclaredAt: nd.DeclaredAt,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return DeadStock{}, errors.Wrap(toValidationError(err), "creating dead stock")
	}
	svc.publisher.Publish(TopicDeadStockCreated, ds)
	return ds, nil
}

func (svc *service) QueryDeadStocks(ctx context.Context, filter DeadStockFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[DeadStock], error) {
	filter.Search = core.CleanString(filter.Search)
	rows, count, err := svc.repo.QueryDeadStocks(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[DeadStock]{}, err
	}
	return core.NewPage(count, rows), nil
}

func (svc *service) GetDeadStock(ctx context.Context, id string) (DeadStock, error) {
	return svc.repo.GetDeadStockByID(ctx, id)
}

// Dead stock requests

func (svc *service) CreateDeadStockRequest(ctx context.Context, actor user.User, nr NewDeadStockRequest) (DeadStockRequest, error) {
	item, err := svc.lookupItem(ctx, nr.ItemID)
	if err != nil {
		return DeadStockRequest{}, err
	}

	now := time.Now().UTC()
	req, err := svc.repo.CreateDeadStockRequest(ctx, DeadStockRequest{
		ItemID:      item.ID,
		ItemName:    item.Name,
		Quantity:    nr.Quantity,
		Reason:      nr.Reason,
		Status:      StatusPending,
		RequestedBy: actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return DeadStockRequest{}, errors.Wrap(toValidationError(err), "creating dead stock request")
	}
	svc.publisher.Publish(TopicDeadStockRequestCreated, req)
	return req, nil
}

func (svc *service) QueryDeadStockRequests(ctx context.Context, actor user.User, filter RequestFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[DeadStockRequest], error) {
	if !actor.CanManageStock() {
		filter.RequestedBy = actor.ID
	}
	rows, count, err := svc.repo.QueryDeadStockRequests(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[DeadStockRequest]{}, err
	}
	return core.NewPage(count, rows), nil
}

func (svc *service) GetDeadStockRequest(ctx context.Context, actor user.User, id string) (DeadStockRequest, error) {
	req, err := svc.repo.GetDeadStockRequestByID(ctx, id)
	if err != nil {
		return DeadStockRequest{}, err
	}
	if !actor.CanManageStock() && req.RequestedBy != actor.ID {
		return DeadStockRequest{}, ErrDeadStockRequestNotFound
	}
	return req, nil
}

// ApproveDeadStockRequest declares the requested quantity as dead stock.
func (svc *service) ApproveDeadStockRequest(ctx context.Context, actor user.User, id string, review Review) (DeadStockRequest, error) {
	req, err := svc.repo.GetDeadStockRequestByID(ctx, id)
	if err != nil {
		return DeadStockRequest{}, err
	}
	if req.Status != StatusPending {
		return DeadStockRequest{}, toValidationError(ErrRequestNotPending)
	}

	now := time.Now().UTC()
	info := ReviewInfo{By: actor.DisplayName(), At: now, Note: review.Note}
	req, _, err = svc.repo.ApproveDeadStockRequest(ctx, id, info, DeadStock{
		ItemID:     req.ItemID,
		ItemName:   req.ItemName,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		DeclaredBy: actor.DisplayName(),
		DeclaredAt: now,
		RequestID:  null.StringFrom(req.ID),
		CreatedAt:  now,
	})
	if err != nil {
		return DeadStockRequest{}, errors.Wrap(toValidationError(err), "approving dead stock request")
	}
	svc.publisher.Publish(TopicDeadStockRequestReviewed, req)
	return req, nil
}

func (svc *service) RejectDeadStockRequest(ctx context.Context, actor user.User, id string, review Review) (DeadStockRequest, error) {
	info := ReviewInfo{By: actor.DisplayName(), At: time.Now().UTC(), Note: review.Note}
	req, err := svc.repo.RejectDeadStockRequest(ctx, id, info)
	if err != nil {
		return DeadStockRequest{}, errors.Wrap(toValidationError(err), "rejecting dead stock request")
	}
	svc.publisher.Publish(TopicDeadStockRequestReviewed, req)
	return req, nil
}
