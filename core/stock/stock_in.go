package stock

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/ledger"
	"github.com/unistock/stockroom/core/user"
)

func StockInChainKey(id string) string {
	return ledger.ChainKey(ChainKindStockIn, id)
}

func (svc *service) CreateStockIn(ctx context.Context, actor user.User, ns NewStockIn) (StockIn, error) {
	item, err := svc.lookupItem(ctx, ns.ItemID)
	if err != nil {
		return StockIn{}, err
	}
	sup, err := svc.lookupSupplier(ctx, ns.SupplierID)
	if err != nil {
		return StockIn{}, err
	}
	if !sup.IsActive {
		return StockIn{}, toValidationError(ErrInactiveSupplier)
	}

	now := time.Now().UTC()
	si := StockIn{
		ItemID:       item.ID,
		ItemName:     item.Name,
		SupplierID:   sup.ID,
		SupplierName: sup.Name,
		Quantity:     ns.Quantity,
		UnitPrice:    ns.UnitPrice,
		InvoiceNo:    ns.InvoiceNo,
		ReceivedAt:   ns.ReceivedAt,
		Remarks:      ns.Remarks,
		CreatedBy:    actor.DisplayName(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ns.DepartmentID != "" {
		dept, err := svc.lookupDepartment(ctx, ns.DepartmentID)
		if err != nil {
			return StockIn{}, err
		}
		si.DepartmentID = null.StringFrom(dept.ID)
		si.DepartmentName = dept.Name
	}
	si.ComputeTotal()

	si, err = svc.repo.CreateStockIn(ctx, si)
	if err != nil {
		return StockIn{}, errors.Wrap(toValidationError(err), "creating stock-in")
	}

	svc.appendStockInEvent(ctx, actor, EventStockInCreated, si)
	svc.notifyStockIn(ctx, actor, si)
	return si, nil
}

func (svc *service) QueryStockIns(ctx context.Context, filter StockInFilter, ordering []core.DBOrdering, page core.Pagination) (core.Page[StockIn], error) {
	filter.Search = core.CleanString(filter.Search)
	rows, count, err := svc.repo.QueryStockIns(ctx, filter, ordering, page)
	if err != nil {
		return core.Page[StockIn]{}, err
	}
	return core.NewPage(count, rows), nil
}

func (svc *service) GetStockIn(ctx context.Context, id string) (StockIn, error) {
	return svc.repo.GetStockInByID(ctx, id)
}

func (svc *service) UpdateStockIn(ctx context.Context, actor user.User, id string, us UpdateStockIn) (StockIn, error) {
	si, err := svc.repo.GetStockInByID(ctx, id)
	if err != nil {
		return StockIn{}, err
	}
	if si.IsVerified {
		return StockIn{}, toValidationError(ErrStockInVerified)
	}

	if us.SupplierID != si.SupplierID {
		sup, err := svc.lookupSupplier(ctx, us.SupplierID)
		if err != nil {
			return StockIn{}, err
		}
		if !sup.IsActive {
			return StockIn{}, toValidationError(ErrInactiveSupplier)
		}
		si.SupplierID = sup.ID
		si.SupplierName = sup.Name
	}
	if us.DepartmentID != nil && *us.DepartmentID != si.DepartmentID.String {
		if deptID := *us.DepartmentID; deptID == "" {
			si.DepartmentID = null.String{}
			si.DepartmentName = ""
		} else {
			dept, err := svc.lookupDepartment(ctx, deptID)
			if err != nil {
				return StockIn{}, err
			}
			si.DepartmentID = null.StringFrom(dept.ID)
			si.DepartmentName = dept.Name
		}
	}
	si.Quantity = us.Quantity
	si.UnitPrice = *us.UnitPrice
	si.InvoiceNo = *us.InvoiceNo
	si.ReceivedAt = us.ReceivedAt
	si.Remarks = *us.Remarks
	si.UpdatedAt = time.Now().UTC()
	si.ComputeTotal()

	si, err = svc.repo.UpdateStockIn(ctx, si)
	if err != nil {
		return StockIn{}, errors.Wrap(toValidationError(err), "updating stock-in")
	}

	svc.appendStockInEvent(ctx, actor, EventStockInUpdated, si)
	return si, nil
}

func (svc *service) VerifyStockIn(ctx context.Context, actor user.User, id string) (StockIn, error) {
	si, err := svc.repo.VerifyStockIn(ctx, id, actor.DisplayName(), time.Now().UTC())
	if err != nil {
		return StockIn{}, errors.Wrap(toValidationError(err), "verifying stock-in")
	}

	svc.appendStockInEvent(ctx, actor, EventStockInVerified, si)
	return si, nil
}

func (svc *service) DeleteStockIn(ctx context.Context, actor user.User, id string) error {
	si, err := svc.repo.GetStockInByID(ctx, id)
	if err != nil {
		return err
	}
	if si.IsVerified {
		return toValidationError(ErrStockInVerified)
	}
	if err := svc.repo.DeleteStockIn(ctx, id); err != nil {
		return errors.Wrap(toValidationError(err), "deleting stock-in")
	}

	svc.appendStockInEvent(ctx, actor, EventStockInDeleted, si)
	return nil
}

func (svc *service) StockInChain(ctx context.Context, id string) ([]ledger.Block, error) {
	return svc.ledger.Chain(ctx, StockInChainKey(id))
}

func (svc *service) VerifyStockInChain(ctx context.Context, id string) (ledger.Report, error) {
	return svc.ledger.Verify(ctx, StockInChainKey(id))
}

// appendStockInEvent records the event in the stock-in's chain.
// Failures are logged: the stock-in itself has already been stored.
func (svc *service) appendStockInEvent(ctx context.Context, actor user.User, eventType string, si StockIn) {
	if _, err := svc.ledger.Append(ctx, StockInChainKey(si.ID), eventType, si, actor.DisplayName()); err != nil {
		svc.logError("appending stock-in ledger event", err, actor)
	}
	svc.publisher.Publish(eventType, si)
}

// notifyStockIn emails the users having one of the configured roles about a new stock-in.
func (svc *service) notifyStockIn(ctx context.Context, actor user.User, si StockIn) {
	users, err := svc.users.QueryActiveByRoles(ctx, svc.conf.Stock.NotifyRoles...)
	if err != nil {
		svc.logError("querying stock-in notification recipients", err, actor)
		return
	}

	messages := make([]*core.EmailMessage, 0, len(users))
	for _, usr := range users {
		if usr.Email == "" {
			continue
		}
		msg := &core.EmailMessage{
			To:           []mail.Address{usr.Address()},
			Subject:      "New stock-in: " + si.ItemName,
			TemplateName: "stock_in_created",
			TemplateData: si,
		}
		if err := msg.Render(svc.conf.Email.FrontendBaseURL); err != nil {
			svc.logError("rendering stock-in notification", err, actor)
			return
		}
		messages = append(messages, msg)
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
}
