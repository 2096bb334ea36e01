package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/internal/coupons"
	"github.com/universepro/estore-backend/internal/payments"
	"github.com/universepro/estore-backend/internal/stock"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/outbox"
	"github.com/universepro/estore-backend/pkg/outbox/payloads"
	"github.com/universepro/estore-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ListOptions are the raw query inputs from the HTTP layer.
type ListOptions struct {
	Status string
	Limit  int
	Cursor string
}

// Page is one slice of order history plus the cursor for the next one.
type Page struct {
	Orders     []models.Order
	NextCursor string
}

// Service exposes order reads and lifecycle transitions.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error)
	Get(ctx context.Context, userID uuid.UUID, number string) (*models.Order, error)
	Cancel(ctx context.Context, userID uuid.UUID, number string) (*models.Order, error)
	AdminList(ctx context.Context, opts ListOptions) (*Page, error)
	AdminUpdateStatus(ctx context.Context, number string, next enums.OrderStatus, trackingNumber *string) (*models.Order, error)
}

type service struct {
	tx       txRunner
	repo     OrderRepository
	coupons  coupons.CouponRepository
	payments payments.PaymentRepository
	outbox   outboxPublisher
	logg     *logger.Logger
}

// NewService builds the orders service.
func NewService(
	tx txRunner,
	repo OrderRepository,
	couponRepo coupons.CouponRepository,
	paymentRepo payments.PaymentRepository,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if paymentRepo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		coupons:  couponRepo,
		payments: paymentRepo,
		outbox:   publisher,
		logg:     logg,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.list(ctx, userID, opts)
}

func (s *service) AdminList(ctx context.Context, opts ListOptions) (*Page, error) {
	return s.list(ctx, uuid.Nil, opts)
}

func (s *service) list(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error) {
	params := ListParams{UserID: userID, Limit: opts.Limit}

	if opts.Status != "" {
		status, err := enums.ParseOrderStatus(opts.Status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
		params.Status = &status
	}
	cursor, err := pagination.ParseCursor(opts.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	params.Cursor = cursor

	rows, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	limit := pagination.NormalizeLimit(opts.Limit)
	page := &Page{Orders: rows}
	if len(rows) > limit {
		page.Orders = rows[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, number string) (*models.Order, error) {
	order, err := s.repo.FindByNumberForUser(ctx, number, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

// Cancel ends an unshipped order: the status flips, every line goes back on
// the shelf, the coupon use is returned, and a completed payment is marked
// for refund. All of it commits together.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID, number string) (*models.Order, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByNumberForUser(ctx, number, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("a %s order cannot be cancelled", order.Status))
		}

		now := time.Now()
		moved, err := repo.UpdateStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled,
			map[string]any{"cancelled_at": now})
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed state, retry")
		}

		lines := make([]stock.LineRequest, 0, len(order.Items))
		for _, item := range order.Items {
			lines = append(lines, stock.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if err := stock.Release(ctx, tx, lines); err != nil {
			return err
		}

		if err := s.coupons.WithTx(tx).ReleaseRedemption(ctx, order.ID); err != nil {
			return err
		}

		if err := s.markPaymentRefundable(ctx, tx, order.ID); err != nil {
			return err
		}

		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		cancelled = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: "customer"},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("order %s cancelled", cancelled.OrderNumber))
	}
	return cancelled, nil
}

// AdminUpdateStatus moves an order one step forward. Cancellation goes
// through Cancel so stock and coupons are returned.
func (s *service) AdminUpdateStatus(ctx context.Context, number string, next enums.OrderStatus, trackingNumber *string) (*models.Order, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if next == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use the cancel operation to cancel an order")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByNumber(ctx, number)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move a %s order to %s", order.Status, next))
		}

		now := time.Now()
		stamp := map[string]any{}
		switch next {
		case enums.OrderStatusShipped:
			stamp["shipped_at"] = now
			order.ShippedAt = &now
			if trackingNumber != nil {
				stamp["tracking_number"] = *trackingNumber
				order.TrackingNumber = trackingNumber
			}
		case enums.OrderStatusDelivered:
			stamp["delivered_at"] = now
			order.DeliveredAt = &now
		}

		moved, err := repo.UpdateStatus(ctx, order.ID, order.Status, next, stamp)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed state, retry")
		}
		order.Status = next
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// markPaymentRefundable flips the latest completed payment to refunded. An
// unpaid or failed payment needs nothing.
func (s *service) markPaymentRefundable(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.payments.WithTx(tx)
	payment, err := repo.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if payment.Status != enums.PaymentStatusCompleted {
		return nil
	}
	_, err = repo.TransitionStatus(ctx, payment.ID, enums.PaymentStatusCompleted, enums.PaymentStatusRefunded)
	return err
}
