// Package checkout settles a cart into an immutable order: one transaction
// covering the order rows, stock decrement, coupon consumption, and the cart
// reset, followed by an out-of-band payment initiation for mobile money.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/internal/address"
	"github.com/universepro/estore-backend/internal/cart"
	"github.com/universepro/estore-backend/internal/coupons"
	"github.com/universepro/estore-backend/internal/stock"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/metrics"
	"github.com/universepro/estore-backend/pkg/outbox"
	"github.com/universepro/estore-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentInitiator interface {
	Initiate(ctx context.Context, order *models.Order, phoneNumber string, network enums.MobileNetwork) (*models.Payment, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Redirect targets tell the storefront which page follows settlement.
const (
	RedirectProcessing   = "processing"
	RedirectConfirmation = "confirmation"
)

// SettleInput is the checkout request. Exactly one of AddressID or NewAddress
// picks the destination; PhoneNumber and Network only apply to mobile money.
type SettleInput struct {
	AddressID     *uuid.UUID
	NewAddress    *address.Input
	PaymentMethod enums.PaymentMethod
	PhoneNumber   string
	Network       enums.MobileNetwork
	Note          *string
}

// Result is the settlement outcome. Payment is nil unless a mobile money
// debit was accepted; PaymentMessage carries the provider's refusal when the
// order settled but the debit did not start.
type Result struct {
	Order          *models.Order
	Payment        *models.Payment
	Redirect       string
	PaymentMessage string
}

// Service turns carts into orders.
type Service interface {
	Settle(ctx context.Context, userID uuid.UUID, input SettleInput) (*Result, error)
}

type service struct {
	tx        txRunner
	carts     cart.CartRepository
	coupons   coupons.CouponRepository
	addresses address.AddressRepository
	payments  paymentInitiator
	outbox    outboxPublisher
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	carts cart.CartRepository,
	couponRepo coupons.CouponRepository,
	addresses address.AddressRepository,
	payments paymentInitiator,
	publisher outboxPublisher,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment initiator required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:        tx,
		carts:     carts,
		coupons:   couponRepo,
		addresses: addresses,
		payments:  payments,
		outbox:    publisher,
		metrics:   checkoutMetrics,
		logg:      logg,
	}, nil
}

// Settle converts the user's cart into an order. The order rows, the stock
// decrement, the coupon use, the cart reset and the created event all commit
// in one transaction. Payment initiation runs after commit: a provider
// refusal leaves the settled order awaiting a retry.
func (s *service) Settle(ctx context.Context, userID uuid.UUID, input SettleInput) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	started := time.Now()
	method := input.PaymentMethod.String()

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)

		userCart, err := cartRepo.FindByOwner(ctx, cart.UserOwner(userID))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return err
		}
		if len(userCart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		for _, item := range userCart.Items {
			if item.Product == nil {
				return pkgerrors.New(pkgerrors.CodeInternal, "cart line is missing its product")
			}
			if !item.Product.Available() {
				return pkgerrors.New(pkgerrors.CodeUnavailable,
					fmt.Sprintf("%s is no longer available", item.Product.Name))
			}
		}

		addr, err := s.resolveAddress(ctx, tx, userID, input)
		if err != nil {
			return err
		}

		orderNumber, err := nextOrderNumber(ctx, tx)
		if err != nil {
			return err
		}

		order = &models.Order{
			ID:                uuid.New(),
			OrderNumber:       orderNumber,
			UserID:            userID,
			ShippingAddressID: addr.ID,
			BillingAddressID:  addr.ID,
			Subtotal:          userCart.Subtotal(),
			CouponDiscount:    userCart.CouponDiscount,
			ShippingCost:      userCart.ShippingCost,
			Total:             userCart.Total(),
			Status:            enums.OrderStatusPending,
			PaymentMethod:     input.PaymentMethod,
			PaymentStatus:     input.PaymentMethod == enums.PaymentMethodCash,
			Note:              input.Note,
		}
		if err := tx.WithContext(ctx).Create(order).Error; err != nil {
			return err
		}

		lines := make([]stock.LineRequest, 0, len(userCart.Items))
		for _, item := range userCart.Items {
			frozen := models.OrderItem{
				ID:          uuid.New(),
				OrderID:     order.ID,
				ProductID:   item.ProductID,
				ProductName: item.Product.Name,
				SKU:         item.Product.SKU,
				Quantity:    item.Quantity,
				Price:       item.Price,
				TotalPrice:  item.LineTotal(),
			}
			if err := tx.WithContext(ctx).Create(&frozen).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, frozen)
			lines = append(lines, stock.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		if err := stock.Commit(ctx, tx, lines); err != nil {
			return err
		}

		if userCart.CouponID != nil {
			if err := s.coupons.WithTx(tx).Redeem(ctx, *userCart.CouponID, order.ID, &userID); err != nil {
				return err
			}
		}

		if err := cartRepo.DeleteItems(ctx, userCart.ID); err != nil {
			return err
		}
		userCart.CouponID = nil
		userCart.CouponDiscount = decimal.Zero
		userCart.ShippingCost = decimal.Zero
		if err := cartRepo.Save(ctx, userCart); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: "customer"},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      userID,
				Total:       order.Total,
			},
			Version: 1,
		})
	})
	if err != nil {
		s.metrics.IncOrderSettled(method, "failure")
		return nil, err
	}

	s.metrics.ObserveSettleDuration(method, time.Since(started))
	s.metrics.IncOrderSettled(method, "success")
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("order %s settled for %s", order.OrderNumber, order.Total))
	}

	result := &Result{Order: order, Redirect: RedirectConfirmation}
	if input.PaymentMethod != enums.PaymentMethodMobileMoney {
		return result, nil
	}

	result.Redirect = RedirectProcessing
	payment, err := s.payments.Initiate(ctx, order, input.PhoneNumber, input.Network)
	if err != nil {
		s.metrics.IncPaymentInitiated(input.Network.String(), "failure")
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("payment initiation failed for order %s: %v", order.OrderNumber, err))
		}
		result.PaymentMessage = paymentFailureMessage(err)
		return result, nil
	}
	s.metrics.IncPaymentInitiated(input.Network.String(), "success")
	result.Payment = payment
	return result, nil
}

// resolveAddress loads the referenced address or creates the inline one. A
// brand-new default demotes the previous default inside the settlement tx.
func (s *service) resolveAddress(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input SettleInput) (*models.Address, error) {
	repo := s.addresses.WithTx(tx)

	if input.AddressID != nil {
		addr, err := repo.FindForUser(ctx, *input.AddressID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipping address not found")
			}
			return nil, err
		}
		return addr, nil
	}

	if err := address.ValidateInput(*input.NewAddress); err != nil {
		return nil, err
	}
	addr := address.FromInput(userID, *input.NewAddress)
	if addr.IsDefault {
		if err := repo.ClearDefault(ctx, userID); err != nil {
			return nil, err
		}
	}
	if err := repo.Create(ctx, addr); err != nil {
		return nil, err
	}
	return addr, nil
}

func validateInput(input SettleInput) error {
	if input.AddressID == nil && input.NewAddress == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if input.AddressID != nil && input.NewAddress != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "provide either an address id or a new address, not both")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	if input.PaymentMethod == enums.PaymentMethodMobileMoney {
		if strings.TrimSpace(input.PhoneNumber) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "phone number required for mobile money")
		}
		if !input.Network.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "unsupported mobile network")
		}
	}
	return nil
}

func paymentFailureMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return "payment could not be started; retry from the order page"
}
