package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/internal/address"
	"github.com/universepro/estore-backend/internal/cart"
	"github.com/universepro/estore-backend/internal/catalog"
	"github.com/universepro/estore-backend/internal/coupons"
	"github.com/universepro/estore-backend/pkg/db/dbtest"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
	"github.com/universepro/estore-backend/pkg/logger"
	"github.com/universepro/estore-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubInitiator struct {
	payment *models.Payment
	err     error
	calls   int
}

func (s *stubInitiator) Initiate(_ context.Context, _ *models.Order, _ string, _ enums.MobileNetwork) (*models.Payment, error) {
	s.calls++
	return s.payment, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "checkout-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	carts   cart.Service
	gateway *stubInitiator
	userID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	runner := gormTxRunner{db: db}

	cartSvc, err := cart.NewService(
		runner,
		cart.NewRepository(db),
		catalog.NewRepository(db),
		coupons.NewRepository(db),
		cart.ShippingPolicy{
			FreeThreshold: decimal.NewFromInt(100000),
			FlatCost:      decimal.NewFromInt(5000),
		},
	)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}

	gateway := &stubInitiator{}
	svc, err := NewService(
		runner,
		cart.NewRepository(db),
		coupons.NewRepository(db),
		address.NewRepository(db),
		gateway,
		outbox.NewService(outbox.NewRepository(db), testLogger()),
		nil,
		testLogger(),
	)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}

	return &fixture{db: db, svc: svc, carts: cartSvc, gateway: gateway, userID: uuid.New()}
}

func (f *fixture) seedProduct(t *testing.T, price int64, stockQty int) *models.Product {
	t.Helper()
	id := uuid.New()
	product := models.Product{
		ID:            id,
		Name:          "Field recorder",
		Slug:          "field-recorder-" + id.String()[:8],
		SKU:           "FR-" + id.String()[:8],
		Price:         decimal.NewFromInt(price),
		CategoryID:    uuid.New(),
		StockQuantity: stockQty,
		InStock:       stockQty > 0,
		IsActive:      true,
	}
	if err := f.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return &product
}

func (f *fixture) fillCart(t *testing.T, productID uuid.UUID, quantity int) {
	t.Helper()
	if _, err := f.carts.AddItem(context.Background(), cart.UserOwner(f.userID), productID, quantity); err != nil {
		t.Fatalf("fill cart: %v", err)
	}
}

func cashInput() SettleInput {
	return SettleInput{
		NewAddress: &address.Input{
			FirstName: "Afi",
			LastName:  "Mensah",
			Phone:     "+22890112233",
			Line1:     "Rue des Cocotiers 12",
			City:      "Lomé",
		},
		PaymentMethod: enums.PaymentMethodCash,
	}
}

func TestSettleCreatesOrderAndEmptiesCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 20000, 10)
	f.fillCart(t, product.ID, 2)

	result, err := f.svc.Settle(ctx, f.userID, cashInput())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	order := result.Order
	if order.OrderNumber != "CMD-000001" {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if !order.PaymentStatus {
		t.Fatal("cash orders are paid at creation")
	}
	if result.Redirect != RedirectConfirmation {
		t.Fatalf("unexpected redirect %q", result.Redirect)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Fatalf("unexpected order items %+v", order.Items)
	}
	if !order.Total.Equal(decimal.NewFromInt(45000)) {
		t.Fatalf("expected total 45000 (40000 + 5000 shipping), got %s", order.Total)
	}

	view, err := f.carts.Get(ctx, cart.UserOwner(f.userID))
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	if len(view.Cart.Items) != 0 {
		t.Fatalf("cart must be emptied, still has %d lines", len(view.Cart.Items))
	}

	var reloaded models.Product
	if err := f.db.First(&reloaded, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.StockQuantity != 8 {
		t.Fatalf("expected stock 8, got %d", reloaded.StockQuantity)
	}

	var events int64
	if err := f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderCreated, order.ID).
		Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one created event, got %d", events)
	}
}

func TestOrderNumbersAreStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 10000, 10)

	f.fillCart(t, product.ID, 1)
	first, err := f.svc.Settle(ctx, f.userID, cashInput())
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}
	f.fillCart(t, product.ID, 1)
	second, err := f.svc.Settle(ctx, f.userID, cashInput())
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}

	if first.Order.OrderNumber != "CMD-000001" || second.Order.OrderNumber != "CMD-000002" {
		t.Fatalf("unexpected sequence %q then %q", first.Order.OrderNumber, second.Order.OrderNumber)
	}
}

func TestSettleEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.Settle(context.Background(), f.userID, cashInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}
}

func TestSettleInsufficientStockRollsBackEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 10000, 5)
	f.fillCart(t, product.ID, 3)

	// another settlement drained the shelf after the cart was built
	if err := f.db.Model(&models.Product{}).Where("id = ?", product.ID).
		Update("stock_quantity", 1).Error; err != nil {
		t.Fatalf("drain stock: %v", err)
	}

	_, err := f.svc.Settle(ctx, f.userID, cashInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var orders int64
	if err := f.db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 0 {
		t.Fatal("failed settlement must not leave an order behind")
	}

	view, err := f.carts.Get(ctx, cart.UserOwner(f.userID))
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	if len(view.Cart.Items) != 1 {
		t.Fatal("cart must survive a rolled-back settlement")
	}
}

func TestSettleRedeemsCouponOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 50000, 10)
	coupon := models.Coupon{
		ID:            uuid.New(),
		Code:          "SAVE10",
		DiscountType:  "percentage",
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		IsActive:      true,
	}
	if err := f.db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	f.fillCart(t, product.ID, 1)
	if _, applied, err := f.carts.ApplyCoupon(ctx, cart.UserOwner(f.userID), "SAVE10"); err != nil || !applied {
		t.Fatalf("apply coupon: applied=%v err=%v", applied, err)
	}

	result, err := f.svc.Settle(ctx, f.userID, cashInput())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !result.Order.CouponDiscount.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected frozen discount 5000, got %s", result.Order.CouponDiscount)
	}

	var redemption models.CouponRedemption
	if err := f.db.Where("order_id = ?", result.Order.ID).First(&redemption).Error; err != nil {
		t.Fatalf("load redemption: %v", err)
	}
	if redemption.CouponID != coupon.ID {
		t.Fatal("redemption must reference the applied coupon")
	}

	var reloaded models.Coupon
	if err := f.db.First(&reloaded, "id = ?", coupon.ID).Error; err != nil {
		t.Fatalf("reload coupon: %v", err)
	}
	if reloaded.CurrentUses != 1 {
		t.Fatalf("expected one consumed use, got %d", reloaded.CurrentUses)
	}
}

func TestSettleMobileMoneyInitiates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 20000, 10)
	f.fillCart(t, product.ID, 1)

	txRef := "TX9"
	f.gateway.payment = &models.Payment{
		ID:            uuid.New(),
		Status:        enums.PaymentStatusPending,
		TransactionID: &txRef,
	}

	input := cashInput()
	input.PaymentMethod = enums.PaymentMethodMobileMoney
	input.PhoneNumber = "+22890112233"
	input.Network = enums.MobileNetworkFlooz

	result, err := f.svc.Settle(ctx, f.userID, input)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if f.gateway.calls != 1 {
		t.Fatalf("expected one initiation, got %d", f.gateway.calls)
	}
	if result.Payment == nil || result.Payment.TransactionID == nil || *result.Payment.TransactionID != "TX9" {
		t.Fatalf("unexpected payment %+v", result.Payment)
	}
	if result.Redirect != RedirectProcessing {
		t.Fatalf("unexpected redirect %q", result.Redirect)
	}
	if result.Order.PaymentStatus {
		t.Fatal("mobile money orders are unpaid until the callback")
	}
}

func TestSettleSurvivesProviderRefusal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, 20000, 10)
	f.fillCart(t, product.ID, 1)

	f.gateway.err = pkgerrors.New(pkgerrors.CodePaymentProvider, "insufficient balance")

	input := cashInput()
	input.PaymentMethod = enums.PaymentMethodMobileMoney
	input.PhoneNumber = "+22890112233"
	input.Network = enums.MobileNetworkTMoney

	result, err := f.svc.Settle(ctx, f.userID, input)
	if err != nil {
		t.Fatalf("settle must not fail when the provider refuses: %v", err)
	}
	if result.Order == nil {
		t.Fatal("order must exist despite the refusal")
	}
	if result.Payment != nil {
		t.Fatal("no payment row on refusal")
	}
	if result.PaymentMessage != "insufficient balance" {
		t.Fatalf("unexpected message %q", result.PaymentMessage)
	}

	var orders int64
	if err := f.db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 1 {
		t.Fatal("settled order must survive the failed initiation")
	}
}

func TestSettleValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input SettleInput
	}{
		{"no address", SettleInput{PaymentMethod: enums.PaymentMethodCash}},
		{"both addresses", func() SettleInput {
			in := cashInput()
			id := uuid.New()
			in.AddressID = &id
			return in
		}()},
		{"bad method", func() SettleInput {
			in := cashInput()
			in.PaymentMethod = enums.PaymentMethod("barter")
			return in
		}()},
		{"mobile money without phone", func() SettleInput {
			in := cashInput()
			in.PaymentMethod = enums.PaymentMethodMobileMoney
			in.Network = enums.MobileNetworkFlooz
			return in
		}()},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Settle(ctx, f.userID, tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
