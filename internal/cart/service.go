// Package cart manages the pending-purchase aggregate: line mutations, coupon
// application, and the totals that every response echoes back.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/internal/coupons"
	"github.com/universepro/estore-backend/pkg/db/models"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type couponLoader interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
}

// View is the cart plus the totals the storefront renders after every
// mutation.
type View struct {
	Cart     *models.Cart
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Service exposes cart operations for one owner at a time.
type Service interface {
	Get(ctx context.Context, owner Owner) (*View, error)
	AddItem(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*View, error)
	UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, owner Owner) (*View, error)
	ApplyCoupon(ctx context.Context, owner Owner, code string) (*View, bool, error)
	Merge(ctx context.Context, userID uuid.UUID, sessionKey string) (*View, error)
}

// ShippingPolicy carries the flat cost and the free-shipping cutoff.
type ShippingPolicy struct {
	FreeThreshold decimal.Decimal
	FlatCost      decimal.Decimal
}

type service struct {
	tx       txRunner
	repo     CartRepository
	products productLoader
	coupons  couponLoader
	shipping ShippingPolicy
}

// NewService builds the cart service.
func NewService(tx txRunner, repo CartRepository, products productLoader, couponRepo couponLoader, shipping ShippingPolicy) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon loader required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		products: products,
		coupons:  couponRepo,
		shipping: shipping,
	}, nil
}

func (s *service) Get(ctx context.Context, owner Owner) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyView(), nil
		}
		return nil, err
	}
	return buildView(cart), nil
}

func (s *service) AddItem(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindOrCreateByOwner(ctx, owner)
		if err != nil {
			return err
		}
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return err
		}
		if !product.Available() {
			return pkgerrors.New(pkgerrors.CodeUnavailable, "product is not available")
		}

		requested := quantity
		line, err := repo.FindItemByProduct(ctx, cart.ID, productID)
		switch {
		case err == nil:
			requested += line.Quantity
			if requested > product.StockQuantity {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock for requested quantity")
			}
			line.Quantity = requested
			if err := repo.SaveItem(ctx, line); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if requested > product.StockQuantity {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock for requested quantity")
			}
			fresh := models.CartItem{
				CartID:    cart.ID,
				ProductID: productID,
				Quantity:  requested,
				Price:     product.Price,
			}
			if err := repo.SaveItem(ctx, &fresh); err != nil {
				return err
			}
		default:
			return err
		}

		view, err = s.recompute(ctx, repo, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return s.RemoveItem(ctx, owner, itemID)
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindByOwner(ctx, owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return err
		}
		line, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return err
		}
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if quantity > product.StockQuantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock for requested quantity")
		}
		line.Quantity = quantity
		if err := repo.SaveItem(ctx, line); err != nil {
			return err
		}

		view, err = s.recompute(ctx, repo, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindByOwner(ctx, owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return err
		}
		if err := repo.DeleteItem(ctx, cart.ID, itemID); err != nil {
			return err
		}

		view, err = s.recompute(ctx, repo, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) Clear(ctx context.Context, owner Owner) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindByOwner(ctx, owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				view = emptyView()
				return nil
			}
			return err
		}
		if err := repo.DeleteItems(ctx, cart.ID); err != nil {
			return err
		}
		cart.CouponID = nil
		cart.CouponDiscount = decimal.Zero
		cart.ShippingCost = decimal.Zero
		if err := repo.Save(ctx, cart); err != nil {
			return err
		}
		cart.Items = nil
		view = buildView(cart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ApplyCoupon validates the code against the cart. Invalid codes do not
// error; they report applied=false so the storefront can render the message
// inline.
func (s *service) ApplyCoupon(ctx context.Context, owner Owner, code string) (*View, bool, error) {
	if err := owner.Validate(); err != nil {
		return nil, false, err
	}

	var (
		view    *View
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindByOwner(ctx, owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				view = emptyView()
				return nil
			}
			return err
		}

		coupon, err := s.coupons.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				view = buildView(cart)
				return nil
			}
			return err
		}
		if _, err := coupons.Evaluate(coupon, cart, time.Now()); err != nil {
			view = buildView(cart)
			return nil
		}

		cart.CouponID = &coupon.ID
		cart.Coupon = coupon
		applied = true

		view, err = s.persistTotals(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return view, applied, nil
}

// Merge folds the anonymous session cart into the user's cart after login.
// Quantities for shared products sum; the session cart is discarded.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, sessionKey string) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	sessionOwner := SessionOwner(sessionKey)
	if err := sessionOwner.Validate(); err != nil {
		return nil, err
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sessionCart, err := repo.FindByOwner(ctx, sessionOwner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				view, err = s.recompute(ctx, repo, UserOwner(userID))
				return err
			}
			return err
		}

		userCart, err := repo.FindOrCreateByOwner(ctx, UserOwner(userID))
		if err != nil {
			return err
		}

		for _, item := range sessionCart.Items {
			item := item
			existing, err := repo.FindItemByProduct(ctx, userCart.ID, item.ProductID)
			switch {
			case err == nil:
				existing.Quantity += item.Quantity
				if err := repo.SaveItem(ctx, existing); err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				moved := models.CartItem{
					CartID:    userCart.ID,
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
					Price:     item.Price,
				}
				if err := repo.SaveItem(ctx, &moved); err != nil {
					return err
				}
			default:
				return err
			}
		}

		if err := repo.Delete(ctx, sessionCart.ID); err != nil {
			return err
		}

		view, err = s.recompute(ctx, repo, UserOwner(userID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// recompute reloads the cart and persists fresh totals.
func (s *service) recompute(ctx context.Context, repo CartRepository, owner Owner) (*View, error) {
	cart, err := repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyView(), nil
		}
		return nil, err
	}
	return s.persistTotals(ctx, repo, cart)
}

// persistTotals re-evaluates the attached coupon, prices shipping, and writes
// the result back to the cart header. A coupon that stopped being valid is
// dropped silently.
func (s *service) persistTotals(ctx context.Context, repo CartRepository, cart *models.Cart) (*View, error) {
	discount := decimal.Zero
	freeShipping := false

	if cart.CouponID != nil {
		coupon := cart.Coupon
		if coupon == nil {
			loaded, err := s.coupons.FindByID(ctx, *cart.CouponID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			coupon = loaded
		}
		eval, err := coupons.Evaluate(coupon, cart, time.Now())
		if err != nil {
			cart.CouponID = nil
			cart.Coupon = nil
		} else {
			discount = eval.Discount
			freeShipping = eval.FreeShipping
		}
	}

	subtotal := cart.Subtotal()
	shipping := s.shipping.FlatCost
	if len(cart.Items) == 0 {
		shipping = decimal.Zero
	} else if freeShipping || subtotal.GreaterThanOrEqual(s.shipping.FreeThreshold) {
		shipping = decimal.Zero
	}

	cart.CouponDiscount = discount
	cart.ShippingCost = shipping
	if err := repo.Save(ctx, cart); err != nil {
		return nil, err
	}
	return buildView(cart), nil
}

func buildView(cart *models.Cart) *View {
	return &View{
		Cart:     cart,
		Subtotal: cart.Subtotal(),
		Discount: cart.CouponDiscount,
		Shipping: cart.ShippingCost,
		Total:    cart.Total(),
	}
}

func emptyView() *View {
	return &View{
		Cart:     nil,
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Shipping: decimal.Zero,
		Total:    decimal.Zero,
	}
}
