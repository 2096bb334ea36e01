package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/models"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input carries the fields a user may set on an address.
type Input struct {
	FirstName  string  `json:"first_name" validate:"required"`
	LastName   string  `json:"last_name" validate:"required"`
	Phone      string  `json:"phone" validate:"required"`
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2"`
	City       string  `json:"city" validate:"required"`
	State      *string `json:"state"`
	PostalCode *string `json:"postal_code"`
	Country    string  `json:"country"`
	IsDefault  bool    `json:"is_default"`
}

// Service exposes address CRUD scoped to one user.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*models.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error)
	Update(ctx context.Context, id, userID uuid.UUID, input Input) (*models.Address, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type service struct {
	tx   txRunner
	repo AddressRepository
}

// NewService builds the address service.
func NewService(tx txRunner, repo AddressRepository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Get(ctx context.Context, id, userID uuid.UUID) (*models.Address, error) {
	addr, err := s.repo.FindForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, err
	}
	return addr, nil
}

// Create saves a new address. A first address becomes the default even when
// the caller did not ask; a new default demotes the previous one.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}

	var created *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		isDefault := input.IsDefault || len(existing) == 0
		if isDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}

		addr := FromInput(userID, input)
		addr.IsDefault = isDefault
		if err := repo.Create(ctx, addr); err != nil {
			return err
		}
		created = addr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id, userID uuid.UUID, input Input) (*models.Address, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}

	var updated *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		addr, err := repo.FindForUser(ctx, id, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
			}
			return err
		}
		if input.IsDefault && !addr.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}

		next := FromInput(userID, input)
		next.ID = addr.ID
		next.IsDefault = input.IsDefault || addr.IsDefault
		if err := repo.Update(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	removed, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return nil
}

// ValidateInput checks the required address fields.
func ValidateInput(input Input) error {
	for field, value := range map[string]string{
		"first_name": input.FirstName,
		"last_name":  input.LastName,
		"phone":      input.Phone,
		"line1":      input.Line1,
		"city":       input.City,
	} {
		if strings.TrimSpace(value) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is required", field))
		}
	}
	return nil
}

// FromInput builds an Address row for the user from raw input, trimming
// whitespace and defaulting the country.
func FromInput(userID uuid.UUID, input Input) *models.Address {
	country := strings.TrimSpace(input.Country)
	if country == "" {
		country = "Togo"
	}
	return &models.Address{
		UserID:     userID,
		FirstName:  strings.TrimSpace(input.FirstName),
		LastName:   strings.TrimSpace(input.LastName),
		Phone:      strings.TrimSpace(input.Phone),
		Line1:      strings.TrimSpace(input.Line1),
		Line2:      input.Line2,
		City:       strings.TrimSpace(input.City),
		State:      input.State,
		PostalCode: input.PostalCode,
		Country:    country,
		IsDefault:  input.IsDefault,
	}
}
