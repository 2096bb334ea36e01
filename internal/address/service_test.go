package address

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/dbtest"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(gormTxRunner{db: db}, NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func sampleInput() Input {
	return Input{
		FirstName: "Afi",
		LastName:  "Mensah",
		Phone:     "+22890112233",
		Line1:     "Rue des Cocotiers 12",
		City:      "Lomé",
	}
}

func TestCreateFirstAddressBecomesDefault(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	svc := newService(t, db)
	userID := uuid.New()

	created, err := svc.Create(ctx, userID, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.IsDefault {
		t.Fatal("first address must become the default")
	}
	if created.Country != "Togo" {
		t.Fatalf("expected default country, got %q", created.Country)
	}
}

func TestDefaultIsExclusive(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	svc := newService(t, db)
	userID := uuid.New()

	first, err := svc.Create(ctx, userID, sampleInput())
	if err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := sampleInput()
	second.Line1 = "Boulevard du 13 Janvier 4"
	second.IsDefault = true
	if _, err := svc.Create(ctx, userID, second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	reloaded, err := svc.Get(ctx, first.ID, userID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if reloaded.IsDefault {
		t.Fatal("previous default must be demoted")
	}

	all, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defaults := 0
	for _, addr := range all {
		if addr.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}
}

func TestAddressesAreScopedToOwner(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	svc := newService(t, db)
	owner := uuid.New()
	stranger := uuid.New()

	created, err := svc.Create(ctx, owner, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Get(ctx, created.ID, stranger)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}

	err = svc.Delete(ctx, created.ID, stranger)
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found deleting foreign address, got %v", err)
	}

	if err := svc.Delete(ctx, created.ID, owner); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	svc := newService(t, db)

	input := sampleInput()
	input.City = "  "
	_, err := svc.Create(context.Background(), uuid.New(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
