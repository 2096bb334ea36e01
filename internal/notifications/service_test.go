package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/universepro/estore-backend/pkg/db/dbtest"
	"github.com/universepro/estore-backend/pkg/db/models"
	"github.com/universepro/estore-backend/pkg/enums"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

func newService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedNotification(t *testing.T, db *gorm.DB, userID uuid.UUID, createdAt time.Time, read bool) *models.Notification {
	t.Helper()
	n := models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      enums.NotificationTypeOrder,
		Title:     "Order received",
		Message:   "We received your order.",
		CreatedAt: createdAt,
	}
	if read {
		at := createdAt.Add(time.Minute)
		n.ReadAt = &at
	}
	if err := db.Create(&n).Error; err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return &n
}

func TestListPagesAndFiltersUnread(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	svc := newService(t, db)
	userID := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		seedNotification(t, db, userID, base.Add(time.Duration(i)*time.Minute), i%2 == 0)
	}
	seedNotification(t, db, uuid.New(), base, false)

	page, err := svc.List(ctx, userID, ListOptions{Limit: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 3 || page.Cursor == "" {
		t.Fatalf("expected full page with cursor, got %d items cursor=%q", len(page.Items), page.Cursor)
	}

	rest, err := svc.List(ctx, userID, ListOptions{Limit: 3, Cursor: page.Cursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(rest.Items) != 1 || rest.Cursor != "" {
		t.Fatalf("expected final page, got %d items cursor=%q", len(rest.Items), rest.Cursor)
	}

	unread, err := svc.List(ctx, userID, ListOptions{UnreadOnly: true})
	if err != nil {
		t.Fatalf("unread list: %v", err)
	}
	if len(unread.Items) != 2 {
		t.Fatalf("expected 2 unread, got %d", len(unread.Items))
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	svc := newService(t, db)
	userID := uuid.New()
	n := seedNotification(t, db, userID, time.Now(), false)

	if err := svc.MarkRead(ctx, userID, n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	// marking again is a no-op success
	if err := svc.MarkRead(ctx, userID, n.ID); err != nil {
		t.Fatalf("second mark read: %v", err)
	}

	err := svc.MarkRead(ctx, uuid.New(), n.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	svc := newService(t, db)
	userID := uuid.New()

	seedNotification(t, db, userID, time.Now().Add(-2*time.Minute), false)
	seedNotification(t, db, userID, time.Now().Add(-time.Minute), false)
	seedNotification(t, db, userID, time.Now(), true)

	count, err := svc.MarkAllRead(ctx, userID)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stamped rows, got %d", count)
	}

	unread, err := svc.List(ctx, userID, ListOptions{UnreadOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unread.Items) != 0 {
		t.Fatalf("expected no unread left, got %d", len(unread.Items))
	}
}
