package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/universepro/estore-backend/api/middleware"
	"github.com/universepro/estore-backend/internal/cart"
	pkgerrors "github.com/universepro/estore-backend/pkg/errors"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}

// cartOwnerFromRequest resolves the cart identity: an authenticated user when
// a token was presented, otherwise the anonymous session key.
func cartOwnerFromRequest(r *http.Request) (cart.Owner, error) {
	if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return cart.Owner{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
		}
		return cart.UserOwner(userID), nil
	}
	if key := middleware.SessionKeyFromContext(r.Context()); key != "" {
		return cart.SessionOwner(key), nil
	}
	return cart.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "a bearer token or X-Session-Key header is required")
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

func orderNumberParam(r *http.Request) (string, error) {
	number := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	if number == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	return number, nil
}
