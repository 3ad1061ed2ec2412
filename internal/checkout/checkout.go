// Package checkout bridges the cart to the external order service. Before
// anything is charged, the cached identity is compared with the identity
// the remote side verifies for the current session, so an order can never
// be written under the wrong owner.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/remote"
)

// Verifier returns the user id the remote side authenticates for the
// current session. A rejected session yields model.ErrSessionExpired.
type Verifier interface {
	VerifySession(ctx context.Context) (string, error)
}

// Processor charges an order.
type Processor interface {
	PlaceOrder(ctx context.Context, o remote.Order) (remote.Receipt, error)
}

// Request is the final cart handed to checkout.
type Request struct {
	OrderID         string
	UserID          string
	Lines           []model.CartLine
	DiscountPercent int
}

// Service runs checkouts.
type Service struct {
	verifier  Verifier
	processor Processor
}

// NewService creates a checkout service.
func NewService(v Verifier, p Processor) *Service {
	return &Service{verifier: v, processor: p}
}

// BuildOrder computes the order totals for a request.
func BuildOrder(req Request) remote.Order {
	subtotal := model.CartTotal(req.Lines)
	return remote.Order{
		ID:              req.OrderID,
		UserID:          req.UserID,
		Lines:           model.CloneLines(req.Lines),
		DiscountPercent: req.DiscountPercent,
		SubtotalCents:   subtotal,
		TotalCents:      model.ApplyDiscount(subtotal, req.DiscountPercent),
	}
}

// Place verifies the session owner and charges the order.
//
// Errors:
//   - VALIDATION (model.ErrEmptyCart) before any I/O
//   - SESSION_EXPIRED when the verified user differs from req.UserID or the
//     session is rejected; nothing is charged
//   - REMOTE_FETCH when verification itself fails
//   - REMOTE_WRITE when the charge fails
func (s *Service) Place(ctx context.Context, req Request) (remote.Receipt, error) {
	if len(req.Lines) == 0 {
		return remote.Receipt{}, model.NewValidationError("checkout", model.ErrEmptyCart)
	}

	verified, err := s.verifier.VerifySession(ctx)
	if err != nil {
		if errors.Is(err, model.ErrSessionExpired) {
			return remote.Receipt{}, sessionExpired(err)
		}
		return remote.Receipt{}, model.NewRemoteFetchError("verify session", err)
	}
	if verified != req.UserID {
		slog.Warn("checkout session mismatch", "cached", req.UserID, "verified", verified)
		return remote.Receipt{}, sessionExpired(fmt.Errorf("verified %q, cached %q: %w", verified, req.UserID, model.ErrSessionExpired))
	}

	order := BuildOrder(req)
	receipt, err := s.processor.PlaceOrder(ctx, order)
	if err != nil {
		return remote.Receipt{}, model.NewRemoteWriteError("place order", err)
	}
	slog.Info("order placed", "order", receipt.OrderID, "user", req.UserID, "total_cents", order.TotalCents)
	return receipt, nil
}

func sessionExpired(err error) error {
	return &model.Error{Code: model.CodeSessionExpired, Op: "checkout", Err: err}
}
