package invoice

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/invoice-payments/internal"
	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetInvoice(ctx context.Context, id int64, principal *internal.Principal) (*View, error) {
	if principal == nil {
		return nil, internal.ErrUnauthenticated
	}

	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !principal.CanAccessCustomer(inv.CustomerID) {
		s.logger.Warn("invoice access denied", "invoice_id", id, "user_id", principal.UserID)
		return nil, internal.ErrForbiddenInvoice
	}

	return NewView(inv), nil
}

func (s *Service) ListPayments(ctx context.Context, id int64, principal *internal.Principal) ([]*paymentdm.Payment, error) {
	if _, err := s.GetInvoice(ctx, id, principal); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, id)
}
