package service

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"github.com/Vkt5451/Main-Street-2026-Backend/domain"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/cart"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/provider"
	r "github.com/Vkt5451/Main-Street-2026-Backend/internal/repository"
)

type CheckoutRequest struct {
	Items         []cart.RawItem
	CustomerEmail string
	// IdempotencyKey is optional. When set, concurrent requests carrying
	// the same key share one checkout instead of opening several. It does
	// not dedupe across instances or restarts; a client that retries after
	// the response was lost gets a fresh order, and the abandoned PENDING
	// one is swept by the external expiry job.
	IdempotencyKey string
}

type CheckoutResponse struct {
	OrderID     string
	CheckoutURL string
}

type CheckoutService interface {
	InitiateCheckout(ctx context.Context, request *CheckoutRequest) (*CheckoutResponse, error)
}

type CheckoutServiceImpl struct {
	repo       r.RepoInterface
	provider   provider.Client
	successURL string
	cancelURL  string
	inflight   singleflight.Group
}

func NewCheckoutService(repo r.RepoInterface, client provider.Client, successURL, cancelURL string) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		repo:       repo,
		provider:   client,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (s *CheckoutServiceImpl) InitiateCheckout(
	ctx context.Context,
	request *CheckoutRequest) (*CheckoutResponse, error) {

	items, err := cart.Normalize(request.Items)
	if err != nil {
		return nil, err
	}

	if request.IdempotencyKey == "" {
		return s.initiate(ctx, items, request.CustomerEmail)
	}

	result, err, shared := s.inflight.Do(request.IdempotencyKey, func() (any, error) {
		return s.initiate(ctx, items, request.CustomerEmail)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Printf("collapsed duplicate checkout request, idempotency_key = %v", request.IdempotencyKey)
	}
	return result.(*CheckoutResponse), nil
}

func (s *CheckoutServiceImpl) initiate(ctx context.Context, items []domain.OrderItem, customerEmail string) (*CheckoutResponse, error) {
	// The order row exists before the provider is contacted, so a session
	// the customer can pay against always has an order behind it. The
	// total is recomputed here from the normalized items; the client never
	// supplies it.
	order := domain.NewPendingOrder(items, customerEmail)
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	session, err := s.provider.CreateSession(ctx, s.sessionSpec(order))
	if err != nil {
		// the PENDING order stays behind with no session ref; the expiry
		// sweep reclaims it
		return nil, fmt.Errorf("failed to create payment session for order %s: %w", order.ID, err)
	}

	if err := s.repo.AttachSessionRef(ctx, order.ID, session.ID); err != nil {
		// the webhook resolves the order through metadata, not through the
		// ref, so a failed attach loses traceability but not correctness
		log.Printf("failed to attach session %v to order %v: %v", session.ID, order.ID, err)
	}

	return &CheckoutResponse{
		OrderID:     order.ID.String(),
		CheckoutURL: session.URL,
	}, nil
}

func (s *CheckoutServiceImpl) sessionSpec(order *domain.Order) *provider.SessionSpec {
	lineItems := make([]provider.LineItem, len(order.Items))
	for i, item := range order.Items {
		lineItems[i] = provider.LineItem{
			Name:       item.Name,
			UnitAmount: item.UnitPriceCents,
			Quantity:   item.Quantity,
			Currency:   order.Currency,
		}
	}
	return &provider.SessionSpec{
		LineItems:     lineItems,
		CustomerEmail: order.CustomerEmail,
		// the order id is the only metadata; the webhook must never need
		// client-influenced data echoed back by the provider
		Metadata:   map[string]string{provider.MetadataOrderID: order.ID.String()},
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	}
}
