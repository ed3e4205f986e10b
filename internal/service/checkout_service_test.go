package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vkt5451/Main-Street-2026-Backend/domain"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/cart"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/provider"
)

func burgerCart() []cart.RawItem {
	return []cart.RawItem{
		{Name: "Burger", Price: "$8.50", Quantity: 2},
	}
}

func TestInitiateCheckout_HappyPath(t *testing.T) {
	repo := NewMockRepository()
	client := &MockProviderClient{
		Session: &provider.Session{ID: "cs_123", URL: "https://pay.example.com/cs_123"},
	}
	svc := NewCheckoutService(repo, client, "https://shop.example.com/thanks", "https://shop.example.com/menu")

	resp, err := svc.InitiateCheckout(context.Background(), &CheckoutRequest{
		Items:         burgerCart(),
		CustomerEmail: "guest@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/cs_123", resp.CheckoutURL)

	orderID, err := uuid.Parse(resp.OrderID)
	require.NoError(t, err)

	order, err := repo.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(1700), order.TotalCents)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "cs_123", order.SessionRef)
}

func TestInitiateCheckout_MetadataCarriesOnlyOrderID(t *testing.T) {
	repo := NewMockRepository()
	client := &MockProviderClient{
		Session: &provider.Session{ID: "cs_123", URL: "https://pay.example.com/cs_123"},
	}
	svc := NewCheckoutService(repo, client, "s", "c")

	resp, err := svc.InitiateCheckout(context.Background(), &CheckoutRequest{Items: burgerCart()})
	require.NoError(t, err)

	require.NotNil(t, client.CapturedSpec)
	assert.Equal(t, map[string]string{provider.MetadataOrderID: resp.OrderID}, client.CapturedSpec.Metadata)
	require.Len(t, client.CapturedSpec.LineItems, 1)
	assert.Equal(t, int64(850), client.CapturedSpec.LineItems[0].UnitAmount)
	assert.Equal(t, int32(2), client.CapturedSpec.LineItems[0].Quantity)
}

func TestInitiateCheckout_TotalIgnoresClientValue(t *testing.T) {
	// a forged cheap total must not survive normalization
	repo := NewMockRepository()
	client := &MockProviderClient{
		Session: &provider.Session{ID: "cs_123", URL: "https://pay.example.com"},
	}
	svc := NewCheckoutService(repo, client, "s", "c")

	_, err := svc.InitiateCheckout(context.Background(), &CheckoutRequest{
		Items: []cart.RawItem{
			{Name: "Burger", Price: json.Number("8.50"), Quantity: 2},
			{Name: "Soda", Price: json.Number("2.25"), Quantity: 2},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2150), repo.CreatedOrder.TotalCents)
}

func TestInitiateCheckout_EmptyCart(t *testing.T) {
	repo := NewMockRepository()
	svc := NewCheckoutService(repo, &MockProviderClient{}, "s", "c")

	_, err := svc.InitiateCheckout(context.Background(), &CheckoutRequest{Items: nil})

	assert.ErrorIs(t, err, cart.ErrEmptyCart)
	assert.Nil(t, repo.CreatedOrder, "no order may exist for a rejected cart")
}

func TestInitiateCheckout_ProviderFailureLeavesPendingOrder(t *testing.T) {
	repo := NewMockRepository()
	client := &MockProviderClient{CreateErr: provider.ErrUnavailable}
	svc := NewCheckoutService(repo, client, "s", "c")

	_, err := svc.InitiateCheckout(context.Background(), &CheckoutRequest{Items: burgerCart()})

	assert.ErrorIs(t, err, provider.ErrUnavailable)
	require.NotNil(t, repo.CreatedOrder)
	assert.Equal(t, domain.OrderStatusPending, repo.CreatedOrder.Status)
	assert.Empty(t, repo.CreatedOrder.SessionRef)
}

func TestInitiateCheckout_RepositoryError(t *testing.T) {
	repo := NewMockRepository()
	repo.CreateErr = errors.New("repository error")
	client := &MockProviderClient{}
	svc := NewCheckoutService(repo, client, "s", "c")

	_, err := svc.InitiateCheckout(context.Background(), &CheckoutRequest{Items: burgerCart()})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create order")
	assert.Zero(t, client.CreateCalls, "no provider call without a persisted order")
}

func TestInitiateCheckout_AttachFailureStillReturnsURL(t *testing.T) {
	repo := NewMockRepository()
	repo.AttachErr = errors.New("attach failed")
	client := &MockProviderClient{
		Session: &provider.Session{ID: "cs_123", URL: "https://pay.example.com/cs_123"},
	}
	svc := NewCheckoutService(repo, client, "s", "c")

	resp, err := svc.InitiateCheckout(context.Background(), &CheckoutRequest{Items: burgerCart()})

	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/cs_123", resp.CheckoutURL)
}

func TestInitiateCheckout_ConcurrentDuplicatesCollapse(t *testing.T) {
	repo := NewMockRepository()
	block := make(chan struct{})
	client := &blockingProviderClient{
		release: block,
		called:  make(chan struct{}),
		session: &provider.Session{ID: "cs_123", URL: "https://pay.example.com/cs_123"},
	}
	svc := NewCheckoutService(repo, client, "s", "c")

	const workers = 4
	responses := make([]*CheckoutResponse, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], errs[i] = svc.InitiateCheckout(context.Background(), &CheckoutRequest{
				Items:          burgerCart(),
				IdempotencyKey: "retry-storm",
			})
		}(i)
	}

	// the leader is parked inside the provider call; give the rest time to
	// join its flight before letting it finish
	client.waitForFirstCall(t)
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, responses[0].OrderID, responses[i].OrderID)
	}
	assert.Len(t, repo.Orders, 1)
}

// blockingProviderClient parks CreateSession until released, so tests can
// hold a checkout in flight.
type blockingProviderClient struct {
	release chan struct{}
	session *provider.Session
	called  chan struct{}
	once    sync.Once
}

func (c *blockingProviderClient) CreateSession(ctx context.Context, _ *provider.SessionSpec) (*provider.Session, error) {
	c.once.Do(func() {
		if c.called != nil {
			close(c.called)
		}
	})
	select {
	case <-c.release:
		return c.session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *blockingProviderClient) VerifyEvent([]byte, string) (*provider.Event, error) {
	return nil, provider.ErrInvalidSignature
}

func (c *blockingProviderClient) waitForFirstCall(t *testing.T) {
	t.Helper()
	select {
	case <-c.called:
	case <-time.After(5 * time.Second):
		t.Fatal("provider was never called")
	}
}
