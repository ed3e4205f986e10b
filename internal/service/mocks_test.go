package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Vkt5451/Main-Street-2026-Backend/domain"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/provider"
	r "github.com/Vkt5451/Main-Street-2026-Backend/internal/repository"
)

// MockRepository implements r.RepoInterface in memory for testing.
// Transitions follow the real state machine so reconciliation tests
// exercise the same semantics the postgres repository enforces.
type MockRepository struct {
	mu sync.Mutex

	Orders    map[uuid.UUID]*domain.Order
	Processed map[string]bool
	Outbox    []string // event types, in commit order

	CreateErr     error
	AttachErr     error
	TransitionErr error
	CheckErr      error
	MarkErr       error

	CreatedOrder    *domain.Order
	TransitionCalls int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		Orders:    make(map[uuid.UUID]*domain.Order),
		Processed: make(map[string]bool),
	}
}

func (m *MockRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, exists := m.Orders[order.ID]; exists {
		return r.ErrDuplicateOrder
	}
	clone := *order
	m.Orders[order.ID] = &clone
	m.CreatedOrder = &clone
	return nil
}

func (m *MockRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.Orders[id]
	if !ok {
		return nil, r.ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

func (m *MockRepository) AttachSessionRef(_ context.Context, id uuid.UUID, sessionRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AttachErr != nil {
		return m.AttachErr
	}
	order, ok := m.Orders[id]
	if !ok {
		return r.ErrOrderNotFound
	}
	if order.SessionRef == "" {
		order.SessionRef = sessionRef
	}
	return nil
}

func (m *MockRepository) TransitionOrder(_ context.Context, id uuid.UUID, target domain.OrderStatus, reason string) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionCalls++
	if m.TransitionErr != nil {
		return nil, false, m.TransitionErr
	}
	order, ok := m.Orders[id]
	if !ok {
		return nil, false, r.ErrOrderNotFound
	}
	if !domain.CanTransitionTo(order.Status, target) {
		clone := *order
		return &clone, false, nil
	}
	order.Status = target
	if target == domain.OrderStatusFailed {
		order.FailureReason = reason
	} else {
		order.FailureReason = ""
	}
	eventType := "order.failed"
	if target == domain.OrderStatusPaid {
		eventType = "order.paid"
	}
	m.Outbox = append(m.Outbox, eventType)
	clone := *order
	return &clone, true, nil
}

func (m *MockRepository) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CheckErr != nil {
		return false, m.CheckErr
	}
	return m.Processed[eventID], nil
}

func (m *MockRepository) MarkEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return false, m.MarkErr
	}
	if m.Processed[eventID] {
		return false, nil
	}
	m.Processed[eventID] = true
	return true, nil
}

func (m *MockRepository) GetUnpublishedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	return nil, nil
}

func (m *MockRepository) MarkEventPublished(context.Context, int64) error {
	return nil
}

func (m *MockRepository) RunMigrations(*r.Credentials) error {
	return nil
}

func (m *MockRepository) Close() error {
	return nil
}

// MockProviderClient implements provider.Client for testing
type MockProviderClient struct {
	Session      *provider.Session
	CreateErr    error
	CapturedSpec *provider.SessionSpec
	CreateCalls  int

	Event     *provider.Event
	VerifyErr error
}

func (m *MockProviderClient) CreateSession(_ context.Context, spec *provider.SessionSpec) (*provider.Session, error) {
	m.CreateCalls++
	m.CapturedSpec = spec
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return m.Session, nil
}

func (m *MockProviderClient) VerifyEvent(_ []byte, _ string) (*provider.Event, error) {
	if m.VerifyErr != nil {
		return nil, m.VerifyErr
	}
	return m.Event, nil
}

// MockEventCache implements cache.EventCache for testing
type MockEventCache struct {
	mu      sync.Mutex
	Events  map[string]bool
	SeenErr error
	MarkErr error
}

func NewMockEventCache() *MockEventCache {
	return &MockEventCache{Events: make(map[string]bool)}
}

func (m *MockEventCache) Seen(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SeenErr != nil {
		return false, m.SeenErr
	}
	return m.Events[eventID], nil
}

func (m *MockEventCache) MarkSeen(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.Events[eventID] = true
	return nil
}
