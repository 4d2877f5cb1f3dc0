package inventory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/db"
	"github.com/kanishkgandecha/medilink/internal/platform/notification"
)

type mockRepo struct {
	items map[uuid.UUID]*Item
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Item)}
}

func (m *mockRepo) Create(_ context.Context, i *Item) error {
	i.ID = uuid.New()
	i.CreatedAt = time.Now()
	m.items[i.ID] = i
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Item, error) {
	i, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("inventory item", id.String())
	}
	cp := *i
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, i *Item) error {
	if _, ok := m.items[i.ID]; !ok {
		return apperr.NotFound("inventory item", i.ID.String())
	}
	m.items[i.ID] = i
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]*Item, int, error) {
	var result []*Item
	for _, i := range m.items {
		if f.Category != "" && i.Category != f.Category {
			continue
		}
		result = append(result, i)
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByNameAndCategory(_ context.Context, name, category string) ([]*Item, error) {
	var result []*Item
	for _, i := range m.items {
		if strings.Contains(strings.ToLower(i.Name), strings.ToLower(name)) && (category == "" || i.Category == category) {
			result = append(result, i)
		}
	}
	sort.Slice(result, func(a, b int) bool { return result[a].Name < result[b].Name })
	return result, nil
}

func (m *mockRepo) ListByStatus(_ context.Context, statuses ...string) ([]*Item, error) {
	var result []*Item
	for _, i := range m.items {
		for _, s := range statuses {
			if i.Status == s {
				result = append(result, i)
			}
		}
	}
	return result, nil
}

func (m *mockRepo) ListExpired(_ context.Context, now time.Time) ([]*Item, error) {
	var result []*Item
	for _, i := range m.items {
		if i.ExpiryDate != nil && i.ExpiryDate.Before(now) {
			result = append(result, i)
		}
	}
	return result, nil
}

func (m *mockRepo) RecordUsage(_ context.Context, id uuid.UUID, qty int) (*Item, error) {
	i, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("inventory item", id.String())
	}
	if i.Quantity < qty {
		return nil, ErrInsufficientStock
	}
	i.Quantity -= qty
	cp := *i
	return &cp, nil
}

func (m *mockRepo) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	m.items[id].Status = status
	return nil
}

type recordingNotifier struct {
	kinds []string
	data  []map[string]string
}

func (r *recordingNotifier) Notify(_ context.Context, kind string, data map[string]string, _ interface{}) error {
	r.kinds = append(r.kinds, kind)
	r.data = append(r.data, data)
	return nil
}

func newTestService() (*Service, *mockRepo, *recordingNotifier) {
	repo := newMockRepo()
	n := &recordingNotifier{}
	svc := NewService(repo, db.NoTx{}, n, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
	return svc, repo, n
}

func TestService_CreateItem_DerivesStatus(t *testing.T) {
	svc, _, n := newTestService()
	i := &Item{Name: "Paracetamol 500mg", Category: CategoryMedicine, Quantity: 100, ReorderLevel: 20}
	if err := svc.CreateItem(context.Background(), i); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if i.Status != StatusAvailable {
		t.Errorf("expected available, got %s", i.Status)
	}
	if len(n.kinds) != 0 {
		t.Errorf("expected no alert, got %v", n.kinds)
	}

	low := &Item{Name: "Insulin", Category: CategoryMedicine, Quantity: 2, ReorderLevel: 5}
	svc.CreateItem(context.Background(), low)
	if low.Status != StatusLowStock {
		t.Errorf("expected low-stock, got %s", low.Status)
	}
	if len(n.kinds) != 1 || n.kinds[0] != notification.KindLowStock {
		t.Errorf("expected low stock alert, got %v", n.kinds)
	}
}

func TestService_CreateItem_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.CreateItem(context.Background(), &Item{Name: "Thing", Category: "toys"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_RecordUsage_CrossesReorderLevel(t *testing.T) {
	svc, repo, n := newTestService()
	i := &Item{Name: "Amoxicillin", Category: CategoryMedicine, Quantity: 15, ReorderLevel: 10}
	svc.CreateItem(context.Background(), i)

	got, err := svc.RecordUsage(context.Background(), i.ID, Usage{Quantity: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Quantity != 12 || got.Status != StatusAvailable {
		t.Errorf("unexpected item after first usage: %+v", got)
	}
	if len(n.kinds) != 0 {
		t.Fatalf("expected no alert yet, got %v", n.kinds)
	}

	got, err = svc.RecordUsage(context.Background(), i.ID, Usage{Quantity: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusLowStock || repo.items[i.ID].Status != StatusLowStock {
		t.Errorf("expected low-stock persisted, got %s", repo.items[i.ID].Status)
	}
	if len(n.kinds) != 1 || n.data[0]["quantity"] != "8" {
		t.Fatalf("expected one alert with quantity 8, got %v", n.data)
	}

	// Already low: no repeat alert.
	svc.RecordUsage(context.Background(), i.ID, Usage{Quantity: 1})
	if len(n.kinds) != 1 {
		t.Errorf("expected no repeat alert, got %d", len(n.kinds))
	}
}

func TestService_RecordUsage_RejectsOverdraw(t *testing.T) {
	svc, repo, _ := newTestService()
	i := &Item{Name: "Syringe", Category: CategorySupplies, Quantity: 5, ReorderLevel: 1}
	svc.CreateItem(context.Background(), i)

	_, err := svc.RecordUsage(context.Background(), i.ID, Usage{Quantity: 6})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if apperr.Status(err) != 409 {
		t.Errorf("expected 409, got %d", apperr.Status(err))
	}
	if repo.items[i.ID].Quantity != 5 {
		t.Errorf("expected quantity unchanged, got %d", repo.items[i.ID].Quantity)
	}

	if _, err := svc.RecordUsage(context.Background(), i.ID, Usage{Quantity: 0}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for zero quantity, got %v", err)
	}
}

func TestService_RecordUsage_ToZero(t *testing.T) {
	svc, _, n := newTestService()
	i := &Item{Name: "Bandage", Category: CategorySupplies, Quantity: 2, ReorderLevel: 0}
	svc.CreateItem(context.Background(), i)

	got, err := svc.RecordUsage(context.Background(), i.ID, Usage{Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusOutOfStock {
		t.Errorf("expected out-of-stock, got %s", got.Status)
	}
	if len(n.kinds) != 1 {
		t.Errorf("expected one alert, got %d", len(n.kinds))
	}
}

func TestService_ListLowStockAndExpired(t *testing.T) {
	svc, _, _ := newTestService()
	past := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.CreateItem(context.Background(), &Item{Name: "A", Category: CategoryMedicine, Quantity: 0, ReorderLevel: 5})
	svc.CreateItem(context.Background(), &Item{Name: "B", Category: CategoryMedicine, Quantity: 3, ReorderLevel: 5})
	svc.CreateItem(context.Background(), &Item{Name: "C", Category: CategoryMedicine, Quantity: 50, ReorderLevel: 5, ExpiryDate: &past})
	svc.CreateItem(context.Background(), &Item{Name: "D", Category: CategoryMedicine, Quantity: 50, ReorderLevel: 5})

	low, _ := svc.ListLowStock(context.Background())
	if len(low) != 2 {
		t.Errorf("expected 2 low stock items, got %d", len(low))
	}
	expired, _ := svc.ListExpired(context.Background())
	if len(expired) != 1 || expired[0].Name != "C" {
		t.Errorf("expected C expired, got %v", expired)
	}
}
