package service

import (
	"context"
	"sync"
	"time"

	"github.com/printdesk/backend/internal/model"
	"github.com/printdesk/backend/internal/repository"
	"github.com/printdesk/backend/internal/totalsync"
)

// mockDocumentRepository は DocumentRepository のモック
type mockDocumentRepository struct {
	getByIDFunc            func(ctx context.Context, id string) (*model.Document, error)
	updateTotalsFunc       func(ctx context.Context, id string, totals *model.DocumentTotals) error
	updateDiscountModeFunc func(ctx context.Context, id, mode string) error
}

func (m *mockDocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockDocumentRepository) UpdateTotals(ctx context.Context, id string, totals *model.DocumentTotals) error {
	if m.updateTotalsFunc != nil {
		return m.updateTotalsFunc(ctx, id, totals)
	}
	return nil
}

func (m *mockDocumentRepository) UpdateDiscountMode(ctx context.Context, id, mode string) error {
	if m.updateDiscountModeFunc != nil {
		return m.updateDiscountModeFunc(ctx, id, mode)
	}
	return nil
}

// mockLineItemRepository は LineItemRepository のモック
type mockLineItemRepository struct {
	listByDocumentIDFunc   func(ctx context.Context, documentID string) ([]*model.LineItem, error)
	createFunc             func(ctx context.Context, item *model.LineItem) (*model.DocumentTotals, error)
	updateByOrderFunc      func(ctx context.Context, documentID string, displayOrder int, item *model.LineItem) (*model.DocumentTotals, error)
	deleteFunc             func(ctx context.Context, id string) (*model.DocumentTotals, error)
	updateDisplayOrderFunc func(ctx context.Context, id string, order int) ([]*model.LineItem, error)
}

func (m *mockLineItemRepository) ListByDocumentID(ctx context.Context, documentID string) ([]*model.LineItem, error) {
	if m.listByDocumentIDFunc != nil {
		return m.listByDocumentIDFunc(ctx, documentID)
	}
	return nil, nil
}

func (m *mockLineItemRepository) Create(ctx context.Context, item *model.LineItem) (*model.DocumentTotals, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, item)
	}
	return &model.DocumentTotals{}, nil
}

func (m *mockLineItemRepository) UpdateByOrder(ctx context.Context, documentID string, displayOrder int, item *model.LineItem) (*model.DocumentTotals, error) {
	if m.updateByOrderFunc != nil {
		return m.updateByOrderFunc(ctx, documentID, displayOrder, item)
	}
	return &model.DocumentTotals{}, nil
}

func (m *mockLineItemRepository) Delete(ctx context.Context, id string) (*model.DocumentTotals, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return &model.DocumentTotals{}, nil
}

func (m *mockLineItemRepository) UpdateDisplayOrder(ctx context.Context, id string, order int) ([]*model.LineItem, error) {
	if m.updateDisplayOrderFunc != nil {
		return m.updateDisplayOrderFunc(ctx, id, order)
	}
	return nil, nil
}

// mockReferenceRepository は ReferenceRepository のモック
type mockReferenceRepository struct {
	listUnitsFunc     func(ctx context.Context) ([]*model.Unit, error)
	listMaterialsFunc func(ctx context.Context) ([]*model.Material, error)
}

func (m *mockReferenceRepository) ListUnits(ctx context.Context) ([]*model.Unit, error) {
	if m.listUnitsFunc != nil {
		return m.listUnitsFunc(ctx)
	}
	return []*model.Unit{
		{Key: "in", Label: "Inches", AreaFactor: 1.0 / 144},
		{Key: "ft", Label: "Feet", AreaFactor: 1},
	}, nil
}

func (m *mockReferenceRepository) ListMaterials(ctx context.Context) ([]*model.Material, error) {
	if m.listMaterialsFunc != nil {
		return m.listMaterialsFunc(ctx)
	}
	return []*model.Material{{Key: "vinyl", Name: "Vinyl", Throughput: 5}}, nil
}

// manualClock は fire が呼ばれるまでタイマーを発火しない Clock
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	clock *manualClock
	f     func()
	done  bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) totalsync.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

func (c *manualClock) fire() {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.done {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}
