package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/printdesk/backend/internal/model"
	"github.com/printdesk/backend/internal/pricing"
	"github.com/printdesk/backend/internal/repository"
	"github.com/printdesk/backend/internal/totalsync"
)

// totalsWriteTimeout bounds a single debounced totals write.
const totalsWriteTimeout = 10 * time.Second

// Editor is the editing session of one open document. All recomputation for
// the document runs under mu, so totals are never read half-updated.
type Editor struct {
	mu       sync.Mutex
	doc      *model.Document
	items    []*model.LineItem
	discount pricing.Discount
	resolver pricing.Resolver
	sync     *totalsync.Synchronizer
	log      *slog.Logger
}

// totals aggregates the current line items. Callers hold mu.
func (e *Editor) totals() pricing.Totals {
	return pricing.Aggregate(model.PricingLines(e.items), e.discount)
}

// sortItems keeps items in display order. Callers hold mu.
func (e *Editor) sortItems() {
	sort.SliceStable(e.items, func(i, j int) bool {
		return e.items[i].DisplayOrder < e.items[j].DisplayOrder
	})
}

func (e *Editor) itemByOrder(order int) (int, *model.LineItem) {
	for i, item := range e.items {
		if item.DisplayOrder == order {
			return i, item
		}
	}
	return -1, nil
}

func (e *Editor) itemByID(id string) (int, *model.LineItem) {
	for i, item := range e.items {
		if item.ID == id {
			return i, item
		}
	}
	return -1, nil
}

// reconcile adopts the totals echoed by the store after a line-item save.
// Callers hold mu.
func (e *Editor) reconcile(echo *model.DocumentTotals) {
	server := echo.Totals()
	if local := e.totals(); !local.Equal(server) {
		e.log.Warn("local totals differ from store", "fields", local.Diff(server))
	}
	e.discount = server.Discount(e.discount.Mode)
	e.sync.Reconcile(server)
}

func (e *Editor) logFallbacks(item *model.LineItem, fallbacks []pricing.Fallback) {
	for _, fb := range fallbacks {
		e.log.Warn("pricing fallback",
			"fallback", string(fb),
			"line_item_id", item.ID,
			"display_order", item.DisplayOrder,
			"unit", item.Unit,
			"material", item.Material,
		)
	}
}

// snapshotItems returns copies of the items. Callers hold mu.
func (e *Editor) snapshotItems() []*model.LineItem {
	out := make([]*model.LineItem, 0, len(e.items))
	for _, item := range e.items {
		c := *item
		out = append(out, &c)
	}
	return out
}

// documentTotalsWriter persists synchronizer output through DocumentRepository.
type documentTotalsWriter struct {
	repo repository.DocumentRepository
}

func (w documentTotalsWriter) WriteTotals(ctx context.Context, documentID string, t pricing.Totals) error {
	ctx, cancel := context.WithTimeout(ctx, totalsWriteTimeout)
	defer cancel()
	return w.repo.UpdateTotals(ctx, documentID, model.NewDocumentTotals(t))
}

// EditorRegistry maps document IDs to their open editors.
type EditorRegistry struct {
	mu      sync.Mutex
	editors map[string]*Editor
}

// NewEditorRegistry returns an empty registry.
func NewEditorRegistry() *EditorRegistry {
	return &EditorRegistry{editors: make(map[string]*Editor)}
}

// Get returns the open editor for documentID.
func (r *EditorRegistry) Get(documentID string) (*Editor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.editors[documentID]
	return e, ok
}

// Add registers e unless another editor for the same document won the race,
// in which case that one is returned.
func (r *EditorRegistry) Add(documentID string, e *Editor) *Editor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.editors[documentID]; ok {
		return existing
	}
	r.editors[documentID] = e
	return e
}

// Remove drops the editor for documentID if it is still e, reporting whether
// it did.
func (r *EditorRegistry) Remove(documentID string, e *Editor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.editors[documentID] != e {
		return false
	}
	delete(r.editors, documentID)
	return true
}

// Drain removes and returns every open editor.
func (r *EditorRegistry) Drain() map[string]*Editor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.editors
	r.editors = make(map[string]*Editor)
	return out
}

// Len returns the number of open editors.
func (r *EditorRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.editors)
}

// closeEditors flushes and closes every editor, joining their errors.
func closeEditors(ctx context.Context, editors map[string]*Editor) error {
	var errs []error
	for _, e := range editors {
		e.mu.Lock()
		err := e.sync.Close(ctx)
		e.mu.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
