package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/printdesk/backend/internal/model"
	"github.com/printdesk/backend/internal/pricing"
	"github.com/printdesk/backend/internal/repository"
	"github.com/printdesk/backend/internal/totalsync"
)

// DocumentEditConfig は編集セッションの設定
type DocumentEditConfig struct {
	SyncWindow  time.Duration
	BleedInches float64
	Clock       totalsync.Clock
	Metrics     *totalsync.Metrics
	Logger      *slog.Logger
}

// DocumentEditServiceImpl は DocumentEditService の実装
type DocumentEditServiceImpl struct {
	docRepo  repository.DocumentRepository
	lineRepo repository.LineItemRepository
	refs     ReferenceService
	cfg      DocumentEditConfig
	editors  *EditorRegistry
	// syncCtx はデバウンス書き込みに使う。リクエストのコンテキストより長く生きる
	syncCtx context.Context
}

// NewDocumentEditService は DocumentEditServiceImpl を生成する
func NewDocumentEditService(
	docRepo repository.DocumentRepository,
	lineRepo repository.LineItemRepository,
	refs ReferenceService,
	cfg DocumentEditConfig,
) DocumentEditService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &DocumentEditServiceImpl{
		docRepo:  docRepo,
		lineRepo: lineRepo,
		refs:     refs,
		cfg:      cfg,
		editors:  NewEditorRegistry(),
		syncCtx:  context.Background(),
	}
}

// editor は編集セッションを返す。既存のセッションはドキュメントが
// まだ編集可能な状態かを確かめてから使い、そうでなければ破棄する
func (s *DocumentEditServiceImpl) editor(ctx context.Context, documentID string) (*Editor, error) {
	e, ok := s.editors.Get(documentID)
	if !ok {
		return s.open(ctx, documentID)
	}
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.evict(documentID, e, "document removed")
		}
		return nil, err
	}
	if !doc.Editable() {
		s.evict(documentID, e, "status "+doc.Status)
		return nil, ErrNotEditable
	}
	return e, nil
}

// evict は未保存の集計を書き込まずにセッションを破棄する
func (s *DocumentEditServiceImpl) evict(documentID string, e *Editor, reason string) {
	if s.editors.Remove(documentID, e) {
		e.log.Info("edit session discarded", "reason", reason)
	}
	e.sync.Stop()
}

// fail はストアが編集を拒否した場合にセッションを破棄してから err を返す
func (s *DocumentEditServiceImpl) fail(documentID string, e *Editor, err error) error {
	if errors.Is(err, ErrNotEditable) {
		s.evict(documentID, e, "rejected by store")
	}
	return err
}

// open はドキュメントと明細行を読み込んで編集セッションを開く
func (s *DocumentEditServiceImpl) open(ctx context.Context, documentID string) (*Editor, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.Editable() {
		return nil, ErrNotEditable
	}
	items, err := s.lineRepo.ListByDocumentID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	units, materials, err := s.refs.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}

	log := s.cfg.Logger.With("document_id", documentID)
	e := &Editor{
		doc:      doc,
		items:    items,
		discount: doc.Discount(),
		resolver: pricing.NewResolver(units, materials, s.cfg.BleedInches),
		log:      log,
	}
	e.sortItems()
	e.sync = totalsync.New(s.syncCtx, documentID, doc.Totals(), documentTotalsWriter{repo: s.docRepo}, totalsync.Options{
		Window:  s.cfg.SyncWindow,
		Clock:   s.cfg.Clock,
		Metrics: s.cfg.Metrics,
		Logger:  log,
		OnResult: func(r totalsync.Result) {
			if errors.Is(r.Err, ErrNotEditable) {
				s.evict(documentID, e, "rejected by store")
			}
		},
	})

	if winner := s.editors.Add(documentID, e); winner != e {
		return winner, nil
	}

	// stored totals may predate the current line items
	e.mu.Lock()
	err = e.sync.Observe(e.totals())
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListLineItems は明細行を表示順で返す
func (s *DocumentEditServiceImpl) ListLineItems(ctx context.Context, documentID string) ([]*model.LineItem, error) {
	if e, ok := s.editors.Get(documentID); ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.snapshotItems(), nil
	}
	if _, err := s.docRepo.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	return s.lineRepo.ListByDocumentID(ctx, documentID)
}

// AddLineItem は明細行を計算して追加する
func (s *DocumentEditServiceImpl) AddLineItem(ctx context.Context, documentID string, input *model.LineItemInput) (*model.LineItem, *model.DocumentTotals, error) {
	e, err := s.editor(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	item := &model.LineItem{
		DocumentID:      documentID,
		Description:     input.Description,
		Quantity:        pricing.QuantityOrDefault(input.Quantity.Ptr()),
		Width:           input.Width,
		Height:          input.Height,
		Unit:            input.Unit,
		Material:        input.Material,
		PricePerArea:    input.PricePerArea,
		UnitPrice:       input.UnitPrice,
		DiscountPercent: input.DiscountPercent,
		DisplayOrder:    input.DisplayOrder,
	}
	if input.DisplayOrder < 0 {
		return nil, nil, &pricing.ValidationError{Fields: []string{"display_order"}, Reason: "must be positive"}
	}
	if err := validateLineItem(item); err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.resolver.Recompute(item.PricingLine())
	item.SetPricing(res.Line)

	if err := s.flushPending(ctx, documentID, e); err != nil {
		return nil, nil, err
	}
	totals, err := s.lineRepo.Create(ctx, item)
	if err != nil {
		return nil, nil, s.fail(documentID, e, fmt.Errorf("create line item: %w", err))
	}
	e.logFallbacks(item, res.Fallbacks)

	// the store moved siblings at or after the new row down by one
	for _, it := range e.items {
		if item.DisplayOrder > 0 && it.DisplayOrder >= item.DisplayOrder {
			it.DisplayOrder++
		}
	}
	e.items = append(e.items, item)
	e.sortItems()
	e.reconcile(totals)

	out := *item
	return &out, totals, nil
}

// UpdateLineItem は明細行の入力を変更し、依存フィールドだけを再計算する
func (s *DocumentEditServiceImpl) UpdateLineItem(ctx context.Context, documentID string, displayOrder int, edit *model.LineItemEdit) (*model.LineItem, *model.DocumentTotals, error) {
	e, err := s.editor(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, current := e.itemByOrder(displayOrder)
	if current == nil {
		return nil, nil, repository.ErrNotFound
	}

	item := *current
	edited, err := applyEdit(&item, edit)
	if err != nil {
		return nil, nil, err
	}
	if err := validateLineItem(&item); err != nil {
		return nil, nil, err
	}

	var fallbacks []pricing.Fallback
	if len(edited) > 0 {
		res := e.resolver.Apply(item.PricingLine(), edited...)
		item.SetPricing(res.Line)
		fallbacks = res.Fallbacks
	}

	if err := s.flushPending(ctx, documentID, e); err != nil {
		return nil, nil, err
	}
	totals, err := s.lineRepo.UpdateByOrder(ctx, documentID, displayOrder, &item)
	if err != nil {
		return nil, nil, s.fail(documentID, e, fmt.Errorf("update line item: %w", err))
	}
	e.logFallbacks(&item, fallbacks)

	e.items[idx] = &item
	e.reconcile(totals)

	out := item
	return &out, totals, nil
}

// DeleteLineItem は明細行を削除する
func (s *DocumentEditServiceImpl) DeleteLineItem(ctx context.Context, documentID, lineItemID string) (*model.DocumentTotals, error) {
	e, err := s.editor(ctx, documentID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, item := e.itemByID(lineItemID)
	if item == nil {
		return nil, repository.ErrNotFound
	}
	if err := s.flushPending(ctx, documentID, e); err != nil {
		return nil, err
	}
	totals, err := s.lineRepo.Delete(ctx, lineItemID)
	if err != nil {
		return nil, s.fail(documentID, e, fmt.Errorf("delete line item: %w", err))
	}

	e.items = append(e.items[:idx], e.items[idx+1:]...)
	e.reconcile(totals)
	return totals, nil
}

// MoveLineItem は明細行の表示順を変更し、並び替え後の一覧を返す
func (s *DocumentEditServiceImpl) MoveLineItem(ctx context.Context, documentID, lineItemID string, displayOrder int) ([]*model.LineItem, error) {
	if displayOrder <= 0 {
		return nil, &pricing.ValidationError{Fields: []string{"display_order"}, Reason: "must be positive"}
	}
	e, err := s.editor(ctx, documentID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, item := e.itemByID(lineItemID); item == nil {
		return nil, repository.ErrNotFound
	}
	items, err := s.lineRepo.UpdateDisplayOrder(ctx, lineItemID, displayOrder)
	if err != nil {
		return nil, s.fail(documentID, e, fmt.Errorf("move line item: %w", err))
	}
	e.items = items
	e.sortItems()
	return e.snapshotItems(), nil
}

// SetDiscount はドキュメント値引きを変更する。入力された表現が以後の再計算で優先される
func (s *DocumentEditServiceImpl) SetDiscount(ctx context.Context, documentID string, mode pricing.DiscountMode, value float64) (*model.DocumentTotals, error) {
	if !mode.Valid() {
		return nil, &pricing.ValidationError{Fields: []string{"mode"}, Reason: "must be percent or amount"}
	}
	if value < 0 {
		return nil, &pricing.ValidationError{Fields: []string{"value"}, Reason: "must not be negative"}
	}
	e, err := s.editor(ctx, documentID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if mode != e.discount.Mode {
		if err := s.docRepo.UpdateDiscountMode(ctx, documentID, string(mode)); err != nil {
			return nil, s.fail(documentID, e, &totalsync.PersistenceError{DocumentID: documentID, Err: err})
		}
		e.doc.DiscountMode = string(mode)
	}

	d := pricing.Discount{Mode: mode}
	if mode == pricing.DiscountByAmount {
		d.Amount = value
	} else {
		d.Percent = value
	}
	totals := pricing.Aggregate(model.PricingLines(e.items), d)
	e.discount = totals.Discount(mode)

	if err := e.sync.Observe(totals); err != nil {
		return nil, err
	}
	return model.NewDocumentTotals(totals), nil
}

// Totals は現在の集計と同期状態を返す。セッションが無ければ保存済みの値を返す
func (s *DocumentEditServiceImpl) Totals(ctx context.Context, documentID string) (*TotalsView, error) {
	if e, ok := s.editors.Get(documentID); ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		view := &TotalsView{
			Totals:    model.NewDocumentTotals(e.totals()),
			SyncState: e.sync.State().String(),
		}
		if err := e.sync.Err(); err != nil {
			view.SyncError = err.Error()
		}
		return view, nil
	}

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &TotalsView{
		Totals:    model.NewDocumentTotals(doc.Totals()),
		SyncState: totalsync.StateIdle.String(),
	}, nil
}

// Finish は保留中の集計を書き込んで編集セッションを閉じる。
// ドキュメントが編集可能でなくなっていれば書き込まずに破棄する
func (s *DocumentEditServiceImpl) Finish(ctx context.Context, documentID string) (*model.DocumentTotals, error) {
	_, cached := s.editors.Get(documentID)
	if !cached {
		doc, err := s.docRepo.GetByID(ctx, documentID)
		if err != nil {
			return nil, err
		}
		return model.NewDocumentTotals(doc.Totals()), nil
	}
	e, err := s.editor(ctx, documentID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s.editors.Remove(documentID, e)
	if err := e.sync.Close(ctx); err != nil {
		return nil, s.fail(documentID, e, err)
	}
	return model.NewDocumentTotals(e.sync.Snapshot()), nil
}

// Export はドキュメントと明細行を返す。編集中であれば未保存の集計を反映する
func (s *DocumentEditServiceImpl) Export(ctx context.Context, documentID string) (*model.Document, []*model.LineItem, error) {
	if e, ok := s.editors.Get(documentID); ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		doc := *e.doc
		applyTotals(&doc, e.totals())
		doc.DiscountMode = string(e.discount.Mode)
		return &doc, e.snapshotItems(), nil
	}

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.lineRepo.ListByDocumentID(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	return doc, items, nil
}

// CloseAll は全ての編集セッションの集計を書き込んで閉じる
func (s *DocumentEditServiceImpl) CloseAll(ctx context.Context) error {
	editors := s.editors.Drain()
	if len(editors) == 0 {
		return nil
	}
	err := closeEditors(ctx, editors)
	if err != nil {
		s.cfg.Logger.Error("flush on shutdown failed", "editors", len(editors), "error", err)
	}
	return err
}

// flushPending は明細行を保存する前に保留中の集計を書き込む
func (s *DocumentEditServiceImpl) flushPending(ctx context.Context, documentID string, e *Editor) error {
	if err := e.sync.Flush(ctx); err != nil {
		return s.fail(documentID, e, fmt.Errorf("%w: %w", ErrPendingTotals, err))
	}
	return nil
}

func applyTotals(doc *model.Document, t pricing.Totals) {
	doc.Subtotal = t.Subtotal
	doc.DiscountAmount = t.DiscountAmount
	doc.DiscountPercent = t.DiscountPercent
	doc.GrandTotal = t.GrandTotal
	doc.TotalHours = t.TotalHours
}

// IsPersistenceError は err が集計の書き込み失敗かどうかを返す
func IsPersistenceError(err error) bool {
	var perr *totalsync.PersistenceError
	return errors.As(err, &perr)
}
