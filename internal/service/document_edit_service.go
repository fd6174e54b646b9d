package service

import (
	"context"
	"errors"

	"github.com/printdesk/backend/internal/model"
	"github.com/printdesk/backend/internal/pricing"
	"github.com/printdesk/backend/internal/repository"
)

// ErrNotEditable は編集可能なステータスを外れたドキュメントへの変更要求で返される。
// ストアが書き込みを拒否した場合の repository.ErrNotEditable と同一
var ErrNotEditable = repository.ErrNotEditable

// ErrPendingTotals は明細行の保存前に行う集計の書き込みが失敗した場合に返される。
// 明細行そのものは保存されていない
var ErrPendingTotals = errors.New("pending totals not persisted")

// TotalsView はドキュメント集計と永続化の同期状態
type TotalsView struct {
	Totals    *model.DocumentTotals `json:"totals"`
	SyncState string                `json:"sync_state"`
	SyncError string                `json:"sync_error,omitempty"`
}

// DocumentEditService は見積・受注の明細編集と集計同期のインターフェース
type DocumentEditService interface {
	ListLineItems(ctx context.Context, documentID string) ([]*model.LineItem, error)
	AddLineItem(ctx context.Context, documentID string, input *model.LineItemInput) (*model.LineItem, *model.DocumentTotals, error)
	// UpdateLineItem は表示順で特定した明細行の 1 フィールドを変更し、依存フィールドを再計算する
	UpdateLineItem(ctx context.Context, documentID string, displayOrder int, edit *model.LineItemEdit) (*model.LineItem, *model.DocumentTotals, error)
	DeleteLineItem(ctx context.Context, documentID, lineItemID string) (*model.DocumentTotals, error)
	MoveLineItem(ctx context.Context, documentID, lineItemID string, displayOrder int) ([]*model.LineItem, error)
	// SetDiscount はドキュメント値引きを変更する。集計の永続化はデバウンスされる
	SetDiscount(ctx context.Context, documentID string, mode pricing.DiscountMode, value float64) (*model.DocumentTotals, error)
	Totals(ctx context.Context, documentID string) (*TotalsView, error)
	// Finish は保留中の集計を即時書き込みし、編集セッションを閉じる
	Finish(ctx context.Context, documentID string) (*model.DocumentTotals, error)
	// Export はエクスポート用にドキュメントと明細行を返す。編集可否は問わない
	Export(ctx context.Context, documentID string) (*model.Document, []*model.LineItem, error)
	CloseAll(ctx context.Context) error
}
