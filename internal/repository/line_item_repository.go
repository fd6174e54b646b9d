package repository

import (
	"context"

	"github.com/printdesk/backend/internal/model"
)

// LineItemRepository は明細行の永続化インターフェース。
// 行を変更する操作は同一トランザクションでドキュメント集計を再計算し、その結果を返す。
// ドキュメントが編集可能なステータスでなければ ErrNotEditable を返す。
type LineItemRepository interface {
	ListByDocumentID(ctx context.Context, documentID string) ([]*model.LineItem, error)
	// Create は item を挿入する。DisplayOrder が既存の範囲内ならその位置に挿入して後続の行を 1 つずつずらし、
	// 0 または範囲外なら末尾に追加する。確定した表示順は item.DisplayOrder に書き戻す
	Create(ctx context.Context, item *model.LineItem) (*model.DocumentTotals, error)
	UpdateByOrder(ctx context.Context, documentID string, displayOrder int, item *model.LineItem) (*model.DocumentTotals, error)
	Delete(ctx context.Context, id string) (*model.DocumentTotals, error)
	// UpdateDisplayOrder は行を order の位置へ移動し、兄弟行を 1..n に振り直す
	UpdateDisplayOrder(ctx context.Context, id string, order int) ([]*model.LineItem, error)
}
