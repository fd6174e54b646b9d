package repository

import (
	"context"

	"github.com/printdesk/backend/internal/model"
)

// DocumentRepository は見積・受注ドキュメントの永続化インターフェース
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
	// UpdateTotals は集計値を上書きする。同じ値での再実行は結果を変えない
	UpdateTotals(ctx context.Context, id string, totals *model.DocumentTotals) error
	UpdateDiscountMode(ctx context.Context, id, mode string) error
}
