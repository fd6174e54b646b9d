package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printdesk/backend/internal/model"
)

const lineItemColumns = `id, document_id, description, quantity, width, height, unit, material,
	price_per_area, unit_price, discount_percent, amount, square_feet, material_usage, print_hours,
	display_order, created_at, updated_at`

// PgLineItemRepository は LineItemRepository の PostgreSQL 実装
type PgLineItemRepository struct {
	pool *pgxpool.Pool
}

// NewPgLineItemRepository は PgLineItemRepository を生成する
func NewPgLineItemRepository(pool *pgxpool.Pool) *PgLineItemRepository {
	return &PgLineItemRepository{pool: pool}
}

func scanLineItem(row pgx.Row, item *model.LineItem) error {
	return row.Scan(
		&item.ID, &item.DocumentID, &item.Description, &item.Quantity, &item.Width, &item.Height,
		&item.Unit, &item.Material, &item.PricePerArea, &item.UnitPrice, &item.DiscountPercent,
		&item.Amount, &item.SquareFeet, &item.MaterialUsage, &item.PrintHours,
		&item.DisplayOrder, &item.CreatedAt, &item.UpdatedAt,
	)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listLineItems(ctx context.Context, q querier, documentID string) ([]*model.LineItem, error) {
	rows, err := q.Query(ctx,
		`SELECT `+lineItemColumns+` FROM line_items WHERE document_id = $1 ORDER BY display_order, created_at`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*model.LineItem
	for rows.Next() {
		var item model.LineItem
		if err := scanLineItem(rows, &item); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// ListByDocumentID はドキュメントの明細行を表示順で返す
func (r *PgLineItemRepository) ListByDocumentID(ctx context.Context, documentID string) ([]*model.LineItem, error) {
	return listLineItems(ctx, r.pool, documentID)
}

// Create は明細行を挿入し、再計算したドキュメント集計を返す
func (r *PgLineItemRepository) Create(ctx context.Context, item *model.LineItem) (*model.DocumentTotals, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// ドキュメント行をロックして表示順の採番を直列化する
	if _, err := lockDocument(ctx, tx, item.DocumentID); err != nil {
		return nil, err
	}

	var maxOrder int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(display_order), 0) FROM line_items WHERE document_id = $1`,
		item.DocumentID,
	).Scan(&maxOrder); err != nil {
		return nil, err
	}
	order, shift := insertPosition(maxOrder, item.DisplayOrder)
	if shift {
		if _, err := tx.Exec(ctx,
			`UPDATE line_items SET display_order = display_order + 1, updated_at=NOW()
			 WHERE document_id = $1 AND display_order >= $2`,
			item.DocumentID, order,
		); err != nil {
			return nil, err
		}
	}
	item.DisplayOrder = order

	if err := tx.QueryRow(ctx,
		`INSERT INTO line_items (document_id, description, quantity, width, height, unit, material,
		     price_per_area, unit_price, discount_percent, amount, square_feet, material_usage, print_hours, display_order)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id, created_at, updated_at`,
		item.DocumentID, item.Description, item.Quantity, item.Width, item.Height, item.Unit, item.Material,
		item.PricePerArea, item.UnitPrice, item.DiscountPercent, item.Amount, item.SquareFeet, item.MaterialUsage,
		item.PrintHours, item.DisplayOrder,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}

	totals, err := recomputeTotals(ctx, tx, item.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return totals, nil
}

// UpdateByOrder はドキュメント内の表示順で特定した明細行を更新し、再計算したドキュメント集計を返す
func (r *PgLineItemRepository) UpdateByOrder(ctx context.Context, documentID string, displayOrder int, item *model.LineItem) (*model.DocumentTotals, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := lockDocument(ctx, tx, documentID); err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx,
		`UPDATE line_items
		 SET description=$1, quantity=$2, width=$3, height=$4, unit=$5, material=$6,
		     price_per_area=$7, unit_price=$8, discount_percent=$9, amount=$10,
		     square_feet=$11, material_usage=$12, print_hours=$13, updated_at=NOW()
		 WHERE document_id=$14 AND display_order=$15
		 RETURNING `+lineItemColumns,
		item.Description, item.Quantity, item.Width, item.Height, item.Unit, item.Material,
		item.PricePerArea, item.UnitPrice, item.DiscountPercent, item.Amount,
		item.SquareFeet, item.MaterialUsage, item.PrintHours,
		documentID, displayOrder,
	).Scan(
		&item.ID, &item.DocumentID, &item.Description, &item.Quantity, &item.Width, &item.Height,
		&item.Unit, &item.Material, &item.PricePerArea, &item.UnitPrice, &item.DiscountPercent,
		&item.Amount, &item.SquareFeet, &item.MaterialUsage, &item.PrintHours,
		&item.DisplayOrder, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	totals, err := recomputeTotals(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return totals, nil
}

// Delete は明細行を削除し、再計算したドキュメント集計を返す
func (r *PgLineItemRepository) Delete(ctx context.Context, id string) (*model.DocumentTotals, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	documentID, err := lineDocumentID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := lockDocument(ctx, tx, documentID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM line_items WHERE id = $1`, id); err != nil {
		return nil, err
	}

	totals, err := recomputeTotals(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return totals, nil
}

// UpdateDisplayOrder は明細行を order の位置へ移動し、同じドキュメントの行を 1..n に振り直す。
// 一意制約は DEFERRABLE なのでコミット時にのみ検査される。
func (r *PgLineItemRepository) UpdateDisplayOrder(ctx context.Context, id string, order int) ([]*model.LineItem, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	documentID, err := lineDocumentID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := lockDocument(ctx, tx, documentID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx,
		`SELECT id FROM line_items WHERE document_id = $1 ORDER BY display_order, created_at FOR UPDATE`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	for i, lineID := range resequence(ids, id, order) {
		if _, err := tx.Exec(ctx,
			`UPDATE line_items SET display_order=$1, updated_at=NOW() WHERE id=$2 AND display_order<>$1`,
			i+1, lineID,
		); err != nil {
			return nil, err
		}
	}

	items, err := listLineItems(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

// lineDocumentID は明細行が属するドキュメントの ID を返す
func lineDocumentID(ctx context.Context, tx pgx.Tx, id string) (string, error) {
	var documentID string
	if err := tx.QueryRow(ctx, `SELECT document_id FROM line_items WHERE id = $1`, id).Scan(&documentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return documentID, nil
}

// insertPosition は新しい明細行の表示順を決める。requested が 1..maxOrder の範囲なら
// その位置に挿入し、requested 以降の兄弟行を 1 つずつ後ろへずらす (shift=true)。
// それ以外は末尾に追加する。
func insertPosition(maxOrder, requested int) (order int, shift bool) {
	if requested <= 0 || requested > maxOrder {
		return maxOrder + 1, false
	}
	return requested, true
}

// resequence は ids から movedID を取り出し、1 始まりの位置 order に挿入した並びを返す。
// order が範囲外の場合は先頭または末尾に丸める。
func resequence(ids []string, movedID string, order int) []string {
	rest := make([]string, 0, len(ids))
	found := false
	for _, id := range ids {
		if id == movedID {
			found = true
			continue
		}
		rest = append(rest, id)
	}
	if !found {
		return append([]string(nil), ids...)
	}

	pos := order - 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(rest) {
		pos = len(rest)
	}

	out := make([]string, 0, len(ids))
	out = append(out, rest[:pos]...)
	out = append(out, movedID)
	out = append(out, rest[pos:]...)
	return out
}
