package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printdesk/backend/internal/model"
	"github.com/printdesk/backend/internal/pricing"
)

// PgDocumentRepository は DocumentRepository の PostgreSQL 実装
type PgDocumentRepository struct {
	pool *pgxpool.Pool
}

// NewPgDocumentRepository は PgDocumentRepository を生成する
func NewPgDocumentRepository(pool *pgxpool.Pool) *PgDocumentRepository {
	return &PgDocumentRepository{pool: pool}
}

// GetByID は ID でドキュメントを取得する
func (r *PgDocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	err := r.pool.QueryRow(ctx,
		`SELECT id, kind, client_id, status, discount_mode, discount_amount, discount_percent,
		        subtotal, grand_total, total_hours, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Kind, &d.ClientID, &d.Status, &d.DiscountMode, &d.DiscountAmount, &d.DiscountPercent,
		&d.Subtotal, &d.GrandTotal, &d.TotalHours, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// UpdateTotals はドキュメントの集計値を更新する。編集可能なステータスでなければ ErrNotEditable
func (r *PgDocumentRepository) UpdateTotals(ctx context.Context, id string, totals *model.DocumentTotals) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents
		 SET subtotal=$1, discount_amount=$2, discount_percent=$3, grand_total=$4, total_hours=$5, updated_at=NOW()
		 WHERE id=$6 AND status = ANY($7)`,
		totals.Subtotal, totals.DiscountAmount, totals.DiscountPercent, totals.GrandTotal, totals.TotalHours, id,
		model.EditableStatuses,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missedWrite(ctx, id)
	}
	return nil
}

// UpdateDiscountMode は最後に編集された値引きの表現を保存する
func (r *PgDocumentRepository) UpdateDiscountMode(ctx context.Context, id, mode string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET discount_mode=$1, updated_at=NOW() WHERE id=$2 AND status = ANY($3)`,
		mode, id, model.EditableStatuses,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missedWrite(ctx, id)
	}
	return nil
}

// missedWrite は更新対象が 0 行だった理由を返す
func (r *PgDocumentRepository) missedWrite(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotEditable
}

// lockDocument は tx 内でドキュメント行をロックする。編集可能なステータスでなければ ErrNotEditable
func lockDocument(ctx context.Context, tx pgx.Tx, id string) (*model.Document, error) {
	var d model.Document
	err := tx.QueryRow(ctx,
		`SELECT id, status, discount_mode, discount_amount, discount_percent FROM documents WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&d.ID, &d.Status, &d.DiscountMode, &d.DiscountAmount, &d.DiscountPercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !d.Editable() {
		return nil, ErrNotEditable
	}
	return &d, nil
}

// recomputeTotals は tx 内で明細行からドキュメント集計を再計算して保存する
func recomputeTotals(ctx context.Context, tx pgx.Tx, documentID string) (*model.DocumentTotals, error) {
	d, err := lockDocument(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT amount, print_hours FROM line_items WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, err
	}
	var lines []pricing.Line
	for rows.Next() {
		var l pricing.Line
		if err := rows.Scan(&l.Amount, &l.PrintHours); err != nil {
			rows.Close()
			return nil, err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totals := model.NewDocumentTotals(pricing.Aggregate(lines, d.Discount()))
	if _, err := tx.Exec(ctx,
		`UPDATE documents
		 SET subtotal=$1, discount_amount=$2, discount_percent=$3, grand_total=$4, total_hours=$5, updated_at=NOW()
		 WHERE id=$6`,
		totals.Subtotal, totals.DiscountAmount, totals.DiscountPercent, totals.GrandTotal, totals.TotalHours, documentID,
	); err != nil {
		return nil, err
	}
	return totals, nil
}
