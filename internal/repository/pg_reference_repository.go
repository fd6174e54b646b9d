package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printdesk/backend/internal/model"
)

// PgReferenceRepository は ReferenceRepository の PostgreSQL 実装
type PgReferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPgReferenceRepository は PgReferenceRepository を生成する
func NewPgReferenceRepository(pool *pgxpool.Pool) *PgReferenceRepository {
	return &PgReferenceRepository{pool: pool}
}

// ListUnits は単位マスタを表示順で返す
func (r *PgReferenceRepository) ListUnits(ctx context.Context) ([]*model.Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, label, area_factor FROM units ORDER BY sort_order, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*model.Unit
	for rows.Next() {
		var u model.Unit
		if err := rows.Scan(&u.Key, &u.Label, &u.AreaFactor); err != nil {
			return nil, err
		}
		units = append(units, &u)
	}
	return units, rows.Err()
}

// ListMaterials は素材マスタを表示順で返す
func (r *PgReferenceRepository) ListMaterials(ctx context.Context) ([]*model.Material, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, name, throughput FROM materials ORDER BY sort_order, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []*model.Material
	for rows.Next() {
		var m model.Material
		if err := rows.Scan(&m.Key, &m.Name, &m.Throughput); err != nil {
			return nil, err
		}
		materials = append(materials, &m)
	}
	return materials, rows.Err()
}
