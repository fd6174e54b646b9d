package repository

import (
	"context"

	"github.com/printdesk/backend/internal/model"
)

// ReferenceRepository は単位・素材マスタの読み取りインターフェース
type ReferenceRepository interface {
	ListUnits(ctx context.Context) ([]*model.Unit, error)
	ListMaterials(ctx context.Context) ([]*model.Material, error)
}
