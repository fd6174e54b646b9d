package service

import (
	"context"
	"sync"

	"github.com/printdesk/backend/internal/model"
	"github.com/printdesk/backend/internal/pricing"
	"github.com/printdesk/backend/internal/repository"
)

// ReferenceService は単位・素材マスタを提供するインターフェース
type ReferenceService interface {
	Units(ctx context.Context) ([]*model.Unit, error)
	Materials(ctx context.Context) ([]*model.Material, error)
	// Tables は価格計算用の単位係数表と素材スループット表を返す
	Tables(ctx context.Context) (pricing.UnitTable, pricing.MaterialTable, error)
}

// ReferenceServiceImpl は ReferenceService の実装。マスタは初回取得後キャッシュする
type ReferenceServiceImpl struct {
	repo repository.ReferenceRepository

	mu        sync.Mutex
	units     []*model.Unit
	materials []*model.Material
}

// NewReferenceService は ReferenceServiceImpl を生成する
func NewReferenceService(repo repository.ReferenceRepository) ReferenceService {
	return &ReferenceServiceImpl{repo: repo}
}

// Units は単位マスタを返す
func (s *ReferenceServiceImpl) Units(ctx context.Context) ([]*model.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.units != nil {
		return s.units, nil
	}
	units, err := s.repo.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	if units == nil {
		units = []*model.Unit{}
	}
	s.units = units
	return units, nil
}

// Materials は素材マスタを返す
func (s *ReferenceServiceImpl) Materials(ctx context.Context) ([]*model.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.materials != nil {
		return s.materials, nil
	}
	materials, err := s.repo.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}
	if materials == nil {
		materials = []*model.Material{}
	}
	s.materials = materials
	return materials, nil
}

// Tables は単位マスタが空の場合 pricing.DefaultUnits を使う
func (s *ReferenceServiceImpl) Tables(ctx context.Context) (pricing.UnitTable, pricing.MaterialTable, error) {
	units, err := s.Units(ctx)
	if err != nil {
		return nil, nil, err
	}
	materials, err := s.Materials(ctx)
	if err != nil {
		return nil, nil, err
	}
	unitTable := model.UnitTable(units)
	if len(unitTable) == 0 {
		unitTable = pricing.DefaultUnits
	}
	return unitTable, model.MaterialTable(materials), nil
}
