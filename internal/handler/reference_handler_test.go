package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/printdesk/backend/internal/model"
	"github.com/printdesk/backend/internal/pricing"
)

type mockReferenceService struct {
	unitsFunc     func(ctx context.Context) ([]*model.Unit, error)
	materialsFunc func(ctx context.Context) ([]*model.Material, error)
}

func (m *mockReferenceService) Units(ctx context.Context) ([]*model.Unit, error) {
	if m.unitsFunc != nil {
		return m.unitsFunc(ctx)
	}
	return nil, nil
}

func (m *mockReferenceService) Materials(ctx context.Context) ([]*model.Material, error) {
	if m.materialsFunc != nil {
		return m.materialsFunc(ctx)
	}
	return nil, nil
}

func (m *mockReferenceService) Tables(ctx context.Context) (pricing.UnitTable, pricing.MaterialTable, error) {
	return pricing.DefaultUnits, nil, nil
}

func TestReferenceHandler_Units(t *testing.T) {
	h := NewReferenceHandler(&mockReferenceService{
		unitsFunc: func(context.Context) ([]*model.Unit, error) {
			return []*model.Unit{{Key: "in", Label: "Inches", AreaFactor: 1.0 / 144}}, nil
		},
	})
	req := httptest.NewRequest("GET", "/api/reference/units", nil)
	rec := httptest.NewRecorder()

	h.Units(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Units []*model.Unit `json:"units"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Units) != 1 || resp.Units[0].Key != "in" {
		t.Errorf("unexpected units: %+v", resp.Units)
	}
}

func TestReferenceHandler_Materials_EmptyIsArray(t *testing.T) {
	h := NewReferenceHandler(&mockReferenceService{})
	req := httptest.NewRequest("GET", "/api/reference/materials", nil)
	rec := httptest.NewRecorder()

	h.Materials(rec, req)

	var resp map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(resp["materials"]) != "[]" {
		t.Errorf("expected empty array, got %s", resp["materials"])
	}
}

func TestReferenceHandler_Units_Error(t *testing.T) {
	h := NewReferenceHandler(&mockReferenceService{
		unitsFunc: func(context.Context) ([]*model.Unit, error) {
			return nil, errors.New("db down")
		},
	})
	req := httptest.NewRequest("GET", "/api/reference/units", nil)
	rec := httptest.NewRecorder()

	h.Units(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}
