package services

import (
	"context"
	"errors"
	"testing"

	"github.com/sallegelias/metaverso-erp/internal/models"
)

func TestSaveClientUpsert(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewRecordService(conn, nil)
	ctx := context.Background()

	c := &models.Client{Name: "conjunto los robles", TaxID: "900.1", Contact: "ana", Address: "cra 1", Kind: models.KindPH}
	if err := svc.SaveClient(ctx, c); err != nil {
		t.Fatal(err)
	}
	if c.ID == 0 || c.Name != "CONJUNTO LOS ROBLES" {
		t.Fatalf("created client = %+v", c)
	}

	upd := &models.Client{ID: c.ID, Name: "robles ph", Phone: "300", Kind: models.KindPH}
	if err := svc.SaveClient(ctx, upd); err != nil {
		t.Fatal(err)
	}
	var stored models.Client
	conn.First(&stored, c.ID)
	if stored.Name != "ROBLES PH" || stored.Phone != "300" || stored.TaxID != "" {
		t.Fatalf("update should overwrite every column, got %+v", stored)
	}
	if stored.CreatedAt.IsZero() {
		t.Fatal("created_at must survive an update")
	}

	missing := &models.Client{ID: 99999, Name: "x"}
	if err := svc.SaveClient(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update of missing id = %v, want ErrNotFound", err)
	}
}

func TestDeleteRecordsRequireAdmin(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewRecordService(conn, nil)

	p := &models.Product{Code: "cam-1", Name: "cámara", Price: 100000}
	if err := svc.SaveProduct(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteProduct(assistantCtx(), p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("assistant delete = %v", err)
	}
	if err := svc.DeleteProduct(adminCtx(), p.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteProduct(adminCtx(), p.ID); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	var count int64
	conn.Model(&models.Product{}).Count(&count)
	if count != 0 {
		t.Fatalf("products = %d", count)
	}
}

func TestCatalogAndSupplierNames(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewRecordService(conn, nil)
	ctx := context.Background()

	for _, name := range []string{"zeta redes", "alfa cctv"} {
		if err := svc.SaveSupplier(ctx, &models.Supplier{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	names, err := svc.SupplierNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "ALFA CCTV" {
		t.Fatalf("SupplierNames() = %v", names)
	}

	for _, p := range []models.Product{{Code: "b", Name: "switch", Price: 2}, {Code: "a", Name: "cable", Price: 1, Cost: 0.5}} {
		p := p
		if err := svc.SaveProduct(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}
	cat, err := svc.Catalog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cat) != 2 || cat[0].Name != "CABLE" || cat[0].Cost != 0.5 {
		t.Fatalf("Catalog() = %+v", cat)
	}
}

func TestSurveys(t *testing.T) {
	conn := setupTestDB(t)
	svc := NewRecordService(conn, nil)
	ctx := context.Background()

	good := &models.Survey{Client: "ROBLES", ProjectName: "torre norte", Towers: 2, Floors: 12, UnitsPerFloor: 4, Amenities: `["Piscina"]`}
	bad := &models.Survey{Client: "ROBLES", ProjectName: "torre sur", Amenities: "piscina"}
	for _, s := range []*models.Survey{good, bad} {
		if err := svc.SaveSurvey(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if good.TotalUnits != 96 {
		t.Fatalf("TotalUnits = %d", good.TotalUnits)
	}

	list, err := svc.ListSurveys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("surveys = %d", len(list))
	}
	// newest first
	if list[0].ProjectName != "TORRE SUR" || len(list[0].AmenityList) != 0 {
		t.Errorf("malformed amenities should list empty: %+v", list[0])
	}
	if len(list[1].AmenityList) != 1 || list[1].AmenityList[0] != "Piscina" {
		t.Errorf("amenities = %v", list[1].AmenityList)
	}
}
