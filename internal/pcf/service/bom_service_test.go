package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/malteschaefer1/procafocia/internal/pcf/service"
	"github.com/malteschaefer1/procafocia/internal/pcf/testutil"
)

func seedProductWithBOM(t *testing.T, env *testutil.TestEnv, productID string, items []service.BOMItemInput) {
	t.Helper()
	ctx := context.Background()
	if _, err := env.Services.Product.Register(ctx, &service.RegisterProductInput{
		ID: productID, Name: productID, FunctionalUnit: "1 unit",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := env.Services.BOM.Replace(ctx, productID, items); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
}

func TestReplaceBOMResolvesMapping(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "steel", Quantity: 2, Unit: "kg"},
		{LineNo: 2, Name: "copper", Quantity: 0.5, Unit: "kg"},
	})

	mapping, err := env.Services.Mapping.Current(ctx, "fan-unit")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if len(mapping) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(mapping))
	}
	if mapping[0].FactorID != "steel" || mapping[1].FactorID != "copper-wire" {
		t.Errorf("unexpected factors: %q, %q", mapping[0].FactorID, mapping[1].FactorID)
	}
}

func TestReplaceBOMRejectsInvalidLines(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	if _, err := env.Services.Product.Register(ctx, &service.RegisterProductInput{ID: "fan-unit", Name: "Fan Unit"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := env.Services.BOM.Replace(ctx, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "steel", Quantity: 2, Unit: "kg"},
		{LineNo: 2, Name: "", Quantity: 1, Unit: "kg"},
		{LineNo: 3, Name: "copper", Quantity: -5, Unit: "kg"},
		{LineNo: 1, Name: "duplicate", Quantity: 1, Unit: "kg"},
	})
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if result.Accepted != 1 {
		t.Errorf("expected 1 accepted line, got %d", result.Accepted)
	}
	if len(result.Rejected) != 3 {
		t.Errorf("expected 3 rejected lines, got %d", len(result.Rejected))
	}
}

func TestReplaceBOMAllInvalidLeavesPriorBOM(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "steel", Quantity: 2, Unit: "kg"},
	})

	_, err := env.Services.BOM.Replace(ctx, "fan-unit", []service.BOMItemInput{
		{LineNo: 0, Name: "bad", Quantity: 1, Unit: "kg"},
		{LineNo: 2, Name: "worse", Quantity: 0, Unit: "kg"},
	})
	var vErr *service.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(vErr.Lines) != 2 {
		t.Errorf("expected 2 line errors, got %d", len(vErr.Lines))
	}

	items, err := env.Services.BOM.Get(ctx, "fan-unit")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(items) != 1 || items[0].Name != "steel" {
		t.Errorf("prior BOM must survive an all-invalid upload, got %+v", items)
	}
}

func TestReplaceBOMEmptyPayload(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	if _, err := env.Services.Product.Register(ctx, &service.RegisterProductInput{ID: "fan-unit", Name: "Fan Unit"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, err := env.Services.BOM.Replace(ctx, "fan-unit", nil)
	var vErr *service.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestReplaceBOMSupersedesMapping(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "steel", Quantity: 2, Unit: "kg"},
		{LineNo: 2, Name: "copper", Quantity: 1, Unit: "kg"},
	})
	if _, err := env.Services.BOM.Replace(ctx, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "aluminium", Quantity: 3, Unit: "kg"},
	}); err != nil {
		t.Fatalf("second Replace failed: %v", err)
	}

	mapping, err := env.Services.Mapping.Current(ctx, "fan-unit")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	// Line 2's candidates stay in the log but the line is gone from the BOM,
	// so the review view must not show them.
	if len(mapping) != 1 {
		t.Fatalf("expected 1 reviewable line, got %d", len(mapping))
	}
	if mapping[0].LineNo != 1 || mapping[0].FactorID != "aluminium" {
		t.Errorf("expected line 1 remapped to aluminium, got line %d factor %q", mapping[0].LineNo, mapping[0].FactorID)
	}

	history, err := env.Services.Mapping.History(ctx, "fan-unit")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("expected 3 history rows (append-only), got %d", len(history))
	}
}

func TestReviewDropsLinesRemovedByReplace(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "steel", Quantity: 2, Unit: "kg"},
		{LineNo: 2, Name: "unobtainium crystal", Quantity: 1, Unit: "kg"},
		{LineNo: 3, Name: "mystery resin", Quantity: 1, Unit: "kg"},
	})
	if _, err := env.Services.BOM.Replace(ctx, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "steel", Quantity: 2, Unit: "kg"},
	}); err != nil {
		t.Fatalf("second Replace failed: %v", err)
	}

	mapping, err := env.Services.Mapping.Current(ctx, "fan-unit")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if len(mapping) != 1 {
		t.Fatalf("expected only the surviving line in review, got %d rows", len(mapping))
	}
	if mapping[0].LineNo != 1 {
		t.Errorf("expected line 1, got %d", mapping[0].LineNo)
	}
	// The unmapped lines 2 and 3 are gone from the BOM; they must not
	// resurface as pending review work, and they must not block a PCF run.
	if _, err := env.Services.Calculation.RunPCF(ctx, "fan-unit", "", ""); err != nil {
		t.Errorf("PCF must succeed on the shrunk BOM, got %v", err)
	}
}
