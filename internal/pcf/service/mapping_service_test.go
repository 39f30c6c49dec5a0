package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"github.com/malteschaefer1/procafocia/internal/pcf/service"
	"github.com/malteschaefer1/procafocia/internal/pcf/testutil"
)

func TestResolveExactNameMatch(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "Steel", Quantity: 2, Unit: "kg"},
	})

	mapping, err := env.Services.Mapping.Current(ctx, "fan-unit")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	c := mapping[0]
	if c.FactorID != "steel" || c.Confidence != entity.ConfidenceExact {
		t.Errorf("expected exact steel match, got factor=%q confidence=%q", c.FactorID, c.Confidence)
	}
	if c.Score != 1 {
		t.Errorf("exact match score must be 1, got %v", c.Score)
	}
}

func TestResolveMaterialCodeBeatsName(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	// The name alone would match aluminium; the material code pins steel.
	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "aluminium", MaterialCode: "stl", Quantity: 1, Unit: "kg"},
	})

	mapping, _ := env.Services.Mapping.Current(ctx, "fan-unit")
	if mapping[0].FactorID != "steel" || mapping[0].Confidence != entity.ConfidenceExact {
		t.Errorf("material code must win: got factor=%q confidence=%q", mapping[0].FactorID, mapping[0].Confidence)
	}
}

func TestResolveFuzzyMatch(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "copper wire 2mm", Quantity: 1, Unit: "kg"},
	})

	mapping, _ := env.Services.Mapping.Current(ctx, "fan-unit")
	c := mapping[0]
	if c.FactorID != "copper-wire" || c.Confidence != entity.ConfidenceFuzzy {
		t.Errorf("expected fuzzy copper-wire match, got factor=%q confidence=%q", c.FactorID, c.Confidence)
	}
	if c.Score < 0.55 || c.Score >= 1 {
		t.Errorf("fuzzy score out of range: %v", c.Score)
	}
}

func TestResolveUnmappedStaysPending(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "unobtainium crystal", Quantity: 1, Unit: "kg"},
	})

	mapping, _ := env.Services.Mapping.Current(ctx, "fan-unit")
	c := mapping[0]
	if c.Confidence != entity.ConfidenceUnmapped || c.Status != entity.StatusPending {
		t.Errorf("expected unmapped pending, got confidence=%q status=%q", c.Confidence, c.Status)
	}
	if c.FactorID != "" {
		t.Errorf("unmapped candidate must carry no factor, got %q", c.FactorID)
	}
}

func TestReresolveIsDeterministic(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "steel", Quantity: 2, Unit: "kg"},
		{LineNo: 2, Name: "abs housing", Quantity: 0.4, Unit: "kg"},
		{LineNo: 3, Name: "mystery goo", Quantity: 1, Unit: "l"},
	})

	first, err := env.Services.Mapping.Reresolve(ctx, "fan-unit")
	if err != nil {
		t.Fatalf("first Reresolve failed: %v", err)
	}
	second, err := env.Services.Mapping.Reresolve(ctx, "fan-unit")
	if err != nil {
		t.Fatalf("second Reresolve failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("candidate counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].FactorID != second[i].FactorID ||
			first[i].Confidence != second[i].Confidence ||
			first[i].Score != second[i].Score {
			t.Errorf("line %d resolved differently: %+v vs %+v", first[i].LineNo, first[i], second[i])
		}
	}
}

func TestDecideApproveWithChosenFactor(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "unobtainium crystal", Quantity: 1, Unit: "kg"},
	})

	decided, err := env.Services.Mapping.Decide(ctx, "fan-unit", &service.DecideInput{
		LineNo: 1, Decision: service.DecisionApprove, ChosenFactorID: "steel-alt", DecidedBy: "reviewer@example.com",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decided.Status != entity.StatusApproved || decided.FactorID != "steel-alt" {
		t.Errorf("expected approved steel-alt, got status=%q factor=%q", decided.Status, decided.FactorID)
	}
	if decided.Score != 1 || decided.Confidence != entity.ConfidenceExact {
		t.Errorf("explicit approval must be exact with score 1, got %q/%v", decided.Confidence, decided.Score)
	}
}

func TestDecideApproveUnmappedWithoutFactorFails(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "unobtainium crystal", Quantity: 1, Unit: "kg"},
	})

	_, err := env.Services.Mapping.Decide(ctx, "fan-unit", &service.DecideInput{
		LineNo: 1, Decision: service.DecisionApprove,
	})
	var vErr *service.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDecideRejectSupersedesToUnmapped(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "steel", Quantity: 2, Unit: "kg"},
	})

	decided, err := env.Services.Mapping.Decide(ctx, "fan-unit", &service.DecideInput{
		LineNo: 1, Decision: service.DecisionReject,
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decided.Confidence != entity.ConfidenceUnmapped || decided.Status != entity.StatusPending {
		t.Errorf("rejection without replacement must leave the line unmapped pending, got %q/%q", decided.Confidence, decided.Status)
	}

	history, _ := env.Services.Mapping.History(ctx, "fan-unit")
	if len(history) != 2 {
		t.Fatalf("decision must append, not update: got %d rows", len(history))
	}
	// Newest first: the rejection, then the automatic match it superseded.
	if history[1].FactorID != "steel" {
		t.Errorf("prior candidate row must survive, got %q", history[1].FactorID)
	}
}

func TestDecideRejectWithReplacement(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "steel", Quantity: 2, Unit: "kg"},
	})

	decided, err := env.Services.Mapping.Decide(ctx, "fan-unit", &service.DecideInput{
		LineNo: 1, Decision: service.DecisionReject, ChosenFactorID: "steel-alt",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decided.Status != entity.StatusApproved || decided.FactorID != "steel-alt" {
		t.Errorf("reject-with-replacement must approve the substitute, got status=%q factor=%q", decided.Status, decided.FactorID)
	}
}

func TestDecideUnknownInputs(t *testing.T) {
	env := testutil.SetupEnv(t)
	ctx := context.Background()

	seedProductWithBOM(t, env, "fan-unit", []service.BOMItemInput{
		{LineNo: 1, Name: "steel", Quantity: 2, Unit: "kg"},
	})

	if _, err := env.Services.Mapping.Decide(ctx, "fan-unit", &service.DecideInput{
		LineNo: 1, Decision: "maybe",
	}); err == nil {
		t.Error("unknown decision must fail")
	}
	if _, err := env.Services.Mapping.Decide(ctx, "fan-unit", &service.DecideInput{
		LineNo: 1, Decision: service.DecisionApprove, ChosenFactorID: "no-such-factor",
	}); err == nil {
		t.Error("unknown factor id must fail")
	}
}
