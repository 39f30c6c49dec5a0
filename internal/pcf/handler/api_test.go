package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/malteschaefer1/procafocia/internal/pcf/testutil"
)

func setupAPITest(t *testing.T) (*gin.Engine, *testutil.TestEnv) {
	t.Helper()
	env := testutil.SetupEnv(t)
	h := NewHandlers(env.Services)

	r := env.Router
	r.POST("/products", h.Product.Register)
	r.GET("/products", h.Product.List)
	r.GET("/products/:id", h.Product.Get)
	r.GET("/products/:id/runs", h.Run.ListByProduct)
	r.POST("/bom/upload", h.BOM.Upload)
	r.GET("/bom/:id", h.BOM.Get)
	r.GET("/mapping/review/:id", h.Mapping.Review)
	r.POST("/mapping/review/:id/decide", h.Mapping.Decide)
	r.GET("/mapping/history/:id", h.Mapping.History)
	r.GET("/pcf/methods", h.PCF.ListMethods)
	r.POST("/pcf/run", h.PCF.Run)
	r.POST("/circularity/run", h.Circularity.Run)
	r.GET("/scenarios", h.Scenario.List)
	r.GET("/runs/:id", h.Run.Get)
	return r, env
}

func registerTestProduct(t *testing.T, r *gin.Engine, id string) {
	t.Helper()
	w := testutil.DoRequest(r, http.MethodPost, "/products", map[string]interface{}{
		"id":              id,
		"name":            "Fan Unit",
		"functional_unit": "1 unit over 10 years",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("product registration returned %d: %s", w.Code, w.Body.String())
	}
}

func uploadTestBOM(t *testing.T, r *gin.Engine, productID string, items []map[string]interface{}) {
	t.Helper()
	w := testutil.DoRequest(r, http.MethodPost, "/bom/upload", map[string]interface{}{
		"product_id": productID,
		"items":      items,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("BOM upload returned %d: %s", w.Code, w.Body.String())
	}
}

func TestProductEndpoints(t *testing.T) {
	r, _ := setupAPITest(t)

	registerTestProduct(t, r, "fan-unit")

	w := testutil.DoRequest(r, http.MethodGet, "/products/fan-unit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET product returned %d", w.Code)
	}
	body := testutil.ParseResponse(w)
	if body["id"] != "fan-unit" || body["version"] != "1.0" {
		t.Errorf("unexpected product body: %v", body)
	}

	w = testutil.DoRequest(r, http.MethodGet, "/products/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown product, got %d", w.Code)
	}
	if msg := testutil.ParseResponse(w)["error"]; msg == nil {
		t.Error("error responses must carry an error field")
	}
}

func TestBOMUploadRawArray(t *testing.T) {
	r, _ := setupAPITest(t)
	registerTestProduct(t, r, "fan-unit")

	w := testutil.DoRequest(r, http.MethodPost, "/bom/upload", []map[string]interface{}{
		{"product_id": "fan-unit", "line_no": 1, "material_or_process_name": "steel", "quantity": 2, "unit": "kg"},
		{"product_id": "fan-unit", "line_no": 2, "material_or_process_name": "copper", "quantity": 0.5, "unit": "kg"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("raw-array upload returned %d: %s", w.Code, w.Body.String())
	}
	body := testutil.ParseResponse(w)
	if body["accepted"].(float64) != 2 {
		t.Errorf("expected 2 accepted lines, got %v", body["accepted"])
	}

	w = testutil.DoRequest(r, http.MethodGet, "/bom/fan-unit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET BOM returned %d", w.Code)
	}
}

func TestBOMUploadAllInvalid(t *testing.T) {
	r, _ := setupAPITest(t)
	registerTestProduct(t, r, "fan-unit")

	w := testutil.DoRequest(r, http.MethodPost, "/bom/upload", map[string]interface{}{
		"product_id": "fan-unit",
		"items": []map[string]interface{}{
			{"line_no": 1, "material_or_process_name": "", "quantity": 2, "unit": "kg"},
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	body := testutil.ParseResponse(w)
	if body["error"] == nil || body["rejected"] == nil {
		t.Errorf("all-invalid upload must report error and rejected lines, got %v", body)
	}
}

func TestMappingReviewAndDecide(t *testing.T) {
	r, _ := setupAPITest(t)
	registerTestProduct(t, r, "fan-unit")
	uploadTestBOM(t, r, "fan-unit", []map[string]interface{}{
		{"line_no": 1, "material_or_process_name": "unobtainium crystal", "quantity": 1, "unit": "kg"},
	})

	w := testutil.DoRequest(r, http.MethodGet, "/mapping/review/fan-unit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET review returned %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodPost, "/mapping/review/fan-unit/decide", map[string]interface{}{
		"line_no":          1,
		"decision":         "approve",
		"chosen_factor_id": "steel-alt",
		"decided_by":       "reviewer@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("decide returned %d: %s", w.Code, w.Body.String())
	}
	body := testutil.ParseResponse(w)
	if body["status"] != "approved" || body["factor_id"] != "steel-alt" {
		t.Errorf("unexpected decision body: %v", body)
	}

	w = testutil.DoRequest(r, http.MethodGet, "/mapping/history/fan-unit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET history returned %d", w.Code)
	}
}

func TestPCFMethodsEndpoint(t *testing.T) {
	r, _ := setupAPITest(t)

	w := testutil.DoRequest(r, http.MethodGet, "/pcf/methods", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET methods returned %d", w.Code)
	}
	body := testutil.ParseResponse(w)
	methods, ok := body["methods"].([]interface{})
	if !ok || len(methods) != 3 {
		t.Errorf("expected 3 methods, got %v", body["methods"])
	}
}

func TestPCFRunLifecycle(t *testing.T) {
	r, _ := setupAPITest(t)
	registerTestProduct(t, r, "fan-unit")
	uploadTestBOM(t, r, "fan-unit", []map[string]interface{}{
		{"line_no": 1, "material_or_process_name": "steel", "quantity": 2, "unit": "kg"},
	})

	w := testutil.DoRequest(r, http.MethodPost, "/pcf/run", map[string]interface{}{
		"product_id": "fan-unit",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("PCF run returned %d: %s", w.Code, w.Body.String())
	}
	body := testutil.ParseResponse(w)
	runID, _ := body["run_id"].(string)
	if runID == "" || body["status"] != "completed" {
		t.Fatalf("unexpected run body: %v", body)
	}

	w = testutil.DoRequest(r, http.MethodGet, "/runs/"+runID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET run returned %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodGet, "/products/fan-unit/runs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET product runs returned %d", w.Code)
	}
	if runs, ok := testutil.ParseResponse(w)["runs"].([]interface{}); !ok || len(runs) != 1 {
		t.Errorf("expected 1 run in listing")
	}
}

func TestPCFRunBlockedReturns422(t *testing.T) {
	r, _ := setupAPITest(t)
	registerTestProduct(t, r, "fan-unit")
	uploadTestBOM(t, r, "fan-unit", []map[string]interface{}{
		{"line_no": 1, "material_or_process_name": "steel", "quantity": 2, "unit": "kg"},
		{"line_no": 2, "material_or_process_name": "unobtainium crystal", "quantity": 1, "unit": "kg"},
	})

	w := testutil.DoRequest(r, http.MethodPost, "/pcf/run", map[string]interface{}{
		"product_id": "fan-unit",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	body := testutil.ParseResponse(w)
	if body["error"] == nil || body["run_id"] == nil {
		t.Errorf("blocked run must report error and persisted run id, got %v", body)
	}
	offending, ok := body["offending_line_items"].([]interface{})
	if !ok || len(offending) != 1 || offending[0].(float64) != 2 {
		t.Errorf("expected offending line 2, got %v", body["offending_line_items"])
	}
}

func TestScenarioCatalogEndpoint(t *testing.T) {
	r, _ := setupAPITest(t)

	w := testutil.DoRequest(r, http.MethodGet, "/scenarios", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET scenarios returned %d", w.Code)
	}
	body := testutil.ParseResponse(w)
	scenarios, ok := body["scenarios"].([]interface{})
	if !ok || len(scenarios) == 0 {
		t.Fatalf("expected non-empty scenario list, got %v", body["scenarios"])
	}
	first := scenarios[0].(map[string]interface{})
	if first["id"] != "eu-reference" {
		t.Errorf("expected built-in eu-reference scenario, got %v", first["id"])
	}
}

func TestPCFRunWithScenario(t *testing.T) {
	r, _ := setupAPITest(t)
	registerTestProduct(t, r, "fan-unit")
	uploadTestBOM(t, r, "fan-unit", []map[string]interface{}{
		{"line_no": 1, "material_or_process_name": "steel", "quantity": 2, "unit": "kg"},
	})

	w := testutil.DoRequest(r, http.MethodPost, "/pcf/run", map[string]interface{}{
		"product_id":  "fan-unit",
		"scenario_id": "eu-reference",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("PCF run with scenario returned %d: %s", w.Code, w.Body.String())
	}
	body := testutil.ParseResponse(w)
	if body["scenario_id"] != "eu-reference" {
		t.Errorf("run must record its scenario, got %v", body["scenario_id"])
	}

	w = testutil.DoRequest(r, http.MethodPost, "/pcf/run", map[string]interface{}{
		"product_id":  "fan-unit",
		"scenario_id": "no-such-scenario",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown scenario must return 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCircularityRunEndpoint(t *testing.T) {
	r, _ := setupAPITest(t)
	registerTestProduct(t, r, "fan-unit")
	uploadTestBOM(t, r, "fan-unit", []map[string]interface{}{
		{"line_no": 1, "material_or_process_name": "steel", "quantity": 2, "unit": "kg"},
		{"line_no": 2, "material_or_process_name": "unobtainium crystal", "quantity": 1, "unit": "kg"},
	})

	w := testutil.DoRequest(r, http.MethodPost, "/circularity/run", map[string]interface{}{
		"product_id": "fan-unit",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("circularity run returned %d: %s", w.Code, w.Body.String())
	}
	body := testutil.ParseResponse(w)
	if body["status"] != "completed" {
		t.Errorf("circularity must complete despite unmapped lines, got %v", body["status"])
	}
}
