package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slabworks/visualizer/internal/adapters/httpserver"
	"github.com/slabworks/visualizer/internal/adapters/repo/memory"
	"github.com/slabworks/visualizer/internal/catalog"
	"github.com/slabworks/visualizer/internal/domain"
	"github.com/slabworks/visualizer/internal/usecase"
	"github.com/slabworks/visualizer/internal/wizard"
)

type fakeGenerator struct {
	fail bool
}

func (g *fakeGenerator) Generate(_ context.Context, req wizard.GenerationRequest) (string, error) {
	if g.fail {
		return "", fmt.Errorf("provider down")
	}
	return "data:image/jpeg;base64,Zm9v", nil
}

type harness struct {
	handler http.Handler
	store   *memory.Store
	storage *memory.FileStorage
	leadUC  *usecase.LeadUC
	line    *domain.MaterialLine
}

func newHarness(t *testing.T) *harness {
	t.Setenv("ADMIN_ALLOWED_EMAILS", "admin@example.com")
	t.Setenv("ADMIN_API_KEY", "test-admin-key")
	t.Setenv("JWT_ADMIN_SECRET", "test-secret")
	t.Setenv("OPENAI_API_KEY", "")

	store := memory.NewStore()
	storage := memory.NewFileStorage()
	ctx := context.Background()

	lineUC := &usecase.LineUC{Orgs: store, AppDomain: "visualizer.app"}
	org, err := lineUC.CreateOrganization(ctx, "Stone Co")
	require.NoError(t, err)
	line, err := lineUC.CreateLine(ctx, org.ID, usecase.CreateLineInput{Name: "Premium"})
	require.NoError(t, err)

	leadUC := &usecase.LeadUC{Leads: store, Orgs: store, Sessions: store, Storage: storage}
	gen := &fakeGenerator{}
	hub := wizard.NewHub(func(_ context.Context, _ string, slab domain.SlabOption) wizard.Result {
		return wizard.Result{SlabID: slab.ID, SlabName: slab.Name, ImageData: "data:image/jpeg;base64,Zm9v"}
	})

	h := httpserver.New(httpserver.Deps{
		Leads:     leadUC,
		Materials: &usecase.MaterialUC{Materials: store, Orgs: store, Storage: storage},
		Lines:     lineUC,
		Sessions:  &usecase.SessionUC{Sessions: store},
		Catalog:   &catalog.Loader{Orgs: store, Materials: store, Storage: storage},
		Hub:       hub,
		Generator: gen,
		Orgs:      store,
		LeadRepo:  store,
	})
	return &harness{handler: h, store: store, storage: storage, leadUC: leadUC, line: line}
}

func (h *harness) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSubmitLead_MissingFields(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/submit-lead", map[string]any{
		"name": "Jane", "email": "jane@example.com",
	}, nil)
	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "required")
}

func TestSubmitLead_BadEmail(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/submit-lead", map[string]any{
		"name": "Jane", "email": "not-an-email", "address": "12 Main St",
	}, nil)
	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "email")
}

func TestSubmitLead_Success(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/submit-lead", map[string]any{
		"name":    "Jane Doe",
		"email":   "jane@example.com",
		"address": "12 Main St",
		"phone":   "+15550001111",
	}, nil)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["leadId"])
	h.leadUC.Wait()
}

func TestGenerateCountertop(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/generate-countertop", map[string]any{
		"kitchenImage": "data:image/jpeg;base64,a2l0Y2hlbg==",
		"slabImage":    "data:image/jpeg;base64,c2xhYg==",
		"slabId":       "builtin-blue-pearl",
	}, nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "data:image/jpeg;base64,Zm9v", decode(t, rec)["imageData"])

	rec = h.do(t, http.MethodPost, "/api/generate-countertop", map[string]any{
		"slabImage": "data:image/jpeg;base64,c2xhYg==",
	}, nil)
	assert.Equal(t, 400, rec.Code)
}

func TestCatalog_FallsBackToBuiltin(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/catalog/stone-co/premium", nil, nil)
	require.Equal(t, 200, rec.Code)
	body := decode(t, rec)
	slabs := body["slabs"].([]any)
	assert.Len(t, slabs, 6, "empty tenant serves the sample catalog")

	rec = h.do(t, http.MethodGet, "/api/catalog/stone-co/nope", nil, nil)
	assert.Equal(t, 404, rec.Code)
}

func TestTheme_ResolvesSubdomain(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/theme?host=premium.visualizer.app", nil, nil)
	require.Equal(t, 200, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, h.line.ID.String(), body["lineId"])
	theme := body["theme"].(map[string]any)
	assert.Equal(t, "#0f172a", theme["--brand-primary"])

	rec = h.do(t, http.MethodGet, "/api/theme?host=unknown.visualizer.app", nil, nil)
	assert.Equal(t, 404, rec.Code)
}

func TestSession_TouchAssignsVariant(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/session", map[string]any{
		"utmSource": "google",
	}, nil)
	require.Equal(t, 200, rec.Code)
	body := decode(t, rec)
	assert.NotEmpty(t, body["sessionId"])
	assert.Contains(t, []any{"A", "B"}, body["abVariant"])
	assert.Equal(t, false, body["phoneVerified"])
}

func TestVisualizerFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/visualizer", nil, nil)
	require.Equal(t, 201, rec.Code)
	id := decode(t, rec)["visualizerId"].(string)

	rec = h.do(t, http.MethodPost, "/api/visualizer/"+id+"/kitchen", map[string]any{
		"image": "data:image/jpeg;base64,a2l0Y2hlbg==",
	}, nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "select_materials", decode(t, rec)["step"])

	slab := map[string]any{"id": "builtin-blue-pearl", "name": "Blue Pearl", "imageUrl": "/assets/slabs/blue-pearl.jpg"}
	rec = h.do(t, http.MethodPost, "/api/visualizer/"+id+"/toggle", slab, nil)
	require.Equal(t, 200, rec.Code)
	assert.Len(t, decode(t, rec)["selected"], 1)

	rec = h.do(t, http.MethodPost, "/api/visualizer/"+id+"/generate", nil, nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "results", decode(t, rec)["step"])

	rec = h.do(t, http.MethodPost, "/api/visualizer/"+id+"/back", nil, nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "select_materials", decode(t, rec)["step"])

	rec = h.do(t, http.MethodGet, "/api/visualizer/"+id+"/state", nil, nil)
	require.Equal(t, 200, rec.Code)

	rec = h.do(t, http.MethodDelete, "/api/visualizer/"+id, nil, nil)
	require.Equal(t, 200, rec.Code)

	// explicit close frees the session right away
	rec = h.do(t, http.MethodGet, "/api/visualizer/"+id+"/state", nil, nil)
	assert.Equal(t, 404, rec.Code)
}

func TestVerify_UnconfiguredReturns502(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/verify/start", map[string]any{
		"phone": "+15550001111",
	}, nil)
	assert.Equal(t, 502, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "verification")
}

func TestVisualizer_UnknownSession(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/visualizer/6ba7b810-9dad-11d1-80b4-00c04fd430c8/state", nil, nil)
	assert.Equal(t, 404, rec.Code)
}

func TestDashboard_RequiresAdmin(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/leads?lineId="+h.line.ID.String(), nil, nil)
	assert.Equal(t, 401, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/leads?lineId="+h.line.ID.String(), nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	assert.Equal(t, 401, rec.Code)
}

func adminToken(t *testing.T, h *harness) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/admin/login", map[string]any{"email": "admin@example.com"}, map[string]string{
		"X-Admin-Key": "test-admin-key",
	})
	require.Equal(t, 200, rec.Code, rec.Body.String())
	return decode(t, rec)["token"].(string)
}

func TestAdminLogin_WrongKey(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/admin/login", nil, map[string]string{"X-Admin-Key": "wrong"})
	assert.Equal(t, 401, rec.Code)

	rec = h.do(t, http.MethodPost, "/admin/login", map[string]any{"email": "intruder@example.com"}, map[string]string{
		"X-Admin-Key": "test-admin-key",
	})
	assert.Equal(t, 403, rec.Code)
}

func TestDashboard_LeadListAndDetail(t *testing.T) {
	h := newHarness(t)
	tok := adminToken(t, h)
	auth := map[string]string{"Authorization": "Bearer " + tok}

	rec := h.do(t, http.MethodPost, "/api/submit-lead", map[string]any{
		"name":           "Jane Doe",
		"email":          "jane@example.com",
		"address":        "12 Main St",
		"materialLineId": h.line.ID.String(),
	}, nil)
	require.Equal(t, 200, rec.Code)
	leadID := decode(t, rec)["leadId"].(string)
	h.leadUC.Wait()

	rec = h.do(t, http.MethodGet, "/api/leads?lineId="+h.line.ID.String(), nil, auth)
	require.Equal(t, 200, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["total"])

	rec = h.do(t, http.MethodGet, "/api/leads/"+leadID, nil, auth)
	require.Equal(t, 200, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/leads/export?lineId="+h.line.ID.String(), nil, auth)
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leads.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestDashboard_MaterialUploadAndBranding(t *testing.T) {
	h := newHarness(t)
	tok := adminToken(t, h)
	auth := map[string]string{"Authorization": "Bearer " + tok}
	lineID := h.line.ID.String()

	rec := h.do(t, http.MethodPost, "/api/lines/"+lineID+"/materials", map[string]any{
		"files": []map[string]any{
			{"filename": "blue_pearl.jpg", "title": "Blue Pearl", "dataUrl": "data:image/jpeg;base64,Zm9v"},
			{"filename": "", "dataUrl": ""},
		},
	}, auth)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Len(t, body["items"], 1)
	assert.Len(t, body["errors"], 1)

	rec = h.do(t, http.MethodPut, "/api/lines/"+lineID+"/branding", map[string]any{
		"primaryColor": "#123456",
	}, auth)
	require.Equal(t, 200, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/theme?host=premium.visualizer.app", nil, nil)
	require.Equal(t, 200, rec.Code)
	theme := decode(t, rec)["theme"].(map[string]any)
	assert.Equal(t, "#123456", theme["--brand-primary"])
}

func TestAnalytics_UnconfiguredReturns503(t *testing.T) {
	h := newHarness(t)
	tok := adminToken(t, h)
	rec := h.do(t, http.MethodGet, "/api/analytics/funnel?days=30", nil, map[string]string{
		"Authorization": "Bearer " + tok,
	})
	assert.Equal(t, 503, rec.Code)
}

func TestDashboard_CustomDomainLifecycle(t *testing.T) {
	h := newHarness(t)
	tok := adminToken(t, h)
	auth := map[string]string{"Authorization": "Bearer " + tok}
	lineID := h.line.ID.String()

	rec := h.do(t, http.MethodPut, "/api/lines/"+lineID+"/domain", map[string]any{
		"domain": "Countertops.Example.com",
	}, auth)
	require.Equal(t, 200, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/theme?host=countertops.example.com", nil, nil)
	assert.Equal(t, 404, rec.Code, "unverified domain does not resolve")

	rec = h.do(t, http.MethodPost, "/api/lines/"+lineID+"/verify-domain", nil, auth)
	require.Equal(t, 200, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/theme?host=countertops.example.com", nil, nil)
	assert.Equal(t, 200, rec.Code)
}
