// Package httpserver exposes the visualizer JSON API: the public storefront
// endpoints, the wizard session routes and the authenticated dashboard CRUD.
package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2"

	"github.com/slabworks/visualizer/internal/catalog"
	"github.com/slabworks/visualizer/internal/domain"
	"github.com/slabworks/visualizer/internal/usecase"
	"github.com/slabworks/visualizer/internal/wizard"
)

type Server struct {
	mux *http.ServeMux

	leadUC    *usecase.LeadUC
	materials *usecase.MaterialUC
	lines     *usecase.LineUC
	analytics *usecase.AnalyticsUC
	sessions  *usecase.SessionUC
	catalog   *catalog.Loader
	hub       *wizard.Hub
	generator wizard.Generator
	orgs      domain.OrgRepo
	leads     domain.LeadRepo
	oauthCfg  *oauth2.Config

	adminAllowed map[string]struct{}
	adminSecret  []byte
}

type Deps struct {
	Leads     *usecase.LeadUC
	Materials *usecase.MaterialUC
	Lines     *usecase.LineUC
	Analytics *usecase.AnalyticsUC
	Sessions  *usecase.SessionUC
	Catalog   *catalog.Loader
	Hub       *wizard.Hub
	Generator wizard.Generator
	Orgs      domain.OrgRepo
	LeadRepo  domain.LeadRepo
	OAuth     *oauth2.Config
}

func New(d Deps) http.Handler {
	s := &Server{
		mux:       http.NewServeMux(),
		leadUC:    d.Leads,
		materials: d.Materials,
		lines:     d.Lines,
		analytics: d.Analytics,
		sessions:  d.Sessions,
		catalog:   d.Catalog,
		hub:       d.Hub,
		generator: d.Generator,
		orgs:      d.Orgs,
		leads:     d.LeadRepo,
		oauthCfg:  d.OAuth,
	}

	allowed := map[string]struct{}{}
	if raw := os.Getenv("ADMIN_ALLOWED_EMAILS"); raw != "" {
		for _, e := range strings.Split(raw, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e != "" {
				allowed[e] = struct{}{}
			}
		}
	}
	s.adminAllowed = allowed
	sec := os.Getenv("JWT_ADMIN_SECRET")
	if sec == "" {
		sec = os.Getenv("SECRET_KEY")
	}
	if sec == "" {
		sec = "dev-admin-secret"
	}
	s.adminSecret = []byte(sec)

	s.routes()
	return Chain(s.mux,
		PublicRateLimit(map[string]int{
			"/api/submit-lead":  10,
			"/api/verify/start": 5,
			"/api/verify/check": 10,
		}),
		RateLimit(120),
		Gzip,
		RequestID,
		Recovery,
		Logging,
	)
}

func (s *Server) routes() {
	// public storefront
	s.mux.HandleFunc("/api/submit-lead", s.apiSubmitLead)
	s.mux.HandleFunc("/api/generate-countertop", s.apiGenerateCountertop)
	s.mux.HandleFunc("/api/catalog/", s.apiCatalog)
	s.mux.HandleFunc("/api/theme", s.apiTheme)
	s.mux.HandleFunc("/api/session", s.apiSession)
	s.mux.HandleFunc("/api/verify/start", s.apiVerifyStart)
	s.mux.HandleFunc("/api/verify/check", s.apiVerifyCheck)
	s.mux.HandleFunc("/api/visualizer", s.apiVisualizerCreate)
	s.mux.HandleFunc("/api/visualizer/", s.apiVisualizer)

	// dashboard
	s.mux.HandleFunc("/api/orgs", s.apiOrgs)
	s.mux.HandleFunc("/api/lines", s.apiLines)
	s.mux.HandleFunc("/api/lines/", s.apiLineByID)
	s.mux.HandleFunc("/api/materials/", s.apiMaterialByID)
	s.mux.HandleFunc("/api/leads", s.apiLeads)
	s.mux.HandleFunc("/api/leads/export", s.apiLeadsExport)
	s.mux.HandleFunc("/api/leads/", s.apiLeadByID)
	s.mux.HandleFunc("/api/analytics/funnel", s.apiAnalyticsFunnel)
	s.mux.HandleFunc("/api/analytics/events", s.apiAnalyticsEvents)

	// auth
	s.mux.HandleFunc("/auth/google/login", s.handleGoogleLogin)
	s.mux.HandleFunc("/auth/google/callback", s.handleGoogleCallback)
	s.mux.HandleFunc("/admin/login", s.handleAdminLogin)
	s.mux.HandleFunc("/admin/logout", s.handleAdminLogout)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// --- public API ---

func (s *Server) apiSubmitLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, 405, "method not allowed")
		return
	}
	var in usecase.SubmitLeadInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	lead, err := s.leadUC.Submit(r.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, 400, err.Error())
			return
		}
		log.Error().Err(err).Msg("lead insert failed")
		writeError(w, 500, "could not save lead")
		return
	}
	writeJSON(w, 200, map[string]any{
		"success": true,
		"leadId":  lead.ID.String(),
		"message": "Thanks! A design consultant will reach out shortly.",
	})
}

func (s *Server) apiGenerateCountertop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, 405, "method not allowed")
		return
	}
	var req wizard.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	if req.KitchenImage == "" || req.SlabImage == "" {
		writeError(w, 400, "kitchenImage and slabImage are required")
		return
	}
	img, err := s.generator.Generate(r.Context(), req)
	if err != nil {
		log.Warn().Err(err).Str("slab", req.SlabID).Msg("generation failed")
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"imageData": img})
}

// apiCatalog serves GET /api/catalog/{orgSlug}/{lineSlug}.
func (s *Server) apiCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, 405, "method not allowed")
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/catalog/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, 400, "expected /api/catalog/{org}/{line}")
		return
	}
	line, err := s.orgs.FindLineBySlug(r.Context(), parts[1])
	if err != nil {
		writeError(w, 404, "material line not found")
		return
	}
	writeJSON(w, 200, map[string]any{
		"slabs":    s.catalog.SlabOptions(r.Context(), line),
		"kitchens": s.catalog.KitchenOptions(r.Context(), line),
	})
}

// apiTheme maps the request host (custom domain or subdomain) to the line's
// branding and CSS variable table.
func (s *Server) apiTheme(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, 405, "method not allowed")
		return
	}
	host := r.URL.Query().Get("host")
	if host == "" {
		host = r.Host
	}
	line, err := s.lines.ResolveHost(r.Context(), host)
	if err != nil {
		writeError(w, 404, "no storefront for host")
		return
	}
	writeJSON(w, 200, map[string]any{
		"lineId":       line.ID.String(),
		"name":         line.Name,
		"displayTitle": line.DisplayTitle,
		"logoUrl":      line.LogoURL,
		"theme":        s.lines.Theme(line),
	})
}

func (s *Server) apiSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, 405, "method not allowed")
		return
	}
	var in usecase.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	sess, err := s.sessions.Touch(r.Context(), in)
	if err != nil {
		writeError(w, 500, "could not save session")
		return
	}
	writeJSON(w, 200, map[string]any{
		"sessionId":     sess.ID.String(),
		"abVariant":     sess.ABVariant,
		"phoneVerified": sess.PhoneVerified(time.Now()),
	})
}

func (s *Server) apiVerifyStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, 405, "method not allowed")
		return
	}
	var in struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	if err := s.sessions.StartPhoneVerification(r.Context(), in.Phone); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, 400, err.Error())
			return
		}
		log.Warn().Err(err).Msg("verification start failed")
		writeError(w, 502, "could not start verification")
		return
	}
	writeJSON(w, 200, map[string]any{"success": true})
}

func (s *Server) apiVerifyCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, 405, "method not allowed")
		return
	}
	var in struct {
		SessionID string `json:"sessionId"`
		Phone     string `json:"phone"`
		Code      string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	sid, err := uuid.Parse(in.SessionID)
	if err != nil {
		writeError(w, 400, "invalid sessionId")
		return
	}
	ok, err := s.sessions.CheckPhoneVerification(r.Context(), sid, in.Phone, in.Code)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, 400, err.Error())
			return
		}
		log.Warn().Err(err).Msg("verification check failed")
		writeError(w, 502, "could not check verification")
		return
	}
	writeJSON(w, 200, map[string]any{"verified": ok})
}

// --- wizard session API ---

func (s *Server) apiVisualizerCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, 405, "method not allowed")
		return
	}
	id, sess := s.hub.Create()
	writeJSON(w, 201, map[string]any{"visualizerId": id.String(), "state": sess.State()})
}

// apiVisualizer routes /api/visualizer/{id}/{action}.
func (s *Server) apiVisualizer(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/visualizer/"), "/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, 400, "invalid visualizer id")
		return
	}
	sess, ok := s.hub.Get(id)
	if !ok {
		writeError(w, 404, "visualizer session not found")
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	if r.Method == http.MethodGet && (action == "" || action == "state") {
		writeJSON(w, 200, sess.State())
		return
	}
	if r.Method == http.MethodDelete && action == "" {
		s.hub.Delete(id)
		writeJSON(w, 200, map[string]any{"closed": true})
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, 405, "method not allowed")
		return
	}

	switch action {
	case "kitchen":
		var in struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Image == "" {
			writeError(w, 400, "image required")
			return
		}
		if err := sess.SelectKitchen(in.Image); err != nil {
			writeError(w, 400, err.Error())
			return
		}
	case "toggle":
		var slab domain.SlabOption
		if err := json.NewDecoder(r.Body).Decode(&slab); err != nil || slab.ID == "" {
			writeError(w, 400, "slab required")
			return
		}
		if err := sess.ToggleSlab(slab); err != nil {
			writeError(w, 400, err.Error())
			return
		}
	case "generate":
		if err := sess.Generate(r.Context()); err != nil {
			writeError(w, 400, err.Error())
			return
		}
	case "retry":
		var in struct {
			SlabID string `json:"slabId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.SlabID == "" {
			writeError(w, 400, "slabId required")
			return
		}
		if err := sess.Retry(r.Context(), in.SlabID); err != nil {
			writeError(w, 400, err.Error())
			return
		}
	case "back":
		sess.Back()
	case "reset":
		sess.Reset()
	default:
		writeError(w, 404, "unknown action")
		return
	}
	writeJSON(w, 200, sess.State())
}

// --- dashboard API ---

func (s *Server) apiOrgs(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, 405, "method not allowed")
		return
	}
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	org, err := s.lines.CreateOrganization(r.Context(), in.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, 201, org)
}

func (s *Server) apiLines(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		orgID, err := uuid.Parse(r.URL.Query().Get("orgId"))
		if err != nil {
			writeError(w, 400, "orgId required")
			return
		}
		list, err := s.orgs.ListLines(r.Context(), orgID)
		if err != nil {
			writeError(w, 500, "list failed")
			return
		}
		writeJSON(w, 200, map[string]any{"items": list})
	case http.MethodPost:
		var in struct {
			OrgID string `json:"orgId"`
			usecase.CreateLineInput
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, 400, "invalid json")
			return
		}
		orgID, err := uuid.Parse(in.OrgID)
		if err != nil {
			writeError(w, 400, "orgId required")
			return
		}
		line, err := s.lines.CreateLine(r.Context(), orgID, in.CreateLineInput)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, 201, line)
	default:
		writeError(w, 405, "method not allowed")
	}
}

// apiLineByID routes /api/lines/{id}[/branding|domain|verify-domain|
// materials|materials/delete-all|kitchens|kitchens/{id}].
func (s *Server) apiLineByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/lines/"), "/")
	parts := strings.SplitN(rest, "/", 3)
	lineID, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, 400, "invalid line id")
		return
	}
	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		line, err := s.orgs.FindLine(r.Context(), lineID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, 200, line)
	case sub == "branding" && r.Method == http.MethodPut:
		var in usecase.BrandingInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, 400, "invalid json")
			return
		}
		line, err := s.lines.UpdateBranding(r.Context(), lineID, in)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, 200, line)
	case sub == "domain" && r.Method == http.MethodPut:
		var in struct {
			Domain string `json:"domain"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, 400, "invalid json")
			return
		}
		line, err := s.lines.SetCustomDomain(r.Context(), lineID, in.Domain)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, 200, line)
	case sub == "verify-domain" && r.Method == http.MethodPost:
		line, err := s.lines.VerifyDomain(r.Context(), lineID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, 200, line)
	case sub == "materials":
		s.lineMaterials(w, r, lineID, parts)
	case sub == "kitchens":
		s.lineKitchens(w, r, lineID, parts)
	default:
		writeError(w, 404, "not found")
	}
}

type materialUploadPayload struct {
	Files     []usecase.MaterialUpload `json:"files"`
	AutoTitle bool                     `json:"autoTitle"`
}

func (s *Server) lineMaterials(w http.ResponseWriter, r *http.Request, lineID uuid.UUID, parts []string) {
	if len(parts) == 3 && parts[2] == "delete-all" && r.Method == http.MethodPost {
		n, errs := s.materials.DeleteAll(r.Context(), lineID)
		writeJSON(w, 200, map[string]any{"deleted": n, "errors": errs})
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := s.materials.List(r.Context(), lineID)
		if err != nil {
			writeError(w, 500, "list failed")
			return
		}
		writeJSON(w, 200, map[string]any{"items": list})
	case http.MethodPost:
		var in materialUploadPayload
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, 400, "invalid json")
			return
		}
		if in.AutoTitle {
			s.enrichUploads(r.Context(), in.Files)
		}
		saved, errs := s.materials.BulkUpload(r.Context(), lineID, in.Files)
		code := 201
		if len(saved) == 0 && len(errs) > 0 {
			code = 400
		}
		writeJSON(w, code, map[string]any{"items": saved, "errors": errs})
	default:
		writeError(w, 405, "method not allowed")
	}
}

func (s *Server) lineKitchens(w http.ResponseWriter, r *http.Request, lineID uuid.UUID, parts []string) {
	if len(parts) == 3 && r.Method == http.MethodDelete {
		id, err := uuid.Parse(parts[2])
		if err != nil {
			writeError(w, 400, "invalid kitchen image id")
			return
		}
		if err := s.materials.DeleteKitchenImage(r.Context(), lineID, id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"deleted": true})
		return
	}
	switch r.Method {
	case http.MethodPost:
		var in usecase.MaterialUpload
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, 400, "invalid json")
			return
		}
		k, err := s.materials.AddKitchenImage(r.Context(), lineID, in)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, 201, k)
	default:
		writeError(w, 405, "method not allowed")
	}
}

func (s *Server) apiMaterialByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/materials/"), "/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, 400, "invalid material id")
		return
	}
	switch r.Method {
	case http.MethodPut:
		var in usecase.MaterialUpdate
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, 400, "invalid json")
			return
		}
		m, err := s.materials.Update(r.Context(), id, in)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, 200, m)
	case http.MethodDelete:
		if err := s.materials.Delete(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"deleted": true})
	default:
		writeError(w, 405, "method not allowed")
	}
}

func (s *Server) apiLeads(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, 405, "method not allowed")
		return
	}
	lineID, err := uuid.Parse(r.URL.Query().Get("lineId"))
	if err != nil {
		writeError(w, 400, "lineId required")
		return
	}
	f := domain.LeadFilter{Query: r.URL.Query().Get("q")}
	f.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	f.PageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	list, total, err := s.leads.ListLeadsByLine(r.Context(), lineID, f)
	if err != nil {
		writeError(w, 500, "list failed")
		return
	}
	writeJSON(w, 200, map[string]any{"items": list, "total": total})
}

func (s *Server) apiLeadByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, 405, "method not allowed")
		return
	}
	idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/leads/"), "/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, 400, "invalid lead id")
		return
	}
	lead, err := s.leads.FindLead(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, 200, lead)
}

var leadExportHeader = []string{
	"Created", "Name", "Email", "Phone", "Address", "Slab", "AB Variant",
	"UTM Source", "UTM Medium", "UTM Campaign", "Referrer", "Image URL",
}

func (s *Server) apiLeadsExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, 405, "method not allowed")
		return
	}
	lineID, err := uuid.Parse(r.URL.Query().Get("lineId"))
	if err != nil {
		writeError(w, 400, "lineId required")
		return
	}
	list, _, err := s.leads.ListLeadsByLine(r.Context(), lineID, domain.LeadFilter{PageSize: 10000})
	if err != nil {
		writeError(w, 500, "list failed")
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Leads"
	_ = f.SetSheetName(f.GetSheetName(0), sheet)
	for i, h := range leadExportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for row, l := range list {
		values := []any{
			l.CreatedAt.Format("2006-01-02 15:04"),
			l.Name, l.Email, l.Phone, l.Address, l.SelectedSlabName,
			l.ABVariant, l.UTMSource, l.UTMMedium, l.UTMCampaign,
			l.Referrer, l.SelectedImageURL,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.xlsx"`)
	if err := f.Write(w); err != nil {
		log.Error().Err(err).Msg("xlsx write failed")
	}
}

func (s *Server) apiAnalyticsFunnel(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, 405, "method not allowed")
		return
	}
	if s.analytics == nil {
		writeError(w, 503, "analytics not configured")
		return
	}
	q := r.URL.Query()
	days, _ := strconv.Atoi(q.Get("days"))
	counts, err := s.analytics.Funnel(r.Context(), q.Get("lineId"), days, q.Get("utmSource"), q.Get("utmCampaign"))
	if err != nil {
		log.Warn().Err(err).Msg("funnel query failed")
		writeError(w, 502, "analytics unavailable")
		return
	}
	writeJSON(w, 200, map[string]any{"funnel": counts, "steps": usecase.FunnelEvents})
}

func (s *Server) apiAnalyticsEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, 405, "method not allowed")
		return
	}
	if s.analytics == nil {
		writeError(w, 503, "analytics not configured")
		return
	}
	q := r.URL.Query()
	days, _ := strconv.Atoi(q.Get("days"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	events, err := s.analytics.RecentEvents(r.Context(), domain.EventQuery{
		Event:          q.Get("event"),
		MaterialLineID: q.Get("lineId"),
		Days:           days,
		UTMSource:      q.Get("utmSource"),
		UTMCampaign:    q.Get("utmCampaign"),
	}, limit)
	if err != nil {
		log.Warn().Err(err).Msg("event query failed")
		writeError(w, 502, "analytics unavailable")
		return
	}
	writeJSON(w, 200, map[string]any{"items": events})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, 400, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, 404, "not found")
	default:
		writeError(w, 500, "internal error")
	}
}

// --- auth ---

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil {
		writeError(w, 500, "oauth not configured")
		return
	}
	state := uuid.New().String()
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: state, Path: "/", MaxAge: 300, HttpOnly: true})
	http.Redirect(w, r, s.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOnline), 302)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil {
		writeError(w, 500, "oauth not configured")
		return
	}
	q := r.URL.Query()
	c, _ := r.Cookie("oauth_state")
	if c == nil || c.Value == "" || c.Value != q.Get("state") {
		writeError(w, 400, "state mismatch")
		return
	}
	tok, err := s.oauthCfg.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		log.Error().Err(err).Msg("oauth exchange")
		writeError(w, 400, "oauth exchange failed")
		return
	}
	client := s.oauthCfg.Client(r.Context(), tok)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v3/userinfo")
	if err != nil || resp.StatusCode != 200 {
		writeError(w, 400, "userinfo fetch failed")
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var info struct {
		Email string `json:"email"`
	}
	_ = json.Unmarshal(body, &info)
	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" {
		writeError(w, 400, "no email in profile")
		return
	}
	if _, ok := s.adminAllowed[email]; !ok {
		writeError(w, 403, "not allowed")
		return
	}
	adminTok, _, err := s.issueAdminToken(email, 6*time.Hour)
	if err != nil {
		writeError(w, 500, "token issue failed")
		return
	}
	secure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{Name: "admin_token", Value: adminTok, Path: "/", MaxAge: 60 * 60 * 6, HttpOnly: true, Secure: secure, SameSite: http.SameSiteStrictMode})
	http.Redirect(w, r, "/dashboard", 302)
}

// handleAdminLogin exchanges the shared API key for a short-lived token.
// Kept for programmatic dashboard access alongside the OAuth path.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, 405, "method not allowed")
		return
	}
	cfgKey := os.Getenv("ADMIN_API_KEY")
	if cfgKey == "" {
		log.Error().Msg("ADMIN_API_KEY missing")
		writeError(w, 500, "not configured")
		return
	}
	apiKey := r.Header.Get("X-Admin-Key")
	if apiKey == "" || !secureCompare(apiKey, cfgKey) {
		writeError(w, 401, "unauthorized")
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" && len(s.adminAllowed) == 1 {
		for k := range s.adminAllowed {
			email = k
		}
	}
	if _, ok := s.adminAllowed[email]; !ok {
		writeError(w, 403, "forbidden")
		return
	}
	tok, exp, err := s.issueAdminToken(email, 30*time.Minute)
	if err != nil {
		writeError(w, 500, "token issue failed")
		return
	}
	writeJSON(w, 200, map[string]any{"token": tok, "exp": exp.Unix(), "email": email})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	secure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{Name: "admin_token", Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: secure, SameSite: http.SameSiteStrictMode})
	writeJSON(w, 200, map[string]any{"success": true})
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		if _, err := s.verifyAdminToken(strings.TrimSpace(auth[7:])); err == nil {
			return true
		}
	}
	if c, err := r.Cookie("admin_token"); err == nil && c.Value != "" {
		if _, err := s.verifyAdminToken(c.Value); err == nil {
			return true
		}
	}
	writeError(w, 401, "unauthorized")
	return false
}

func (s *Server) issueAdminToken(email string, dur time.Duration) (string, time.Time, error) {
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	exp := time.Now().Add(dur)
	claims := map[string]any{"sub": email, "email": email, "role": "admin", "exp": exp.Unix(), "iat": time.Now().Unix(), "iss": "visualizer"}
	b, _ := json.Marshal(claims)
	pay := base64.RawURLEncoding.EncodeToString(b)
	unsigned := head + "." + pay
	h := hmac.New(sha256.New, s.adminSecret)
	h.Write([]byte(unsigned))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return unsigned + "." + sig, exp, nil
}

func (s *Server) verifyAdminToken(tok string) (string, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("format")
	}
	unsigned := parts[0] + "." + parts[1]
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("signature")
	}
	h := hmac.New(sha256.New, s.adminSecret)
	h.Write([]byte(unsigned))
	if !hmac.Equal(sig, h.Sum(nil)) {
		return "", fmt.Errorf("signature mismatch")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("payload")
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", fmt.Errorf("claims json")
	}
	role, _ := m["role"].(string)
	email, _ := m["email"].(string)
	expF, _ := m["exp"].(float64)
	if role != "admin" || email == "" {
		return "", fmt.Errorf("claims")
	}
	if time.Now().Unix() > int64(expF) {
		return "", fmt.Errorf("expired")
	}
	if _, ok := s.adminAllowed[strings.ToLower(email)]; !ok {
		return "", fmt.Errorf("not allowed")
	}
	return email, nil
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
