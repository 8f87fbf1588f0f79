// Package app wires the adapters to the use cases from environment config.
package app

import (
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/slabworks/visualizer/internal/adapters/analytics/posthog"
	"github.com/slabworks/visualizer/internal/adapters/crm/highlevel"
	"github.com/slabworks/visualizer/internal/adapters/generation"
	"github.com/slabworks/visualizer/internal/adapters/httpserver"
	"github.com/slabworks/visualizer/internal/adapters/notify/resend"
	"github.com/slabworks/visualizer/internal/adapters/notify/twilio"
	"github.com/slabworks/visualizer/internal/adapters/repo/postgres"
	"github.com/slabworks/visualizer/internal/adapters/storage/supabase"
	"github.com/slabworks/visualizer/internal/catalog"
	"github.com/slabworks/visualizer/internal/domain"
	"github.com/slabworks/visualizer/internal/usecase"
	"github.com/slabworks/visualizer/internal/wizard"
)

type App struct {
	DB *gorm.DB

	LeadUC     *usecase.LeadUC
	MaterialUC *usecase.MaterialUC
	LineUC     *usecase.LineUC
	SessionUC  *usecase.SessionUC
	Analytics  *usecase.AnalyticsUC

	Catalog   *catalog.Loader
	Hub       *wizard.Hub
	Generator wizard.Generator

	Orgs  domain.OrgRepo
	Leads domain.LeadRepo

	OAuthConfig *oauth2.Config
}

func NewApp(db *gorm.DB) (*App, error) {
	orgRepo := postgres.NewOrgRepo(db)
	materialRepo := postgres.NewMaterialRepo(db)
	leadRepo := postgres.NewLeadRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)
	assignmentRepo := postgres.NewAssignmentRepo(db)

	storage := supabase.NewStorage(
		os.Getenv("SUPABASE_URL"),
		envOr("SUPABASE_BUCKET", "materials"),
		os.Getenv("SUPABASE_SERVICE_KEY"),
	)

	var sms domain.SMSSender
	var verifier domain.PhoneVerifier
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		tw := twilio.NewClient(sid,
			os.Getenv("TWILIO_AUTH_TOKEN"),
			os.Getenv("TWILIO_FROM_NUMBER"),
			os.Getenv("TWILIO_VERIFY_SID"))
		sms = tw
		verifier = tw
	}

	var email domain.EmailSender
	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		email = resend.NewClient(key, envOr("EMAIL_FROM", "leads@visualizer.app"))
	}

	var crm domain.ContactCRM
	if token := os.Getenv("HIGHLEVEL_API_TOKEN"); token != "" {
		crm = highlevel.NewClient(token, os.Getenv("HIGHLEVEL_LOCATION_ID"))
	}

	var sink domain.AnalyticsSink
	var source domain.AnalyticsSource
	if key := os.Getenv("POSTHOG_PROJECT_KEY"); key != "" {
		ph := posthog.NewClient(
			envOr("POSTHOG_HOST", "https://us.i.posthog.com"),
			key,
			os.Getenv("POSTHOG_PERSONAL_KEY"),
			os.Getenv("POSTHOG_PROJECT_ID"))
		sink = ph
		source = ph
	}

	gen := generation.NewClient(os.Getenv("GENERATION_API_URL"), os.Getenv("GENERATION_API_KEY"))
	orch := wizard.NewOrchestrator(gen)

	var oauthCfg *oauth2.Config
	googleID := os.Getenv("GOOGLE_CLIENT_ID")
	googleSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	baseURL := envOr("BASE_URL", "http://localhost:8080")
	if googleID != "" && googleSecret != "" {
		oauthCfg = &oauth2.Config{
			ClientID:     googleID,
			ClientSecret: googleSecret,
			RedirectURL:  baseURL + "/auth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}

	app := &App{
		DB: db,
		LeadUC: &usecase.LeadUC{
			Leads:           leadRepo,
			Orgs:            orgRepo,
			Sessions:        sessionRepo,
			Assignments:     assignmentRepo,
			Storage:         storage,
			SMS:             sms,
			Email:           email,
			CRM:             crm,
			Analytics:       sink,
			BroadcastPhones: splitList(os.Getenv("SALES_TEAM_PHONES")),
		},
		MaterialUC: &usecase.MaterialUC{Materials: materialRepo, Orgs: orgRepo, Storage: storage},
		LineUC:     &usecase.LineUC{Orgs: orgRepo, AppDomain: os.Getenv("PUBLIC_APP_DOMAIN")},
		SessionUC:  &usecase.SessionUC{Sessions: sessionRepo, Verifier: verifier},
		Catalog:    &catalog.Loader{Orgs: orgRepo, Materials: materialRepo, Storage: storage},
		Hub:        wizard.NewHub(orch.Run),
		Generator:  gen,
		Orgs:       orgRepo,
		Leads:      leadRepo,

		OAuthConfig: oauthCfg,
	}
	if source != nil {
		app.Analytics = usecase.NewAnalyticsUC(source)
	}
	return app, nil
}

func (a *App) HTTPHandler() http.Handler {
	return httpserver.New(httpserver.Deps{
		Leads:     a.LeadUC,
		Materials: a.MaterialUC,
		Lines:     a.LineUC,
		Analytics: a.Analytics,
		Sessions:  a.SessionUC,
		Catalog:   a.Catalog,
		Hub:       a.Hub,
		Generator: a.Generator,
		Orgs:      a.Orgs,
		LeadRepo:  a.Leads,
		OAuth:     a.OAuthConfig,
	})
}

func (a *App) Migrate() error {
	if err := a.DB.AutoMigrate(
		&domain.Organization{}, &domain.MaterialLine{}, &domain.Material{},
		&domain.KitchenImage{}, &domain.Lead{}, &domain.VisitorSession{},
		&domain.Profile{}, &domain.NotificationAssignment{},
	); err != nil {
		return err
	}

	_ = a.DB.Exec("ALTER TABLE leads ADD COLUMN IF NOT EXISTS session_id UUID").Error
	_ = a.DB.Exec("ALTER TABLE leads ADD COLUMN IF NOT EXISTS ab_variant VARCHAR(20)").Error
	_ = a.DB.Exec("ALTER TABLE leads ADD COLUMN IF NOT EXISTS sms_notifications BOOLEAN DEFAULT false").Error
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_leads_material_line_created ON leads(material_line_id, created_at DESC)").Error
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_visitor_sessions_phone ON visitor_sessions(phone)").Error

	_ = a.DB.Exec("ALTER TABLE material_lines ADD COLUMN IF NOT EXISTS custom_domain VARCHAR(255)").Error
	_ = a.DB.Exec("ALTER TABLE material_lines ADD COLUMN IF NOT EXISTS domain_verified BOOLEAN DEFAULT false").Error
	_ = a.DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_material_lines_custom_domain ON material_lines (custom_domain) WHERE custom_domain IS NOT NULL AND custom_domain <> ''").Error

	_ = a.DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_line_profile ON notification_assignments (material_line_id, profile_id)").Error

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
