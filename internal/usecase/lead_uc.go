package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/slabworks/visualizer/internal/domain"
	"github.com/slabworks/visualizer/internal/imaging"
)

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// LeadUC ingests lead submissions. The lead row insert is the single
// authoritative commit point: everything after it is best-effort fan-out
// that must never fail the request.
type LeadUC struct {
	Leads       domain.LeadRepo
	Orgs        domain.OrgRepo
	Sessions    domain.SessionRepo
	Assignments domain.AssignmentRepo
	Storage     domain.FileStorage
	SMS         domain.SMSSender
	Email       domain.EmailSender
	CRM         domain.ContactCRM
	Analytics   domain.AnalyticsSink

	// BroadcastPhones is the legacy sales-team list (SALES_TEAM_PHONES).
	BroadcastPhones []string

	wg sync.WaitGroup
}

type SubmitLeadInput struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Address          string `json:"address"`
	Phone            string `json:"phone"`
	SMSNotifications bool   `json:"smsNotifications"`

	SelectedSlabID      string `json:"selectedSlabId"`
	SelectedSlabName    string `json:"selectedSlabName"`
	SelectedImageURL    string `json:"selectedImageUrl"`
	SelectedImageBase64 string `json:"selectedImageBase64"`
	OriginalImageURL    string `json:"originalImageUrl"`

	ABVariant      string `json:"abVariant"`
	MaterialLineID string `json:"materialLineId"`
	OrganizationID string `json:"organizationId"`

	UTMSource   string `json:"utmSource"`
	UTMMedium   string `json:"utmMedium"`
	UTMCampaign string `json:"utmCampaign"`
	UTMTerm     string `json:"utmTerm"`
	UTMContent  string `json:"utmContent"`
	Referrer    string `json:"referrer"`
}

// Submit validates, persists and fans out one lead. Returns the stored row;
// a wrapped domain.ErrInvalidInput means the caller sent bad data (400),
// any other error means the authoritative insert failed (500).
func (uc *LeadUC) Submit(ctx context.Context, in SubmitLeadInput) (*domain.Lead, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	address := strings.TrimSpace(in.Address)
	if name == "" || email == "" || address == "" {
		return nil, fmt.Errorf("%w: name, email and address are required", domain.ErrInvalidInput)
	}
	if !emailRe.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}

	lead := &domain.Lead{
		ID:               uuid.New(),
		Name:             name,
		Email:            strings.ToLower(email),
		Address:          address,
		Phone:            strings.TrimSpace(in.Phone),
		SMSNotifications: in.SMSNotifications,
		SelectedSlabName: in.SelectedSlabName,
		SelectedImageURL: in.SelectedImageURL,
		OriginalImageURL: in.OriginalImageURL,
		ABVariant:        in.ABVariant,
		UTMSource:        in.UTMSource,
		UTMMedium:        in.UTMMedium,
		UTMCampaign:      in.UTMCampaign,
		UTMTerm:          in.UTMTerm,
		UTMContent:       in.UTMContent,
		Referrer:         in.Referrer,
		CreatedAt:        time.Now(),
	}
	// built-in catalog slabs carry non-UUID ids; keep those in the name only
	if id, err := uuid.Parse(in.SelectedSlabID); err == nil {
		lead.SelectedSlabID = &id
	}
	if id, err := uuid.Parse(in.MaterialLineID); err == nil {
		lead.MaterialLineID = &id
	}
	if id, err := uuid.Parse(in.OrganizationID); err == nil {
		lead.OrganizationID = &id
	}

	// prior session: ties the lead back to first-touch attribution
	if lead.Phone != "" && uc.Sessions != nil {
		if sess, err := uc.Sessions.FindSessionByPhone(ctx, lead.Phone); err == nil {
			lead.SessionID = &sess.ID
			if lead.ABVariant == "" {
				lead.ABVariant = sess.ABVariant
			}
			if lead.UTMSource == "" {
				lead.UTMSource = sess.UTMSource
				lead.UTMMedium = sess.UTMMedium
				lead.UTMCampaign = sess.UTMCampaign
				lead.UTMTerm = sess.UTMTerm
				lead.UTMContent = sess.UTMContent
			}
			if lead.Referrer == "" {
				lead.Referrer = sess.Referrer
			}
		}
	}

	// optional composite image: upload failure never aborts the lead
	if in.SelectedImageBase64 != "" && lead.MaterialLineID != nil {
		if url, err := uc.uploadLeadImage(ctx, *lead.MaterialLineID, lead.ID, in.SelectedImageBase64); err != nil {
			log.Warn().Err(err).Str("lead", lead.ID.String()).Msg("lead image upload failed, continuing without it")
		} else {
			lead.SelectedImageURL = url
		}
	}

	if err := uc.Leads.SaveLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("save lead: %w", err)
	}

	snapshot := *lead
	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		uc.fanOut(context.Background(), &snapshot)
	}()
	return lead, nil
}

// Wait blocks until in-flight fan-outs finish. Used by shutdown and tests.
func (uc *LeadUC) Wait() { uc.wg.Wait() }

func (uc *LeadUC) uploadLeadImage(ctx context.Context, lineID, leadID uuid.UUID, dataURL string) (string, error) {
	line, err := uc.Orgs.FindLine(ctx, lineID)
	if err != nil {
		return "", fmt.Errorf("resolve line: %w", err)
	}
	orgSlug := ""
	if org, err := uc.Orgs.FindOrganization(ctx, line.OrganizationID); err == nil {
		orgSlug = org.Slug
	}
	compressed := imaging.Compress(dataURL, imaging.MaxUploadWidth, imaging.DefaultQuality)
	mime, data, err := imaging.ParseDataURL(compressed)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	path := line.StoragePrefix(orgSlug) + "/leads/" + leadID.String() + "." + imaging.ExtensionFor(mime)
	return uc.Storage.Upload(ctx, path, mime, data)
}

// fanOut runs every best-effort side effect behind the persisted row.
// Each step is independent: a provider outage must not starve the others.
func (uc *LeadUC) fanOut(ctx context.Context, lead *domain.Lead) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if uc.Analytics != nil {
		props := map[string]any{
			"lead_id":   lead.ID.String(),
			"slab_name": lead.SelectedSlabName,
		}
		if lead.MaterialLineID != nil {
			props["material_line_id"] = lead.MaterialLineID.String()
		}
		if lead.ABVariant != "" {
			props["ab_variant"] = lead.ABVariant
		}
		if lead.UTMSource != "" {
			props["utm_source"] = lead.UTMSource
		}
		if lead.UTMCampaign != "" {
			props["utm_campaign"] = lead.UTMCampaign
		}
		if err := uc.Analytics.Capture(ctx, domain.AnalyticsEvent{
			Name:       "lead_submitted",
			DistinctID: lead.Email,
			Timestamp:  lead.CreatedAt,
			Properties: props,
		}); err != nil {
			log.Warn().Err(err).Str("lead", lead.ID.String()).Msg("analytics capture failed")
		}
	}

	if uc.CRM != nil {
		if err := uc.CRM.UpsertContact(ctx, domain.CRMContact{
			Name:      lead.Name,
			Email:     lead.Email,
			Phone:     lead.Phone,
			Address:   lead.Address,
			Source:    "countertop-visualizer",
			ABVariant: lead.ABVariant,
			Tags:      []string{"visualizer-lead"},
		}); err != nil {
			log.Warn().Err(err).Str("lead", lead.ID.String()).Msg("crm upsert failed")
		}
	}

	uc.notifyAssignees(ctx, lead)
	uc.notifyBroadcast(ctx, lead)

	if lead.SMSNotifications && lead.Phone != "" && uc.SMS != nil {
		msg := fmt.Sprintf("Thanks %s! We received your request and a design consultant will reach out shortly.", firstWord(lead.Name))
		if err := uc.SMS.SendSMS(ctx, lead.Phone, msg); err != nil {
			log.Warn().Err(err).Str("lead", lead.ID.String()).Msg("confirmation sms failed")
		}
	}
}

func (uc *LeadUC) notifyAssignees(ctx context.Context, lead *domain.Lead) {
	if uc.Assignments == nil || lead.MaterialLineID == nil {
		return
	}
	targets, err := uc.Assignments.TargetsByLine(ctx, *lead.MaterialLineID)
	if err != nil {
		log.Warn().Err(err).Str("lead", lead.ID.String()).Msg("assignment lookup failed")
		return
	}
	// tenant sender overrides, when the line configures them
	fromName, fromAddr := "", ""
	if uc.Orgs != nil {
		if line, err := uc.Orgs.FindLine(ctx, *lead.MaterialLineID); err == nil {
			fromName, fromAddr = line.EmailFromName, line.EmailFromAddress
		}
	}
	body := leadSMSBody(lead)
	for _, t := range targets {
		if t.SMSEnabled && t.Phone != "" && uc.SMS != nil {
			var err error
			if lead.SelectedImageURL != "" {
				err = uc.SMS.SendMMS(ctx, t.Phone, body, lead.SelectedImageURL)
			} else {
				err = uc.SMS.SendSMS(ctx, t.Phone, body)
			}
			if err != nil {
				log.Warn().Err(err).Str("to", t.Phone).Msg("assignee sms failed")
			}
		}
		if t.EmailEnabled && t.Email != "" && uc.Email != nil {
			msg := leadEmail(lead, t.Email)
			msg.FromName, msg.From = fromName, fromAddr
			if err := uc.Email.Send(ctx, msg); err != nil {
				log.Warn().Err(err).Str("to", t.Email).Msg("assignee email failed")
			}
		}
	}
}

func (uc *LeadUC) notifyBroadcast(ctx context.Context, lead *domain.Lead) {
	if uc.SMS == nil {
		return
	}
	body := leadSMSBody(lead)
	for _, phone := range uc.BroadcastPhones {
		phone = strings.TrimSpace(phone)
		if phone == "" {
			continue
		}
		if err := uc.SMS.SendSMS(ctx, phone, body); err != nil {
			log.Warn().Err(err).Str("to", phone).Msg("broadcast sms failed")
		}
	}
}

func leadSMSBody(lead *domain.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New lead: %s, %s", lead.Name, lead.Phone)
	if lead.SelectedSlabName != "" {
		fmt.Fprintf(&b, ", interested in %s", lead.SelectedSlabName)
	}
	fmt.Fprintf(&b, ". %s", lead.Address)
	return b.String()
}

func leadEmail(lead *domain.Lead, to string) domain.EmailMessage {
	subject := "New countertop lead: " + lead.Name
	html := fmt.Sprintf(
		`<h2>New lead</h2><p><b>%s</b><br>%s<br>%s<br>%s</p><p>Slab: %s</p>`,
		lead.Name, lead.Email, lead.Phone, lead.Address, lead.SelectedSlabName)
	if lead.SelectedImageURL != "" {
		html += fmt.Sprintf(`<p><img src="%s" alt="selected design" width="480"></p>`, lead.SelectedImageURL)
	}
	return domain.EmailMessage{
		To:      []string{to},
		Subject: subject,
		HTML:    html,
		Text:    leadSMSBody(lead),
	}
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}
