package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slabworks/visualizer/internal/adapters/repo/memory"
	"github.com/slabworks/visualizer/internal/domain"
	"github.com/slabworks/visualizer/internal/usecase"
)

type leadFixture struct {
	store     *memory.Store
	storage   *memory.FileStorage
	sms       *fakeSMS
	email     *fakeEmail
	crm       *fakeCRM
	analytics *fakeAnalytics
	uc        *usecase.LeadUC
	line      *domain.MaterialLine
}

func newLeadFixture(t *testing.T) *leadFixture {
	t.Helper()
	f := &leadFixture{
		store:     memory.NewStore(),
		storage:   memory.NewFileStorage(),
		sms:       &fakeSMS{},
		email:     &fakeEmail{},
		crm:       &fakeCRM{},
		analytics: &fakeAnalytics{},
	}
	ctx := context.Background()
	org := &domain.Organization{Name: "Stone Co", Slug: "stone-co"}
	require.NoError(t, f.store.SaveOrganization(ctx, org))
	f.line = &domain.MaterialLine{OrganizationID: org.ID, Name: "Premium", Slug: "premium"}
	require.NoError(t, f.store.SaveLine(ctx, f.line))
	f.uc = &usecase.LeadUC{
		Leads:       f.store,
		Orgs:        f.store,
		Sessions:    f.store,
		Assignments: f.store,
		Storage:     f.storage,
		SMS:         f.sms,
		Email:       f.email,
		CRM:         f.crm,
		Analytics:   f.analytics,
	}
	return f
}

func validInput(f *leadFixture) usecase.SubmitLeadInput {
	return usecase.SubmitLeadInput{
		Name:           "Jane Doe",
		Email:          "jane@example.com",
		Address:        "12 Main St",
		Phone:          "+15550001111",
		MaterialLineID: f.line.ID.String(),
	}
}

func TestSubmit_RejectsMissingFields(t *testing.T) {
	f := newLeadFixture(t)
	in := validInput(f)
	in.Name = ""
	_, err := f.uc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "required")
}

func TestSubmit_RejectsMalformedEmail(t *testing.T) {
	f := newLeadFixture(t)
	in := validInput(f)
	in.Email = "not-an-email"
	_, err := f.uc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSubmit_SucceedsWhenEveryProviderFails(t *testing.T) {
	f := newLeadFixture(t)
	f.sms.fail = true
	f.email.fail = true
	f.crm.fail = true
	f.analytics.fail = true

	lead, err := f.uc.Submit(context.Background(), validInput(f))
	require.NoError(t, err)
	f.uc.Wait()

	stored, err := f.store.FindLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", stored.Email)
}

func TestSubmit_FansOutToAssignees(t *testing.T) {
	f := newLeadFixture(t)
	ctx := context.Background()

	smsOnly := &domain.Profile{Email: "ana@stone.co", Phone: "+15550002222", FullName: "Ana"}
	emailOnly := &domain.Profile{Email: "bob@stone.co", Phone: "+15550003333", FullName: "Bob"}
	require.NoError(t, f.store.SaveProfile(ctx, smsOnly))
	require.NoError(t, f.store.SaveProfile(ctx, emailOnly))
	require.NoError(t, f.store.SaveAssignment(ctx, &domain.NotificationAssignment{
		MaterialLineID: f.line.ID, ProfileID: smsOnly.ID, SMSEnabled: true,
	}))
	require.NoError(t, f.store.SaveAssignment(ctx, &domain.NotificationAssignment{
		MaterialLineID: f.line.ID, ProfileID: emailOnly.ID, EmailEnabled: true,
	}))

	in := validInput(f)
	in.SelectedSlabName = "Calacatta Gold"
	in.SelectedImageURL = "https://cdn.example.com/result.jpg"
	_, err := f.uc.Submit(ctx, in)
	require.NoError(t, err)
	f.uc.Wait()

	msgs := f.sms.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "+15550002222", msgs[0].To)
	assert.Equal(t, "https://cdn.example.com/result.jpg", msgs[0].MediaURL, "image available: MMS")
	assert.Contains(t, msgs[0].Body, "Calacatta Gold")

	emails := f.email.messages()
	require.Len(t, emails, 1)
	assert.Equal(t, []string{"bob@stone.co"}, emails[0].To)
}

func TestSubmit_BroadcastAndConfirmation(t *testing.T) {
	f := newLeadFixture(t)
	f.uc.BroadcastPhones = []string{"+15550009999", " ", "+15550008888"}

	in := validInput(f)
	in.SMSNotifications = true
	_, err := f.uc.Submit(context.Background(), in)
	require.NoError(t, err)
	f.uc.Wait()

	var broadcast, confirmation int
	for _, m := range f.sms.messages() {
		switch m.To {
		case "+15550009999", "+15550008888":
			broadcast++
		case "+15550001111":
			confirmation++
			assert.Contains(t, m.Body, "Jane")
		}
	}
	assert.Equal(t, 2, broadcast)
	assert.Equal(t, 1, confirmation)
}

func TestSubmit_ResolvesPriorSessionAttribution(t *testing.T) {
	f := newLeadFixture(t)
	ctx := context.Background()
	verified := time.Now()
	sess := &domain.VisitorSession{
		Phone:           "+15550001111",
		PhoneVerifiedAt: &verified,
		ABVariant:       "B",
		UTMSource:       "google",
		UTMCampaign:     "spring",
	}
	require.NoError(t, f.store.SaveSession(ctx, sess))

	lead, err := f.uc.Submit(ctx, validInput(f))
	require.NoError(t, err)
	f.uc.Wait()

	require.NotNil(t, lead.SessionID)
	assert.Equal(t, sess.ID, *lead.SessionID)
	assert.Equal(t, "B", lead.ABVariant)
	assert.Equal(t, "google", lead.UTMSource)
	assert.Equal(t, "spring", lead.UTMCampaign)
}

func TestSubmit_UploadsBase64Image(t *testing.T) {
	f := newLeadFixture(t)
	in := validInput(f)
	// tiny valid data URL; compression degrades to the original
	in.SelectedImageBase64 = "data:image/jpeg;base64,aGVsbG8="

	lead, err := f.uc.Submit(context.Background(), in)
	require.NoError(t, err)
	f.uc.Wait()

	want := "stone-co/premium/leads/" + lead.ID.String() + ".jpg"
	_, ok := f.storage.Object(want)
	assert.True(t, ok, "image stored under the tenant folder")
	assert.Equal(t, "https://storage.local/"+want, lead.SelectedImageURL)
}

func TestSubmit_NonUUIDSlabIDKeptAsNameOnly(t *testing.T) {
	f := newLeadFixture(t)
	in := validInput(f)
	in.SelectedSlabID = "builtin-calacatta-gold"
	in.SelectedSlabName = "Calacatta Gold"

	lead, err := f.uc.Submit(context.Background(), in)
	require.NoError(t, err)
	f.uc.Wait()

	assert.Nil(t, lead.SelectedSlabID)
	assert.Equal(t, "Calacatta Gold", lead.SelectedSlabName)
	require.NotNil(t, lead.MaterialLineID)
	assert.Equal(t, f.line.ID, *lead.MaterialLineID)
}

type failingLeadRepo struct {
	domain.LeadRepo
}

func (failingLeadRepo) SaveLead(context.Context, *domain.Lead) error {
	return errors.New("connection refused")
}

func TestSubmit_InsertFailureIsNotInvalidInput(t *testing.T) {
	f := newLeadFixture(t)
	f.uc.Leads = failingLeadRepo{}

	_, err := f.uc.Submit(context.Background(), validInput(f))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, f.sms.messages(), "no fan-out without the authoritative insert")
}

func TestSubmit_AssigneeEmailUsesTenantSender(t *testing.T) {
	f := newLeadFixture(t)
	ctx := context.Background()
	f.line.EmailFromName = "Premium Stone"
	f.line.EmailFromAddress = "hello@premiumstone.com"
	require.NoError(t, f.store.SaveLine(ctx, f.line))

	p := &domain.Profile{Email: "ana@stone.co", FullName: "Ana"}
	require.NoError(t, f.store.SaveProfile(ctx, p))
	require.NoError(t, f.store.SaveAssignment(ctx, &domain.NotificationAssignment{
		MaterialLineID: f.line.ID, ProfileID: p.ID, EmailEnabled: true,
	}))

	_, err := f.uc.Submit(ctx, validInput(f))
	require.NoError(t, err)
	f.uc.Wait()

	emails := f.email.messages()
	require.Len(t, emails, 1)
	assert.Equal(t, "Premium Stone", emails[0].FromName)
	assert.Equal(t, "hello@premiumstone.com", emails[0].From)
}

func TestSubmit_AnalyticsEventCarriesTenant(t *testing.T) {
	f := newLeadFixture(t)
	in := validInput(f)
	in.ABVariant = "A"
	_, err := f.uc.Submit(context.Background(), in)
	require.NoError(t, err)
	f.uc.Wait()

	f.analytics.mu.Lock()
	defer f.analytics.mu.Unlock()
	require.Len(t, f.analytics.events, 1)
	e := f.analytics.events[0]
	assert.Equal(t, "lead_submitted", e.Name)
	assert.Equal(t, f.line.ID.String(), e.Properties["material_line_id"])
	assert.Equal(t, "A", e.Properties["ab_variant"])
	_, err = uuid.Parse(e.Properties["lead_id"].(string))
	assert.NoError(t, err)
}
