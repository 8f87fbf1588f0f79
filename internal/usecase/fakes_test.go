package usecase_test

import (
	"context"
	"errors"
	"sync"

	"github.com/slabworks/visualizer/internal/domain"
)

type sentSMS struct {
	To, Body, MediaURL string
}

type fakeSMS struct {
	mu   sync.Mutex
	fail bool
	sent []sentSMS
}

func (f *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	return f.record(sentSMS{To: to, Body: body})
}

func (f *fakeSMS) SendMMS(_ context.Context, to, body, mediaURL string) error {
	return f.record(sentSMS{To: to, Body: body, MediaURL: mediaURL})
}

func (f *fakeSMS) record(s sentSMS) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("twilio down")
	}
	f.sent = append(f.sent, s)
	return nil
}

func (f *fakeSMS) messages() []sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSMS(nil), f.sent...)
}

type fakeEmail struct {
	mu   sync.Mutex
	fail bool
	sent []domain.EmailMessage
}

func (f *fakeEmail) Send(_ context.Context, msg domain.EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("resend down")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmail) messages() []domain.EmailMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.EmailMessage(nil), f.sent...)
}

type fakeCRM struct {
	mu       sync.Mutex
	fail     bool
	contacts []domain.CRMContact
}

func (f *fakeCRM) UpsertContact(_ context.Context, c domain.CRMContact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("crm down")
	}
	f.contacts = append(f.contacts, c)
	return nil
}

type fakeAnalytics struct {
	mu     sync.Mutex
	fail   bool
	events []domain.AnalyticsEvent
}

func (f *fakeAnalytics) Capture(_ context.Context, e domain.AnalyticsEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("posthog down")
	}
	f.events = append(f.events, e)
	return nil
}

type fakeVerifier struct {
	mu      sync.Mutex
	started []string
	code    string
}

func (f *fakeVerifier) StartVerification(_ context.Context, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, phone)
	return nil
}

func (f *fakeVerifier) CheckVerification(_ context.Context, _, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return code == f.code, nil
}

type fakeCounts struct {
	mu    sync.Mutex
	calls int
	count int64
	err   error
	gate  chan struct{} // when set, EventCount blocks until closed
}

func (f *fakeCounts) EventCount(_ context.Context, _ domain.EventQuery) (int64, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func (f *fakeCounts) EventMetadata(_ context.Context, _ domain.EventQuery, _ int) ([]map[string]any, error) {
	return nil, nil
}

func (f *fakeCounts) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
