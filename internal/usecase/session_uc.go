package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slabworks/visualizer/internal/domain"
)

// SessionUC tracks visitor sessions: AB bucket assignment, first-touch
// attribution and the verified-phone token gating lead capture.
type SessionUC struct {
	Sessions domain.SessionRepo
	Verifier domain.PhoneVerifier
}

type SessionInput struct {
	SessionID   string `json:"sessionId"`
	UTMSource   string `json:"utmSource"`
	UTMMedium   string `json:"utmMedium"`
	UTMCampaign string `json:"utmCampaign"`
	UTMTerm     string `json:"utmTerm"`
	UTMContent  string `json:"utmContent"`
	Referrer    string `json:"referrer"`
	LandingPage string `json:"landingPage"`

	MaterialLineID string `json:"materialLineId"`
}

// Touch creates or refreshes a visitor session. Attribution is first-touch:
// fields already set on an existing session are never overwritten.
func (uc *SessionUC) Touch(ctx context.Context, in SessionInput) (*domain.VisitorSession, error) {
	var sess *domain.VisitorSession
	if id, err := uuid.Parse(in.SessionID); err == nil {
		sess, _ = uc.Sessions.FindSession(ctx, id)
	}
	if sess == nil {
		id := uuid.New()
		sess = &domain.VisitorSession{
			ID:        id,
			ABVariant: abBucket(id),
			CreatedAt: time.Now(),
		}
	}
	setIfEmpty(&sess.UTMSource, in.UTMSource)
	setIfEmpty(&sess.UTMMedium, in.UTMMedium)
	setIfEmpty(&sess.UTMCampaign, in.UTMCampaign)
	setIfEmpty(&sess.UTMTerm, in.UTMTerm)
	setIfEmpty(&sess.UTMContent, in.UTMContent)
	setIfEmpty(&sess.Referrer, in.Referrer)
	setIfEmpty(&sess.LandingPage, in.LandingPage)
	if sess.MaterialLineID == nil {
		if lineID, err := uuid.Parse(in.MaterialLineID); err == nil {
			sess.MaterialLineID = &lineID
		}
	}
	if err := uc.Sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (uc *SessionUC) StartPhoneVerification(ctx context.Context, phone string) error {
	p := strings.TrimSpace(phone)
	if p == "" {
		return fmt.Errorf("%w: phone required", domain.ErrInvalidInput)
	}
	if uc.Verifier == nil {
		return errors.New("phone verification not configured")
	}
	return uc.Verifier.StartVerification(ctx, p)
}

// CheckPhoneVerification confirms the code and, on approval, pins the phone
// to the session with a fresh verification timestamp.
func (uc *SessionUC) CheckPhoneVerification(ctx context.Context, sessionID uuid.UUID, phone, code string) (bool, error) {
	p := strings.TrimSpace(phone)
	if p == "" || code == "" {
		return false, fmt.Errorf("%w: phone and code required", domain.ErrInvalidInput)
	}
	if uc.Verifier == nil {
		return false, errors.New("phone verification not configured")
	}
	ok, err := uc.Verifier.CheckVerification(ctx, p, code)
	if err != nil || !ok {
		return false, err
	}
	sess, err := uc.Sessions.FindSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	now := time.Now()
	sess.Phone = p
	sess.PhoneVerifiedAt = &now
	if err := uc.Sessions.SaveSession(ctx, sess); err != nil {
		return false, err
	}
	return true, nil
}

// abBucket splits sessions 50/50 on the low bit of the id.
func abBucket(id uuid.UUID) string {
	if id[15]&1 == 0 {
		return "A"
	}
	return "B"
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}
