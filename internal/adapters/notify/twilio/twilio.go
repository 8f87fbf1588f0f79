// Package twilio sends lead notifications over SMS/MMS and runs phone
// verification through the Verify API.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	messagesBase = "https://api.twilio.com/2010-04-01"
	verifyBase   = "https://verify.twilio.com/v2"
)

type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	verifySID  string
	httpClient *http.Client
}

func NewClient(accountSID, authToken, fromNumber, verifySID string) *Client {
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		verifySID:  verifySID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SendSMS(ctx context.Context, to, body string) error {
	return c.sendMessage(ctx, to, body, "")
}

func (c *Client) SendMMS(ctx context.Context, to, body, mediaURL string) error {
	return c.sendMessage(ctx, to, body, mediaURL)
}

func (c *Client) sendMessage(ctx context.Context, to, body, mediaURL string) error {
	if c.accountSID == "" || c.authToken == "" {
		return errors.New("twilio credentials missing (TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN)")
	}
	if to == "" {
		return errors.New("destination phone empty")
	}
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)
	if mediaURL != "" {
		form.Set("MediaUrl", mediaURL)
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", messagesBase, c.accountSID)
	return c.postForm(ctx, endpoint, form, nil)
}

func (c *Client) StartVerification(ctx context.Context, phone string) error {
	if c.verifySID == "" {
		return errors.New("twilio verify service missing (TWILIO_VERIFY_SID)")
	}
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Channel", "sms")
	endpoint := fmt.Sprintf("%s/Services/%s/Verifications", verifyBase, c.verifySID)
	return c.postForm(ctx, endpoint, form, nil)
}

func (c *Client) CheckVerification(ctx context.Context, phone, code string) (bool, error) {
	if c.verifySID == "" {
		return false, errors.New("twilio verify service missing (TWILIO_VERIFY_SID)")
	}
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Code", code)
	endpoint := fmt.Sprintf("%s/Services/%s/VerificationCheck", verifyBase, c.verifySID)
	var out struct {
		Status string `json:"status"`
	}
	if err := c.postForm(ctx, endpoint, form, &out); err != nil {
		return false, err
	}
	return out.Status == "approved", nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		var twErr struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		}
		if json.Unmarshal(body, &twErr) == nil && twErr.Message != "" {
			return fmt.Errorf("twilio status %d (code %d): %s", res.StatusCode, twErr.Code, twErr.Message)
		}
		return fmt.Errorf("twilio status %d: %s", res.StatusCode, string(body))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}
