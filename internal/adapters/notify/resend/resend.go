// Package resend delivers transactional email through the Resend API.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slabworks/visualizer/internal/domain"
)

const apiURL = "https://api.resend.com/emails"

type Client struct {
	apiKey      string
	defaultFrom string
	httpClient  *http.Client
}

// NewClient builds a sender. defaultFrom is used when the message carries no
// per-tenant from address.
func NewClient(apiKey, defaultFrom string) *Client {
	return &Client{
		apiKey:      apiKey,
		defaultFrom: defaultFrom,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendReq struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

func (c *Client) Send(ctx context.Context, msg domain.EmailMessage) error {
	if c.apiKey == "" {
		return errors.New("resend api key missing (RESEND_API_KEY)")
	}
	if len(msg.To) == 0 {
		return errors.New("no recipients")
	}
	from := msg.From
	if from == "" {
		from = c.defaultFrom
	}
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, from)
	}
	buf, err := json.Marshal(sendReq{
		From:    from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		var rsErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &rsErr) == nil && rsErr.Message != "" {
			return fmt.Errorf("resend status %d: %s", res.StatusCode, rsErr.Message)
		}
		return fmt.Errorf("resend status %d: %s", res.StatusCode, string(body))
	}
	return nil
}
