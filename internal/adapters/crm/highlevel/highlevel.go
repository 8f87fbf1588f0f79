// Package highlevel pushes lead contacts into a GoHighLevel location.
package highlevel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slabworks/visualizer/internal/domain"
)

const (
	upsertURL  = "https://services.leadconnectorhq.com/contacts/upsert"
	apiVersion = "2021-07-28"
)

type Client struct {
	token      string
	locationID string
	httpClient *http.Client
}

func NewClient(token, locationID string) *Client {
	return &Client{
		token:      token,
		locationID: locationID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type upsertReq struct {
	LocationID   string        `json:"locationId"`
	FirstName    string        `json:"firstName,omitempty"`
	LastName     string        `json:"lastName,omitempty"`
	Email        string        `json:"email,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Address1     string        `json:"address1,omitempty"`
	Source       string        `json:"source,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
	CustomFields []customField `json:"customFields,omitempty"`
}

type customField struct {
	Key   string `json:"key"`
	Value string `json:"field_value"`
}

func (c *Client) UpsertContact(ctx context.Context, contact domain.CRMContact) error {
	if c.token == "" || c.locationID == "" {
		return errors.New("highlevel credentials missing (HIGHLEVEL_API_KEY / HIGHLEVEL_LOCATION_ID)")
	}
	first, last := splitName(contact.Name)
	body := upsertReq{
		LocationID: c.locationID,
		FirstName:  first,
		LastName:   last,
		Email:      contact.Email,
		Phone:      contact.Phone,
		Address1:   contact.Address,
		Source:     contact.Source,
		Tags:       contact.Tags,
	}
	if contact.ABVariant != "" {
		body.CustomFields = append(body.CustomFields, customField{Key: "ab_variant", Value: contact.ABVariant})
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, upsertURL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("highlevel request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("highlevel upsert status %d: %s", res.StatusCode, string(b))
	}
	return nil
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
