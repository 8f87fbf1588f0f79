// Package posthog captures funnel events and reads them back through the
// HogQL query API for the dashboard analytics cards.
package posthog

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

type Client struct {
	host        string
	projectKey  string // public key, capture only
	personalKey string // private key, query API
	projectID   string
	httpClient  *http.Client
}

func NewClient(host, projectKey, personalKey, projectID string) *Client {
	if host == "" {
		host = "https://us.i.posthog.com"
	}
	return &Client{
		host:        strings.TrimSuffix(host, "/"),
		projectKey:  projectKey,
		personalKey: personalKey,
		projectID:   projectID,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type captureReq struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Timestamp  string         `json:"timestamp,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (c *Client) Capture(ctx context.Context, e domain.AnalyticsEvent) error {
	if c.projectKey == "" {
		return errors.New("posthog project key missing (POSTHOG_API_KEY)")
	}
	body := captureReq{
		APIKey:     c.projectKey,
		Event:      e.Name,
		DistinctID: e.DistinctID,
		Properties: e.Properties,
	}
	if !e.Timestamp.IsZero() {
		body.Timestamp = e.Timestamp.Format(time.RFC3339)
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/capture/", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posthog capture: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("posthog capture status %d: %s", res.StatusCode, string(b))
	}
	return nil
}

type hogqlReq struct {
	Query hogqlQuery `json:"query"`
}

type hogqlQuery struct {
	Kind  string `json:"kind"`
	Query string `json:"query"`
}

type hogqlResp struct {
	Results [][]any  `json:"results"`
	Columns []string `json:"columns"`
}

// EventCount runs a HogQL count over the trailing window, scoped to the
// tenant line and any UTM filters on the query.
func (c *Client) EventCount(ctx context.Context, q domain.EventQuery) (int64, error) {
	hogql := fmt.Sprintf("SELECT count() FROM events WHERE event = '%s'%s", escape(q.Event), filterClauses(q))
	resp, err := c.runQuery(ctx, hogql)
	if err != nil {
		return 0, err
	}
	if len(resp.Results) == 0 || len(resp.Results[0]) == 0 {
		return 0, nil
	}
	switch v := resp.Results[0][0].(type) {
	case float64:
		return int64(v), nil
	case string:
		var n int64
		_, err := fmt.Sscan(v, &n)
		return n, err
	default:
		return 0, fmt.Errorf("posthog count: unexpected result type %T", v)
	}
}

// EventMetadata returns recent event property maps for drill-down views.
func (c *Client) EventMetadata(ctx context.Context, q domain.EventQuery, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 50
	}
	hogql := fmt.Sprintf(
		"SELECT properties, timestamp FROM events WHERE event = '%s'%s ORDER BY timestamp DESC LIMIT %d",
		escape(q.Event), filterClauses(q), limit)
	resp, err := c.runQuery(ctx, hogql)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(resp.Results))
	for _, row := range resp.Results {
		if len(row) == 0 {
			continue
		}
		entry := map[string]any{}
		switch props := row[0].(type) {
		case string:
			_ = json.Unmarshal([]byte(props), &entry)
		case map[string]any:
			entry = props
		}
		if len(row) > 1 {
			entry["timestamp"] = row[1]
		}
		out = append(out, entry)
	}
	return out, nil
}

func (c *Client) runQuery(ctx context.Context, hogql string) (*hogqlResp, error) {
	if c.personalKey == "" || c.projectID == "" {
		return nil, errors.New("posthog query credentials missing (POSTHOG_PERSONAL_KEY / POSTHOG_PROJECT_ID)")
	}
	buf, err := json.Marshal(hogqlReq{Query: hogqlQuery{Kind: "HogQLQuery", Query: hogql}})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/api/projects/%s/query", c.host, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.personalKey)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posthog query: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("posthog query status %d: %s", res.StatusCode, string(b))
	}
	var out hogqlResp
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func filterClauses(q domain.EventQuery) string {
	var b strings.Builder
	days := q.Days
	if days <= 0 {
		days = 30
	}
	fmt.Fprintf(&b, " AND timestamp > now() - INTERVAL %d DAY", days)
	if q.MaterialLineID != "" {
		fmt.Fprintf(&b, " AND properties.material_line_id = '%s'", escape(q.MaterialLineID))
	}
	if q.UTMSource != "" {
		fmt.Fprintf(&b, " AND properties.utm_source = '%s'", escape(q.UTMSource))
	}
	if q.UTMCampaign != "" {
		fmt.Fprintf(&b, " AND properties.utm_campaign = '%s'", escape(q.UTMCampaign))
	}
	return b.String()
}

func escape(s string) string {
	return strings.NewReplacer("'", "\\'", "\\", "\\\\").Replace(s)
}
