// Package supabase talks to the Supabase Storage REST API. One bucket holds
// every tenant folder; object paths follow "{orgSlug}/{lineSlug}/...".
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slabworks/visualizer/internal/domain"
)

type Storage struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
}

func NewStorage(baseURL, bucket, serviceKey string) *Storage {
	return &Storage{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Storage) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	if s.serviceKey == "" {
		return "", errors.New("supabase service key missing (SUPABASE_SERVICE_KEY)")
	}
	endpoint := s.baseURL + "/storage/v1/object/" + s.bucket + "/" + escapePath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	res, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("supabase upload: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("supabase upload status %d: %s", res.StatusCode, string(body))
	}
	return s.PublicURL(path), nil
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	endpoint := s.baseURL + "/storage/v1/object/" + s.bucket + "/" + escapePath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	res, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase delete: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("supabase delete status %d: %s", res.StatusCode, string(body))
	}
	return nil
}

type listReq struct {
	Prefix string     `json:"prefix"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
	SortBy listSortBy `json:"sortBy"`
}

type listSortBy struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

type listEntry struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
	Metadata  *struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

func (s *Storage) List(ctx context.Context, prefix string) ([]domain.StorageObject, error) {
	body, err := json.Marshal(listReq{
		Prefix: strings.TrimSuffix(prefix, "/"),
		Limit:  200,
		SortBy: listSortBy{Column: "name", Order: "asc"},
	})
	if err != nil {
		return nil, err
	}
	endpoint := s.baseURL + "/storage/v1/object/list/" + s.bucket
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase list: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("supabase list status %d: %s", res.StatusCode, string(b))
	}
	var entries []listEntry
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		return nil, err
	}
	out := make([]domain.StorageObject, 0, len(entries))
	for _, e := range entries {
		// folder placeholders come back without metadata
		if e.Metadata == nil {
			continue
		}
		out = append(out, domain.StorageObject{Name: e.Name, Size: e.Metadata.Size, UpdatedAt: e.UpdatedAt})
	}
	return out, nil
}

func (s *Storage) PublicURL(path string) string {
	return s.baseURL + "/storage/v1/object/public/" + s.bucket + "/" + escapePath(path)
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, seg := range parts {
		parts[i] = url.PathEscape(seg)
	}
	return strings.Join(parts, "/")
}
