package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"japanhouse/config"
	"japanhouse/models"
)

// SupabaseStore writes listings through the project's PostgREST endpoint.
type SupabaseStore struct {
	url        string
	serviceKey string
	table      string
	client     *http.Client
}

func NewSupabaseStore(cfg *config.SupabaseConfig, table string) *SupabaseStore {
	return &SupabaseStore{
		url:        cfg.URL,
		serviceKey: cfg.ServiceKey,
		table:      table,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SupabaseStore) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
}

func (s *SupabaseStore) UpsertListings(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(listings))
	for i := range listings {
		rows = append(rows, prepareRow(&listings[i]))
	}
	padRows(rows)

	for i, chunk := range chunkRows(rows, batchSize) {
		if err := s.upsertChunk(ctx, chunk); err != nil {
			return fmt.Errorf("batch %d: %w", i+1, err)
		}
		log.Printf("Upserted batch %d (%d listings) to %s", i+1, len(chunk), s.table)
	}
	return nil
}

func (s *SupabaseStore) upsertChunk(ctx context.Context, chunk []map[string]any) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url+"/rest/v1/"+s.table, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (s *SupabaseStore) IdentityIndex(ctx context.Context) (*models.IdentityIndex, error) {
	req, err := http.NewRequestWithContext(ctx, "GET",
		s.url+"/rest/v1/"+s.table+"?select=id,source,source_id,url", nil)
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(body))
	}

	var rows []struct {
		ID       int64  `json:"id"`
		Source   string `json:"source"`
		SourceID string `json:"source_id"`
		URL      string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}

	idx := models.NewIdentityIndex()
	for _, row := range rows {
		if row.SourceID != "" {
			idx.AddSourceID(row.Source, row.SourceID, row.ID)
		}
		if row.URL != "" {
			idx.AddURL(row.URL)
		}
	}
	return idx, nil
}

func (s *SupabaseStore) UpdateListing(ctx context.Context, id int64, listing models.Listing) error {
	row := prepareRow(&listing)
	delete(row, "id")

	data, err := json.Marshal(row)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "PATCH",
		fmt.Sprintf("%s/rest/v1/%s?id=eq.%d", s.url, s.table, id), bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
