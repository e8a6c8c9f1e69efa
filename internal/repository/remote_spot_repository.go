package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parking-anpr-service/internal/domain/anpr"
)

// RemoteSpotRepository talks to the /api/spots surface of another instance of
// this service, so several ingest nodes can share one occupancy registry.
type RemoteSpotRepository struct {
	baseURL string
	client  *http.Client
}

func NewRemoteSpotRepository(baseURL string, timeout time.Duration) *RemoteSpotRepository {
	return &RemoteSpotRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *RemoteSpotRepository) List(ctx context.Context) ([]anpr.Spot, error) {
	var spots []anpr.Spot
	if err := r.do(ctx, http.MethodGet, "/api/spots", nil, &spots); err != nil {
		return nil, err
	}
	return spots, nil
}

func (r *RemoteSpotRepository) Create(ctx context.Context, plate string) (anpr.Spot, error) {
	var spot anpr.Spot
	err := r.do(ctx, http.MethodPost, "/api/spots", map[string]string{"plate": plate}, &spot)
	return spot, err
}

func (r *RemoteSpotRepository) Get(ctx context.Context, id int64) (anpr.Spot, error) {
	var spot anpr.Spot
	err := r.do(ctx, http.MethodGet, "/api/spots/"+strconv.FormatInt(id, 10), nil, &spot)
	return spot, err
}

func (r *RemoteSpotRepository) Exit(ctx context.Context, id int64) (anpr.Spot, error) {
	var resp struct {
		Spot anpr.Spot `json:"spot"`
	}
	err := r.do(ctx, http.MethodPost, "/api/spots/"+strconv.FormatInt(id, 10)+"/exit", nil, &resp)
	return resp.Spot, err
}

func (r *RemoteSpotRepository) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("spot registry %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("spot registry %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode registry response: %w", err)
		}
	}
	return nil
}
