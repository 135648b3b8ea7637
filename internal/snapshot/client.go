package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/senigami/factorywatch/internal/domain"
)

// Client fetches full job snapshots and the initial home payload from the
// factory server. It is the store's fetch collaborator: the store indexes
// whatever this returns by chapter file.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tracer     trace.Tracer
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		tracer:     otel.Tracer("factorywatch/snapshot"),
	}
}

// HomeData is the initial payload for a fresh session: the complete job map
// plus queue-level state the push channel later keeps fresh.
type HomeData struct {
	Jobs     map[string]domain.Job `json:"jobs"`
	Chapters []string              `json:"chapters"`
	Paused   bool                  `json:"paused"`
}

// Jobs fetches the complete job listing. The result is a full snapshot:
// callers replace their view wholesale rather than merging.
func (c *Client) Jobs(ctx context.Context) ([]domain.Job, error) {
	ctx, span := c.tracer.Start(ctx, "snapshot.jobs", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var jobs []domain.Job
	if err := c.getJSON(ctx, "/api/jobs", &jobs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot fetch failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("snapshot.jobs", len(jobs)))
	return jobs, nil
}

// Home fetches the initial session payload.
func (c *Client) Home(ctx context.Context) (HomeData, error) {
	ctx, span := c.tracer.Start(ctx, "snapshot.home", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var home HomeData
	if err := c.getJSON(ctx, "/api/home", &home); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "home fetch failed")
		return HomeData{}, err
	}
	span.SetAttributes(attribute.Int("snapshot.jobs", len(home.Jobs)))
	return home, nil
}

func (c *Client) getJSON(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("snapshot request returned status=%d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode snapshot response: %w", err)
	}
	return nil
}
