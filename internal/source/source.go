// Package source fetches active hazard state from the upstream alerts API.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/madmonkey48/kh-allert-radar/internal/classify"
	"github.com/madmonkey48/kh-allert-radar/internal/clock"
	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
	"github.com/madmonkey48/kh-allert-radar/internal/region"
)

const maxResponseBytes = 4 << 20

// wireAlert is one upstream active alert record.
type wireAlert struct {
	ID            int64  `json:"id"`
	LocationTitle string `json:"location_title"`
	LocationType  string `json:"location_type"`
	AlertType     string `json:"alert_type"`
	StartedAt     string `json:"started_at"`
}

// wireResponse is the upstream active alerts payload.
type wireResponse struct {
	Alerts []wireAlert `json:"alerts"`
}

// Client polls the alerts API and reduces the payload to an area snapshot.
// Params: endpoint settings, area normalizer, code classifier, and clock.
// Returns: snapshots scoped to the tracked area.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	normalizer *region.Normalizer
	classifier *classify.Classifier
	clk        clock.Clock
}

// NewClient builds a source client.
// Params: cfg holds URL, token, timeout; collaborators resolve and classify.
// Returns: ready client.
func NewClient(
	cfg config.SourceConfig,
	normalizer *region.Normalizer,
	classifier *classify.Classifier,
	clk clock.Clock,
) *Client {
	return &Client{
		url:   cfg.URL,
		token: cfg.Token,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		normalizer: normalizer,
		classifier: classifier,
		clk:        clk,
	}
}

// Fetch retrieves the current active alerts and scopes them to the area.
// Params: ctx bounds the request.
// Returns: area snapshot, or zero snapshot with the fetch error.
func (c *Client) Fetch(ctx context.Context) (domain.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("build source request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("fetch source: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.Snapshot{}, fmt.Errorf("source responded with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read source response: %w", err)
	}

	var payload wireResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode source response: %w", err)
	}

	return c.reduce(payload), nil
}

// reduce filters upstream alerts to the tracked area.
// Params: payload is the decoded upstream response.
// Returns: snapshot with area hazards and all raw region titles.
func (c *Client) reduce(payload wireResponse) domain.Snapshot {
	snapshot := domain.Snapshot{ObservedAt: c.clk.Now()}
	for _, alert := range payload.Alerts {
		snapshot.RawRegions = append(snapshot.RawRegions, alert.LocationTitle)
		if !c.normalizer.MentionsArea(alert.LocationTitle) {
			continue
		}
		location := domain.AreaWide
		if unit, ok := c.normalizer.MatchUnit(alert.LocationTitle); ok {
			location = unit
		}
		snapshot.Hazards = append(snapshot.Hazards, domain.Hazard{
			Location: location,
			Category: c.classifier.ClassifyCode(alert.AlertType),
		})
	}
	return snapshot
}
