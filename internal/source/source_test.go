package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/madmonkey48/kh-allert-radar/internal/classify"
	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
	"github.com/madmonkey48/kh-allert-radar/internal/region"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	classifier, err := classify.New(config.ClassifyConfig{})
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	normalizer := region.New(config.AreaConfig{
		Name:    "Харківська область",
		Aliases: []string{"харків"},
		Unit: []config.AreaUnit{
			{Name: "Салтівка", Aliases: []string{"салтівка"}},
		},
	}, config.UnmatchedDrop)
	clk := &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewClient(config.SourceConfig{
		URL:        serverURL,
		Token:      "test-token",
		TimeoutSec: 2,
	}, normalizer, classifier, clk)
}

func TestFetchScopesAlertsToArea(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"alerts":[
			{"id":1,"location_title":"Харківська область","location_type":"oblast","alert_type":"air_raid"},
			{"id":2,"location_title":"Львівська область","location_type":"oblast","alert_type":"air_raid"},
			{"id":3,"location_title":"Харків, Салтівка","location_type":"city","alert_type":"artillery_shelling"}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	snapshot, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if len(snapshot.Hazards) != 2 {
		t.Fatalf("expected 2 area hazards, got %+v", snapshot.Hazards)
	}
	if snapshot.Hazards[0].Location != domain.AreaWide {
		t.Fatalf("expected area-wide for oblast alert, got %q", snapshot.Hazards[0].Location)
	}
	if snapshot.Hazards[1].Location != "Салтівка" {
		t.Fatalf("expected district resolved, got %q", snapshot.Hazards[1].Location)
	}
	if snapshot.Hazards[1].Category != domain.CategoryArtillery {
		t.Fatalf("expected artillery category, got %q", snapshot.Hazards[1].Category)
	}
	if len(snapshot.RawRegions) != 3 {
		t.Fatalf("expected all raw regions kept, got %v", snapshot.RawRegions)
	}
}

func TestFetchEmptyPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"alerts":[]}`))
	}))
	defer server.Close()

	snapshot, err := newTestClient(t, server.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !snapshot.Empty() {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}
}

func TestFetchNon200Status(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if _, err := newTestClient(t, server.URL).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestFetchMalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"alerts":`))
	}))
	defer server.Close()

	if _, err := newTestClient(t, server.URL).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for malformed body")
	}
}
