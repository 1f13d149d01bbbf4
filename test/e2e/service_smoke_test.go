package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestServiceSmokeStatusAndFeed(t *testing.T) {
	port, err := freePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}

	var alertActive atomic.Bool
	alertActive.Store(true)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer e2e-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if alertActive.Load() {
			_, _ = w.Write([]byte(`{"alerts":[{"id":1,"location_title":"Харківська область","location_type":"oblast","alert_type":"air_raid"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"alerts":[]}`))
	}))
	defer upstream.Close()

	configPath := filepath.Join(t.TempDir(), "radar.toml")
	cfg := fmt.Sprintf(`
[service]
name = "radar"
poll_interval_sec = 1

[log.console]
enabled = true
level = "error"
format = "line"

[source]
url = "%s"
token = "e2e-token"
timeout_sec = 2

[feed]
unmatched = "drop"

[feed.http]
enabled = true
path = "/feed"

[http]
listen = "127.0.0.1:%d"

[notify.telegram]
enabled = false
`, upstream.URL, port)
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	service := newServiceFromConfig(t, configPath)
	cancel, done := runService(t, service)
	defer cancel()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitReady(t, port)

	resp, err := http.Get(baseURL + "/healthz")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected health 200, got %d", resp.StatusCode)
	}

	// The poll loop should pick up the active upstream alert.
	waitFor(t, 8*time.Second, func() bool {
		response, getErr := http.Get(baseURL + "/api/alerts")
		if getErr != nil {
			return false
		}
		defer response.Body.Close()
		var status struct {
			Active bool `json:"active"`
		}
		if decodeErr := json.NewDecoder(response.Body).Decode(&status); decodeErr != nil {
			return false
		}
		return status.Active
	})

	resp, err = http.Get(baseURL + "/api/map/alerts")
	if err != nil {
		t.Fatalf("map request: %v", err)
	}
	mapBody, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected map 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(mapBody), "Харківська область") {
		t.Fatalf("expected raw region in map payload, got %s", mapBody)
	}

	resp, err = http.Post(baseURL+"/feed", "application/json",
		strings.NewReader(`{"source":"e2e","message_id":"1","text":"шахеди над Харків"}`))
	if err != nil {
		t.Fatalf("feed request: %v", err)
	}
	_, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected feed 202, got %d", resp.StatusCode)
	}

	// Upstream goes quiet and the session must close.
	alertActive.Store(false)
	waitFor(t, 8*time.Second, func() bool {
		response, getErr := http.Get(baseURL + "/api/alerts")
		if getErr != nil {
			return false
		}
		defer response.Body.Close()
		var status struct {
			Active bool `json:"active"`
		}
		if decodeErr := json.NewDecoder(response.Body).Decode(&status); decodeErr != nil {
			return false
		}
		return !status.Active
	})

	cancel()
	waitServiceStop(t, done)
}
