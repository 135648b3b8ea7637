package status

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/senigami/factorywatch/internal/domain"
	"github.com/senigami/factorywatch/internal/estimate"
	"github.com/senigami/factorywatch/internal/watcher"
)

type fakeSession struct {
	live  bool
	views []watcher.JobView
}

func (f *fakeSession) SessionID() string { return "session-1" }
func (f *fakeSession) Live() bool        { return f.live }
func (f *fakeSession) Endpoint() string  { return "ws://localhost:8000/ws" }
func (f *fakeSession) Paused() bool      { return false }

func (f *fakeSession) Views() []watcher.JobView { return f.views }

func (f *fakeSession) View(key string) (watcher.JobView, bool) {
	for _, v := range f.views {
		if v.ChapterFile == key {
			return v, true
		}
	}
	return watcher.JobView{}, false
}

func (f *fakeSession) TestActivities() []domain.TestActivity { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *fakeSession) {
	t.Helper()
	sess := &fakeSession{
		live: true,
		views: []watcher.JobView{
			{
				Job:      domain.Job{ID: "id-1", ChapterFile: "ch01.txt", Status: domain.JobStatusRunning, Progress: 0.4},
				Estimate: estimate.Estimate{Progress: 0.5, RemainingSeconds: 30, RemainingKnown: true},
			},
		},
	}
	s := NewServer(log.New(io.Discard, "", 0), sess)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, sess
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	if code := getJSON(t, srv.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestListJobsIncludesEstimates(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		SessionID string            `json:"session_id"`
		Jobs      []watcher.JobView `json:"jobs"`
	}
	if code := getJSON(t, srv.URL+"/v1/jobs", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.SessionID != "session-1" {
		t.Fatalf("unexpected session id %q", body.SessionID)
	}
	if len(body.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(body.Jobs))
	}
	if body.Jobs[0].Estimate.RemainingSeconds != 30 {
		t.Fatalf("estimate not serialized: %+v", body.Jobs[0].Estimate)
	}
}

func TestGetJobByKey(t *testing.T) {
	srv, _ := newTestServer(t)

	var view watcher.JobView
	if code := getJSON(t, srv.URL+"/v1/jobs/ch01.txt", &view); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if view.ChapterFile != "ch01.txt" || view.Estimate.Progress != 0.5 {
		t.Fatalf("unexpected view: %+v", view)
	}

	if code := getJSON(t, srv.URL+"/v1/jobs/missing.txt", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", code)
	}
}

func TestConnectionReportsLiveness(t *testing.T) {
	srv, sess := newTestServer(t)

	var body struct {
		Live     bool   `json:"live"`
		Endpoint string `json:"endpoint"`
	}
	if code := getJSON(t, srv.URL+"/v1/connection", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !body.Live || body.Endpoint == "" {
		t.Fatalf("unexpected connection body: %+v", body)
	}

	sess.live = false
	if code := getJSON(t, srv.URL+"/v1/connection", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Live {
		t.Fatal("expected live=false after disconnect")
	}
}

func TestMetricsExposed(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
