package fixtures

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

const liveBody = `{"response": [
	{
		"fixture": {"id": 100, "status": {"short": "1H", "elapsed": 36}},
		"league": {"id": 39, "name": "Premier League", "country": "England"},
		"teams": {"home": {"name": "Arsenal"}, "away": {"name": "Chelsea"}},
		"goals": {"home": 1, "away": 1},
		"score": {"halftime": {"home": null, "away": null}, "fulltime": {"home": null, "away": null}}
	}
]}`

func TestClientLive(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-apisports-key")
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Write([]byte(liveBody))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), srv.URL, "secret")
	snaps, err := c.Live(context.Background())
	if err != nil {
		t.Fatalf("Live: %v", err)
	}

	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotPath != "/fixtures?live=all" {
		t.Errorf("request path = %q", gotPath)
	}
	if len(snaps) != 1 || snaps[0].FixtureID != 100 || snaps[0].Minute != 36 {
		t.Errorf("snapshots = %+v", snaps)
	}
}

func TestClientByIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"response": []}`))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), srv.URL, "secret")
	snap, err := c.ByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if snap != nil {
		t.Errorf("snap = %+v, want nil for unknown fixture", snap)
	}
}

func TestClientRetriesOnceAfterRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(liveBody))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), srv.URL, "secret")
	snaps, err := c.Live(context.Background())
	if err != nil {
		t.Fatalf("Live after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(snaps) != 1 {
		t.Errorf("snapshots = %d, want 1", len(snaps))
	}
}

func TestClientGivesUpAfterSecondRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), srv.URL, "secret")
	if _, err := c.Live(context.Background()); err == nil {
		t.Fatal("Live should fail after repeated 429s")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want bounded retry (2)", calls)
	}
}

func TestClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), srv.URL, "secret")
	if _, err := c.Live(context.Background()); err == nil {
		t.Fatal("Live should surface server errors")
	}
}
