package server_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mvs-go/internal/server"
	"mvs-go/internal/testutil"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	ts := testutil.NewTestService(t, 100)
	return server.New(ts.Service, nil, "test")
}

// do issues a request against the handler and decodes the JSON response
// body into a generic map.
func do(t *testing.T, h http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodGet, "/api/health", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestServer_SnapshotLifecycle(t *testing.T) {
	srv := newTestServer(t)
	payload := []byte(`{"world":"alpha","day":12}`)

	code, body := do(t, srv, http.MethodPost, "/api/universes", map[string]any{
		"id":       "alpha",
		"name":     "Alpha Prime",
		"owner_id": "p1",
		"public":   true,
	})
	if code != http.StatusCreated {
		t.Fatalf("create universe status = %d, body = %v", code, body)
	}
	if body["id"] != "alpha" || body["public"] != true {
		t.Errorf("universe = %v", body)
	}
	if _, ok := body["last_snapshot_at"]; ok {
		t.Error("last_snapshot_at present before any snapshot")
	}

	code, body = do(t, srv, http.MethodPost, "/api/universes/alpha/snapshots", map[string]any{
		"tick":    100,
		"day":     12,
		"kind":    "canonical",
		"payload": base64.StdEncoding.EncodeToString(payload),
		"event": map[string]any{
			"type":       "discovery",
			"title":      "First landfall",
			"day":        12,
			"importance": 9,
		},
	})
	if code != http.StatusCreated {
		t.Fatalf("append status = %d, body = %v", code, body)
	}
	if body["kind"] != "canonical" {
		t.Errorf("kind = %v, want canonical", body["kind"])
	}
	if body["checksum"] == "" || body["byte_size"] == nil {
		t.Errorf("entry = %v", body)
	}
	decay, _ := body["decay"].(map[string]any)
	if decay["never_decay"] != true {
		t.Errorf("event snapshot decay = %v, want never_decay", decay)
	}

	code, body = do(t, srv, http.MethodGet, "/api/universes/alpha/snapshots/latest", nil)
	if code != http.StatusOK {
		t.Fatalf("load latest status = %d, body = %v", code, body)
	}
	got, err := base64.StdEncoding.DecodeString(body["payload"].(string))
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}
	entry, _ := body["entry"].(map[string]any)
	if entry["tick"] != float64(100) {
		t.Errorf("entry tick = %v, want 100", entry["tick"])
	}

	code, body = do(t, srv, http.MethodGet, "/api/universes/alpha/snapshots/100", nil)
	if code != http.StatusOK {
		t.Fatalf("load at tick status = %d, body = %v", code, body)
	}

	code, body = do(t, srv, http.MethodGet, "/api/universes/alpha/timeline", nil)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("timeline status = %d, body = %v", code, body)
	}

	code, body = do(t, srv, http.MethodGet, "/api/universes/alpha/events", nil)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("events status = %d, body = %v", code, body)
	}
}

func TestServer_ForkAndSweep(t *testing.T) {
	srv := newTestServer(t)
	payload := base64.StdEncoding.EncodeToString([]byte("state"))

	code, body := do(t, srv, http.MethodPost, "/api/universes", map[string]any{
		"id": "alpha", "name": "Alpha", "owner_id": "p1",
	})
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %v", code, body)
	}
	code, body = do(t, srv, http.MethodPost, "/api/universes/alpha/snapshots", map[string]any{
		"tick": 50, "day": 5, "payload": payload,
	})
	if code != http.StatusCreated {
		t.Fatalf("append status = %d, body = %v", code, body)
	}

	code, body = do(t, srv, http.MethodPost, "/api/universes/alpha/forks", map[string]any{
		"source_tick":     50,
		"new_universe_id": "alpha-b",
		"owner_id":        "p2",
		"name":            "Alpha B",
	})
	if code != http.StatusCreated {
		t.Fatalf("fork status = %d, body = %v", code, body)
	}
	origin, _ := body["fork_origin"].(map[string]any)
	if origin["source_universe_id"] != "alpha" || origin["source_tick"] != float64(50) {
		t.Errorf("fork_origin = %v", origin)
	}

	code, body = do(t, srv, http.MethodGet, "/api/universes/alpha/forks", nil)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("list forks status = %d, body = %v", code, body)
	}

	code, body = do(t, srv, http.MethodPost, "/api/universes/alpha/sweep", map[string]any{
		"current_tick": 200,
	})
	if code != http.StatusOK {
		t.Fatalf("sweep status = %d, body = %v", code, body)
	}
	if body["evaluated"] != float64(1) || body["evicted"] != float64(1) {
		t.Errorf("sweep result = %v", body)
	}

	// The fork seed is untouched by the source sweep.
	code, body = do(t, srv, http.MethodGet, "/api/universes/alpha-b/snapshots/latest", nil)
	if code != http.StatusOK {
		t.Fatalf("fork latest status = %d, body = %v", code, body)
	}
}

func TestServer_PassagesAndPlayers(t *testing.T) {
	srv := newTestServer(t)

	for _, id := range []string{"a", "b"} {
		code, body := do(t, srv, http.MethodPost, "/api/universes", map[string]any{
			"id": id, "name": strings.ToUpper(id), "owner_id": "p1",
		})
		if code != http.StatusCreated {
			t.Fatalf("create %s status = %d, body = %v", id, code, body)
		}
	}

	code, body := do(t, srv, http.MethodPost, "/api/passages", map[string]any{
		"source_universe_id": "a",
		"target_universe_id": "b",
		"type":               "gate",
		"created_by":         "p1",
	})
	if code != http.StatusCreated {
		t.Fatalf("create passage status = %d, body = %v", code, body)
	}
	id, _ := body["id"].(string)
	if id == "" || body["stability"] != float64(100) || body["active"] != true {
		t.Errorf("passage = %v", body)
	}

	code, body = do(t, srv, http.MethodPatch, "/api/passages/"+id, map[string]any{
		"stability": 40,
	})
	if code != http.StatusOK || body["stability"] != float64(40) {
		t.Fatalf("update passage status = %d, body = %v", code, body)
	}

	code, body = do(t, srv, http.MethodGet, "/api/passages?universe=a", nil)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("list passages status = %d, body = %v", code, body)
	}

	code, body = do(t, srv, http.MethodDelete, "/api/passages/"+id, nil)
	if code != http.StatusOK || body["active"] != false {
		t.Fatalf("delete passage status = %d, body = %v", code, body)
	}

	code, body = do(t, srv, http.MethodPut, "/api/players/p1", map[string]any{
		"display_name": "Player One",
	})
	if code != http.StatusOK || body["display_name"] != "Player One" {
		t.Fatalf("register player status = %d, body = %v", code, body)
	}

	code, body = do(t, srv, http.MethodGet, "/api/players/p1/universes", nil)
	if code != http.StatusOK || body["count"] != float64(2) {
		t.Fatalf("player universes status = %d, body = %v", code, body)
	}
}

func TestServer_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/api/universes", map[string]any{
		"id": "alpha", "name": "Alpha", "owner_id": "p1",
	})
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %v", code, body)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"unknown universe", http.MethodGet, "/api/universes/ghost", nil, http.StatusNotFound, "not_found"},
		{"duplicate universe", http.MethodPost, "/api/universes", map[string]any{"id": "alpha", "name": "X", "owner_id": "p1"}, http.StatusConflict, "already_exists"},
		{"missing owner", http.MethodPost, "/api/universes", map[string]any{"id": "beta", "name": "Beta"}, http.StatusBadRequest, "invalid_request"},
		{"empty timeline latest", http.MethodGet, "/api/universes/alpha/snapshots/latest", nil, http.StatusNotFound, "not_found"},
		{"bad tick param", http.MethodGet, "/api/universes/alpha/snapshots/abc", nil, http.StatusBadRequest, "invalid_request"},
		{"bad base64 payload", http.MethodPost, "/api/universes/alpha/snapshots", map[string]any{"tick": 1, "payload": "not-base64!!"}, http.StatusBadRequest, "invalid_request"},
		{"unknown passage", http.MethodGet, "/api/passages/ghost", nil, http.StatusNotFound, "not_found"},
		{"unknown player", http.MethodGet, "/api/players/ghost", nil, http.StatusNotFound, "not_found"},
		{"bad public filter", http.MethodGet, "/api/universes?public=maybe", nil, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, tt.method, tt.path, tt.body)
			if code != tt.status {
				t.Errorf("status = %d, want %d (body %v)", code, tt.status, body)
			}
			if body["kind"] != tt.kind {
				t.Errorf("kind = %v, want %q", body["kind"], tt.kind)
			}
			if body["error"] == "" {
				t.Error("missing error message")
			}
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/universes", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}
