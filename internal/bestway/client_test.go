package bestway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetUserToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Gizwits-Application-Id"); got != applicationID {
			t.Errorf("application id header = %q", got)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding login body: %v", err)
		}
		if body["username"] != "user@example.com" || body["password"] != "hunter2" || body["lang"] != "en" {
			t.Errorf("unexpected login body: %v", body)
		}

		// The server declares text/html even though the body is JSON.
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `{"uid": "uid-1", "token": "tok-1", "expire_at": 1750000000}`)
	}))
	defer srv.Close()

	token, err := GetUserToken(context.Background(), srv.URL, "user@example.com", "hunter2", 0)
	if err != nil {
		t.Fatalf("GetUserToken() error: %v", err)
	}
	if token.UserID != "uid-1" || token.Token != "tok-1" || token.Expiry != 1750000000 {
		t.Errorf("unexpected token: %+v", token)
	}
}

func TestGetUserTokenErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"wrong password", http.StatusBadRequest, `{"error_code": 9020}`, ErrIncorrectPassword},
		{"unknown user", http.StatusBadRequest, `{"error_code": 9005}`, ErrUserNotFound},
		{"unexpected status", http.StatusInternalServerError, `oops`, ErrAPI},
		{"empty token", http.StatusOK, `{"uid": "u", "token": "", "expire_at": 1}`, ErrAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := GetUserToken(context.Background(), srv.URL, "u", "p", 0)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRefreshBindings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/bindings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Gizwits-User-token"); got != "tok-1" {
			t.Errorf("user token header = %q", got)
		}
		fmt.Fprint(w, `{"devices": [
			{"did": "spa1", "protoc": 3, "product_name": "Airjet", "dev_alias": "Garden",
			 "mcu_soft_version": "1.0", "mcu_hard_version": "2.0",
			 "wifi_soft_version": "3.0", "wifi_hard_version": "4.0", "is_online": true},
			{"did": "pf1", "protoc": 3, "product_name": "泳池过滤器", "dev_alias": "", "is_online": false}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	c.SetUserToken("tok-1")
	// A pre-existing registry entry not in the response must be dropped,
	// while its status cache entry survives the refresh.
	c.devices = map[string]Device{"gone": {ID: "gone"}}
	c.cache = map[string]DeviceStatus{"gone": {Timestamp: 50, Attrs: Attrs{}}}

	if err := c.RefreshBindings(context.Background()); err != nil {
		t.Fatalf("RefreshBindings() error: %v", err)
	}

	if c.DeviceCount() != 2 {
		t.Fatalf("DeviceCount() = %d, want 2", c.DeviceCount())
	}
	if _, ok := c.Device("gone"); ok {
		t.Error("unbound device survived the wholesale replace")
	}
	if _, ok := c.Status("gone"); !ok {
		t.Error("bindings refresh dropped a status cache entry")
	}

	spa, ok := c.Device("spa1")
	if !ok {
		t.Fatal("spa1 missing from registry")
	}
	if spa.Type() != DeviceTypeAirjet || spa.Alias != "Garden" || !spa.IsOnline {
		t.Errorf("unexpected spa1 metadata: %+v", spa)
	}

	pf, _ := c.Device("pf1")
	if pf.Type() != DeviceTypePoolFilter {
		t.Errorf("pf1 type = %v, want pool_filter", pf.Type())
	}
}

// statusServer serves /app/devdata/{id}/latest from a mutable map.
type statusServer struct {
	payloads map[string]string
}

func (s *statusServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for id, payload := range s.payloads {
			if r.URL.Path == "/app/devdata/"+id+"/latest" {
				fmt.Fprint(w, payload)
				return
			}
		}
		t.Errorf("unexpected path %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestFetchDataReconciliation(t *testing.T) {
	tests := []struct {
		name       string
		localTS    int64 // 0 means no cache entry
		serverTS   int64
		wantTS     int64
		wantServer bool // whether the server attrs should win
	}{
		{"no local entry accepts server", 0, 100, 100, true},
		{"newer server replaces", 100, 200, 200, true},
		{"equal timestamps favour server", 100, 100, 100, true},
		{"older server discarded", 200, 100, 200, false},
		{"zero server timestamp is a no-op", 200, 0, 200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &statusServer{payloads: map[string]string{
				"spa1": fmt.Sprintf(`{"updated_at": %d, "attr": {"power": 1, "temp_now": 39}}`, tt.serverTS),
			}}
			ts := httptest.NewServer(srv.handler(t))
			defer ts.Close()

			c := NewClient(ts.URL, 0)
			c.devices = map[string]Device{"spa1": {ID: "spa1", ProductName: "Airjet"}}
			if tt.localTS != 0 {
				c.cache = map[string]DeviceStatus{
					"spa1": {Timestamp: tt.localTS, Attrs: Attrs{"power": 0, "temp_now": 30}},
				}
			}

			snapshot, err := c.FetchData(context.Background())
			if err != nil {
				t.Fatalf("FetchData() error: %v", err)
			}

			status, ok := snapshot["spa1"]
			if !ok {
				t.Fatal("spa1 missing from snapshot")
			}
			if status.Timestamp != tt.wantTS {
				t.Errorf("timestamp = %d, want %d", status.Timestamp, tt.wantTS)
			}
			wantTemp := 30
			if tt.wantServer {
				wantTemp = 39
			}
			if got, _ := status.Attrs.Int("temp_now"); got != wantTemp {
				t.Errorf("temp_now = %d, want %d", got, wantTemp)
			}
		})
	}
}

// TestOptimisticUpdateSurvivesStaleReads walks the full anti-flicker
// sequence: poll, command, stale poll, fresh poll.
func TestOptimisticUpdateSurvivesStaleReads(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := &statusServer{payloads: map[string]string{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/app/control/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("/", srv.handler(t))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(ts.URL, 0)
	c.devices = map[string]Device{"spa1": {ID: "spa1", ProductName: "Airjet"}}
	c.now = func() time.Time { return now }

	// Poll 1: heater off, server timestamp one minute ago.
	pollTS := now.Add(-time.Minute).Unix()
	srv.payloads["spa1"] = fmt.Sprintf(`{"updated_at": %d, "attr": {"power": 1, "heat_power": 0}}`, pollTS)
	if _, err := c.FetchData(context.Background()); err != nil {
		t.Fatalf("poll 1: %v", err)
	}

	// Command: heat on, cached optimistically at local time.
	if err := c.SetHeat(context.Background(), "spa1", true); err != nil {
		t.Fatalf("SetHeat(): %v", err)
	}

	// Poll 2: the vendor still serves the pre-command snapshot. The
	// stale read must not flip the heater back off.
	if _, err := c.FetchData(context.Background()); err != nil {
		t.Fatalf("poll 2: %v", err)
	}
	status, _ := c.Status("spa1")
	if got, _ := status.Attrs.Bool("heat_power"); !got {
		t.Fatal("stale poll rolled back the optimistic heater state")
	}
	if status.Timestamp != now.Unix() {
		t.Errorf("timestamp = %d, want optimistic %d", status.Timestamp, now.Unix())
	}

	// Poll 3: the vendor catches up with a post-command snapshot.
	freshTS := now.Add(30 * time.Second).Unix()
	srv.payloads["spa1"] = fmt.Sprintf(`{"updated_at": %d, "attr": {"power": 1, "heat_power": 1, "temp_now": 32}}`, freshTS)
	if _, err := c.FetchData(context.Background()); err != nil {
		t.Fatalf("poll 3: %v", err)
	}
	status, _ = c.Status("spa1")
	if status.Timestamp != freshTS {
		t.Errorf("timestamp = %d, want server %d", status.Timestamp, freshTS)
	}
	if got, _ := status.Attrs.Int("temp_now"); got != 32 {
		t.Errorf("fresh server attrs not applied: temp_now = %d", got)
	}
}

func TestFetchDataTokenInvalid(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error_code": 9004}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, 0)
	c.devices = map[string]Device{"spa1": {ID: "spa1", ProductName: "Airjet"}}

	_, err := c.FetchData(context.Background())
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("error = %v, want ErrTokenInvalid", err)
	}
	if !IsAuthError(err) {
		t.Error("IsAuthError() = false for an invalid-token error")
	}
}

func TestStatusReturnsCopies(t *testing.T) {
	c := NewClient("http://unused", 0)
	c.cache = map[string]DeviceStatus{
		"spa1": {Timestamp: 100, Attrs: Attrs{"power": float64(1)}},
	}

	got, _ := c.Status("spa1")
	got.Attrs["power"] = float64(0)

	again, _ := c.Status("spa1")
	if v, _ := again.Attrs.Int("power"); v != 1 {
		t.Error("mutating a returned status changed the cache")
	}
}

func TestMaskID(t *testing.T) {
	if got := maskID("abc123"); got != "******" {
		t.Errorf("maskID = %q", got)
	}
}
