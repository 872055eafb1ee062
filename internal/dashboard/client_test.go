package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/HerbHall/leasetrace/pkg/models"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	cfg.RetryWait = time.Millisecond
	cfg.MaxRetryWait = 2 * time.Millisecond
	cfg.RequestsPerSecond = 0
	return cfg
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// newFlakyServer serves eventsResponse{} after failing the first failures
// requests with status. It returns the server and the request counter.
func newFlakyServer(t *testing.T, failures int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"errors":["try again"]}`))
			return
		}
		writeTestJSON(w, eventsResponse{Events: []Event{}})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestListNetworks_follows_pagination(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /organizations/{org}/networks", func(w http.ResponseWriter, r *http.Request) {
		if got := r.PathValue("org"); got != "org-1" {
			t.Errorf("org = %q, want org-1", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Query().Get("startingAfter") == "" {
			w.Header().Set("Link", "<"+srv.URL+"/organizations/org-1/networks?perPage=1000&startingAfter=N_2>; rel=next")
			writeTestJSON(w, []models.Network{{ID: "N_1", Name: "HQ-Network"}, {ID: "N_2", Name: "Branch Network"}})
			return
		}
		writeTestJSON(w, []models.Network{{ID: "L_3", Name: "Lab", ProductTypes: []string{"appliance"}}})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(testConfig(srv.URL), zap.NewNop())
	networks, err := client.ListNetworks(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("ListNetworks: %v", err)
	}
	if len(networks) != 3 {
		t.Fatalf("len = %d, want 3", len(networks))
	}
	if networks[2].ID != "L_3" || !networks[2].HasProduct("appliance") {
		t.Errorf("networks[2] = %+v", networks[2])
	}
}

func TestListEvents_query_and_paging(t *testing.T) {
	cutoff := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /networks/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := r.PathValue("id"); got != "N_2" {
			t.Errorf("network = %q", got)
		}
		if got := q.Get("productType"); got != "appliance" {
			t.Errorf("productType = %q", got)
		}
		if got := q["includedEventTypes[]"]; len(got) != 1 || got[0] != "dhcp_lease" {
			t.Errorf("includedEventTypes[] = %v", got)
		}
		if got := q.Get("perPage"); got != "2" {
			t.Errorf("perPage = %q", got)
		}
		if got := q.Get("endingBefore"); got != "2024-03-05T14:30:00.000000Z" {
			t.Errorf("endingBefore = %q", got)
		}
		w.Header().Set("Link", "<http://x/prev>; rel=prev, <http://x/first>; rel=first")
		_, _ = w.Write([]byte(`{
			"message": null,
			"pageStartAt": "2024-03-05T13:00:00.000000Z",
			"pageEndAt": "2024-03-05T14:30:00.000000Z",
			"events": [
				{"occurredAt": "2024-03-05T14:10:00.250000Z", "type": "dhcp_lease", "clientId": "k1",
				 "clientDescription": "laptop", "clientMac": "aa:bb:cc:dd:ee:ff",
				 "eventData": {"ip": "10.0.0.5", "vlan": 10}},
				{"occurredAt": "2024-03-05T13:05:00Z", "type": "dhcp_lease", "clientId": "k2",
				 "eventData": {"ip": "10.0.0.6", "vlan": "20", "mac": "11:22:33:44:55:66"}}
			]
		}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(testConfig(srv.URL), zap.NewNop())
	page, err := client.ListEvents(context.Background(), EventQuery{
		NetworkID:    "N_2",
		ProductType:  "appliance",
		EventTypes:   []string{models.EventTypeDHCPLease},
		EndingBefore: cutoff,
		PerPage:      2,
	})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if !page.HasMore {
		t.Error("HasMore = false, want true from rel=prev")
	}
	if len(page.Events) != 2 {
		t.Fatalf("len = %d, want 2", len(page.Events))
	}
	if !page.PageStartAt.Equal(time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("PageStartAt = %v", page.PageStartAt)
	}

	first := page.Events[0].LeaseEvent()
	if first.VLAN != "10" || first.AssignedIP != "10.0.0.5" || first.ClientMAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("first = %+v", first)
	}
	second := page.Events[1].LeaseEvent()
	if second.VLAN != "20" || second.ClientMAC != "11:22:33:44:55:66" {
		t.Errorf("second = %+v", second)
	}
}

func TestListEvents_has_more_without_link(t *testing.T) {
	events := []Event{{Type: "dhcp_lease"}, {Type: "dhcp_lease"}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(w, eventsResponse{Events: events})
	}))
	t.Cleanup(srv.Close)
	client := NewClient(testConfig(srv.URL), zap.NewNop())

	full, err := client.ListEvents(context.Background(), EventQuery{NetworkID: "N_1", PerPage: 2})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if !full.HasMore {
		t.Error("full page: HasMore = false, want true")
	}

	short, err := client.ListEvents(context.Background(), EventQuery{NetworkID: "N_1", PerPage: 5})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if short.HasMore {
		t.Error("short page: HasMore = true, want false")
	}
}

func TestListEvents_recovers_after_four_transient_failures(t *testing.T) {
	srv, calls := newFlakyServer(t, 4, http.StatusServiceUnavailable)
	client := NewClient(testConfig(srv.URL), zap.NewNop())

	if _, err := client.ListEvents(context.Background(), EventQuery{NetworkID: "N_1"}); err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if got := calls.Load(); got != 5 {
		t.Errorf("calls = %d, want 5", got)
	}
}

func TestListEvents_gives_up_after_retry_budget(t *testing.T) {
	srv, calls := newFlakyServer(t, 6, http.StatusBadGateway)
	client := NewClient(testConfig(srv.URL), zap.NewNop())

	_, err := client.ListEvents(context.Background(), EventQuery{NetworkID: "N_1"})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("err does not carry the last APIError: %v", err)
	}
	if got := calls.Load(); got != 6 {
		t.Errorf("calls = %d, want 6 (1 attempt + 5 retries)", got)
	}
}

func TestListEvents_rate_limited_counts_retry(t *testing.T) {
	srv, calls := newFlakyServer(t, 1, http.StatusTooManyRequests)
	metrics := NewMetrics(prometheus.NewRegistry())
	client := NewClient(testConfig(srv.URL), zap.NewNop(), WithMetrics(metrics))

	if _, err := client.ListEvents(context.Background(), EventQuery{NetworkID: "N_1"}); err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.retries.WithLabelValues("list_events", "rate_limited")); got != 1 {
		t.Errorf("rate_limited retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("list_events", "429")); got != 1 {
		t.Errorf("429 requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("list_events", "200")); got != 1 {
		t.Errorf("200 requests = %v, want 1", got)
	}
}

func TestListEvents_not_found_is_not_retried(t *testing.T) {
	srv, calls := newFlakyServer(t, 10, http.StatusNotFound)
	client := NewClient(testConfig(srv.URL), zap.NewNop())

	_, err := client.ListEvents(context.Background(), EventQuery{NetworkID: "N_missing"})
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want 404 APIError", err)
	}
	if IsTransient(err) {
		t.Error("404 reported as transient")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestListEvents_malformed_body(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"events": [{"occurredAt": "yesterday"}]}`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(testConfig(srv.URL), zap.NewNop())

	_, err := client.ListEvents(context.Background(), EventQuery{NetworkID: "N_1"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestListEvents_context_canceled_stops_retrying(t *testing.T) {
	srv, _ := newFlakyServer(t, 100, http.StatusServiceUnavailable)
	cfg := testConfig(srv.URL)
	cfg.RetryWait = time.Hour
	cfg.MaxRetryWait = time.Hour
	client := NewClient(cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.ListEvents(ctx, EventQuery{NetworkID: "N_1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestGetClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /networks/N_1/clients/k74272e", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"k74272e","mac":"22:33:44:55:66:77","description":"lab-laptop",
			"manufacturer":"Apple","os":"macOS","lastSeen":1709648400}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewClient(testConfig(srv.URL), zap.NewNop())

	detail, err := client.GetClient(context.Background(), "N_1", "k74272e")
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if detail.MAC != "22:33:44:55:66:77" || detail.Manufacturer != "Apple" {
		t.Errorf("detail = %+v", detail)
	}
	if !detail.LastSeen.Equal(time.Unix(1709648400, 0)) {
		t.Errorf("LastSeen = %v", detail.LastSeen)
	}
}

func TestSetClientPolicy_sends_blocked(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /networks/N_1/clients/k1/policy", func(w http.ResponseWriter, r *http.Request) {
		var req policyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.DevicePolicy != "Blocked" {
			t.Errorf("devicePolicy = %q, want Blocked", req.DevicePolicy)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		writeTestJSON(w, PolicyResult{MAC: "aa:bb", DevicePolicy: req.DevicePolicy})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewClient(testConfig(srv.URL), zap.NewNop())

	res, err := client.SetClientPolicy(context.Background(), "N_1", "k1", models.DevicePolicyBlocked)
	if err != nil {
		t.Fatalf("SetClientPolicy: %v", err)
	}
	if res.DevicePolicy != "Blocked" {
		t.Errorf("DevicePolicy = %q", res.DevicePolicy)
	}
}

func TestSetClientPolicy_is_not_retried(t *testing.T) {
	srv, calls := newFlakyServer(t, 10, http.StatusServiceUnavailable)
	client := NewClient(testConfig(srv.URL), zap.NewNop())

	_, err := client.SetClientPolicy(context.Background(), "N_1", "k1", models.DevicePolicyBlocked)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		in   string
		want FlexString
	}{
		{`{"vlan": 10}`, "10"},
		{`{"vlan": "guest"}`, "guest"},
		{`{"vlan": null}`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		var d EventData
		if err := json.Unmarshal([]byte(tt.in), &d); err != nil {
			t.Fatalf("Unmarshal(%s): %v", tt.in, err)
		}
		if d.VLAN != tt.want {
			t.Errorf("Unmarshal(%s).VLAN = %q, want %q", tt.in, d.VLAN, tt.want)
		}
	}
}
