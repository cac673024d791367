package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/slotkeeper/internal/model"
)

func scrape(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(w.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return w.Code, string(body)
}

// TestSetupMetricsRoute はワーカー用ルートが/metricsと任意の/healthを提供することを検証する。
func TestSetupMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordOperation("subscription", "assign")
	c.SetSubscriptionCounts(map[model.SubscriptionStatus]int{model.SubscriptionStatusExpired: 3})

	health := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		health   http.Handler
		path     string
		want     int
		contains []string
	}{
		{
			name: "metrics exposition",
			path: "/metrics",
			want: http.StatusOK,
			contains: []string{
				`slotkeeper_operations_total{entity="subscription",operation="assign"} 1`,
				`slotkeeper_subscriptions{status="expired"} 3`,
				`slotkeeper_subscriptions{status="active"} 0`,
			},
		},
		{name: "health mounted", health: health, path: "/health", want: http.StatusNoContent},
		{name: "health not mounted", path: "/health", want: http.StatusNotFound},
		{name: "unknown path", health: health, path: "/api/platforms", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := scrape(t, SetupMetricsRoute(reg, tt.health), tt.path)
			if code != tt.want {
				t.Fatalf("GET %s status = %d, want %d", tt.path, code, tt.want)
			}
			for _, s := range tt.contains {
				if !strings.Contains(body, s) {
					t.Errorf("body missing %q", s)
				}
			}
		})
	}
}

// TestHandler_OnlyExposesGivenGatherer は別レジストリのメトリクスが混ざらないことを検証する。
func TestHandler_OnlyExposesGivenGatherer(t *testing.T) {
	api := prometheus.NewRegistry()
	NewCollector(api).RecordLoginAttempt(LoginFailed)

	worker := prometheus.NewRegistry()
	NewCollector(worker)

	_, body := scrape(t, Handler(worker), "/metrics")
	if strings.Contains(body, `slotkeeper_login_attempts_total{result="failure"}`) {
		t.Error("worker registry should not expose login attempts recorded on the API registry")
	}

	_, body = scrape(t, Handler(api), "/metrics")
	if !strings.Contains(body, `slotkeeper_login_attempts_total{result="failure"} 1`) {
		t.Errorf("API registry should expose the failed login, got:\n%s", body)
	}
}
