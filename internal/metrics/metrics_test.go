package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMessage(t *testing.T) {
	before := testutil.ToFloat64(messagesDispatched.WithLabelValues("sms", "sent"))
	RecordMessage("sms", "sent")
	after := testutil.ToFloat64(messagesDispatched.WithLabelValues("sms", "sent"))
	if after-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", after-before)
	}
}

func TestStartRequest(t *testing.T) {
	done := StartRequest()
	if got := testutil.ToFloat64(httpInFlight); got < 1 {
		t.Errorf("Expected in-flight gauge to be at least 1, got %v", got)
	}
	done("get", "/health", 200)

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/health", "200")); got < 1 {
		t.Errorf("Expected request to be counted, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordJob("digest", true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "iamblessed_funnel_jobs_runs_total") {
		t.Error("Expected job counter in metrics output")
	}
}
