package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// The metric functions are safe to call before initialization
func TestNopBeforeInit(t *testing.T) {
	IncApiRequests()
	IncChannelErrors()
	IncBackendExits("exited")
	IncAdmissionDecisions("allowed")
}

func TestRegfrontMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	addRegfrontMetrics(reg)
	IncApiRequests()
	IncApiRequests()
	IncBackendExits("failed")
	IncAdmissionDecisions("denied")

	expected := `
# HELP regfront_api_requests_total Total requests handled by the registry API
# TYPE regfront_api_requests_total counter
regfront_api_requests_total 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "regfront_api_requests_total"); err != nil {
		t.Error(err)
	}
	if cnt, err := testutil.GatherAndCount(reg, "regfront_backend_exits_total", "regfront_admission_decisions_total"); err != nil || cnt != 2 {
		t.Errorf("unexpected series count %d: %v", cnt, err)
	}
}
