package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// These are the metrics functions exposed by the package. By default they are all
// NOP functions to minimize overhead when metrics are not enabled. The 'addRegfrontMetrics'
// function initializes these with functions having implementations if metrics are
// enabled.

var IncApiRequests noLabel = func() {}
var IncChannelErrors noLabel = func() {}
var IncBackendExits withLabel = func(string) {}
var IncAdmissionDecisions withLabel = func(string) {}

type withLabel func(string)
type noLabel func()

const (
	namespace                 = "regfront"
	api_requests_total        = "api_requests_total"
	channel_errors_total      = "channel_errors_total"
	backend_exits_total       = "backend_exits_total"
	admission_decisions_total = "admission_decisions_total"
	state_label               = "state"
	result_label              = "result"
)

// addRegfrontMetrics creates all the regfront metrics and registers them with the passed
// registerer. It also assigns a function to actually implement each metric. Unless this
// function is called, all the metric functions exposed by the package will be NOP functions.
func addRegfrontMetrics(reg prometheus.Registerer) {
	factory := promauto.With(reg)

	apiRequestsTotal := factory.NewCounter(
		prometheus.CounterOpts{
			Name:      api_requests_total,
			Namespace: namespace,
			Help:      "Total requests handled by the registry API",
		},
	)
	IncApiRequests = func() {
		apiRequestsTotal.Inc()
	}

	channelErrorsTotal := factory.NewCounter(
		prometheus.CounterOpts{
			Name:      channel_errors_total,
			Namespace: namespace,
			Help:      "Total calls to the backend that failed",
		},
	)
	IncChannelErrors = func() {
		channelErrorsTotal.Inc()
	}

	backendExitsTotal := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:      backend_exits_total,
			Namespace: namespace,
			Help:      "Times the backend stopped running, by final state",
		},
		[]string{state_label},
	)
	IncBackendExits = func(state string) {
		backendExitsTotal.With(prometheus.Labels{state_label: state}).Inc()
	}

	admissionDecisionsTotal := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name:      admission_decisions_total,
			Namespace: namespace,
			Help:      "Image admission decisions made by the validation callback",
		},
		[]string{result_label},
	)
	IncAdmissionDecisions = func(result string) {
		admissionDecisionsTotal.With(prometheus.Labels{result_label: result}).Inc()
	}
}
