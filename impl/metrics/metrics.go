package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var once sync.Once

// InitMetrics initializes metrics. If the passed port is zero, no action is taken. Otherwise,
// the function creates the go runtime and regfront metrics and registers them for availability
// at the passed port number under the '/metrics' path. Then it starts an HTTP server to
// serve the metrics. Only the first call has any effect.
func InitMetrics(port int64) {
	if port == 0 {
		return
	}
	once.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		addRegfrontMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		go func() {
			if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
				log.Errorf("metrics server stopped: %s", err)
			}
		}()
	})
}
