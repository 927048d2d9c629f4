package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus metrics HTTP handler. It serves
// every promauto-registered metric in this package.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
