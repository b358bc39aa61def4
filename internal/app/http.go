package app

import (
	"net/http"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewHTTPClient returns the client used for outbound calls to the routing
// service and the ride backend. With nrApp set, calls made under a
// transaction are recorded as external segments.
func NewHTTPClient(timeout time.Duration, nrApp *newrelic.Application) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16

	client := &http.Client{Timeout: timeout, Transport: transport}
	if nrApp != nil {
		client.Transport = newrelic.NewRoundTripper(transport)
	}
	return client
}
