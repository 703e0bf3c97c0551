package middleware

import (
	"net/http"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// NewHTTPClient returns a client for calling a running proxy. With tracing
// enabled every request is recorded as an X-Ray subsegment of the caller's
// segment.
func NewHTTPClient(timeout time.Duration, tracing bool) *http.Client {
	client := &http.Client{Timeout: timeout}
	if tracing {
		return xray.Client(client)
	}
	return client
}
