// Package gateway holds the HTTP clients for the external identity and
// mailbox services. Both services are opaque REST APIs; nothing here
// interprets mail beyond its JSON shape.
package gateway

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
)

const defaultTimeout = 10 * time.Second

// do issues a request honouring the earlier of the context deadline and
// the client timeout.
func do(ctx context.Context, client *fasthttp.Client, req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return client.DoDeadline(req, resp, deadline)
}
