package source

import (
	"context"
	"fmt"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
)

// PageFetcher gets one HTML page. Adapters depend on this instead of a
// concrete HTTP stack so tests can feed captured pages.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// ErrPageUnavailable marks fetch failures worth retrying next cycle.
var ErrPageUnavailable = crerr.New("schedule page unavailable")

const defaultPageTimeout = 20 * time.Second

type FastHTTPFetcher struct {
	client    *fasthttp.Client
	timeout   time.Duration
	userAgent string
}

func NewFastHTTPFetcher(timeout time.Duration, userAgent string) *FastHTTPFetcher {
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	return &FastHTTPFetcher{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

func (f *FastHTTPFetcher) FetchPage(ctx context.Context, url string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if f.userAgent != "" {
		req.Header.SetUserAgent(f.userAgent)
	}

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, ctx.Err()
	}

	if err := f.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrPageUnavailable, url, err)
	}

	status := resp.StatusCode()
	if status/100 != 2 {
		if status == fasthttp.StatusTooManyRequests || status >= 500 {
			return nil, fmt.Errorf("%w: get %s: status=%d", ErrPageUnavailable, url, status)
		}
		return nil, fmt.Errorf("get %s: status=%d", url, status)
	}

	body := resp.Body()
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}
