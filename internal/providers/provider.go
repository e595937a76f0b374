// Package providers contains the adapters that translate external feeds into
// canonical match fragments. Each adapter owns its auth, wire format and
// polling cadence; the pipeline only ever sees domain.MatchFragment.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
)

// Provider is one external data source. A failed fetch means "no fragments
// this cycle", never a pipeline error.
type Provider interface {
	Name() string
	PollInterval() time.Duration
	FetchFragments(ctx context.Context) ([]domain.MatchFragment, error)
}

func newHTTPClient() *fasthttp.Client {
	return &fasthttp.Client{
		MaxConnsPerHost:     100,
		ReadTimeout:         10 * time.Second,
		WriteTimeout:        10 * time.Second,
		MaxIdleConnDuration: 1 * time.Minute,
	}
}

// fetchJSON performs a GET and decodes the body into T. The caller may pass
// an onResponse hook to read rate-limit headers before the response is
// released.
func fetchJSON[T any](ctx context.Context, client *fasthttp.Client, url string, headers map[string]string, onResponse func(*fasthttp.Response)) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if onResponse != nil {
		onResponse(resp)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: %d", resp.StatusCode())
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
