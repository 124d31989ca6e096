package executor

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// NetworkExecutor treats a remote HTTP service as the target under test: the
// mutated input becomes the request body. It builds on the same fasthttp
// client and x/time/rate pacing used elsewhere in this module's HTTP
// request plumbing.
//
// A 5xx response maps to Crash; a client-side timeout maps to Timeout. Diff
// is never produced by a single NetworkExecutor — it takes two, compared by
// DiffExecutor (see diff.go).
type NetworkExecutor struct {
	name    string
	url     string
	method  string
	client  *fasthttp.Client
	limiter *rate.Limiter
	timeout time.Duration
	obs     *observer.Set
}

// NetworkExecutorConfig configures a NetworkExecutor.
type NetworkExecutorConfig struct {
	URL             string
	Method          string
	Timeout         time.Duration
	RateLimit       rate.Limit
	RateBurst       int
	MaxConnsPerHost int
}

// DefaultNetworkExecutorConfig returns sensible defaults: one request per
// second, burst of 1, a 10 second client timeout.
func DefaultNetworkExecutorConfig(url string) NetworkExecutorConfig {
	return NetworkExecutorConfig{
		URL:             url,
		Method:          fasthttp.MethodPost,
		Timeout:         10 * time.Second,
		RateLimit:       rate.Limit(1),
		RateBurst:       1,
		MaxConnsPerHost: 64,
	}
}

// NewNetworkExecutor builds a NetworkExecutor from cfg.
func NewNetworkExecutor(name string, cfg NetworkExecutorConfig, obs *observer.Set) *NetworkExecutor {
	return &NetworkExecutor{
		name:   name,
		url:    cfg.URL,
		method: cfg.Method,
		client: &fasthttp.Client{
			MaxConnsPerHost: cfg.MaxConnsPerHost,
			ReadTimeout:     cfg.Timeout,
			WriteTimeout:    cfg.Timeout,
		},
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		timeout: cfg.Timeout,
		obs:     obs,
	}
}

func (e *NetworkExecutor) Name() string            { return e.name }
func (e *NetworkExecutor) Observers() *observer.Set { return e.obs }

func (e *NetworkExecutor) Run(ctx context.Context, state *fuzzstate.State, in input.Input) (ExitKind, error) {
	return runObserved(e.obs, state, func() (ExitKind, error) {
		status, body, kind, err := e.fetch(ctx, in.Bytes())
		if err != nil {
			return Ok, err
		}
		if ro, ok := e.obs.Match(responseObserverName); ok {
			if r, ok := ro.(*observer.ResponseObserver); ok {
				r.Record(status, body)
			}
		}
		return kind, nil
	})
}

// fetch issues one rate-limited request against this executor's backend and
// returns its outcome without touching observers or the execution counter.
// It is the shared primitive both Run (single-backend) and DiffExecutor
// (two backends, one counted execution) build on.
func (e *NetworkExecutor) fetch(ctx context.Context, body []byte) (status int, respBody []byte, kind ExitKind, err error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return 0, nil, Ok, ferr.Wrap(ferr.IllegalState, err, "rate limiter wait failed for %s", e.name)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(e.url)
	req.Header.SetMethod(e.method)
	req.SetBody(body)

	if doErr := e.client.DoTimeout(req, resp, e.timeout); doErr != nil {
		if doErr == fasthttp.ErrTimeout {
			return 0, nil, Timeout, nil
		}
		return 0, nil, Ok, ferr.Wrap(ferr.File, doErr, "network executor %s request failed", e.name)
	}

	statusCode := resp.StatusCode()
	bodyCopy := append([]byte(nil), resp.Body()...)
	k := Ok
	if statusCode >= 500 {
		k = Crash
	}
	return statusCode, bodyCopy, k, nil
}

// responseObserverName is the conventional name NetworkExecutor looks for a
// ResponseObserver under, matched the way TimeFeedback looks up its
// TimeObserver.
const responseObserverName = "response"
