package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
	"github.com/ginchat/ginchat/frontend/internal/telemetry"
)

const (
	// APIPrefix is prepended to every endpoint path.
	APIPrefix = "/api"

	// HeaderRequestID correlates a call with the backend's logs.
	HeaderRequestID = "X-Request-ID"

	defaultUserAgent = "ginchat-client/1"
	maxResponseBytes = 8 << 20
	tracerName       = "github.com/ginchat/ginchat/frontend/internal/apiclient"
)

// Request describes one outbound call. Path is relative to the /api prefix.
type Request struct {
	Method string
	Path   string
	Route  string // template used for metrics and spans, e.g. /chatrooms/{id}
	Query  url.Values
	Body   any
	Header http.Header
}

func (r *Request) route() string {
	if r.Route != "" {
		return r.Route
	}
	return r.Path
}

// Response is whatever the server answered, whatever the status.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	Request   *Request
	RequestID string
}

// Client is the single session-aware gateway to the chat backend. It is safe
// for concurrent use.
type Client struct {
	apiBase  string
	http     *http.Client
	sessions domain.SessionStore
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	agent    string

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

type options struct {
	httpClient     *http.Client
	logger         zerolog.Logger
	publisher      domain.EventPublisher
	metrics        *telemetry.Metrics
	tracerProvider trace.TracerProvider
	scope          InvalidationScope
	userAgent      string
	extraRequest   []RequestInterceptor
	extraResponse  []ResponseInterceptor
}

type Option func(*options)

func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.logger = l } }

// WithPublisher receives session.invalidated events.
func WithPublisher(p domain.EventPublisher) Option { return func(o *options) { o.publisher = p } }

func WithMetrics(m *telemetry.Metrics) Option { return func(o *options) { o.metrics = m } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithInvalidationScope limits which 401 answers clear the session. The
// default, AllEndpoints, treats every 401 as a dead session.
func WithInvalidationScope(s InvalidationScope) Option { return func(o *options) { o.scope = s } }

func WithUserAgent(ua string) Option { return func(o *options) { o.userAgent = ua } }

// WithRequestInterceptor appends an interceptor after the built-in request-id
// and bearer ones.
func WithRequestInterceptor(ic RequestInterceptor) Option {
	return func(o *options) { o.extraRequest = append(o.extraRequest, ic) }
}

// WithResponseInterceptor appends an interceptor after the built-in 401 handler.
func WithResponseInterceptor(ic ResponseInterceptor) Option {
	return func(o *options) { o.extraResponse = append(o.extraResponse, ic) }
}

// New builds a client for the backend at baseURL (scheme and host, optionally a
// path prefix). Every endpoint is called under baseURL + /api.
func New(baseURL string, sessions domain.SessionStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base url %q", baseURL)
	}
	if sessions == nil {
		return nil, fmt.Errorf("apiclient: a session store is required")
	}

	o := options{
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
		scope:      AllEndpoints,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	c := &Client{
		apiBase:  strings.TrimRight(u.String(), "/") + APIPrefix,
		http:     o.httpClient,
		sessions: sessions,
		logger:   o.logger.With().Str("component", "apiclient").Logger(),
		metrics:  o.metrics,
		tracer:   o.tracerProvider.Tracer(tracerName),
		agent:    o.userAgent,
	}

	// 1. Request pipeline: correlation id, bearer credential, caller hooks, trace context.
	c.requestInterceptors = append(c.requestInterceptors,
		RequestIDInterceptor(),
		BearerAuthInterceptor(sessions, c.logger),
	)
	c.requestInterceptors = append(c.requestInterceptors, o.extraRequest...)
	c.requestInterceptors = append(c.requestInterceptors, TraceContextInterceptor(otel.GetTextMapPropagator()))

	// 2. Response pipeline: session invalidation first, then caller hooks.
	c.responseInterceptors = append(c.responseInterceptors,
		UnauthorizedInterceptor(sessions, o.publisher, o.scope, o.metrics, c.logger),
	)
	c.responseInterceptors = append(c.responseInterceptors, o.extraResponse...)

	return c, nil
}

// BaseURL returns the /api root every call is made against.
func (c *Client) BaseURL() string { return c.apiBase }

// Do runs one call through both pipelines. The returned error is non-nil only
// for transport failures or interceptor failures; any HTTP status, including
// 401 and 5xx, comes back in Response untouched.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, r.Method+" "+APIPrefix+r.route(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", APIPrefix+r.route()),
		),
	)
	defer span.End()

	httpReq, err := c.newHTTPRequest(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return nil, err
	}

	for _, ic := range c.requestInterceptors {
		if err := ic(httpReq); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "request interceptor")
			return nil, err
		}
	}

	requestID := httpReq.Header.Get(HeaderRequestID)
	log := c.logger.With().Str("method", r.Method).Str("path", r.Path).Str("request_id", requestID).Logger()

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.TransportError(r.Method, r.route())
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		log.Warn().Err(err).Msg("API call failed before a response")
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, r.Method, r.Path, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes+1))
	if err == nil && len(body) > maxResponseBytes {
		err = fmt.Errorf("%w (limit %d bytes)", ErrResponseTooLarge, maxResponseBytes)
	}
	if err != nil {
		c.metrics.TransportError(r.Method, r.route())
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, fmt.Errorf("%w: %s %s: read body: %w", ErrTransport, r.Method, r.Path, err)
	}
	elapsed := time.Since(start)

	resp := &Response{
		Status:    httpResp.StatusCode,
		Header:    httpResp.Header,
		Body:      body,
		Request:   r,
		RequestID: requestID,
	}

	c.metrics.ObserveRequest(r.Method, r.route(), resp.Status, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	if resp.Status >= 500 {
		span.SetStatus(codes.Error, http.StatusText(resp.Status))
	}
	log.Debug().Int("status", resp.Status).Dur("elapsed", elapsed).Msg("API call completed")

	for _, ic := range c.responseInterceptors {
		if err := ic(ctx, resp); err != nil {
			span.RecordError(err)
			return resp, err
		}
	}
	return resp, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, r *Request) (*http.Request, error) {
	target := c.apiBase + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		raw, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode %s %s body: %w", r.Method, r.Path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build %s %s: %w", r.Method, r.Path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.agent)
	for k, vs := range r.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// call is the typed-endpoint path: non-2xx answers become *APIError and a 2xx
// body is decoded into out when out is non-nil.
func (c *Client) call(ctx context.Context, r *Request, out any) error {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDecode, r.Method, r.Path, err)
	}
	return nil
}
