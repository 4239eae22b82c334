package workers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

const DefaultHealthPath = "/health"

// HTTPProbe issues GET against the backend's root-level liveness endpoint.
// Any 2xx is healthy; no body is required.
type HTTPProbe struct {
	target string
	client *http.Client
}

var _ domain.Probe = (*HTTPProbe)(nil)

// NewHTTPProbe targets baseURL + path. The path lives outside the /api prefix.
func NewHTTPProbe(baseURL, path string) (*HTTPProbe, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("probe: invalid base url %q", baseURL)
	}
	if path == "" {
		path = DefaultHealthPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return &HTTPProbe{
		target: strings.TrimRight(u.String(), "/") + path,
		client: &http.Client{
			// A redirect is an answer, not a reason to go elsewhere.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

func (p *HTTPProbe) Target() string { return p.target }

func (p *HTTPProbe) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target, nil)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.target, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ProbeStatusError{Target: p.target, Status: resp.Status}
	}
	return nil
}

// GRPCProbe asks a grpc.health.v1 server whether a service is SERVING. Used
// when the backend sits behind a sidecar that only speaks gRPC health.
type GRPCProbe struct {
	target  string
	service string
	client  healthpb.HealthClient
}

var _ domain.Probe = (*GRPCProbe)(nil)

func NewGRPCProbe(conn grpc.ClientConnInterface, target, service string) *GRPCProbe {
	return &GRPCProbe{
		target:  target,
		service: service,
		client:  healthpb.NewHealthClient(conn),
	}
}

// DialGRPCProbe opens a plaintext connection to target. The caller closes it.
func DialGRPCProbe(target, service string) (*GRPCProbe, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("probe: grpc client for %s: %w", target, err)
	}
	return NewGRPCProbe(conn, target, service), conn, nil
}

func (p *GRPCProbe) Probe(ctx context.Context) error {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
			return fmt.Errorf("probe %s: %w", p.target, err)
		default:
			// The server answered, it just did not like the question.
			return &domain.ProbeStatusError{Target: p.target, Status: status.Code(err).String()}
		}
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return &domain.ProbeStatusError{Target: p.target, Status: resp.GetStatus().String()}
	}
	return nil
}
