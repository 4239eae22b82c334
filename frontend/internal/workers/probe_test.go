package workers_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
	"github.com/ginchat/ginchat/frontend/internal/workers"
)

func TestHTTPProbe(t *testing.T) {
	var (
		mu                 sync.Mutex
		gotPath, gotMethod string
		status             = http.StatusOK
	)
	setStatus := func(code int) {
		mu.Lock()
		defer mu.Unlock()
		status = code
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath, gotMethod = r.URL.Path, r.Method
		code := status
		mu.Unlock()

		if code == http.StatusFound {
			http.Redirect(w, r, "/elsewhere", code)
			return
		}
		w.WriteHeader(code)
	}))
	defer srv.Close()

	probe, err := workers.NewHTTPProbe(srv.URL+"/", "")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/health", probe.Target())
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		setStatus(http.StatusOK)
		require.NoError(t, probe.Probe(ctx))

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "/health", gotPath, "liveness lives outside the /api prefix")
		assert.Equal(t, http.MethodGet, gotMethod)
	})

	t.Run("no content is healthy", func(t *testing.T) {
		setStatus(http.StatusNoContent)
		assert.NoError(t, probe.Probe(ctx))
	})

	for _, code := range []int{http.StatusFound, http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			setStatus(code)
			err := probe.Probe(ctx)
			var pse *domain.ProbeStatusError
			require.True(t, errors.As(err, &pse), "got %v", err)
			assert.Contains(t, pse.Status, http.StatusText(code))
		})
	}
}

func TestHTTPProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	probe, err := workers.NewHTTPProbe(srv.URL, "/health")
	require.NoError(t, err)

	err = probe.Probe(context.Background())
	require.Error(t, err)
	var pse *domain.ProbeStatusError
	assert.False(t, errors.As(err, &pse), "transport failures are not status errors")
}

func TestHTTPProbe_InvalidBase(t *testing.T) {
	_, err := workers.NewHTTPProbe("::nope", "")
	assert.Error(t, err)
}

func newHealthServer(t *testing.T) (*health.Server, *grpc.Server, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})
	return hs, srv, conn
}

func TestGRPCProbe(t *testing.T) {
	hs, srv, conn := newHealthServer(t)
	ctx := context.Background()

	t.Run("serving", func(t *testing.T) {
		hs.SetServingStatus("ginchat", healthpb.HealthCheckResponse_SERVING)
		assert.NoError(t, workers.NewGRPCProbe(conn, "bufnet", "ginchat").Probe(ctx))
	})

	t.Run("not serving", func(t *testing.T) {
		hs.SetServingStatus("ginchat", healthpb.HealthCheckResponse_NOT_SERVING)
		err := workers.NewGRPCProbe(conn, "bufnet", "ginchat").Probe(ctx)
		var pse *domain.ProbeStatusError
		require.True(t, errors.As(err, &pse))
		assert.Equal(t, "NOT_SERVING", pse.Status)
	})

	t.Run("unknown service", func(t *testing.T) {
		err := workers.NewGRPCProbe(conn, "bufnet", "nope").Probe(ctx)
		var pse *domain.ProbeStatusError
		require.True(t, errors.As(err, &pse))
		assert.Equal(t, "NotFound", pse.Status)
	})

	t.Run("server gone", func(t *testing.T) {
		srv.Stop()
		err := workers.NewGRPCProbe(conn, "bufnet", "").Probe(ctx)
		require.Error(t, err)
		var pse *domain.ProbeStatusError
		assert.False(t, errors.As(err, &pse))
	})
}
