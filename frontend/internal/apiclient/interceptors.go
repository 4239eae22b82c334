package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
	"github.com/ginchat/ginchat/frontend/internal/telemetry"
)

// RequestInterceptor mutates an outbound request before it is sent. A returned
// error aborts the call and reaches the caller.
type RequestInterceptor func(req *http.Request) error

// ResponseInterceptor observes every answered call. It must not rewrite the
// status; a returned error reaches the caller alongside the response.
type ResponseInterceptor func(ctx context.Context, resp *Response) error

// InvalidationScope decides whether a 401 on req means the session is dead.
type InvalidationScope func(req *Request) bool

// AllEndpoints treats a 401 from any endpoint as session invalidation.
func AllEndpoints(*Request) bool { return true }

// SessionEndpointsOnly ignores 401s from the credential exchange endpoints,
// where they mean "wrong password" rather than "stale token".
func SessionEndpointsOnly(req *Request) bool {
	switch strings.TrimRight(req.Path, "/") {
	case "/auth/login", "/auth/register":
		return false
	}
	return true
}

// RequestIDInterceptor stamps each call with a fresh correlation id unless the
// caller already set one.
func RequestIDInterceptor() RequestInterceptor {
	return func(req *http.Request) error {
		if req.Header.Get(HeaderRequestID) == "" {
			req.Header.Set(HeaderRequestID, uuid.NewString())
		}
		return nil
	}
}

// BearerAuthInterceptor attaches the persisted token verbatim. Without a
// session the request goes out unauthenticated and the server decides.
func BearerAuthInterceptor(sessions domain.SessionStore, logger zerolog.Logger) RequestInterceptor {
	return func(req *http.Request) error {
		sess, err := sessions.Get(req.Context())
		if err != nil {
			logger.Warn().Err(err).Str("path", req.URL.Path).Msg("session unreadable, sending request unauthenticated")
			return nil
		}
		if !sess.Authenticated() {
			return nil
		}
		req.Header.Set("Authorization", "Bearer "+sess.Token)
		return nil
	}
}

// TraceContextInterceptor propagates the active span to the backend.
func TraceContextInterceptor(p propagation.TextMapPropagator) RequestInterceptor {
	return func(req *http.Request) error {
		p.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
		return nil
	}
}

// UnauthorizedInterceptor clears the session on an in-scope 401 and announces
// it with a session.invalidated event. It never navigates and never alters the
// response; concurrent 401s each clear, which is a no-op after the first.
func UnauthorizedInterceptor(
	sessions domain.SessionStore,
	publisher domain.EventPublisher,
	scope InvalidationScope,
	metrics *telemetry.Metrics,
	logger zerolog.Logger,
) ResponseInterceptor {
	if scope == nil {
		scope = AllEndpoints
	}
	return func(ctx context.Context, resp *Response) error {
		if resp.Status != http.StatusUnauthorized || resp.Request == nil || !scope(resp.Request) {
			return nil
		}

		if err := sessions.Clear(ctx); err != nil {
			return fmt.Errorf("apiclient: clear session after 401: %w", err)
		}
		metrics.SessionInvalidated()

		logger.Warn().
			Str("method", resp.Request.Method).
			Str("path", resp.Request.Path).
			Str("request_id", resp.RequestID).
			Msg("server rejected credentials, session cleared")

		if publisher != nil {
			publisher.Publish(ctx, domain.NewEvent(domain.TopicSession, domain.EventSessionInvalidated, domain.SessionInvalidated{
				Path:      APIPrefix + resp.Request.Path,
				Method:    resp.Request.Method,
				Status:    resp.Status,
				RequestID: resp.RequestID,
			}))
		}
		return nil
	}
}
