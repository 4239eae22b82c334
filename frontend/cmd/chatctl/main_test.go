package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

type fakeBackend struct {
	mu      sync.Mutex
	revoked bool
	down    bool
	sent     map[string]any
	sentRoom string
}

func (b *fakeBackend) lastSent(field string) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent[field]
}

func (b *fakeBackend) lastRoom() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sentRoom
}

func (b *fakeBackend) hasField(field string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sent[field]
	return ok
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.revoked || r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid token"}`))
			return false
		}
		return true
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"tok-1","user":{"user_id":1,"username":"alice"}}`))
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})
	mux.HandleFunc("GET /api/chatrooms", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		_, _ = w.Write([]byte(`{"chatrooms":[{"id":"65a1b2c3d4e5f60718293a4b","name":"general","members":[{"user_id":1}]}]}`))
	})
	mux.HandleFunc("POST /api/chatrooms/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.sent = body
		b.sentRoom = r.PathValue("id")
		b.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":{"id":"65a1b2c3d4e5f60718293b2a","chatroom_id":"` + r.PathValue("id") + `"}}`))
	})
	return mux
}

func setup(t *testing.T) (*fakeBackend, func(args ...string) (int, string, string)) {
	t.Helper()
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	t.Chdir(t.TempDir())
	t.Setenv("GINCHAT_ENV", "test")
	t.Setenv("API_BASE_URL", srv.URL)
	t.Setenv("HEALTH_PROBE", "http")
	t.Setenv("HEALTH_PATH", "/health")
	t.Setenv("INVALIDATION_SCOPE", "all")
	t.Setenv("SESSION_BACKEND", "file")
	t.Setenv("SESSION_DIR", t.TempDir())
	t.Setenv("SESSION_KEY", "")
	t.Setenv("SESSION_PROFILE", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("MEDIA_S3_BUCKET", "")

	exec := func(args ...string) (int, string, string) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
		return code, stdout.String(), stderr.String()
	}
	return backend, exec
}

func TestChatctl_SessionLifecycle(t *testing.T) {
	backend, exec := setup(t)

	code, out, _ := exec("whoami")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "not logged in")

	code, out, errOut := exec("login", "--email", "alice@example.com", "--password", "pw")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "logged in as alice")

	// The session survives across invocations.
	code, out, _ = exec("rooms")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "general")

	code, out, errOut = exec("send", "65a1b2c3d4e5f60718293a4b", "--text", "hello")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "sent message 65a1b2c3d4e5f60718293b2a to room 65a1b2c3d4e5f60718293a4b")
	assert.Equal(t, "65a1b2c3d4e5f60718293a4b", backend.lastRoom())
	assert.Equal(t, "text", backend.lastSent("message_type"))
	assert.Equal(t, "hello", backend.lastSent("text_content"))
	assert.False(t, backend.hasField("media_url"))

	code, _, _ = exec("send", "65a1b2c3d4e5f60718293a4b", "--media-url", "https://cdn.test/cat.png")
	require.Equal(t, 0, code)
	assert.Equal(t, "picture", backend.lastSent("message_type"))
	assert.False(t, backend.hasField("text_content"))

	// An explicit empty text is forwarded, not dropped.
	code, _, errOut = exec("send", "65a1b2c3d4e5f60718293a4b", "--type", "text", "--text", "")
	require.Equal(t, 0, code, errOut)
	assert.True(t, backend.hasField("text_content"))
	assert.Equal(t, "", backend.lastSent("text_content"))

	// Server-side revocation: the next call clears the session and says so.
	backend.mu.Lock()
	backend.revoked = true
	backend.mu.Unlock()

	code, _, errOut = exec("rooms")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, sessionExpiredNotice)

	code, out, _ = exec("whoami")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "not logged in")
}

func TestChatctl_Logout(t *testing.T) {
	_, exec := setup(t)

	code, _, _ := exec("login", "--email", "alice@example.com", "--password", "pw")
	require.Equal(t, 0, code)

	for range 2 {
		code, out, _ := exec("logout")
		assert.Equal(t, 0, code)
		assert.Contains(t, out, "logged out")
	}
}

func TestChatctl_Health(t *testing.T) {
	backend, exec := setup(t)

	code, out, _ := exec("health")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, `"status": "healthy"`)

	backend.mu.Lock()
	backend.down = true
	backend.mu.Unlock()

	code, _, errOut := exec("health")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, domain.MessageBackendUnhealthy)
}

func TestChatctl_Usage(t *testing.T) {
	_, exec := setup(t)

	code, _, errOut := exec()
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: chatctl")

	code, _, errOut = exec("teleport")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "teleport"`)

	code, _, errOut = exec("join")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: chatctl join ROOM_ID")

	code, out, _ := exec("keygen")
	assert.Equal(t, 0, code)
	assert.Regexp(t, `^SESSION_KEY=[0-9a-f]{64}\n$`, out)
}

func TestInferMessageType(t *testing.T) {
	cases := []struct {
		text, url, ct string
		want          domain.MessageType
	}{
		{"hi", "", "", domain.MessageText},
		{"", "u", "image/png", domain.MessagePicture},
		{"look", "u", "image/jpeg", domain.MessageTextAndPicture},
		{"", "u", "audio/mpeg", domain.MessageAudio},
		{"listen", "u", "audio/ogg", domain.MessageTextAndAudio},
		{"", "u", "video/mp4", domain.MessageVideo},
		{"watch", "u", "video/webm", domain.MessageTextAndVideo},
	}
	for _, tc := range cases {
		got, err := inferMessageType(tc.text, tc.url, tc.ct)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := inferMessageType("", "", "")
	assert.ErrorIs(t, err, errUsage)
	_, err = inferMessageType("", "u", "application/pdf")
	assert.ErrorIs(t, err, errUsage)
}
