package browser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL)), srv
}

func TestNewSession(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "sess-1"})
	})

	sess, err := client.NewSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "sess-1", sess.(*httpSession).id)
}

func TestSessionNavigateAndContent(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "sess-2"})
		case "/sessions/sess-2/navigate":
			var body struct {
				URL string `json:"url"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://example.com/careers", body.URL)
			w.WriteHeader(http.StatusOK)
		case "/sessions/sess-2/content":
			assert.Equal(t, http.MethodGet, r.Method)
			_ = json.NewEncoder(w).Encode(map[string]string{"html": "<html><body>jobs</body></html>"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	sess, err := client.NewSession(ctx)
	require.NoError(t, err)

	require.NoError(t, sess.Navigate(ctx, "https://example.com/careers"))

	html, err := sess.Content(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "jobs")
}

func TestSessionWaitTimeout(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "s"})
		case "/sessions/s/wait":
			var body struct {
				Until     string `json:"until"`
				TimeoutMs int64  `json:"timeout_ms"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "network_idle", body.Until)
			assert.EqualValues(t, 5000, body.TimeoutMs)
			_ = json.NewEncoder(w).Encode(map[string]bool{"timed_out": true})
		}
	})

	ctx := context.Background()
	sess, err := client.NewSession(ctx)
	require.NoError(t, err)

	err = sess.Wait(ctx, WaitNetworkIdle, 5*time.Second)
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestSessionClickNoSuchElement(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "s"})
		case "/sessions/s/click":
			_ = json.NewEncoder(w).Encode(map[string]bool{"clicked": false})
		}
	})

	ctx := context.Background()
	sess, err := client.NewSession(ctx)
	require.NoError(t, err)

	err = sess.Click(ctx, "a.next")
	assert.ErrorIs(t, err, ErrNoSuchElement)
}

func TestSessionScrollAndHeight(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "s"})
		case "/sessions/s/scroll":
			var body struct {
				Y int `json:"y"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 2400, body.Y)
			w.WriteHeader(http.StatusOK)
		case "/sessions/s/height":
			_ = json.NewEncoder(w).Encode(map[string]int{"height": 4800})
		}
	})

	ctx := context.Background()
	sess, err := client.NewSession(ctx)
	require.NoError(t, err)

	require.NoError(t, sess.ScrollTo(ctx, 2400))

	h, err := sess.PageHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4800, h)
}

func TestAPIError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream browser crashed"))
	})

	_, err := client.NewSession(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "crashed")
}

func TestSessionClose(t *testing.T) {
	deleted := false
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "s"})
		case "/sessions/s":
			assert.Equal(t, http.MethodDelete, r.Method)
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		}
	})

	ctx := context.Background()
	sess, err := client.NewSession(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Close(ctx))
	assert.True(t, deleted)
}
