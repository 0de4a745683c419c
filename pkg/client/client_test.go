package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheepe/pterogo/pkg/protocol"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{Host: ts.URL, Token: "ptlc_test"})
	return c, ts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestExecute_OKReturnsPayloadVerbatim(t *testing.T) {
	var gotAuth, gotRequestID, gotPath string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Write([]byte("raw contents\n"))
	}))
	defer ts.Close()

	req := NewRequest(http.MethodGet, "/servers/abc/files/contents").WithQuery("file", "/a.txt")
	data, err := c.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "raw contents\n", string(data))
	assert.Equal(t, "Bearer ptlc_test", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "/api/client/servers/abc/files/contents?file=%2Fa.txt", gotPath)
}

func TestExecute_SuppressedStatusIsSuccess(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	data, err := c.Execute(context.Background(), NewRequest(http.MethodPost, "/x"), http.StatusNoContent)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestExecute_UnsuppressedNoContentIsDomainError(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	_, err := c.Execute(context.Background(), NewRequest(http.MethodPost, "/x"))
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok, "expected APIError, got %T", err)
	assert.Equal(t, "An unexpected error occurred (204): No Content", apiErr.Error())
}

func TestExecute_StatusShapedError(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"errors": []map[string]string{{"code": "E1", "status": "500", "detail": "boom"}},
		})
	}))
	defer ts.Close()

	_, err := c.Execute(context.Background(), NewRequest(http.MethodGet, "/x"))
	require.Error(t, err)
	assert.Equal(t, "E1 (500): boom", err.Error())

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.IsType(t, protocol.StatusErrorDetail{}, apiErr.Detail)
}

func TestExecute_SourceShapedError(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": []map[string]any{{
				"code":   "required",
				"source": map[string]string{"field": "root"},
				"detail": "The root field is required.",
			}},
		})
	}))
	defer ts.Close()

	_, err := c.Execute(context.Background(), NewRequest(http.MethodPost, "/x"))
	require.Error(t, err)
	assert.Equal(t, "The root field is required.", err.Error())
}

func TestExecute_UnrecognizedBody(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer ts.Close()

	_, err := c.Execute(context.Background(), NewRequest(http.MethodGet, "/x"))
	require.Error(t, err)
	assert.Equal(t, "An unexpected error occurred (502): Bad Gateway", err.Error())
}

func TestExecute_ForbiddenIsInvalidKey(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"errors": []map[string]string{{"code": "AccessDenied", "status": "403", "detail": "no"}},
		})
	}))
	defer ts.Close()

	_, err := c.Execute(context.Background(), NewRequest(http.MethodGet, "/x"))
	require.Error(t, err)

	te, ok := AsTransportError(err)
	require.True(t, ok, "expected TransportError, got %T", err)
	assert.Equal(t, InvalidKey, te.Kind)
	_, isAPI := AsAPIError(err)
	assert.False(t, isAPI)
}

func TestExecute_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	host := ts.URL
	ts.Close()

	c := New(Config{Host: host, Token: "t"})
	_, err := c.Execute(context.Background(), NewRequest(http.MethodGet, "/x"))
	require.Error(t, err)

	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, ConnectionRefused, te.Kind)
}

func TestExecute_CanceledContext(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Execute(ctx, NewRequest(http.MethodGet, "/x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExecute_RateLimitWaitCanceled(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	c := New(Config{Host: ts.URL, Token: "ptlc_test", RateLimit: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Execute(ctx, NewRequest(http.MethodGet, "/x"))
	te, ok := AsTransportError(err)
	require.True(t, ok, "got %T: %v", err, err)
	assert.Equal(t, Unreachable, te.Kind)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), attempts.Load())
}

func TestExecute_NoRetry(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := c.Execute(context.Background(), NewRequest(http.MethodGet, "/x"))
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestVerify(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/client/account", r.URL.Path)
		writeJSON(w, http.StatusOK, protocol.Object[protocol.Account]{
			Object:     "user",
			Attributes: protocol.Account{ID: 1, Username: "steve", Email: "steve@example.com"},
		})
	}))
	defer ts.Close()

	assert.False(t, c.Verified())
	assert.ErrorIs(t, c.RequireVerified(), ErrUnverified)

	account, err := c.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "steve", account.Username)
	assert.True(t, c.Verified())
	assert.NoError(t, c.RequireVerified())
	assert.Equal(t, account, c.Account())
}

func TestVerify_InvalidKeyLeavesUnverified(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := c.Verify(context.Background())
	require.Error(t, err)
	assert.False(t, c.Verified())
}

func TestNewTrimsHost(t *testing.T) {
	c := New(Config{Host: "https://panel.example.com/"})
	assert.Equal(t, "https://panel.example.com", c.Host())
}

func TestNewJSONRequest(t *testing.T) {
	req, err := NewJSONRequest(http.MethodPost, "/x", protocol.CreateFolderRequest{Root: "/", Name: "world"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", req.ContentType)
	assert.JSONEq(t, `{"root":"/","name":"world"}`, string(req.Body))
}
