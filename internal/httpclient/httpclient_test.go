package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/internal/trace"
)

func TestNewRequestJoinsPathAndQuery(t *testing.T) {
	c := NewBaseClientWithClient(nil, "http://llm.internal:8003/base")

	req, err := c.NewRequest(context.Background(), http.MethodGet, "/v1/chat", url.Values{"a": {"1"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://llm.internal:8003/base/v1/chat?a=1", req.URL.String())
}

func TestNewRequestRejectsQueryInPath(t *testing.T) {
	c := NewBaseClientWithClient(nil, "http://llm.internal")

	_, err := c.NewRequest(context.Background(), http.MethodGet, "/v1/chat?a=1", nil, nil)
	assert.Error(t, err)
}

func TestRoundTripPropagatesTraceAndPreservesBody(t *testing.T) {
	var gotReqID, gotSpan, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get(trace.HeaderRequestID)
		gotSpan = r.Header.Get(trace.HeaderSpanID)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewBaseClientWithClient(New(Config{}), srv.URL)
	ctx := trace.WithRequestAndSpan(context.Background(), "req-9", 0)
	req, err := c.NewRequest(ctx, http.MethodPost, "/echo", nil, strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "req-9", gotReqID)
	assert.Equal(t, "1", gotSpan)
	assert.Equal(t, `{"message":"hi"}`, gotBody)
}
