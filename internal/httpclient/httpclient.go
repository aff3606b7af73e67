package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"toolhub/internal/logger"
	"toolhub/internal/trace"
)

// Config 는 HTTP 클라이언트 공통 설정이다.
type Config struct {
	Timeout time.Duration
	// MaxBodyLog 는 로그에 남길 요청 바디의 최대 바이트 수다. 0 이면 1024.
	MaxBodyLog int
}

// loggingRoundTripper 는 모든 아웃바운드 HTTP 호출에 대해 공통 로깅과
// X-Request-Id / X-Span-Id 헤더 전파를 수행한다.
type loggingRoundTripper struct {
	inner      http.RoundTripper
	maxBodyLog int
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	requestID, spanID := trace.NextSpanID(req.Context())
	req.Header.Set(trace.HeaderRequestID, requestID)
	req.Header.Set(trace.HeaderSpanID, spanID)

	var bodySnippet string
	if req.Body != nil {
		if bodyBytes, err := io.ReadAll(req.Body); err == nil {
			if len(bodyBytes) > l.maxBodyLog {
				bodySnippet = string(bodyBytes[:l.maxBodyLog])
			} else {
				bodySnippet = string(bodyBytes)
			}
			// 실제 전송을 위해 Body 를 복원한다.
			req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}
	}

	resp, err := l.inner.RoundTrip(req)
	fields := logger.Fields{
		"method":     req.Method,
		"url":        req.URL.String(),
		"duration":   time.Since(start).String(),
		"request_id": requestID,
		"span_id":    spanID,
	}
	if bodySnippet != "" {
		fields["body"] = bodySnippet
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.ErrorWithFields("httpclient request failed", fields)
		return nil, err
	}

	fields["status"] = resp.StatusCode
	logger.DebugWithFields("httpclient request success", fields)
	return resp, nil
}

// BaseClient 는 공통 http.Client 와 baseURL 을 묶어 URL/요청 생성을 돕는다.
type BaseClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

// NewBaseClientWithClient 는 이미 생성된 http.Client 를 사용한다. nil 이면 기본 클라이언트를 사용한다.
func NewBaseClientWithClient(httpClient *http.Client, baseURL string) *BaseClient {
	if httpClient == nil {
		httpClient = New(Config{})
	}
	return &BaseClient{
		HTTPClient: httpClient,
		BaseURL:    baseURL,
	}
}

// NewRequest 는 baseURL 과 상대 경로, 쿼리, 바디로 요청을 만든다.
// relPath 에 쿼리(?)가 들어 있으면 path.Join 이 손상시키므로 에러를 반환한다.
func (c *BaseClient) NewRequest(ctx context.Context, method, relPath string, query url.Values, body io.Reader) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.Contains(relPath, "?") {
		return nil, fmt.Errorf("httpclient: relPath must not contain query string (use query parameter instead): %s", relPath)
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	if relPath != "" {
		base.Path = path.Join(base.Path, relPath)
	}
	if query != nil {
		base.RawQuery = query.Encode()
	}
	return http.NewRequestWithContext(ctx, method, base.String(), body)
}

func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	return c.HTTPClient.Do(req)
}

// New 는 로깅 트랜스포트를 장착한 http.Client 를 생성한다.
// Timeout 이 0 이면 클라이언트 타임아웃을 두지 않는다. 호출 단위 타임아웃은 컨텍스트로 건다.
func New(cfg Config) *http.Client {
	maxBodyLog := cfg.MaxBodyLog
	if maxBodyLog <= 0 {
		maxBodyLog = 1024
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &loggingRoundTripper{inner: http.DefaultTransport, maxBodyLog: maxBodyLog},
	}
}
